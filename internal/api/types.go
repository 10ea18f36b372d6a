package api

import (
	"time"

	"github.com/nao1215/tgsimilar/internal/input"
	"github.com/nao1215/tgsimilar/internal/model"
	"github.com/nao1215/tgsimilar/internal/report"
	"github.com/nao1215/tgsimilar/internal/service"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string    `json:"status"`
	Running    bool      `json:"running"`
	AuthPrompt string    `json:"auth_prompt,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ChannelsRequest carries raw channel identifiers.
type ChannelsRequest struct {
	Channels []string `json:"channels"`
}

// ChannelsResponse is the stored list after validation.
type ChannelsResponse struct {
	Channels   []model.ChannelID `json:"channels"`
	Rejected   []input.Rejection `json:"rejected,omitempty"`
	Duplicates int               `json:"duplicates"`
}

func newChannelsResponse(res input.Result) ChannelsResponse {
	return ChannelsResponse{
		Channels:   res.Channels,
		Rejected:   res.Rejected,
		Duplicates: res.Duplicates,
	}
}

// RunResponse is the body of POST /api/run-crawler.
type RunResponse struct {
	Success              bool            `json:"success"`
	Message              string          `json:"message"`
	ChannelsProcessed    int             `json:"channels_processed"`
	SimilarChannelsFound int             `json:"similar_channels_found"`
	PersistError         string          `json:"persist_error,omitempty"`
	Run                  *model.CrawlRun `json:"run,omitempty"`
}

func newRunResponse(out *service.Outcome, msg string) RunResponse {
	resp := RunResponse{Message: msg}
	if out == nil || out.Run == nil {
		return resp
	}
	resp.Success = out.Run.Status != model.RunConnectionFailed
	resp.ChannelsProcessed = out.Run.Total
	resp.SimilarChannelsFound = report.DiscoveredCount(out.Run)
	resp.Run = out.Run
	if out.PersistErr != nil {
		resp.PersistError = out.PersistErr.Error()
	}
	return resp
}

// CodeRequest is the body of POST /api/auth/code.
type CodeRequest struct {
	Code string `json:"code"`
}

// PasswordRequest is the body of POST /api/auth/password.
type PasswordRequest struct {
	Password string `json:"password"`
}
