package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/tgsimilar/internal/database"
	"github.com/nao1215/tgsimilar/internal/input"
	"github.com/nao1215/tgsimilar/internal/model"
	"github.com/nao1215/tgsimilar/internal/platform"
	"github.com/nao1215/tgsimilar/internal/report"
	"github.com/nao1215/tgsimilar/internal/service"
)

// maxUploadSize bounds channel list uploads.
const maxUploadSize = 1 << 20

// History is the read side of stored runs.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]database.RunSummary, error)
	GetRun(ctx context.Context, id string) (*model.CrawlRun, error)
	QueryDiscovered(ctx context.Context, source string) ([]model.DiscoveredChannel, error)
}

// Handler serves the API routes.
type Handler struct {
	svc     *service.Service
	history History
	auth    *platform.PendingAuthenticator
	logger  *slog.Logger
	now     func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHistory enables the history routes.
func WithHistory(h History) HandlerOption {
	return func(handler *Handler) {
		handler.history = h
	}
}

// WithAuthenticator enables the login routes.
func WithAuthenticator(a *platform.PendingAuthenticator) HandlerOption {
	return func(handler *Handler) {
		handler.auth = a
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(handler *Handler) {
		handler.logger = logger
	}
}

// NewHandler creates a Handler for svc.
func NewHandler(svc *service.Service, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Health reports liveness, whether a crawl is running and the pending login step.
func (h *Handler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Running:   h.svc.Running(),
		Timestamp: h.now().UTC(),
	}
	if h.auth != nil {
		resp.AuthPrompt = string(h.auth.Waiting())
	}
	c.JSON(http.StatusOK, resp)
}

// PutChannels validates and stores a channel list. The list is read from a
// JSON body or from an uploaded "file" form field.
func (h *Handler) PutChannels(c *gin.Context) {
	raw, err := h.readChannelList(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	res, err := h.svc.SubmitChannels(c.Request.Context(), raw)
	if err != nil {
		h.logger.Error("failed to store channel list", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to store channel list"})
		return
	}
	c.JSON(http.StatusOK, newChannelsResponse(res))
}

// GetChannels returns the stored channel list.
func (h *Handler) GetChannels(c *gin.Context) {
	channels, err := h.svc.Channels(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load channel list", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load channel list"})
		return
	}
	c.JSON(http.StatusOK, ChannelsResponse{Channels: channels})
}

// RunCrawler runs a crawl synchronously. A body with channels submits and
// crawls that list; an empty body crawls the stored list.
func (h *Handler) RunCrawler(c *gin.Context) {
	var req ChannelsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	ctx := c.Request.Context()
	var (
		out *service.Outcome
		err error
	)
	if len(req.Channels) > 0 {
		out, err = h.svc.SubmitAndRun(ctx, req.Channels)
	} else {
		out, err = h.svc.Run(ctx)
	}

	switch {
	case errors.Is(err, service.ErrNoChannels):
		c.JSON(http.StatusBadRequest, RunResponse{Success: false, Message: "No channels to process."})
		return
	case errors.Is(err, service.ErrRunInProgress):
		c.JSON(http.StatusConflict, RunResponse{Success: false, Message: "A crawl is already running."})
		return
	case errors.Is(err, service.ErrConnectionFailure):
		c.JSON(http.StatusBadGateway, newRunResponse(out, "Failed to connect to Telegram."))
		return
	case err != nil:
		h.logger.Error("crawl failed", "error", err)
		c.JSON(http.StatusInternalServerError, RunResponse{Success: false, Message: fmt.Sprintf("Error: %v", err)})
		return
	}

	msg := "Crawler completed successfully!"
	if out.Run.Status == model.RunCancelled {
		msg = "Crawler was cancelled; partial results were kept."
	}
	c.JSON(http.StatusOK, newRunResponse(out, msg))
}

// GetResults returns the last stored run with its derived views.
func (h *Handler) GetResults(c *gin.Context) {
	run, err := h.svc.LastResult(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load results", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load results"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no results available"})
		return
	}
	c.JSON(http.StatusOK, report.NewDocument(run))
}

// ExportCSV sends the last result as a CSV attachment.
func (h *Handler) ExportCSV(c *gin.Context) {
	table, _, err := h.svc.Export(c.Request.Context())
	if errors.Is(err, service.ErrNoResults) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no results available to export"})
		return
	}
	if err != nil {
		h.logger.Error("failed to export results", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to export results"})
		return
	}

	filename := fmt.Sprintf("telegram_similar_channels_%s.csv", h.now().Format("20060102_150405"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if _, err := report.NewCSVWriter(c.Writer).WriteTable(table); err != nil {
		h.logger.Error("failed to write csv", "error", err)
	}
}

// ListRuns returns the run history, newest first.
func (h *Handler) ListRuns(c *gin.Context) {
	if !h.requireHistory(c) {
		return
	}
	var q struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil || q.Limit < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
		return
	}

	runs, err := h.history.ListRuns(c.Request.Context(), q.Limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list runs"})
		return
	}
	if runs == nil {
		runs = []database.RunSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun returns one stored run.
func (h *Handler) GetRun(c *gin.Context) {
	if !h.requireHistory(c) {
		return
	}
	run, err := h.history.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("failed to get run", "run_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to get run"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "run not found"})
		return
	}
	c.JSON(http.StatusOK, report.NewDocument(run))
}

// QueryDiscovered returns stored discovered channels.
func (h *Handler) QueryDiscovered(c *gin.Context) {
	if !h.requireHistory(c) {
		return
	}
	channels, err := h.history.QueryDiscovered(c.Request.Context(), c.Query("source"))
	if err != nil {
		h.logger.Error("failed to query discovered channels", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to query discovered channels"})
		return
	}
	if channels == nil {
		channels = []model.DiscoveredChannel{}
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// SubmitCode delivers a login code to a waiting session.
func (h *Handler) SubmitCode(c *gin.Context) {
	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "code is required"})
		return
	}
	h.submitAuth(c, func(a *platform.PendingAuthenticator) error { return a.SubmitCode(req.Code) })
}

// SubmitPassword delivers the two-factor password to a waiting session.
func (h *Handler) SubmitPassword(c *gin.Context) {
	var req PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "password is required"})
		return
	}
	h.submitAuth(c, func(a *platform.PendingAuthenticator) error { return a.SubmitPassword(req.Password) })
}

func (h *Handler) submitAuth(c *gin.Context, submit func(*platform.PendingAuthenticator) error) {
	if h.auth == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "interactive login is not enabled"})
		return
	}
	if err := submit(h.auth); err != nil {
		if errors.Is(err, platform.ErrNoPendingPrompt) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "no login step is waiting for this input"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to submit login input"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

func (h *Handler) requireHistory(c *gin.Context) bool {
	if h.history == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "history is not available"})
		return false
	}
	return true
}

// readChannelList reads raw identifiers from a multipart upload or a JSON body.
func (h *Handler) readChannelList(c *gin.Context) ([]string, error) {
	if c.ContentType() == "multipart/form-data" {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, errors.New("file is required")
		}
		if fh.Size > maxUploadSize {
			return nil, errors.New("file is too large")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload: %w", err)
		}
		defer f.Close()
		return input.ReadList(f, input.FormatFromPath(fh.Filename))
	}

	var req ChannelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, errors.New("invalid request body")
	}
	return req.Channels, nil
}
