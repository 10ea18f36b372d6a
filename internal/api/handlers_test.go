package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/tgsimilar/internal/crawler"
	"github.com/nao1215/tgsimilar/internal/database"
	"github.com/nao1215/tgsimilar/internal/model"
	"github.com/nao1215/tgsimilar/internal/platform"
	"github.com/nao1215/tgsimilar/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubClient struct {
	connectErr error
}

func (c stubClient) Connect(context.Context) (platform.Session, error) {
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	return stubSession{}, nil
}

type stubSession struct{}

func (stubSession) FetchSimilar(_ context.Context, ch model.ChannelID) ([]model.DiscoveredChannel, error) {
	return []model.DiscoveredChannel{
		{Title: "Similar to " + ch.String(), Username: ch.String() + "_fans", Source: ch},
	}, nil
}

func (stubSession) Close() error { return nil }

type testEnv struct {
	server *httptest.Server
	store  *database.Store
	auth   *platform.PendingAuthenticator
}

func newTestEnv(t *testing.T, client platform.Client) *testEnv {
	t.Helper()

	store, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := crawler.New(client,
		crawler.WithLogger(logger),
		crawler.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
	policy := crawler.DefaultPolicy()
	policy.Delay = 0
	svc := service.New(store, orch, policy, service.WithLogger(logger))

	auth := platform.NewPendingAuthenticator()
	handler := NewHandler(svc,
		WithHistory(store),
		WithAuthenticator(auth),
		WithLogger(logger),
	)
	srv := httptest.NewServer(NewServer(handler))
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, store: store, auth: auth}
}

func (e *testEnv) do(t *testing.T, method, path, contentType string, body io.Reader) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, e.server.URL+path, body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) doJSON(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return e.do(t, method, path, "application/json", r)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, stubClient{})
	resp := env.doJSON(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[HealthResponse](t, resp)
	if body.Status != "ok" || body.Running || body.AuthPrompt != "" {
		t.Errorf("body = %+v", body)
	}
}

func TestChannels(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, stubClient{})

	resp := env.doJSON(t, http.MethodPut, "/api/channels", `{"channels":["@golang","ab","GOLANG","rustlang"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}
	put := decode[ChannelsResponse](t, resp)
	if len(put.Channels) != 2 || len(put.Rejected) != 1 || put.Duplicates != 1 {
		t.Errorf("PUT body = %+v", put)
	}

	get := decode[ChannelsResponse](t, env.doJSON(t, http.MethodGet, "/api/channels", ""))
	if len(get.Channels) != 2 || get.Channels[0] != "golang" || get.Channels[1] != "rustlang" {
		t.Errorf("GET channels = %v", get.Channels)
	}

	bad := env.doJSON(t, http.MethodPut, "/api/channels", `{"channels":`)
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", bad.StatusCode)
	}
}

func TestChannels_FileUpload(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, stubClient{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "channels.csv")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = io.WriteString(fw, "@durov,founder\ntelegram,official\n")
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	resp := env.do(t, http.MethodPut, "/api/channels", mw.FormDataContentType(), &buf)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[ChannelsResponse](t, resp)
	if len(body.Channels) != 2 || body.Channels[0] != "durov" {
		t.Errorf("channels = %v, rejected = %v", body.Channels, body.Rejected)
	}
}

func TestRunCrawler(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, stubClient{})

	t.Run("no stored channels", func(t *testing.T) {
		resp := env.doJSON(t, http.MethodPost, "/api/run-crawler", "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
		if body := decode[RunResponse](t, resp); body.Success {
			t.Error("success should be false")
		}
	})

	t.Run("with body", func(t *testing.T) {
		resp := env.doJSON(t, http.MethodPost, "/api/run-crawler", `{"channels":["golang","rustlang"]}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		body := decode[RunResponse](t, resp)
		if !body.Success || body.ChannelsProcessed != 2 || body.SimilarChannelsFound != 2 {
			t.Errorf("body = %+v", body)
		}
		if body.Run == nil || body.Run.Status != model.RunCompleted {
			t.Errorf("run = %+v", body.Run)
		}
	})

	t.Run("stored list", func(t *testing.T) {
		resp := env.doJSON(t, http.MethodPost, "/api/run-crawler", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if body := decode[RunResponse](t, resp); body.ChannelsProcessed != 2 {
			t.Errorf("processed = %d, want the stored two", body.ChannelsProcessed)
		}
	})

	t.Run("results and history", func(t *testing.T) {
		results := env.doJSON(t, http.MethodGet, "/api/results", "")
		if results.StatusCode != http.StatusOK {
			t.Fatalf("results status = %d", results.StatusCode)
		}
		doc := decode[map[string]any](t, results)
		if doc["successful_channels"] != float64(2) {
			t.Errorf("results = %v", doc)
		}

		runs := decode[struct {
			Runs []database.RunSummary `json:"runs"`
		}](t, env.doJSON(t, http.MethodGet, "/api/runs?limit=10", ""))
		if len(runs.Runs) != 2 {
			t.Fatalf("runs = %+v", runs.Runs)
		}

		one := env.doJSON(t, http.MethodGet, "/api/runs/"+runs.Runs[0].ID, "")
		if one.StatusCode != http.StatusOK {
			t.Errorf("GET run status = %d", one.StatusCode)
		}
		missing := env.doJSON(t, http.MethodGet, "/api/runs/does-not-exist", "")
		if missing.StatusCode != http.StatusNotFound {
			t.Errorf("missing run status = %d", missing.StatusCode)
		}

		found := decode[struct {
			Channels []model.DiscoveredChannel `json:"channels"`
		}](t, env.doJSON(t, http.MethodGet, "/api/discovered?source=golang", ""))
		if len(found.Channels) != 2 || found.Channels[0].Username != "golang_fans" {
			t.Errorf("discovered = %+v", found.Channels)
		}

		badLimit := env.doJSON(t, http.MethodGet, "/api/runs?limit=-1", "")
		if badLimit.StatusCode != http.StatusBadRequest {
			t.Errorf("negative limit status = %d", badLimit.StatusCode)
		}
	})
}

func TestRunCrawler_ConnectionFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, stubClient{connectErr: errors.New("gateway down")})
	resp := env.doJSON(t, http.MethodPost, "/api/run-crawler", `{"channels":["golang"]}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	body := decode[RunResponse](t, resp)
	if body.Success || body.Run == nil || body.Run.Failed != 1 || body.Run.Status != model.RunConnectionFailed {
		t.Errorf("body = %+v", body)
	}
}

func TestExportCSV(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, stubClient{})

	if resp := env.doJSON(t, http.MethodGet, "/export-csv", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status before any run = %d, want 404", resp.StatusCode)
	}

	env.doJSON(t, http.MethodPost, "/api/run-crawler", `{"channels":["golang"]}`)

	resp := env.doJSON(t, http.MethodGet, "/export-csv", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "telegram_similar_channels_") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(records) != 2 || records[0][0] != "Source Channel" || records[1][2] != "golang_fans" {
		t.Errorf("records = %v", records)
	}
	if records[1][4] != "Unknown" {
		t.Errorf("members = %q, want Unknown", records[1][4])
	}
}

func TestAuth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, stubClient{})

	resp := env.doJSON(t, http.MethodPost, "/api/auth/code", `{"code":"12345"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status without waiting login = %d, want 409", resp.StatusCode)
	}

	if resp := env.doJSON(t, http.MethodPost, "/api/auth/code", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty code status = %d", resp.StatusCode)
	}

	got := make(chan string, 1)
	go func() {
		code, _ := env.auth.Code(context.Background(), "+10000000000")
		got <- code
	}()
	deadline := time.Now().Add(2 * time.Second)
	for env.auth.Waiting() != platform.PromptCode {
		if time.Now().After(deadline) {
			t.Fatal("authenticator never started waiting")
		}
		time.Sleep(5 * time.Millisecond)
	}

	health := decode[HealthResponse](t, env.doJSON(t, http.MethodGet, "/health", ""))
	if health.AuthPrompt != "code" {
		t.Errorf("auth_prompt = %q, want code", health.AuthPrompt)
	}

	resp = env.doJSON(t, http.MethodPost, "/api/auth/code", `{"code":"12345"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if code := <-got; code != "12345" {
		t.Errorf("code = %q", code)
	}

	if resp := env.doJSON(t, http.MethodPost, "/api/auth/password", `{"password":"secret"}`); resp.StatusCode != http.StatusConflict {
		t.Errorf("password without waiting login = %d, want 409", resp.StatusCode)
	}
}
