package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nao1215/tgsimilar/internal/model"
)

// Gateway session states.
const (
	stateAuthorized       = "authorized"
	stateCodeRequired     = "code_required"
	statePasswordRequired = "password_required"
)

// Gateway error codes carried in the "error" field of error bodies.
const (
	errCodeNotAChannel = "not_a_channel"
	errCodeFloodWait   = "flood_wait"
	errCodeBadCode     = "invalid_code"
	errCodeBadPassword = "invalid_password"
)

// maxAuthSteps bounds the code/password exchange of one Connect call.
const maxAuthSteps = 4

// maxResponseBody limits how much of a gateway response is read.
const maxResponseBody = 4 << 20

// defaultRateLimitWait is used when a 429 carries no wait hint.
const defaultRateLimitWait = 30 * time.Second

// maxRateLimitWait caps any wait hint. Platform flood waits stay below a day;
// larger values are treated as malformed.
const maxRateLimitWait = 24 * time.Hour

// GatewayClient connects to the account gateway over HTTP.
type GatewayClient struct {
	baseURL    *url.URL
	creds      Credentials
	httpClient *http.Client
	auth       Authenticator
	enricher   *ProfileEnricher
	logger     *slog.Logger
	userAgent  string
	now        func() time.Time
}

// GatewayOption configures a GatewayClient.
type GatewayOption func(*GatewayClient)

// WithHTTPClient sets the HTTP client, e.g. one routed through a proxy.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *GatewayClient) {
		g.httpClient = c
	}
}

// WithAuthenticator sets the source of login codes and passwords.
func WithAuthenticator(a Authenticator) GatewayOption {
	return func(g *GatewayClient) {
		g.auth = a
	}
}

// WithEnricher fills missing member counts from public channel pages.
func WithEnricher(e *ProfileEnricher) GatewayOption {
	return func(g *GatewayClient) {
		g.enricher = e
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *GatewayClient) {
		g.logger = l
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) GatewayOption {
	return func(g *GatewayClient) {
		g.userAgent = ua
	}
}

// WithClock overrides the time source used for DiscoveredAt.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *GatewayClient) {
		g.now = now
	}
}

// NewGatewayClient creates a client for the gateway at baseURL.
func NewGatewayClient(baseURL string, creds Credentials, opts ...GatewayOption) (*GatewayClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway URL %q", baseURL)
	}

	g := &GatewayClient{
		baseURL: u,
		creds:   creds,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g, nil
}

type sessionRequest struct {
	APIID   int    `json:"api_id"`
	APIHash string `json:"api_hash"`
	Phone   string `json:"phone,omitempty"`
	Session string `json:"session"`
}

type sessionResponse struct {
	SessionID  string `json:"session_id"`
	State      string `json:"state"`
	Concurrent bool   `json:"concurrent"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

type recommendationsResponse struct {
	Channels []recommendation `json:"channels"`
}

type recommendation struct {
	Title             string `json:"title"`
	Username          string `json:"username"`
	ParticipantsCount *int64 `json:"participants_count"`
	Category          string `json:"category"`
}

// Connect opens a gateway session and completes the login if needed.
func (g *GatewayClient) Connect(ctx context.Context) (Session, error) {
	var resp sessionResponse
	err := g.doJSON(ctx, http.MethodPost, "/v1/sessions", sessionRequest{
		APIID:   g.creds.APIID,
		APIHash: g.creds.APIHash,
		Phone:   g.creds.Phone,
		Session: g.creds.SessionName,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to open gateway session: %w", err)
	}
	if resp.SessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrUnexpectedResponse)
	}
	g.logger.Debug("gateway session opened", "state", resp.State)

	for step := 0; resp.State != stateAuthorized; step++ {
		if step >= maxAuthSteps {
			g.abandon(resp.SessionID)
			return nil, fmt.Errorf("%w: login did not complete", ErrAuthFailed)
		}
		next, err := g.authStep(ctx, resp)
		if err != nil {
			g.abandon(resp.SessionID)
			return nil, err
		}
		resp.State = next.State
		resp.Concurrent = next.Concurrent
	}

	return &GatewaySession{
		client:     g,
		id:         resp.SessionID,
		concurrent: resp.Concurrent,
	}, nil
}

func (g *GatewayClient) authStep(ctx context.Context, cur sessionResponse) (sessionResponse, error) {
	if g.auth == nil {
		return cur, ErrAuthRequired
	}

	var (
		next sessionResponse
		path = "/v1/sessions/" + url.PathEscape(cur.SessionID)
		err  error
	)
	switch cur.State {
	case stateCodeRequired:
		var code string
		if code, err = g.auth.Code(ctx, g.creds.Phone); err != nil {
			return cur, fmt.Errorf("failed to obtain login code: %w", err)
		}
		err = g.doJSON(ctx, http.MethodPost, path+"/code", codeRequest{Code: code}, &next)
	case statePasswordRequired:
		var password string
		if password, err = g.auth.Password(ctx); err != nil {
			return cur, fmt.Errorf("failed to obtain password: %w", err)
		}
		err = g.doJSON(ctx, http.MethodPost, path+"/password", passwordRequest{Password: password}, &next)
	default:
		return cur, fmt.Errorf("%w: unknown session state %q", ErrUnexpectedResponse, cur.State)
	}
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) && (fe.Class == model.ErrorClassFatal || fe.Class == model.ErrorClassNotAChannel) {
			return cur, fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		return cur, err
	}
	return next, nil
}

// abandon deletes a half-authorized session; errors are only logged.
func (g *GatewayClient) abandon(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.doJSON(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(id), nil, nil); err != nil {
		g.logger.Debug("failed to discard gateway session", "error", err)
	}
}

// doJSON sends body as JSON and decodes a 2xx response into out.
// Non-2xx responses become *FetchError values.
func (g *GatewayClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Transient("", err)
	}
	defer resp.Body.Close() //nolint:errcheck // body already consumed

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Transient("", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyResponse(resp, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return Fatal("", fmt.Errorf("%w: %v", ErrUnexpectedResponse, err))
	}
	return nil
}

// classifyResponse maps a non-2xx gateway answer onto an error class.
func classifyResponse(resp *http.Response, body []byte) *FetchError {
	var er errorResponse
	_ = json.Unmarshal(body, &er) //nolint:errcheck // error bodies are optional

	cause := fmt.Errorf("gateway returned %s", resp.Status)
	if er.Message != "" {
		cause = fmt.Errorf("gateway returned %s: %s", resp.Status, er.Message)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || er.Error == errCodeFloodWait:
		return RateLimited("", retryAfter(resp.Header.Get("Retry-After"), er.RetryAfter), cause)
	case resp.StatusCode == http.StatusNotFound || er.Error == errCodeNotAChannel:
		return NotAChannel("", cause)
	case resp.StatusCode >= 500:
		return Transient("", cause)
	case er.Error == errCodeBadCode || er.Error == errCodeBadPassword:
		return Fatal("", fmt.Errorf("%w: %v", ErrAuthFailed, cause))
	default:
		return Fatal("", cause)
	}
}

// retryAfter picks the wait from the Retry-After header (seconds or HTTP
// date) or the body hint, falling back to defaultRateLimitWait. The result
// never exceeds maxRateLimitWait.
func retryAfter(header string, bodySeconds int) time.Duration {
	if header != "" {
		if secs, err := strconv.ParseInt(strings.TrimSpace(header), 10, 64); err == nil && secs >= 0 {
			return secondsWait(secs)
		}
		if at, err := http.ParseTime(header); err == nil {
			return min(max(time.Until(at), 0), maxRateLimitWait)
		}
	}
	if bodySeconds > 0 {
		return secondsWait(int64(bodySeconds))
	}
	return defaultRateLimitWait
}

// secondsWait converts secs without overflowing time.Duration.
func secondsWait(secs int64) time.Duration {
	if secs > int64(maxRateLimitWait/time.Second) {
		return maxRateLimitWait
	}
	return time.Duration(secs) * time.Second
}

// GatewaySession is an authorized gateway session.
type GatewaySession struct {
	client     *GatewayClient
	id         string
	concurrent bool
	closed     atomic.Bool
}

// ConcurrentSafe reports whether the gateway allows parallel calls on this session.
func (s *GatewaySession) ConcurrentSafe() bool {
	return s.concurrent
}

// FetchSimilar implements Session.
func (s *GatewaySession) FetchSimilar(ctx context.Context, ch model.ChannelID) ([]model.DiscoveredChannel, error) {
	if s.closed.Load() {
		return nil, Fatal(ch, ErrSessionClosed)
	}

	path := fmt.Sprintf("/v1/sessions/%s/channels/%s/recommendations",
		url.PathEscape(s.id), url.PathEscape(ch.String()))

	var resp recommendationsResponse
	if err := s.client.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Channel = ch
			return nil, fe
		}
		return nil, Transient(ch, err)
	}

	now := s.client.now()
	source := ch.Key()
	seen := make(map[string]struct{}, len(resp.Channels))
	out := make([]model.DiscoveredChannel, 0, len(resp.Channels))
	for _, r := range resp.Channels {
		username := strings.TrimPrefix(strings.TrimSpace(r.Username), model.ChannelMarker)
		if username == "" {
			continue
		}
		key := model.UsernameKey(username)
		if key == source {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		d := model.DiscoveredChannel{
			Title:        r.Title,
			Username:     username,
			URL:          model.ChannelURL(username),
			MemberCount:  r.ParticipantsCount,
			Category:     r.Category,
			DiscoveredAt: now,
			Source:       ch,
		}
		if d.MemberCount == nil && s.client.enricher != nil {
			s.enrich(ctx, &d)
		}
		out = append(out, d)
	}

	s.client.logger.Debug("similar channels fetched", "channel", ch.String(), "count", len(out))
	return out, nil
}

func (s *GatewaySession) enrich(ctx context.Context, d *model.DiscoveredChannel) {
	n, err := s.client.enricher.MemberCount(ctx, d.Username)
	if err != nil {
		s.client.logger.Debug("member count unavailable", "channel", d.Username, "error", err)
		return
	}
	d.MemberCount = &n
}

// Close deletes the gateway session. A second call returns ErrSessionClosed.
func (s *GatewaySession) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSessionClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.doJSON(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(s.id), nil, nil); err != nil {
		return fmt.Errorf("failed to close gateway session: %w", err)
	}
	return nil
}
