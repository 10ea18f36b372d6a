package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeys are attribute keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	// Platform credentials
	"api_hash":   true,
	"apihash":    true,
	"api_id":     true,
	"phone":      true,
	"phone_code": true,
	"code":       true,
	"login_code": true,
	"password":   true,
	"2fa":        true,

	// Gateway session
	"session":      true,
	"session_id":   true,
	"session_name": true,

	// HTTP
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"proxy-authorization": true,
	"x-api-key":           true,

	// Generic
	"secret":      true,
	"token":       true,
	"bot_token":   true,
	"api_key":     true,
	"credentials": true,
}

// sensitiveKeywords mask any key that contains them, e.g. "gateway_token".
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "hash", "phone", "credential",
}

// sensitivePatterns mask values regardless of their key.
var sensitivePatterns = []*regexp.Regexp{
	// Bot API tokens: "123456789:AA..."
	regexp.MustCompile(`^\d{6,12}:[A-Za-z0-9_-]{30,}$`),

	// Application API hash
	regexp.MustCompile(`^[a-f0-9]{32}$`),

	// International phone numbers
	regexp.MustCompile(`^\+\d{7,15}$`),

	// Bearer credentials
	regexp.MustCompile(`(?i)^bearer\s+.+`),

	// Exported string sessions are long base64url blobs.
	regexp.MustCompile(`^[A-Za-z0-9_=-]{200,}$`),
}

// MaskValue replaces sensitive values.
const MaskValue = "***REDACTED***"

// SecureHandler is an slog.Handler that masks sensitive attributes before
// delegating to the wrapped handler. Groups are walked recursively.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler falls back to slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(mask(a))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

// WithAttrs masks attrs and returns a handler carrying them.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = mask(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(masked)}
}

// WithGroup returns a handler that nests attributes under name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func mask(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, ga := range group {
			masked[i] = mask(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	}

	if IsSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}
	if a.Value.Kind() == slog.KindString && IsSensitiveValue(a.Value.String()) {
		return slog.String(a.Key, MaskValue)
	}
	return a
}

// IsSensitiveKey reports whether values logged under key must be masked.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if sensitiveKeys[k] {
		return true
	}
	for _, kw := range sensitiveKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether value looks like a credential.
func IsSensitiveValue(value string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// Options configures New.
type Options struct {
	// Verbose enables debug level. Otherwise Level is used.
	Verbose bool
	// JSON selects the JSON handler instead of text.
	JSON bool
	// Level is the minimum level when Verbose is false. Zero means Info.
	Level slog.Level
}

// New creates a masked logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	level := opts.Level
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	if opts.JSON {
		inner = slog.NewJSONHandler(w, handlerOpts)
	} else {
		inner = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(NewSecureHandler(inner))
}

// NewSecureLogger creates a masked text logger. Verbose selects debug
// level, otherwise warnings and errors only.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return New(w, Options{Verbose: verbose, Level: slog.LevelWarn})
}

// NewSecureJSONLogger is NewSecureLogger with JSON output.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return New(w, Options{Verbose: verbose, JSON: true, Level: slog.LevelWarn})
}
