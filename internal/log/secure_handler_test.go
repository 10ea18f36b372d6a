package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSecureHandler_MasksSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{name: "api hash", key: "api_hash", value: "deadbeef", wantMask: true},
		{name: "phone", key: "phone", value: "5551234", wantMask: true},
		{name: "uppercase key", key: "Phone", value: "5551234", wantMask: true},
		{name: "login code", key: "code", value: "12345", wantMask: true},
		{name: "two-factor password", key: "password", value: "hunter2", wantMask: true},
		{name: "gateway session", key: "session_id", value: "s-42", wantMask: true},
		{name: "keyword inside key", key: "gateway_token", value: "abc", wantMask: true},
		{name: "channel is visible", key: "channel", value: "durov", wantMask: false},
		{name: "error class is visible", key: "error_class", value: "transient", wantMask: false},
		{name: "status code is visible", key: "status_code", value: "429", wantMask: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			New(&buf, Options{Verbose: true}).Info("test message", tt.key, tt.value)
			output := buf.String()

			if tt.wantMask {
				if strings.Contains(output, tt.key+"="+tt.value) {
					t.Errorf("expected %s to be masked: %s", tt.key, output)
				}
				if !strings.Contains(output, MaskValue) {
					t.Errorf("expected mask value in output: %s", output)
				}
				return
			}
			if !strings.Contains(output, tt.value) {
				t.Errorf("expected %q in output: %s", tt.value, output)
			}
		})
	}
}

func TestSecureHandler_MasksSensitiveValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		wantMask bool
	}{
		{name: "bot token", value: "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw", wantMask: true},
		{name: "api hash", value: "0123456789abcdef0123456789abcdef", wantMask: true},
		{name: "phone number", value: "+15551234567", wantMask: true},
		{name: "bearer", value: "Bearer abc.def", wantMask: true},
		{name: "string session", value: strings.Repeat("AbC1_-", 40), wantMask: true},
		{name: "channel url", value: "https://t.me/durov", wantMask: false},
		{name: "long username", value: "abcdefghijklmnopqrstuvwxyz012345", wantMask: false},
		{name: "short word", value: "ok", wantMask: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			New(&buf, Options{Verbose: true}).Info("test message", "data", tt.value)
			output := buf.String()

			if got := strings.Contains(output, tt.value); got == tt.wantMask {
				t.Errorf("value present = %v, wantMask = %v: %s", got, tt.wantMask, output)
			}
		})
	}
}

func TestNew_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		opts      Options
		level     slog.Level
		wantShown bool
	}{
		{name: "verbose shows debug", opts: Options{Verbose: true}, level: slog.LevelDebug, wantShown: true},
		{name: "default hides debug", opts: Options{}, level: slog.LevelDebug, wantShown: false},
		{name: "default shows info", opts: Options{}, level: slog.LevelInfo, wantShown: true},
		{name: "warn level hides info", opts: Options{Level: slog.LevelWarn}, level: slog.LevelInfo, wantShown: false},
		{name: "warn level shows error", opts: Options{Level: slog.LevelWarn}, level: slog.LevelError, wantShown: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := New(&buf, tt.opts)
			logger.Log(t.Context(), tt.level, "level probe")

			if got := strings.Contains(buf.String(), "level probe"); got != tt.wantShown {
				t.Errorf("shown = %v, want %v", got, tt.wantShown)
			}
		})
	}
}

func TestSecureHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true).
		With("api_hash", "0123456789abcdef0123456789abcdef").
		WithGroup("auth")
	logger.Info("login", "channel", "durov", slog.Group("creds", slog.String("password", "hunter2")))

	output := buf.String()
	for _, secret := range []string{"0123456789abcdef0123456789abcdef", "hunter2"} {
		if strings.Contains(output, secret) {
			t.Errorf("expected %q to be masked: %s", secret, output)
		}
	}
	if !strings.Contains(output, "durov") {
		t.Errorf("expected channel to be visible: %s", output)
	}
}

func TestNewSecureJSONLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewSecureJSONLogger(&buf, true).Info("connect", "phone", "+15551234567")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON output: %v (%s)", err, buf.String())
	}
	if record["phone"] != MaskValue {
		t.Errorf("phone = %v, want %s", record["phone"], MaskValue)
	}
}

func TestNewSecureHandler_NilHandler(t *testing.T) {
	t.Parallel()

	if h := NewSecureHandler(nil); h.handler == nil {
		t.Error("expected fallback handler")
	}
}

func TestIsSensitiveKey(t *testing.T) {
	t.Parallel()

	for key, want := range map[string]bool{
		"API_HASH":     true,
		"new_password": true,
		"phone_number": true,
		"username":     false,
		"members":      false,
	} {
		if got := IsSensitiveKey(key); got != want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", key, got, want)
		}
	}
}
