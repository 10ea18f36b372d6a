package transport

import (
	"errors"
	"net"
	"testing"
	"time"
)

func TestNew_Direct(t *testing.T) {
	t.Parallel()

	tr, err := New(t.Context(), Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tr.Mode() != ModeDirect {
		t.Errorf("Mode() = %q, want direct", tr.Mode())
	}
	if tr.HTTPClient().Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", tr.HTTPClient().Timeout)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNew_SOCKS5(t *testing.T) {
	t.Parallel()

	t.Run("reachable proxy", func(t *testing.T) {
		t.Parallel()

		addr, _ := startFakeSOCKS5(t)
		tr, err := New(t.Context(), Options{ProxyAddress: addr})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if tr.Mode() != ModeSOCKS5 {
			t.Errorf("Mode() = %q, want socks5", tr.Mode())
		}
	})

	t.Run("unreachable proxy", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatal(err)
		}
		addr := ln.Addr().String()
		_ = ln.Close() //nolint:errcheck

		if _, err := New(t.Context(), Options{ProxyAddress: addr}); !errors.Is(err, ErrProxyCannotConnect) {
			t.Errorf("New() error = %v, want ErrProxyCannotConnect", err)
		}
	})

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()

		if _, err := New(t.Context(), Options{ProxyAddress: "nope"}); !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("New() error = %v, want ErrInvalidProxyAddress", err)
		}
	})
}

func TestEmbeddedTorBeforeStart(t *testing.T) {
	t.Parallel()

	e := NewEmbeddedTor(WithStartupTimeout(time.Minute))
	if e.startupTimeout != time.Minute {
		t.Errorf("startupTimeout = %v", e.startupTimeout)
	}
	if NewEmbeddedTor(WithStartupTimeout(0)).startupTimeout != DefaultTorStartupTimeout {
		t.Error("zero timeout should keep the default")
	}
	if e.IsRunning() || e.SocksAddr() != "" {
		t.Error("daemon should not be running before Start")
	}
	if err := e.Stop(); err != nil {
		t.Errorf("Stop() on stopped daemon = %v", err)
	}
	if _, err := e.Proxy(); !errors.Is(err, ErrTorNotRunning) {
		t.Errorf("Proxy() error = %v, want ErrTorNotRunning", err)
	}
}
