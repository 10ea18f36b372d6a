package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Mode names the way outgoing connections are made.
type Mode string

const (
	// ModeDirect connects without a proxy.
	ModeDirect Mode = "direct"
	// ModeSOCKS5 uses an external SOCKS5 proxy.
	ModeSOCKS5 Mode = "socks5"
	// ModeEmbeddedTor starts a private Tor daemon.
	ModeEmbeddedTor Mode = "tor"
)

// Options selects and tunes the transport.
type Options struct {
	// ProxyAddress enables ModeSOCKS5 when set.
	ProxyAddress string
	// EmbeddedTor enables ModeEmbeddedTor.
	EmbeddedTor bool
	// TorStartupTimeout bounds the Tor bootstrap.
	TorStartupTimeout time.Duration
	// Timeout is the overall HTTP client timeout. Zero means none; callers
	// normally bound each request with a context instead.
	Timeout time.Duration
	// Logger receives transport setup messages.
	Logger *slog.Logger
}

// Transport owns the HTTP client and any daemon started for it.
type Transport struct {
	mode   Mode
	client *http.Client
	tor    *EmbeddedTor
}

// New builds a Transport. For ModeSOCKS5 the proxy is probed first; for
// ModeEmbeddedTor the daemon is started and must be stopped with Close.
func New(ctx context.Context, opts Options) (*Transport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch {
	case opts.EmbeddedTor:
		tor := NewEmbeddedTor(WithStartupTimeout(opts.TorStartupTimeout))
		logger.Info("starting embedded Tor daemon, this may take a few minutes")
		if err := tor.Start(ctx); err != nil {
			return nil, err
		}
		p, err := tor.Proxy()
		if err != nil {
			_ = tor.Stop() //nolint:errcheck // setup failed
			return nil, err
		}
		logger.Info("embedded Tor daemon ready", "socks", p.Address())
		return &Transport{
			mode:   ModeEmbeddedTor,
			client: &http.Client{Transport: p.RoundTripper(), Timeout: opts.Timeout},
			tor:    tor,
		}, nil

	case opts.ProxyAddress != "":
		p, err := NewSOCKSProxy(opts.ProxyAddress)
		if err != nil {
			return nil, err
		}
		if status := p.CheckConnection(ctx); status != ProxyStatusOK {
			return nil, fmt.Errorf("proxy %s: %w", opts.ProxyAddress, status.Err())
		}
		logger.Debug("using SOCKS5 proxy", "proxy", opts.ProxyAddress)
		return &Transport{
			mode:   ModeSOCKS5,
			client: &http.Client{Transport: p.RoundTripper(), Timeout: opts.Timeout},
		}, nil

	default:
		return &Transport{
			mode:   ModeDirect,
			client: &http.Client{Timeout: opts.Timeout},
		}, nil
	}
}

// Mode returns the selected mode.
func (t *Transport) Mode() Mode {
	return t.mode
}

// HTTPClient returns the shared HTTP client.
func (t *Transport) HTTPClient() *http.Client {
	return t.client
}

// Close stops the embedded daemon, if any, and drops idle connections.
func (t *Transport) Close() error {
	t.client.CloseIdleConnections()
	if t.tor != nil {
		return t.tor.Stop()
	}
	return nil
}
