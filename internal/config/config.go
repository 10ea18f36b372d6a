package config

import (
	"net/url"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is used for XDG directory paths.
	AppName = "tgsimilar"

	// DefaultGatewayURL is where the account gateway listens by default.
	DefaultGatewayURL = "http://127.0.0.1:8081"

	// DefaultSessionName names the gateway session that stores the login.
	DefaultSessionName = "crawler"

	// DefaultConcurrency is sequential crawling. Platform flood limits are
	// per account, so more workers mostly trade throughput for rate-limit waits.
	DefaultConcurrency = 1

	// DefaultDelay is the pause between two channels handled by one worker.
	DefaultDelay = 3 * time.Second

	// DefaultMaxRetries is the transient retry budget per channel.
	DefaultMaxRetries = 3

	// DefaultBackoffBase is the first transient backoff; it doubles per retry.
	DefaultBackoffBase = 2 * time.Second

	// DefaultMaxBackoff caps a single transient backoff.
	DefaultMaxBackoff = time.Minute

	// DefaultAttemptCeiling bounds the total calls per channel, rate-limit
	// retries included.
	DefaultAttemptCeiling = 10

	// DefaultRequestTimeout bounds a single platform call.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultListenAddr is the HTTP API address used by "serve".
	DefaultListenAddr = "127.0.0.1:8080"

	// DefaultTorStartupTimeout bounds the embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultReportFormat is the export format of "crawl" and "export".
	DefaultReportFormat = "text"

	// DefaultUserAgent is sent to the gateway and to public channel pages.
	DefaultUserAgent = "tgsimilar/1.0 (+https://github.com/nao1215/tgsimilar)"
)

// ReportFormats lists the accepted values of Config.ReportFormat.
var ReportFormats = []string{"csv", "markdown", "json", "text"}

// Config holds all runtime options. It is created by NewConfig and passed
// down explicitly; there is no global configuration.
type Config struct {
	// APIID and APIHash identify the platform application.
	APIID   int
	APIHash string

	// Phone is the account phone number used for the first login.
	Phone string

	// LoginCode and LoginPassword answer login prompts without a terminal.
	// They are never read from the config file, only from the environment
	// or flags, and are useless once the session is authorized.
	LoginCode     string
	LoginPassword string

	// SessionName names the persisted login on the gateway.
	SessionName string

	// GatewayURL is the base URL of the account gateway.
	GatewayURL string

	// Concurrency is the number of crawl workers.
	Concurrency int

	// Delay is the pause between two channels handled by the same worker.
	Delay time.Duration

	// MaxRetries is the transient retry budget per channel.
	MaxRetries int

	// BackoffBase is the first transient backoff.
	BackoffBase time.Duration

	// MaxBackoff caps a single backoff. Zero disables the cap.
	MaxBackoff time.Duration

	// AttemptCeiling bounds the total platform calls per channel.
	AttemptCeiling int

	// RequestTimeout bounds a single platform call.
	RequestTimeout time.Duration

	// ProxyAddress routes gateway traffic through a SOCKS5 proxy when set.
	ProxyAddress string

	// EmbeddedTor starts a private Tor daemon and routes traffic through it.
	EmbeddedTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// EnrichMembers reads public channel pages for missing member counts.
	EnrichMembers bool

	// UserAgent is sent with outgoing HTTP requests.
	UserAgent string

	// DBDir is the directory of the SQLite database.
	DBDir string

	// ListenAddr is the HTTP API address.
	ListenAddr string

	// ReportFormat is one of ReportFormats.
	ReportFormat string

	// ReportFile receives the export instead of stdout when set.
	ReportFile string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// ConfigFilePath overrides the config file search.
	ConfigFilePath string
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		SessionName:       DefaultSessionName,
		GatewayURL:        DefaultGatewayURL,
		Concurrency:       DefaultConcurrency,
		Delay:             DefaultDelay,
		MaxRetries:        DefaultMaxRetries,
		BackoffBase:       DefaultBackoffBase,
		MaxBackoff:        DefaultMaxBackoff,
		AttemptCeiling:    DefaultAttemptCeiling,
		RequestTimeout:    DefaultRequestTimeout,
		TorStartupTimeout: DefaultTorStartupTimeout,
		UserAgent:         DefaultUserAgent,
		DBDir:             XDGDataDir(),
		ListenAddr:        DefaultListenAddr,
		ReportFormat:      DefaultReportFormat,
	}
}

// XDGDataDir returns the data directory (~/.local/share/tgsimilar on Linux).
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory (~/.config/tgsimilar on Linux).
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the crawl and output settings and returns the first problem found.
// Credentials are checked separately by ValidateCredentials because
// commands such as "export" never talk to the platform.
func (c *Config) Validate() error {
	if u, err := url.Parse(c.GatewayURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidGatewayURL
	}
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.BackoffBase <= 0 || c.MaxBackoff < 0 {
		return ErrInvalidBackoff
	}
	if c.AttemptCeiling < c.MaxRetries+1 {
		return ErrInvalidAttemptCeiling
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}
	if !slices.Contains(ReportFormats, c.ReportFormat) {
		return ErrInvalidReportFormat
	}
	if c.ProxyAddress != "" && c.EmbeddedTor {
		return ErrConflictingTransport
	}
	return nil
}

// ValidateCredentials checks that platform credentials are present.
func (c *Config) ValidateCredentials() error {
	if c.APIID <= 0 || c.APIHash == "" {
		return ErrMissingCredentials
	}
	return nil
}
