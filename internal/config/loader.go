package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file name searched in cwd and home.
const DefaultConfigFile = ".tgsimilar"

// DefaultEnvFile is the dotenv file loaded from the current directory.
const DefaultEnvFile = ".env"

// Environment variable names.
const (
	EnvAPIID      = "TELEGRAM_API_ID"
	EnvAPIHash    = "TELEGRAM_API_HASH"
	EnvPhone      = "TELEGRAM_PHONE"
	EnvSession    = "TELEGRAM_SESSION"
	EnvLoginCode  = "TELEGRAM_LOGIN_CODE"
	EnvPassword   = "TELEGRAM_PASSWORD"
	EnvDelay      = "DELAY_BETWEEN_CHANNELS"
	EnvGatewayURL = "TGSIMILAR_GATEWAY_URL"
	EnvDBDir      = "TGSIMILAR_DB_DIR"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the layout of the YAML configuration file.
// Zero values leave the corresponding Config field untouched.
type File struct {
	Telegram TelegramSection `yaml:"telegram,omitempty"`
	Gateway  GatewaySection  `yaml:"gateway,omitempty"`
	Crawl    CrawlSection    `yaml:"crawl,omitempty"`
	Proxy    ProxySection    `yaml:"proxy,omitempty"`
	Database DatabaseSection `yaml:"database,omitempty"`
	Server   ServerSection   `yaml:"server,omitempty"`
}

// TelegramSection holds platform credentials.
type TelegramSection struct {
	APIID   int    `yaml:"api_id,omitempty"`
	APIHash string `yaml:"api_hash,omitempty"`
	Phone   string `yaml:"phone,omitempty"`
	Session string `yaml:"session,omitempty"`
}

// GatewaySection configures the account gateway client.
type GatewaySection struct {
	URL           string `yaml:"url,omitempty"`
	UserAgent     string `yaml:"user_agent,omitempty"`
	EnrichMembers bool   `yaml:"enrich_members,omitempty"`
}

// CrawlSection holds the crawl policy. Durations use Go syntax ("3s", "1m").
type CrawlSection struct {
	Concurrency    int           `yaml:"concurrency,omitempty"`
	Delay          time.Duration `yaml:"delay,omitempty"`
	MaxRetries     *int          `yaml:"max_retries,omitempty"`
	BackoffBase    time.Duration `yaml:"backoff_base,omitempty"`
	MaxBackoff     time.Duration `yaml:"max_backoff,omitempty"`
	AttemptCeiling int           `yaml:"attempt_ceiling,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
}

// ProxySection selects the transport.
type ProxySection struct {
	Address           string        `yaml:"address,omitempty"`
	EmbeddedTor       bool          `yaml:"embedded_tor,omitempty"`
	TorStartupTimeout time.Duration `yaml:"tor_startup_timeout,omitempty"`
}

// DatabaseSection configures persistence.
type DatabaseSection struct {
	Dir string `yaml:"dir,omitempty"`
}

// ServerSection configures the HTTP API.
type ServerSection struct {
	Listen string `yaml:"listen,omitempty"`
}

// LoadConfigFile parses the YAML file at path.
// A missing file yields ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &f, nil
}

// FindConfigFile returns configPath if it exists, otherwise the first
// .tgsimilar found in the current directory then the home directory.
// It returns "" when nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	for _, dir := range dirs {
		p := filepath.Join(dir, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// ApplyFile copies the non-zero values of f into c.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	setInt(&c.APIID, f.Telegram.APIID)
	setString(&c.APIHash, f.Telegram.APIHash)
	setString(&c.Phone, f.Telegram.Phone)
	setString(&c.SessionName, f.Telegram.Session)

	setString(&c.GatewayURL, f.Gateway.URL)
	setString(&c.UserAgent, f.Gateway.UserAgent)
	c.EnrichMembers = c.EnrichMembers || f.Gateway.EnrichMembers

	setInt(&c.Concurrency, f.Crawl.Concurrency)
	setDuration(&c.Delay, f.Crawl.Delay)
	if f.Crawl.MaxRetries != nil {
		c.MaxRetries = *f.Crawl.MaxRetries
	}
	setDuration(&c.BackoffBase, f.Crawl.BackoffBase)
	setDuration(&c.MaxBackoff, f.Crawl.MaxBackoff)
	setInt(&c.AttemptCeiling, f.Crawl.AttemptCeiling)
	setDuration(&c.RequestTimeout, f.Crawl.RequestTimeout)

	setString(&c.ProxyAddress, f.Proxy.Address)
	c.EmbeddedTor = c.EmbeddedTor || f.Proxy.EmbeddedTor
	setDuration(&c.TorStartupTimeout, f.Proxy.TorStartupTimeout)

	setString(&c.DBDir, f.Database.Dir)
	setString(&c.ListenAddr, f.Server.Listen)
}

// LoadDotEnv loads variables from the given dotenv files into the process
// environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{DefaultEnvFile}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv copies the recognized environment variables into c.
// lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := nonEmpty(lookup, EnvAPIID); ok {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidEnvValue, EnvAPIID, v)
		}
		c.APIID = id
	}
	if v, ok := nonEmpty(lookup, EnvAPIHash); ok {
		c.APIHash = v
	}
	if v, ok := nonEmpty(lookup, EnvPhone); ok {
		c.Phone = v
	}
	if v, ok := nonEmpty(lookup, EnvSession); ok {
		c.SessionName = v
	}
	if v, ok := nonEmpty(lookup, EnvLoginCode); ok {
		c.LoginCode = v
	}
	if v, ok := nonEmpty(lookup, EnvPassword); ok {
		c.LoginPassword = v
	}
	if v, ok := nonEmpty(lookup, EnvDelay); ok {
		d, err := ParseDelay(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidEnvValue, EnvDelay, v)
		}
		c.Delay = d
	}
	if v, ok := nonEmpty(lookup, EnvGatewayURL); ok {
		c.GatewayURL = v
	}
	if v, ok := nonEmpty(lookup, EnvDBDir); ok {
		c.DBDir = v
	}
	return nil
}

// ParseDelay accepts a number of seconds ("3", "1.5") or a Go duration ("750ms").
func ParseDelay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, ErrInvalidDelay
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, ErrInvalidDelay
	}
	return d, nil
}

func nonEmpty(lookup func(string) (string, bool), key string) (string, bool) {
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
