package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// Config.ValidateCredentials.
var (
	// ErrMissingCredentials is returned when the platform API id or hash is unset.
	ErrMissingCredentials = errors.New("missing platform credentials: set TELEGRAM_API_ID and TELEGRAM_API_HASH")

	// ErrInvalidGatewayURL is returned when the gateway URL is not an absolute http(s) URL.
	ErrInvalidGatewayURL = errors.New("invalid gateway URL: must be an absolute http or https URL")

	// ErrInvalidConcurrency is returned when fewer than one worker is configured.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be at least 1")

	// ErrInvalidDelay is returned when the delay between channels is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidMaxRetries is returned when the retry budget is negative.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidBackoff is returned when the backoff base is not positive
	// or the backoff cap is negative.
	ErrInvalidBackoff = errors.New("invalid backoff: base must be positive and cap non-negative")

	// ErrInvalidAttemptCeiling is returned when the attempt ceiling is lower
	// than max retries plus one.
	ErrInvalidAttemptCeiling = errors.New("invalid attempt ceiling: must be greater than max retries")

	// ErrInvalidRequestTimeout is returned when the per-call timeout is not positive.
	ErrInvalidRequestTimeout = errors.New("invalid request timeout: must be positive")

	// ErrInvalidReportFormat is returned for an unknown export format.
	ErrInvalidReportFormat = errors.New("invalid report format: use csv, markdown, json or text")

	// ErrConflictingTransport is returned when both an external proxy and the
	// embedded Tor daemon are requested.
	ErrConflictingTransport = errors.New("conflicting transport: --proxy and --tor cannot be used together")

	// ErrInvalidEnvValue is returned when an environment variable cannot be parsed.
	ErrInvalidEnvValue = errors.New("invalid environment variable value")
)
