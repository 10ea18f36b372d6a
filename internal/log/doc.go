// Package log builds slog loggers that mask credentials before they reach
// the output.
//
// A crawl needs the platform API hash, the account phone number, login
// codes and two-factor passwords. None of them may appear in logs, even in
// verbose mode. SecureHandler wraps any slog.Handler and replaces such
// values with MaskValue, matching both attribute keys and value shapes.
//
// # Usage
//
//	logger := log.New(os.Stderr, log.Options{Verbose: true})
//	logger.Info("connecting", "phone", "+15551234567") // phone=***REDACTED***
//	slog.SetDefault(logger)
package log
