package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/tgsimilar/internal/model"
)

// Adapter errors.
var (
	// ErrAuthRequired is returned by Connect when the gateway needs a login
	// code or password and no Authenticator is configured.
	ErrAuthRequired = errors.New("interactive authentication required")

	// ErrAuthFailed is returned when the gateway rejects the supplied login code or password.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrSessionClosed is returned when a closed Session is used.
	ErrSessionClosed = errors.New("session already closed")

	// ErrUnexpectedResponse is returned when the gateway answers with a
	// payload that cannot be decoded.
	ErrUnexpectedResponse = errors.New("unexpected gateway response")

	// ErrCountNotFound is returned when a channel page carries no member count.
	ErrCountNotFound = errors.New("member count not found on channel page")
)

// FetchError is a classified adapter failure.
type FetchError struct {
	// Class drives the retry decision.
	Class model.ErrorClass
	// Wait is the platform-requested pause for ErrorClassRateLimited.
	Wait time.Duration
	// Channel is the channel being fetched, if any.
	Channel model.ChannelID
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *FetchError) Error() string {
	msg := string(e.Class)
	if e.Channel != "" {
		msg = fmt.Sprintf("%s: %s", e.Channel, msg)
	}
	if e.Class == model.ErrorClassRateLimited {
		msg = fmt.Sprintf("%s (wait %s)", msg, e.Wait)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// RateLimited builds a rate-limit error asking the caller to wait at least wait.
func RateLimited(ch model.ChannelID, wait time.Duration, err error) *FetchError {
	return &FetchError{Class: model.ErrorClassRateLimited, Wait: wait, Channel: ch, Err: err}
}

// Transient builds a retryable error.
func Transient(ch model.ChannelID, err error) *FetchError {
	return &FetchError{Class: model.ErrorClassTransient, Channel: ch, Err: err}
}

// NotAChannel builds an error for identifiers that do not resolve to a channel.
func NotAChannel(ch model.ChannelID, err error) *FetchError {
	return &FetchError{Class: model.ErrorClassNotAChannel, Channel: ch, Err: err}
}

// Fatal builds a non-retryable error.
func Fatal(ch model.ChannelID, err error) *FetchError {
	return &FetchError{Class: model.ErrorClassFatal, Channel: ch, Err: err}
}

// Classify returns the class and requested wait of err.
// Context cancellation maps to ErrorClassCancelled. Deadline errors, network
// errors and anything else unclassified are transient.
func Classify(err error) (model.ErrorClass, time.Duration) {
	if err == nil {
		return model.ErrorClassNone, 0
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class, fe.Wait
	}
	if errors.Is(err, context.Canceled) {
		return model.ErrorClassCancelled, 0
	}
	return model.ErrorClassTransient, 0
}
