package platform

import (
	"context"

	"github.com/nao1215/tgsimilar/internal/model"
)

// Client opens platform sessions.
type Client interface {
	// Connect establishes an authorized session.
	Connect(ctx context.Context) (Session, error)
}

// Session fetches similar channels over one authorized connection.
type Session interface {
	// FetchSimilar returns the channels the platform recommends for ch.
	// An empty slice is a valid answer. Errors are *FetchError values.
	FetchSimilar(ctx context.Context, ch model.ChannelID) ([]model.DiscoveredChannel, error)

	// Close releases the session. It must be called exactly once.
	Close() error
}

// ConcurrencyReporter is implemented by sessions that know whether they may
// serve several FetchSimilar calls at the same time.
type ConcurrencyReporter interface {
	ConcurrentSafe() bool
}

// IsConcurrentSafe reports whether s may be shared between workers.
// Sessions that do not implement ConcurrencyReporter are assumed unsafe.
func IsConcurrentSafe(s Session) bool {
	if r, ok := s.(ConcurrencyReporter); ok {
		return r.ConcurrentSafe()
	}
	return false
}

// Credentials identify the platform application and account.
type Credentials struct {
	APIID       int
	APIHash     string
	Phone       string
	SessionName string
}
