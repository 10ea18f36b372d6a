package model

import (
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// ChannelID errors.
var (
	// ErrEmptyChannelID is returned when the identifier is empty after normalization.
	ErrEmptyChannelID = errors.New("channel identifier cannot be empty")
	// ErrChannelIDLength is returned when the identifier is shorter than
	// MinChannelIDLength or longer than MaxChannelIDLength.
	ErrChannelIDLength = errors.New("channel identifier length must be between 3 and 32")
	// ErrChannelIDWhitespace is returned when the identifier contains whitespace.
	ErrChannelIDWhitespace = errors.New("channel identifier must not contain whitespace")
	// ErrChannelIDMarker is returned when the identifier still starts with the
	// marker character after the single leading marker was stripped.
	ErrChannelIDMarker = errors.New("channel identifier must not start with more than one marker")
)

const (
	// ChannelMarker is the optional leading character of a channel handle ("@durov").
	ChannelMarker = "@"
	// MinChannelIDLength is the shortest accepted identifier.
	MinChannelIDLength = 3
	// MaxChannelIDLength is the longest accepted identifier.
	MaxChannelIDLength = 32
	// ChannelURLPrefix is the public link prefix for a channel username.
	ChannelURLPrefix = "https://t.me/"
)

// ChannelID is a normalized channel identifier: no leading marker,
// 3 to 32 characters, no whitespace.
type ChannelID string

// NewChannelID normalizes raw and validates it.
// Surrounding whitespace and one leading marker are removed.
func NewChannelID(raw string) (ChannelID, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, ChannelMarker)

	if s == "" {
		return "", ErrEmptyChannelID
	}
	if strings.HasPrefix(s, ChannelMarker) {
		return "", ErrChannelIDMarker
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return "", ErrChannelIDWhitespace
	}
	if n := utf8.RuneCountInString(s); n < MinChannelIDLength || n > MaxChannelIDLength {
		return "", ErrChannelIDLength
	}
	return ChannelID(s), nil
}

// MustNewChannelID creates a ChannelID or panics if raw is invalid.
// Use only for known-valid identifiers in tests or initialization.
func MustNewChannelID(raw string) ChannelID {
	id, err := NewChannelID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the identifier without marker.
func (c ChannelID) String() string {
	return string(c)
}

// Key returns the case-folded identifier used for case-insensitive comparison.
func (c ChannelID) Key() string {
	return UsernameKey(string(c))
}

// URL returns the public link of the channel.
func (c ChannelID) URL() string {
	return ChannelURL(string(c))
}

// UsernameKey case-folds a username.
// A new Caser is created per call because Casers are not goroutine safe.
func UsernameKey(username string) string {
	return cases.Fold().String(username)
}

// ChannelURL returns the canonical public URL for username.
func ChannelURL(username string) string {
	return ChannelURLPrefix + username
}

// WorkItem is a validated channel paired with its position in the input batch.
type WorkItem struct {
	ID       ChannelID `json:"id"`
	Position int       `json:"position"`
}

// NewWorkItems numbers ids in order.
func NewWorkItems(ids []ChannelID) []WorkItem {
	items := make([]WorkItem, len(ids))
	for i, id := range ids {
		items[i] = WorkItem{ID: id, Position: i}
	}
	return items
}

// DiscoveredChannel is a channel the platform recommended for a source channel.
type DiscoveredChannel struct {
	// Title is the display name of the channel.
	Title string `json:"title"`

	// Username is the public handle without marker.
	Username string `json:"username"`

	// URL is the public link; see ChannelURL.
	URL string `json:"url"`

	// MemberCount is nil when the platform did not report it.
	MemberCount *int64 `json:"members,omitempty"`

	// Category is the platform category if known.
	Category string `json:"category,omitempty"`

	// DiscoveredAt is when the record was returned by the platform.
	DiscoveredAt time.Time `json:"timestamp"`

	// Source is the channel this record was discovered for.
	Source ChannelID `json:"source"`
}

// Key returns the uniqueness key of the record (case-folded username).
func (d DiscoveredChannel) Key() string {
	return UsernameKey(d.Username)
}

// CanonicalURL returns URL if set, otherwise the link built from Username.
func (d DiscoveredChannel) CanonicalURL() string {
	if d.URL != "" {
		return d.URL
	}
	return ChannelURL(d.Username)
}
