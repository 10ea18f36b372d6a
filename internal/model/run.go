package model

import (
	"time"
)

// ItemStatus is the resolution state of a single work item.
type ItemStatus string

const (
	// ItemPending means the item has not been resolved yet.
	ItemPending ItemStatus = "pending"
	// ItemSucceeded means the platform answered, possibly with zero channels.
	ItemSucceeded ItemStatus = "succeeded"
	// ItemFailed means the item exhausted its retries or hit a permanent error.
	ItemFailed ItemStatus = "failed"
	// ItemCancelled means the run was cancelled before the item resolved.
	ItemCancelled ItemStatus = "cancelled"
)

// RunStatus is the overall outcome of a crawl run.
type RunStatus string

const (
	// RunCompleted means every item was attempted.
	RunCompleted RunStatus = "completed"
	// RunCancelled means the run context was cancelled.
	RunCancelled RunStatus = "cancelled"
	// RunConnectionFailed means no platform session could be established.
	RunConnectionFailed RunStatus = "connection_failed"
)

// ErrorClass classifies why an item did not succeed.
type ErrorClass string

const (
	// ErrorClassNone is used for succeeded and pending items.
	ErrorClassNone ErrorClass = ""
	// ErrorClassRateLimited is a platform throttling signal carrying a wait duration.
	ErrorClassRateLimited ErrorClass = "rate_limited"
	// ErrorClassTransient is a network error or per-call timeout.
	ErrorClassTransient ErrorClass = "transient"
	// ErrorClassNotAChannel means the identifier does not resolve to a channel.
	ErrorClassNotAChannel ErrorClass = "not_a_channel"
	// ErrorClassFatal is any other non-retryable platform error.
	ErrorClassFatal ErrorClass = "fatal"
	// ErrorClassConnectionFailure means the session could not be opened.
	ErrorClassConnectionFailure ErrorClass = "connection_failure"
	// ErrorClassCancelled means the run was cancelled.
	ErrorClassCancelled ErrorClass = "cancelled"
)

// Retryable reports whether an error of this class may succeed on a later attempt.
func (c ErrorClass) Retryable() bool {
	return c == ErrorClassRateLimited || c == ErrorClassTransient
}

// ItemResult is the outcome of one work item.
type ItemResult struct {
	// Source is the channel that was queried.
	Source ChannelID `json:"source"`

	// Position is the index of the item in the input batch.
	Position int `json:"position"`

	// Status is the resolution state.
	Status ItemStatus `json:"status"`

	// Attempts counts adapter calls made for this item.
	Attempts int `json:"attempts"`

	// ErrorClass is set when Status is failed or cancelled.
	ErrorClass ErrorClass `json:"error_class,omitempty"`

	// Error is the last error message, if any.
	Error string `json:"error,omitempty"`

	// Channels holds discovered channels in discovery order.
	Channels []DiscoveredChannel `json:"channels"`
}

// CrawlRun is the aggregate result of one orchestration run.
// Items are stored in input order.
type CrawlRun struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     RunStatus `json:"status"`

	// Error describes a run-level failure such as a connection error.
	Error string `json:"error,omitempty"`

	Total     int `json:"total_channels"`
	Succeeded int `json:"successful_channels"`
	Failed    int `json:"failed_channels"`
	Cancelled int `json:"cancelled_channels"`

	// Dropped counts entries the validator rejected before the run.
	Dropped int `json:"dropped_channels"`

	Items []ItemResult `json:"items"`
}

// NewCrawlRun creates a run with one pending ItemResult per work item.
func NewCrawlRun(id string, items []WorkItem, startedAt time.Time) *CrawlRun {
	results := make([]ItemResult, len(items))
	for i, item := range items {
		results[i] = ItemResult{
			Source:   item.ID,
			Position: item.Position,
			Status:   ItemPending,
			Channels: []DiscoveredChannel{},
		}
	}
	return &CrawlRun{
		ID:        id,
		StartedAt: startedAt,
		Total:     len(items),
		Items:     results,
	}
}

// Recount recomputes Succeeded, Failed and Cancelled from item statuses.
// Pending items are not counted.
func (r *CrawlRun) Recount() {
	r.Succeeded, r.Failed, r.Cancelled = 0, 0, 0
	for _, item := range r.Items {
		switch item.Status {
		case ItemSucceeded:
			r.Succeeded++
		case ItemFailed:
			r.Failed++
		case ItemCancelled:
			r.Cancelled++
		case ItemPending:
		}
	}
}

// Duration returns the elapsed time of the run.
func (r *CrawlRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SimilarChannels maps every succeeded source to its discovered channels.
// Sources that succeeded with no results map to an empty slice.
func (r *CrawlRun) SimilarChannels() map[ChannelID][]DiscoveredChannel {
	out := make(map[ChannelID][]DiscoveredChannel, r.Succeeded)
	for _, item := range r.Items {
		if item.Status != ItemSucceeded {
			continue
		}
		channels := item.Channels
		if channels == nil {
			channels = []DiscoveredChannel{}
		}
		out[item.Source] = channels
	}
	return out
}

// Flatten returns all discovered records in input order, then discovery order.
func (r *CrawlRun) Flatten() []DiscoveredChannel {
	var out []DiscoveredChannel
	for _, item := range r.Items {
		out = append(out, item.Channels...)
	}
	return out
}

// UniqueUsernames returns usernames found across all sources, case-insensitively
// deduplicated and in first-seen order.
func (r *CrawlRun) UniqueUsernames() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ch := range r.Flatten() {
		key := ch.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ch.Username)
	}
	return out
}

// Sources returns the queried channels in input order.
func (r *CrawlRun) Sources() []ChannelID {
	out := make([]ChannelID, len(r.Items))
	for i, item := range r.Items {
		out[i] = item.Source
	}
	return out
}

// FailedItems returns items that did not succeed, in input order.
func (r *CrawlRun) FailedItems() []ItemResult {
	var out []ItemResult
	for _, item := range r.Items {
		if item.Status == ItemFailed || item.Status == ItemCancelled {
			out = append(out, item)
		}
	}
	return out
}
