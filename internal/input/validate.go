package input

import (
	"log/slog"

	"github.com/nao1215/tgsimilar/internal/model"
)

// Rejection records an entry that did not pass validation.
type Rejection struct {
	// Entry is the raw entry as submitted.
	Entry string `json:"entry"`
	// Reason is the validation error message.
	Reason string `json:"reason"`
}

// Result is the output of Validate.
type Result struct {
	// Channels holds accepted identifiers in first-seen order.
	Channels []model.ChannelID `json:"channels"`
	// Rejected holds the dropped entries that failed validation.
	Rejected []Rejection `json:"rejected,omitempty"`
	// Duplicates counts entries dropped as case-insensitive duplicates.
	Duplicates int `json:"duplicates"`
}

// Dropped returns the number of invalid entries.
// Duplicates are not counted as dropped.
func (r Result) Dropped() int {
	return len(r.Rejected)
}

// Strings returns the accepted identifiers as plain strings.
func (r Result) Strings() []string {
	out := make([]string, len(r.Channels))
	for i, ch := range r.Channels {
		out[i] = ch.String()
	}
	return out
}

// WorkItems numbers the accepted identifiers for the orchestrator.
func (r Result) WorkItems() []model.WorkItem {
	return model.NewWorkItems(r.Channels)
}

// Validator normalizes and filters channel lists.
type Validator struct {
	logger *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger that receives dropped-entry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// NewValidator creates a Validator.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v
}

// Validate strips one leading marker from each entry, drops entries with
// whitespace or a length outside [3,32], and removes duplicates by
// case-folded identifier keeping the first occurrence.
// Blank entries are skipped silently. Validate never fails.
func (v *Validator) Validate(raw []string) Result {
	res := Result{Channels: make([]model.ChannelID, 0, len(raw))}
	seen := make(map[string]struct{}, len(raw))

	for _, entry := range raw {
		if isBlank(entry) {
			continue
		}
		id, err := model.NewChannelID(entry)
		if err != nil {
			v.logger.Warn("dropping invalid channel identifier",
				"entry", entry,
				"reason", err.Error(),
			)
			res.Rejected = append(res.Rejected, Rejection{Entry: entry, Reason: err.Error()})
			continue
		}
		key := id.Key()
		if _, dup := seen[key]; dup {
			v.logger.Debug("dropping duplicate channel identifier", "channel", id.String())
			res.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		res.Channels = append(res.Channels, id)
	}

	if n := res.Dropped(); n > 0 {
		v.logger.Warn("invalid channel identifiers dropped",
			"dropped", n,
			"accepted", len(res.Channels),
		)
	}
	return res
}

// Validate runs a default Validator over raw.
func Validate(raw []string) Result {
	return NewValidator().Validate(raw)
}
