package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/nao1215/tgsimilar/internal/crawler"
	"github.com/nao1215/tgsimilar/internal/input"
	"github.com/nao1215/tgsimilar/internal/model"
	"github.com/nao1215/tgsimilar/internal/report"
)

var (
	// ErrConnectionFailure is returned with the run when no platform session
	// could be established. The run is still returned and stored.
	ErrConnectionFailure = errors.New("platform connection failed")

	// ErrNoChannels is returned when there is nothing valid to crawl.
	ErrNoChannels = errors.New("no channels to process")

	// ErrRunInProgress is returned when a crawl is started while another is running.
	ErrRunInProgress = errors.New("a crawl is already running")

	// ErrNoResults is returned by Export before the first stored run.
	ErrNoResults = errors.New("no results available")
)

// Store persists the channel list and the last result.
type Store interface {
	SaveChannelList(ctx context.Context, channels []model.ChannelID) error
	LoadChannelList(ctx context.Context) ([]model.ChannelID, error)
	SaveLastResult(ctx context.Context, run *model.CrawlRun) error
	LoadLastResult(ctx context.Context) (*model.CrawlRun, error)
}

// Runner executes a crawl. *crawler.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, items []model.WorkItem, policy crawler.Policy) *model.CrawlRun
}

// Outcome is the result of a crawl invocation.
type Outcome struct {
	// Run is the finished crawl. It is never nil when the crawl started.
	Run *model.CrawlRun

	// Validation is the validator output for the submitted list.
	Validation input.Result

	// PersistErr reports a storage failure. The run is valid regardless.
	PersistErr error
}

// Service runs crawls against a store.
type Service struct {
	store     Store
	runner    Runner
	policy    crawler.Policy
	validator *input.Validator
	logger    *slog.Logger
	running   atomic.Bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a Service.
func New(store Store, runner Runner, policy crawler.Policy, opts ...Option) *Service {
	s := &Service{store: store, runner: runner, policy: policy}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.validator = input.NewValidator(input.WithLogger(s.logger))
	return s
}

// SubmitChannels validates raw and stores the accepted identifiers as the
// current channel list.
func (s *Service) SubmitChannels(ctx context.Context, raw []string) (input.Result, error) {
	res := s.validator.Validate(raw)
	if err := s.store.SaveChannelList(ctx, res.Channels); err != nil {
		return res, fmt.Errorf("failed to store channel list: %w", err)
	}
	return res, nil
}

// Channels returns the stored channel list.
func (s *Service) Channels(ctx context.Context) ([]model.ChannelID, error) {
	channels, err := s.store.LoadChannelList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel list: %w", err)
	}
	return channels, nil
}

// SubmitAndRun validates raw, stores it as the channel list and crawls it.
// A storage failure of the list is reported in Outcome.PersistErr and does
// not stop the crawl. When the platform cannot be reached the returned
// error wraps ErrConnectionFailure and the outcome still carries the run.
func (s *Service) SubmitAndRun(ctx context.Context, raw []string) (*Outcome, error) {
	res := s.validator.Validate(raw)
	out := &Outcome{Validation: res}
	if len(res.Channels) == 0 {
		return out, ErrNoChannels
	}

	if err := s.store.SaveChannelList(ctx, res.Channels); err != nil {
		s.logger.Error("failed to store channel list", "error", err)
		out.PersistErr = fmt.Errorf("failed to store channel list: %w", err)
	}
	return s.execute(ctx, out, res.WorkItems(), res.Dropped())
}

// Run crawls the stored channel list.
func (s *Service) Run(ctx context.Context) (*Outcome, error) {
	channels, err := s.Channels(ctx)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Validation: input.Result{Channels: channels}}
	if len(channels) == 0 {
		return out, ErrNoChannels
	}
	return s.execute(ctx, out, model.NewWorkItems(channels), 0)
}

func (s *Service) execute(ctx context.Context, out *Outcome, items []model.WorkItem, dropped int) (*Outcome, error) {
	if !s.running.CompareAndSwap(false, true) {
		return out, ErrRunInProgress
	}
	defer s.running.Store(false)

	run := s.runner.Run(ctx, items, s.policy)
	run.Dropped = dropped
	out.Run = run

	// A cancelled run is still stored.
	if err := s.store.SaveLastResult(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Error("failed to store crawl result", "run_id", run.ID, "error", err)
		out.PersistErr = errors.Join(out.PersistErr, fmt.Errorf("failed to store crawl result: %w", err))
	}

	if run.Status == model.RunConnectionFailed {
		return out, fmt.Errorf("%w: %s", ErrConnectionFailure, run.Error)
	}
	return out, nil
}

// Running reports whether a crawl is in progress.
func (s *Service) Running() bool {
	return s.running.Load()
}

// LastResult returns the stored last run, or nil if there is none.
func (s *Service) LastResult(ctx context.Context) (*model.CrawlRun, error) {
	run, err := s.store.LoadLastResult(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load last result: %w", err)
	}
	return run, nil
}

// Export returns the export table of the last stored run.
func (s *Service) Export(ctx context.Context) (report.ExportTable, *model.CrawlRun, error) {
	run, err := s.LastResult(ctx)
	if err != nil {
		return report.ExportTable{}, nil, err
	}
	if run == nil {
		return report.ExportTable{}, nil, ErrNoResults
	}
	return report.Aggregate(run), run, nil
}
