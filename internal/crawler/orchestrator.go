package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/tgsimilar/internal/model"
	"github.com/nao1215/tgsimilar/internal/platform"
)

// Orchestrator runs crawls against a platform client.
//
// A run opens a platform session, hands the work items to a fixed pool of
// workers and collects one ItemResult per item. Workers share the session
// when it allows concurrent calls and get one session each otherwise. Each item is fetched by
// exactly one worker; rate-limit waits and transient backoff happen inside
// that worker, so a slow channel never blocks the others. Results are
// written back in input order whatever order the workers finish in.
//
// An Orchestrator holds no per-run state and may run several crawls at
// once, each with its own session.
type Orchestrator struct {
	client platform.Client
	logger *slog.Logger
	// sleep pauses workers and must return early on cancellation.
	sleep Sleeper
	// progress is called once per finished item, from worker goroutines.
	progress func(model.ItemResult)
	newID    func() string
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithSleeper replaces the timer used for pacing and backoff.
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) {
		o.sleep = s
	}
}

// WithProgress registers a callback invoked after each item resolves.
// Calls may come from several goroutines but never concurrently.
func WithProgress(fn func(model.ItemResult)) Option {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

// WithRunID overrides the run identifier generator.
func WithRunID(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newID = fn
	}
}

// WithClock overrides the time source for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator for client.
func New(client platform.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{client: client}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.sleep == nil {
		o.sleep = Sleep
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.New().String() }
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Run crawls items and returns the completed run. It never returns nil.
// A session that cannot be opened yields a run with status
// connection_failed and every item failed; no fetch is attempted.
// Cancelling ctx, even while the session is still being opened, yields
// status cancelled with unfinished items marked cancelled.
func (o *Orchestrator) Run(ctx context.Context, items []model.WorkItem, policy Policy) *model.CrawlRun {
	if err := policy.Validate(); err != nil {
		o.logger.Warn("invalid crawl policy, using nearest valid values", "error", err)
		policy = policy.normalized()
	}

	run := model.NewCrawlRun(o.newID(), items, o.now())
	logger := o.logger.With("run_id", run.ID)
	logger.Info("starting crawl",
		"channels", len(items),
		"concurrency", policy.Concurrency,
		"delay", policy.Delay,
	)

	primary, err := o.client.Connect(ctx)
	if err != nil && ctx.Err() != nil {
		// Interrupted login, not a connection failure.
		logger.Warn("crawl cancelled before the platform session was ready", "error", err)
		o.finish(ctx, run)
		return run
	}
	if err != nil {
		logger.Error("failed to connect to platform", "error", err)
		o.failAll(run, err)
		return run
	}

	sessions, extras := o.openWorkerSessions(ctx, logger, primary, min(policy.Concurrency, len(items)))

	c := newCollector(run, o.progress)
	queue := make(chan model.WorkItem, len(items))
	for _, item := range items {
		queue <- item
	}
	close(queue)

	var g errgroup.Group
	for i, sess := range sessions {
		w := &worker{
			orch:   o,
			sess:   sess,
			policy: policy,
			logger: logger.With("worker", i),
			out:    c,
		}
		g.Go(func() error {
			w.loop(ctx, queue)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers record failures per item

	o.closeSessions(logger, append([]platform.Session{primary}, extras...))
	o.finish(ctx, run)

	logger.Info("crawl finished",
		"status", run.Status,
		"succeeded", run.Succeeded,
		"failed", run.Failed,
		"cancelled", run.Cancelled,
		"duration", run.Duration(),
	)
	return run
}

// openWorkerSessions returns one session per worker plus the sessions it
// opened in addition to primary. A concurrency-safe primary is shared;
// otherwise extra sessions are opened and a worker whose session cannot be
// opened is not started.
func (o *Orchestrator) openWorkerSessions(ctx context.Context, logger *slog.Logger, primary platform.Session, workers int) (perWorker, extras []platform.Session) {
	if workers <= 0 {
		return nil, nil
	}
	perWorker = []platform.Session{primary}
	if platform.IsConcurrentSafe(primary) {
		for len(perWorker) < workers {
			perWorker = append(perWorker, primary)
		}
		return perWorker, nil
	}
	for i := 1; i < workers; i++ {
		s, err := o.client.Connect(ctx)
		if err != nil {
			logger.Warn("failed to open extra session, running with fewer workers",
				"worker", i,
				"error", err,
			)
			continue
		}
		perWorker = append(perWorker, s)
		extras = append(extras, s)
	}
	return perWorker, extras
}

// closeSessions closes each session. Close errors are logged only.
func (o *Orchestrator) closeSessions(logger *slog.Logger, sessions []platform.Session) {
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			logger.Warn("failed to close platform session", "error", err)
		}
	}
}

func (o *Orchestrator) failAll(run *model.CrawlRun, err error) {
	msg := fmt.Sprintf("platform connection failed: %v", err)
	for i := range run.Items {
		run.Items[i].Status = model.ItemFailed
		run.Items[i].ErrorClass = model.ErrorClassConnectionFailure
		run.Items[i].Error = msg
	}
	run.Status = model.RunConnectionFailed
	run.Error = msg
	run.Recount()
	run.FinishedAt = o.now()
}

// finish marks unresolved items cancelled and sets the run status.
func (o *Orchestrator) finish(ctx context.Context, run *model.CrawlRun) {
	for i := range run.Items {
		if run.Items[i].Status == model.ItemPending {
			run.Items[i].Status = model.ItemCancelled
			run.Items[i].ErrorClass = model.ErrorClassCancelled
		}
	}
	run.Recount()
	run.Status = model.RunCompleted
	if ctx.Err() != nil {
		run.Status = model.RunCancelled
		run.Error = ctx.Err().Error()
	}
	run.FinishedAt = o.now()
}

// collector stores item results in input order.
type collector struct {
	mu       sync.Mutex
	run      *model.CrawlRun
	index    map[int]int
	progress func(model.ItemResult)
}

func newCollector(run *model.CrawlRun, progress func(model.ItemResult)) *collector {
	index := make(map[int]int, len(run.Items))
	for i, item := range run.Items {
		index[item.Position] = i
	}
	return &collector{run: run, index: index, progress: progress}
}

func (c *collector) record(res model.ItemResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res.Channels == nil {
		res.Channels = []model.DiscoveredChannel{}
	}
	c.run.Items[c.index[res.Position]] = res
	switch res.Status {
	case model.ItemSucceeded:
		c.run.Succeeded++
	case model.ItemFailed:
		c.run.Failed++
	case model.ItemCancelled:
		c.run.Cancelled++
	case model.ItemPending:
	}
	if c.progress != nil {
		c.progress(res)
	}
}
