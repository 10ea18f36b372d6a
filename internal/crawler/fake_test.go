package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/tgsimilar/internal/model"
	"github.com/nao1215/tgsimilar/internal/platform"
)

// step is one scripted answer of fakeClient.
type step struct {
	channels []model.DiscoveredChannel
	err      error
}

// fakeClient is a scripted platform.Client.
type fakeClient struct {
	mu          sync.Mutex
	script      map[model.ChannelID][]step
	connectErrs []error
	// blockConnect makes Connect wait for cancellation, like a login prompt.
	blockConnect bool
	concurrent   bool
	blockUntil  func(ctx context.Context, ch model.ChannelID) error
	onFetch     func(ch model.ChannelID, attempt int)

	connects    int
	sessions    []*fakeSession
	calls       map[model.ChannelID]int
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newFakeClient(script map[model.ChannelID][]step) *fakeClient {
	return &fakeClient{script: script, calls: make(map[model.ChannelID]int)}
}

func (f *fakeClient) Connect(ctx context.Context) (platform.Session, error) {
	if f.blockConnect {
		<-ctx.Done()
		return nil, fmt.Errorf("failed to obtain login code: %w", ctx.Err())
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.connects
	f.connects++
	if n < len(f.connectErrs) && f.connectErrs[n] != nil {
		return nil, f.connectErrs[n]
	}
	s := &fakeSession{client: f}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeClient) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeClient) callsFor(ch model.ChannelID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ch]
}

type fakeSession struct {
	client *fakeClient
	closes atomic.Int32
}

func (s *fakeSession) ConcurrentSafe() bool {
	return s.client.concurrent
}

func (s *fakeSession) FetchSimilar(ctx context.Context, ch model.ChannelID) ([]model.DiscoveredChannel, error) {
	f := s.client

	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		prev := f.maxInflight.Load()
		if cur <= prev || f.maxInflight.CompareAndSwap(prev, cur) {
			break
		}
	}

	f.mu.Lock()
	attempt := f.calls[ch]
	f.calls[ch]++
	steps := f.script[ch]
	f.mu.Unlock()

	if f.onFetch != nil {
		f.onFetch(ch, attempt)
	}
	if f.blockUntil != nil {
		if err := f.blockUntil(ctx, ch); err != nil {
			return nil, err
		}
	}

	if len(steps) == 0 {
		return []model.DiscoveredChannel{{Username: "similar_to_" + ch.String(), Source: ch}}, nil
	}
	if attempt >= len(steps) {
		attempt = len(steps) - 1
	}
	return steps[attempt].channels, steps[attempt].err
}

func (s *fakeSession) Close() error {
	s.closes.Add(1)
	return nil
}

// recordingSleeper records requested pauses and returns at once unless
// the context is already done.
type recordingSleeper struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.pauses = append(r.pauses, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleeper) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.pauses...)
}

// blockingSleeper returns immediately for zero pauses and otherwise waits
// for the context.
func blockingSleeper(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	<-ctx.Done()
	return ctx.Err()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy() Policy {
	return Policy{
		Concurrency:    1,
		Delay:          0,
		MaxRetries:     2,
		BackoffBase:    time.Second,
		MaxBackoff:     0,
		AttemptCeiling: 10,
		RequestTimeout: time.Second,
	}
}

func items(ids ...model.ChannelID) []model.WorkItem {
	return model.NewWorkItems(ids)
}

var errBoom = errors.New("boom")
