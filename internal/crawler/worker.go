package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/tgsimilar/internal/model"
	"github.com/nao1215/tgsimilar/internal/platform"
)

// worker pulls items from the shared queue and resolves them on one session.
type worker struct {
	orch   *Orchestrator
	sess   platform.Session
	policy Policy
	logger *slog.Logger
	out    *collector
}

// retryState tracks one item until it resolves.
type retryState struct {
	attempts         int
	transientRetries int
	lastClass        model.ErrorClass
	lastErr          error
	nextEligible     time.Time
}

func (w *worker) loop(ctx context.Context, queue <-chan model.WorkItem) {
	first := true
	for item := range queue {
		if ctx.Err() != nil {
			w.out.record(cancelled(item, 0, nil))
			continue
		}
		if !first {
			if err := w.orch.sleep(ctx, w.policy.Delay); err != nil {
				w.out.record(cancelled(item, 0, nil))
				continue
			}
		}
		first = false
		w.out.record(w.process(ctx, item))
	}
}

// process calls the adapter until the item succeeds, fails permanently,
// exhausts its retries or the run is cancelled during a wait.
func (w *worker) process(ctx context.Context, item model.WorkItem) model.ItemResult {
	logger := w.logger.With("channel", item.ID.String())
	var st retryState

	for {
		if st.attempts >= w.policy.AttemptCeiling {
			logger.Warn("attempt ceiling reached", "attempts", st.attempts)
			return failed(item, st, fmt.Errorf("gave up after %d attempts: %w", st.attempts, st.lastErr))
		}

		st.attempts++
		channels, err := w.fetch(ctx, item.ID)
		if err == nil {
			logger.Debug("channel resolved", "attempts", st.attempts, "found", len(channels))
			return model.ItemResult{
				Source:   item.ID,
				Position: item.Position,
				Status:   model.ItemSucceeded,
				Attempts: st.attempts,
				Channels: channels,
			}
		}

		class, wait := platform.Classify(err)
		if class == model.ErrorClassCancelled {
			class = model.ErrorClassTransient
		}
		st.lastClass, st.lastErr = class, err

		var pause time.Duration
		switch {
		case class == model.ErrorClassRateLimited:
			pause = wait
			st.nextEligible = w.orch.now().Add(pause)
			logger.Warn("rate limited by platform",
				"wait", wait,
				"attempt", st.attempts,
				"retry_at", st.nextEligible,
			)
		case !class.Retryable():
			logger.Warn("channel failed", "error_class", class, "error", err)
			return failed(item, st, err)
		default:
			if st.transientRetries >= w.policy.MaxRetries {
				logger.Warn("retries exhausted", "attempts", st.attempts, "error", err)
				return failed(item, st, err)
			}
			pause = w.policy.Backoff(st.transientRetries)
			st.transientRetries++
			st.nextEligible = w.orch.now().Add(pause)
			logger.Info("transient failure, backing off",
				"backoff", pause,
				"retry_at", st.nextEligible,
				"error", err,
			)
		}

		if err := w.orch.sleep(ctx, pause); err != nil {
			return cancelled(item, st.attempts, st.lastErr)
		}
	}
}

// fetch makes one call bounded by RequestTimeout. The call context is
// detached from run cancellation so an in-flight attempt completes.
func (w *worker) fetch(ctx context.Context, id model.ChannelID) ([]model.DiscoveredChannel, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.policy.RequestTimeout)
	defer cancel()
	return w.sess.FetchSimilar(callCtx, id)
}

func failed(item model.WorkItem, st retryState, err error) model.ItemResult {
	return model.ItemResult{
		Source:     item.ID,
		Position:   item.Position,
		Status:     model.ItemFailed,
		Attempts:   st.attempts,
		ErrorClass: st.lastClass,
		Error:      err.Error(),
	}
}

func cancelled(item model.WorkItem, attempts int, lastErr error) model.ItemResult {
	res := model.ItemResult{
		Source:     item.ID,
		Position:   item.Position,
		Status:     model.ItemCancelled,
		Attempts:   attempts,
		ErrorClass: model.ErrorClassCancelled,
	}
	if lastErr != nil {
		res.Error = lastErr.Error()
	}
	return res
}
