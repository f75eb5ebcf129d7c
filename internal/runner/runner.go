// Package runner turns trigger events into reconciliation runs.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bakkerme/salewatch/internal/config"
	"github.com/bakkerme/salewatch/internal/core"
	"github.com/bakkerme/salewatch/internal/trigger"
	"github.com/google/uuid"
)

// Reconciler performs a single run for a market.
type Reconciler interface {
	Reconcile(ctx context.Context, market string) core.RunResult
}

// RunObserver is told about runs that never reach the reconciler.
type RunObserver interface {
	ObserveRun(result core.RunResult)
}

type Runner struct {
	logger     *slog.Logger
	reconciler Reconciler
	market     string
	preflight  func() error
	observer   RunObserver
	newRunID   func() string

	wg   sync.WaitGroup
	mu   sync.RWMutex
	last *core.RunResult
}

type Option func(*Runner)

// WithPreflight installs a check that must pass before any network call.
func WithPreflight(check func() error) Option {
	return func(r *Runner) {
		r.preflight = check
	}
}

func WithObserver(observer RunObserver) Option {
	return func(r *Runner) {
		r.observer = observer
	}
}

func WithRunIDs(next func() string) Option {
	return func(r *Runner) {
		if next != nil {
			r.newRunID = next
		}
	}
}

func New(logger *slog.Logger, reconciler Reconciler, market string, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		logger:     logger,
		reconciler: reconciler,
		market:     market,
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Market() string {
	return r.market
}

// RunOnce performs one run and records its result.
func (r *Runner) RunOnce(ctx context.Context) core.RunResult {
	runID := r.newRunID()
	ctx = core.WithRunID(ctx, runID)
	logger := r.logger.With("run_id", runID, "market", r.market)
	startedAt := time.Now().UTC()

	var result core.RunResult
	if err := r.check(); err != nil {
		logger.Error("preflight_failed", "error", err)
		result = core.RunResult{
			RunID:       runID,
			Market:      r.market,
			Outcome:     core.OutcomeConfigError,
			Message:     config.ConfigErrorMessage(err),
			Err:         err,
			StartedAt:   startedAt,
			CompletedAt: time.Now().UTC(),
		}
		if r.observer != nil {
			r.observer.ObserveRun(result)
		}
	} else {
		result = r.reconciler.Reconcile(ctx, r.market)
	}

	logger.Info("run_completed",
		"outcome", result.Outcome,
		"detected", result.Detected,
		"load_degraded", result.LoadDegraded,
		"duration", time.Since(startedAt),
	)

	r.mu.Lock()
	r.last = &result
	r.mu.Unlock()
	return result
}

func (r *Runner) check() error {
	if r.reconciler == nil {
		return fmt.Errorf("reconciler is required")
	}
	if r.preflight == nil {
		return nil
	}
	return r.preflight()
}

// LastResult returns the most recent run, if any.
func (r *Runner) LastResult() (core.RunResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return core.RunResult{}, false
	}
	return *r.last, true
}

// Start subscribes to every trigger and runs on each event until ctx ends.
func (r *Runner) Start(ctx context.Context, triggers ...trigger.Trigger) error {
	if len(triggers) == 0 {
		return fmt.Errorf("at least one trigger is required")
	}
	for _, t := range triggers {
		if t == nil {
			continue
		}
		events, err := t.Start(ctx)
		if err != nil {
			return fmt.Errorf("start %s trigger: %w", t.Name(), err)
		}
		r.wg.Add(1)
		go r.listen(ctx, events)
	}
	return nil
}

// Wait blocks until every listener started by Start has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) listen(ctx context.Context, events <-chan trigger.Event) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			r.logger.Info("trigger_event", "source", event.Source, "time", event.Timestamp)
			r.RunOnce(ctx)
		}
	}
}
