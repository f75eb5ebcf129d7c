package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bakkerme/salewatch/internal/config"
	"github.com/bakkerme/salewatch/internal/core"
	"github.com/bakkerme/salewatch/internal/trigger"
)

type fakeReconciler struct {
	mu      sync.Mutex
	calls   []string
	runIDs  []string
	result  core.RunResult
	callsCh chan struct{}
}

func (f *fakeReconciler) Reconcile(ctx context.Context, market string) core.RunResult {
	f.mu.Lock()
	f.calls = append(f.calls, market)
	f.runIDs = append(f.runIDs, core.RunIDFromContext(ctx))
	f.mu.Unlock()
	if f.callsCh != nil {
		f.callsCh <- struct{}{}
	}
	result := f.result
	result.Market = market
	return result
}

func (f *fakeReconciler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type observerFunc func(core.RunResult)

func (o observerFunc) ObserveRun(result core.RunResult) { o(result) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce_DelegatesToReconciler(t *testing.T) {
	rec := &fakeReconciler{result: core.RunResult{Outcome: core.OutcomeSuccess, Message: "API scraper ran successfully", Detected: 2}}
	r := New(quietLogger(), rec, "Keepers", WithRunIDs(func() string { return "run-1" }))

	result := r.RunOnce(context.Background())
	if !result.OK() || result.Detected != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if rec.callCount() != 1 || rec.calls[0] != "Keepers" {
		t.Fatalf("expected one call for Keepers, got %v", rec.calls)
	}
	if rec.runIDs[0] != "run-1" {
		t.Fatalf("run id should travel in context, got %q", rec.runIDs[0])
	}
	last, ok := r.LastResult()
	if !ok || last.Detected != 2 {
		t.Fatalf("expected last result to be recorded, got %+v", last)
	}
}

func TestRunOnce_PreflightFailureSkipsReconciler(t *testing.T) {
	rec := &fakeReconciler{}
	var observed []core.RunResult
	r := New(quietLogger(), rec, "Keepers",
		WithPreflight(config.TradeEnvConfig{SessionID: "short"}.CheckCredentials),
		WithObserver(observerFunc(func(result core.RunResult) { observed = append(observed, result) })),
	)

	result := r.RunOnce(context.Background())
	if result.Outcome != core.OutcomeConfigError || result.StatusCode() != http.StatusInternalServerError {
		t.Fatalf("expected config error, got %+v", result)
	}
	if !strings.HasPrefix(result.Message, "Error: Required environment variables not set or truncated: ") {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if !errors.Is(result.Err, config.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", result.Err)
	}
	if rec.callCount() != 0 {
		t.Fatalf("reconciler must not run when preflight fails")
	}
	if len(observed) != 1 {
		t.Fatalf("expected preflight failure to be observed, got %d", len(observed))
	}
}

func TestLastResult_EmptyBeforeFirstRun(t *testing.T) {
	r := New(nil, &fakeReconciler{}, "Keepers")
	if _, ok := r.LastResult(); ok {
		t.Fatalf("expected no result before the first run")
	}
}

func TestStart_RunsOnTriggerEvents(t *testing.T) {
	rec := &fakeReconciler{result: core.RunResult{Outcome: core.OutcomeSuccess}, callsCh: make(chan struct{}, 1)}
	r := New(quietLogger(), rec, "Keepers")
	manual := trigger.NewManual()

	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx, manual); err != nil {
		t.Fatalf("start: %v", err)
	}
	manual.Fire()

	select {
	case <-rec.callsCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("trigger event did not cause a run")
	}

	cancel()
	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("listeners did not stop after cancel")
	}
}

func TestStart_RequiresTrigger(t *testing.T) {
	r := New(quietLogger(), &fakeReconciler{}, "Keepers")
	if err := r.Start(context.Background()); err == nil {
		t.Fatalf("expected error without triggers")
	}
}
