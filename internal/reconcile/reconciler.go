// Package reconcile compares a freshly fetched trade history against the
// persisted seen-set, notifies for every sale not seen before and merges the
// new keys back into the store.
//
// Ordering matters for the failure modes: a key is recorded as seen whether or
// not its notification got through, and the delta is merged only after all
// notifications fired. A crash before the merge therefore re-notifies on the
// next run but never loses a sale.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bakkerme/salewatch/internal/core"
	"github.com/bakkerme/salewatch/internal/history"
	"github.com/bakkerme/salewatch/internal/notify"
	"github.com/bakkerme/salewatch/internal/seenset"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// mergeTimeout bounds the final write, which outlives the caller's context.
const mergeTimeout = 30 * time.Second

const (
	MessageSuccess           = "API scraper ran successfully"
	MessageUnexpectedPayload = "Unexpected API response structure."
)

var tracer = otel.Tracer("github.com/bakkerme/salewatch/internal/reconcile")

// Observer receives run-level and record-level events, typically for metrics.
type Observer interface {
	ObserveRecordSkipped(reason string)
	ObserveRun(result core.RunResult)
}

type Reconciler struct {
	store    seenset.Store
	fetcher  history.Fetcher
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
	newRunID func() string
	observer Observer
}

type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the timestamp source for newly recorded keys.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(r *Reconciler) {
		r.observer = observer
	}
}

func New(store seenset.Store, fetcher history.Fetcher, notifier notify.Notifier, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		fetcher:  fetcher,
		notifier: notifier,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile performs one run for market. It never returns an error; every
// failure is reported through the result.
func (r *Reconciler) Reconcile(ctx context.Context, market string) (result core.RunResult) {
	runID := core.RunIDFromContext(ctx)
	if runID == "" {
		runID = r.newRunID()
		ctx = core.WithRunID(ctx, runID)
	}
	logger := r.logger.With("run_id", runID, "market", market)
	ctx = core.WithMarket(core.WithLogger(ctx, logger), market)

	ctx, span := tracer.Start(ctx, "reconcile")
	span.SetAttributes(attribute.String("salewatch.market", market), attribute.String("salewatch.run_id", runID))

	result = core.RunResult{RunID: runID, Market: market, StartedAt: r.now()}
	defer func() {
		result.CompletedAt = r.now()
		span.SetAttributes(
			attribute.Int("salewatch.detected", result.Detected),
			attribute.String("salewatch.outcome", string(result.Outcome)),
			attribute.Bool("salewatch.load_degraded", result.LoadDegraded),
		)
		if result.Err != nil {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Message)
		}
		span.End()
		if r.observer != nil {
			r.observer.ObserveRun(result)
		}
	}()

	if r.store == nil || r.fetcher == nil || r.notifier == nil {
		return r.abort(logger, result, core.OutcomeConfigError, "Error: reconciler is missing a store, fetcher or notifier", errors.New("reconciler dependencies not configured"))
	}

	seen, err := r.store.Load(ctx)
	if err != nil {
		// Availability over strict dedup: continue with an empty set, accepting
		// that already-notified sales in this batch will notify again.
		logger.Error("seen_set_load_failed", "error", err, "risk", "duplicate notifications")
		result.LoadDegraded = true
		seen = core.SeenSet{}
	} else {
		logger.Info("seen_set_loaded", "count", len(seen))
	}
	if seen == nil {
		seen = core.SeenSet{}
	}

	payload, err := r.fetcher.Fetch(ctx, market)
	if err != nil {
		return r.abortFetch(logger, result, err)
	}

	entries, err := history.Entries(payload)
	if err != nil {
		var parseErr *history.ParseError
		if errors.As(err, &parseErr) {
			return r.abortFetch(logger, result, err)
		}
		return r.abort(logger, result, core.OutcomeStructureError, MessageUnexpectedPayload, err)
	}
	logger.Info("trade_history_fetched", "entries", len(entries))

	delta := core.SeenSet{}
	for i, entry := range entries {
		if r.processEntry(ctx, logger, i, entry, market, seen, delta) {
			result.Detected++
		}
	}

	if len(delta) == 0 {
		logger.Info("no_new_sales")
		result.Outcome = core.OutcomeSuccess
		result.Message = MessageSuccess
		return result
	}

	if err := r.merge(ctx, delta); err != nil {
		// The notifications above already fired; the next run may repeat them.
		return r.abort(logger, result, core.OutcomeStoreError, fmt.Sprintf("Error updating seen-set store: %v", err), err)
	}
	logger.Info("seen_set_merged", "new_sales", len(delta))

	result.Outcome = core.OutcomeSuccess
	result.Message = MessageSuccess
	return result
}

// merge records the delta even if ctx was cancelled after notifications went
// out, so a disconnect or shutdown does not re-notify on the next run.
func (r *Reconciler) merge(ctx context.Context, delta core.SeenSet) error {
	mergeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mergeTimeout)
	defer cancel()
	return r.store.Merge(mergeCtx, delta)
}

// processEntry handles one entry and reports whether it recorded a new key.
// Anything that goes wrong stays inside this entry.
func (r *Reconciler) processEntry(ctx context.Context, logger *slog.Logger, index int, entry gjson.Result, market string, seen, delta core.SeenSet) (detected bool) {
	marked := false
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("sale_entry_failed", "index", index, "panic", fmt.Sprint(rec), "entry", history.Snippet([]byte(entry.Raw)))
			// A key recorded before the panic is still merged and still counts.
			detected = marked
			if !marked {
				r.observeSkipped("panic")
			}
		}
	}()

	extraction := Extract(entry, market)
	switch extraction.Kind {
	case RecordSkip:
		logger.Warn("sale_entry_skipped", "index", index, "reason", extraction.Reason, "entry", history.Snippet([]byte(entry.Raw)))
		r.observeSkipped(extraction.Reason)
		return false
	case RecordMalformed:
		logger.Warn("sale_entry_malformed", "index", index, "sale_id", extraction.Sale.ID, "reason", extraction.Reason)
	}

	sale := extraction.Sale
	if seen.Has(sale.ID) {
		return false
	}

	// Mark before notifying so a duplicate id later in the batch is skipped
	// even if the notifier misbehaves.
	now := r.now()
	seen[sale.ID] = now
	delta[sale.ID] = now
	marked = true

	logger.Info("new_sale_detected", "sale_id", sale.ID, "item", sale.ItemName, "price", sale.Price())
	r.notifier.Notify(ctx, sale)
	return true
}

func (r *Reconciler) abortFetch(logger *slog.Logger, result core.RunResult, err error) core.RunResult {
	var (
		statusErr *history.StatusError
		parseErr  *history.ParseError
	)
	switch {
	case errors.As(err, &statusErr):
		logger.Error("trade_history_fetch_failed", "status_code", statusErr.StatusCode, "body", statusErr.Body, "error", err)
	case errors.As(err, &parseErr):
		logger.Error("trade_history_parse_failed", "body", parseErr.Snippet, "error", err)
		return r.abort(logger, result, core.OutcomeFetchError, fmt.Sprintf("Error parsing API response: %v", err), err)
	default:
		logger.Error("trade_history_fetch_failed", "error", err)
	}
	return r.abort(logger, result, core.OutcomeFetchError, fmt.Sprintf("Error fetching trade history: %v", err), err)
}

func (r *Reconciler) abort(logger *slog.Logger, result core.RunResult, outcome core.Outcome, message string, err error) core.RunResult {
	logger.Error("run_aborted", "outcome", outcome, "detected", result.Detected, "error", err)
	result.Outcome = outcome
	result.Message = message
	result.Err = err
	return result
}

func (r *Reconciler) observeSkipped(reason string) {
	if r.observer != nil {
		r.observer.ObserveRecordSkipped(reason)
	}
}
