// Package factory assembles the store, fetcher, transports and reconciler
// from the environment and the watch document.
package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bakkerme/salewatch/internal/config"
	"github.com/bakkerme/salewatch/internal/history"
	historyimpl "github.com/bakkerme/salewatch/internal/history/impl"
	"github.com/bakkerme/salewatch/internal/history/snapshot"
	"github.com/bakkerme/salewatch/internal/metrics"
	"github.com/bakkerme/salewatch/internal/notify"
	"github.com/bakkerme/salewatch/internal/notify/kafka"
	"github.com/bakkerme/salewatch/internal/notify/smtp"
	"github.com/bakkerme/salewatch/internal/notify/webhook"
	"github.com/bakkerme/salewatch/internal/reconcile"
	"github.com/bakkerme/salewatch/internal/seenset"
)

// Components owns everything a process needs for one market. Close releases
// the store and any transport that holds connections.
type Components struct {
	Market     string
	Store      seenset.Store
	Fetcher    history.Fetcher
	Dispatcher *notify.Dispatcher
	Reconciler *reconcile.Reconciler

	closers []io.Closer
}

type Factory struct {
	Logger  *slog.Logger
	Env     config.EnvConfig
	Metrics *metrics.Metrics

	// Overrides used by tests; nil means build from config.
	Fetcher    history.Fetcher
	Store      seenset.Store
	Transports []notify.Transport
}

func New(logger *slog.Logger, env config.EnvConfig, m *metrics.Metrics) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{Logger: logger, Env: env, Metrics: m}
}

// Build wires a resolved and validated document.
func (f *Factory) Build(ctx context.Context, doc *config.WatchDocument) (_ *Components, err error) {
	if doc == nil {
		return nil, fmt.Errorf("watch document is required")
	}
	c := &Components{Market: doc.Market}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	c.Store = f.Store
	if c.Store == nil {
		store, err := seenset.Open(ctx, doc.StoreSettings(), seenset.DocumentName(doc.Market))
		if err != nil {
			return nil, fmt.Errorf("open seen-set store: %w", err)
		}
		c.Store = store
	}
	c.closers = append(c.closers, c.Store)

	c.Fetcher = f.Fetcher
	if c.Fetcher == nil {
		c.Fetcher = historyimpl.NewFetcher(doc.HTTPTimeout.Std(), f.Env.Trade.BaseURL, f.Env.Trade.UserAgent, f.Env.Trade.SessionID, f.Env.Trade.CFClearance)
	}
	c.Fetcher = snapshot.Wrap(c.Fetcher, doc.Snapshot)

	transports := f.Transports
	if transports == nil {
		transports, err = f.buildTransports(doc.Notifiers)
		if err != nil {
			return nil, err
		}
	}
	for _, t := range transports {
		if closer, ok := t.(io.Closer); ok {
			c.closers = append(c.closers, closer)
		}
	}

	filter, err := notify.NewFilter(doc.Filter)
	if err != nil {
		return nil, err
	}

	c.Dispatcher = notify.NewDispatcher(f.Logger, transports...).WithFilter(filter)
	opts := []reconcile.Option{reconcile.WithLogger(f.Logger)}
	if f.Metrics != nil {
		c.Dispatcher.WithObserver(f.Metrics)
		opts = append(opts, reconcile.WithObserver(f.Metrics))
	}
	c.Reconciler = reconcile.New(c.Store, c.Fetcher, c.Dispatcher, opts...)

	names := make([]string, 0, len(transports))
	for _, t := range c.Dispatcher.Transports() {
		names = append(names, t.Name())
	}
	f.Logger.Info("components_ready",
		"market", doc.Market,
		"store", doc.Store.Backend,
		"transports", names,
		"filter", doc.Filter,
	)
	return c, nil
}

func (f *Factory) buildTransports(notifiers []config.NotifierConfig) ([]notify.Transport, error) {
	var out []notify.Transport
	for i, n := range notifiers {
		switch {
		case n.Webhook != nil:
			sender, err := webhook.NewSender(n.Webhook.URL, n.Webhook.Topic, n.Webhook.Token, n.Webhook.Timeout.Std())
			if err != nil {
				return nil, fmt.Errorf("notifier %d webhook: %w", i, err)
			}
			out = append(out, sender)
		case n.Email != nil:
			sender, err := smtp.NewSender(smtp.Config{
				Host:               f.Env.SMTP.Host,
				Port:               f.Env.SMTP.Port,
				Username:           f.Env.SMTP.User,
				Password:           f.Env.SMTP.Password,
				TLSMode:            f.Env.SMTP.TLSMode,
				InsecureSkipVerify: f.Env.SMTP.InsecureSkipVerify,
				From:               n.Email.From,
				To:                 n.Email.To,
			})
			if err != nil {
				return nil, fmt.Errorf("notifier %d email: %w", i, err)
			}
			out = append(out, sender)
		case n.Kafka != nil:
			publisher, err := kafka.NewPublisher(n.Kafka.Brokers, n.Kafka.Topic)
			if err != nil {
				return nil, fmt.Errorf("notifier %d kafka: %w", i, err)
			}
			out = append(out, publisher)
		case n.Log != nil:
			out = append(out, notify.LogTransport{Logger: f.Logger})
		default:
			return nil, fmt.Errorf("notifier %d: no transport configured", i)
		}
	}
	return out, nil
}

func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
