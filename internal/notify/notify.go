// Package notify turns newly detected sales into push messages and fans them
// out to the configured transports. Delivery is best effort: failures are
// logged and never reach the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bakkerme/salewatch/internal/core"
)

const (
	DefaultTopic = "poe_sales"
	DefaultTitle = "PoE Sale!"
)

// Message is the rendered notification handed to a transport.
type Message struct {
	Topic string    `json:"topic"`
	Title string    `json:"title"`
	Body  string    `json:"message"`
	Sale  core.Sale `json:"sale"`
}

// Transport delivers a rendered message over one channel.
type Transport interface {
	Name() string
	Send(ctx context.Context, message Message) error
}

// Notifier is what the reconciler calls for every new sale.
type Notifier interface {
	Notify(ctx context.Context, sale core.Sale)
}

// Observer is told about every delivery attempt.
type Observer interface {
	ObserveNotification(transport string, err error)
}

// Render builds the fixed notification for a sale.
func Render(sale core.Sale) Message {
	return Message{
		Topic: DefaultTopic,
		Title: DefaultTitle,
		Body:  fmt.Sprintf("Sold %s for %s in %s", sale.ItemName, sale.Price(), sale.Market),
		Sale:  sale,
	}
}

type Dispatcher struct {
	logger     *slog.Logger
	transports []Transport
	filter     *Filter
	observer   Observer
}

func NewDispatcher(logger *slog.Logger, transports ...Transport) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	active := make([]Transport, 0, len(transports))
	for _, t := range transports {
		if t != nil {
			active = append(active, t)
		}
	}
	return &Dispatcher{logger: logger, transports: active}
}

// WithFilter suppresses pushes for sales the filter rejects.
func (d *Dispatcher) WithFilter(filter *Filter) *Dispatcher {
	d.filter = filter
	return d
}

func (d *Dispatcher) WithObserver(observer Observer) *Dispatcher {
	d.observer = observer
	return d
}

// Transports returns the active transports in dispatch order.
func (d *Dispatcher) Transports() []Transport {
	return d.transports
}

func (d *Dispatcher) Notify(ctx context.Context, sale core.Sale) {
	logger := core.LoggerFromContext(ctx)
	if logger == slog.Default() {
		logger = d.logger
	}

	if d.filter != nil {
		matched, err := d.filter.Match(sale)
		if err != nil {
			logger.Warn("notification_filter_failed", "sale_id", sale.ID, "error", err)
		} else if !matched {
			logger.Info("notification_filtered", "sale_id", sale.ID, "item", sale.ItemName)
			return
		}
	}

	message := Render(sale)
	for _, t := range d.transports {
		err := d.send(ctx, t, message)
		if d.observer != nil {
			d.observer.ObserveNotification(t.Name(), err)
		}
		if err != nil {
			logger.Error("notification_failed", "transport", t.Name(), "sale_id", sale.ID, "error", err)
			continue
		}
		logger.Info("notification_sent", "transport", t.Name(), "sale_id", sale.ID, "body", message.Body)
	}
}

// send isolates a misbehaving transport so it cannot take the run down.
func (d *Dispatcher) send(ctx context.Context, t Transport, message Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport %s panicked: %v", t.Name(), r)
		}
	}()
	return t.Send(ctx, message)
}

// LogTransport writes notifications to the log. It is the fallback when no
// other transport is configured.
type LogTransport struct {
	Logger *slog.Logger
}

func (l LogTransport) Name() string {
	return "log"
}

func (l LogTransport) Send(ctx context.Context, message Message) error {
	logger := l.Logger
	if logger == nil {
		logger = core.LoggerFromContext(ctx)
	}
	logger.Info("sale_notification", "topic", message.Topic, "title", message.Title, "body", message.Body)
	return nil
}
