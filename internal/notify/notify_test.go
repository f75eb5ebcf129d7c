package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bakkerme/salewatch/internal/core"
	"github.com/bakkerme/salewatch/internal/notify"
	"github.com/bakkerme/salewatch/internal/notify/mock"
)

var chaos = core.Sale{ID: "7", ItemName: "Chaos Orb", Amount: "10", Currency: "divine", Market: "Keepers"}

func TestRenderUsesFixedTemplate(t *testing.T) {
	msg := notify.Render(chaos)
	if msg.Title != "PoE Sale!" || msg.Topic != "poe_sales" {
		t.Fatalf("unexpected title/topic %q/%q", msg.Title, msg.Topic)
	}
	if msg.Body != "Sold Chaos Orb for 10 divine in Keepers" {
		t.Fatalf("unexpected body %q", msg.Body)
	}
}

type panickingTransport struct{}

func (panickingTransport) Name() string { return "panic" }
func (panickingTransport) Send(ctx context.Context, message notify.Message) error {
	panic("boom")
}

type recordingObserver struct {
	results map[string]error
}

func (o *recordingObserver) ObserveNotification(transport string, err error) {
	o.results[transport] = err
}

func TestDispatcherSwallowsTransportFailures(t *testing.T) {
	failing := &mock.Transport{TransportName: "failing", Err: errors.New("fcm unavailable")}
	ok := &mock.Transport{TransportName: "ok"}
	observer := &recordingObserver{results: map[string]error{}}

	d := notify.NewDispatcher(nil, failing, panickingTransport{}, ok).WithObserver(observer)
	d.Notify(context.Background(), chaos)

	if failing.Attempts != 1 {
		t.Fatalf("expected failing transport to be attempted once, got %d", failing.Attempts)
	}
	if len(ok.Messages) != 1 {
		t.Fatalf("expected healthy transport to still deliver, got %d messages", len(ok.Messages))
	}
	if observer.results["failing"] == nil || observer.results["panic"] == nil {
		t.Fatalf("expected failures to be observed, got %v", observer.results)
	}
	if observer.results["ok"] != nil {
		t.Fatalf("expected ok transport success, got %v", observer.results["ok"])
	}
}

func TestDispatcherSkipsNilTransports(t *testing.T) {
	d := notify.NewDispatcher(nil, nil, &mock.Transport{})
	if len(d.Transports()) != 1 {
		t.Fatalf("expected nil transports to be dropped, got %d", len(d.Transports()))
	}
}

func TestDispatcherAppliesFilter(t *testing.T) {
	filter, err := notify.NewFilter(`currency == "divine" && amount_value >= 5`)
	if err != nil {
		t.Fatalf("filter compile failed: %v", err)
	}
	transport := &mock.Transport{}
	d := notify.NewDispatcher(nil, transport).WithFilter(filter)

	d.Notify(context.Background(), chaos)
	d.Notify(context.Background(), core.Sale{ID: "8", ItemName: "Alch", Amount: "3", Currency: "chaos", Market: "Keepers"})
	d.Notify(context.Background(), core.Sale{ID: "9", ItemName: "Mirror", Amount: core.UnknownAmount, Currency: "divine", Market: "Keepers"})

	if len(transport.Messages) != 1 || transport.Messages[0].Sale.ID != "7" {
		t.Fatalf("expected only sale 7 to pass the filter, got %+v", transport.Messages)
	}
}

func TestNewFilterRejectsNonBoolean(t *testing.T) {
	if _, err := notify.NewFilter(`amount_value + 1`); err == nil {
		t.Fatalf("expected non-boolean filter to be rejected")
	}
	f, err := notify.NewFilter("   ")
	if err != nil || f != nil {
		t.Fatalf("expected blank filter to be nil, got %v %v", f, err)
	}
}
