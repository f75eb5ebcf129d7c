package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/bakkerme/salewatch/internal/core"
	"github.com/bakkerme/salewatch/internal/notify"
	kafkago "github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublisherKeysBySaleID(t *testing.T) {
	writer := &fakeWriter{}
	p := &Publisher{writer: writer}

	msg := notify.Render(core.Sale{ID: "7", ItemName: "Chaos Orb", Amount: "10", Currency: "divine", Market: "Keepers"})
	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(writer.messages) != 1 {
		t.Fatalf("expected one kafka message, got %d", len(writer.messages))
	}
	out := writer.messages[0]
	if out.Topic != "poe_sales" || string(out.Key) != "7" {
		t.Fatalf("unexpected topic/key %q/%q", out.Topic, out.Key)
	}
	var ev event
	if err := json.Unmarshal(out.Value, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Body != "Sold Chaos Orb for 10 divine in Keepers" || ev.Market != "Keepers" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestPublisherWrapsWriteErrors(t *testing.T) {
	boom := errors.New("leader not available")
	p := &Publisher{writer: &fakeWriter{err: boom}, topic: "sales"}
	if err := p.Send(context.Background(), notify.Render(core.Sale{ID: "1"})); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
}

func TestNewPublisherRequiresBrokers(t *testing.T) {
	if _, err := NewPublisher([]string{" ", ""}, "sales"); err == nil {
		t.Fatalf("expected missing brokers to be rejected")
	}
}
