// Package kafka publishes sale notifications as JSON events, keyed by sale id
// so repeated notifications for one sale land on the same partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bakkerme/salewatch/internal/notify"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	topic  string
}

type event struct {
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	SaleID     string    `json:"sale_id"`
	ItemName   string    `json:"item_name"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	Market     string    `json:"market"`
	DetectedAt time.Time `json:"detected_at"`
}

// NewPublisher writes to topic, falling back to the message topic when empty.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	cleaned := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			cleaned = append(cleaned, b)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(cleaned...),
		Balancer:               &kafkago.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafkago.RequireAll,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
	}
	return &Publisher{writer: writer, topic: strings.TrimSpace(topic)}, nil
}

func (p *Publisher) Name() string {
	return "kafka"
}

func (p *Publisher) Send(ctx context.Context, message notify.Message) error {
	topic := p.topic
	if topic == "" {
		topic = message.Topic
	}
	value, err := json.Marshal(event{
		Title:      message.Title,
		Body:       message.Body,
		SaleID:     message.Sale.ID,
		ItemName:   message.Sale.ItemName,
		Amount:     message.Sale.Amount,
		Currency:   message.Sale.Currency,
		Market:     message.Sale.Market,
		DetectedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal kafka event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(message.Sale.ID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish to kafka topic %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
