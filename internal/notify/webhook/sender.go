// Package webhook pushes notifications as JSON to an HTTP endpoint. The body
// follows ntfy's JSON publishing format, so an ntfy server root URL works
// as-is.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bakkerme/salewatch/internal/notify"
	"github.com/bakkerme/salewatch/internal/retry"
	"github.com/go-resty/resty/v2"
)

var errTransient = errors.New("webhook transient error")

type Sender struct {
	client *resty.Client
	url    string
	topic  string
	token  string
}

type payload struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Tags     []string `json:"tags,omitempty"`
	SaleID   string   `json:"sale_id"`
	Market   string   `json:"market"`
	Currency string   `json:"currency"`
}

// NewSender builds a webhook transport. An empty topic keeps the message's own topic.
func NewSender(url, topic, token string, timeout time.Duration) (*Sender, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "salewatch/0.1")
	return &Sender{
		client: client,
		url:    url,
		topic:  strings.TrimSpace(topic),
		token:  strings.TrimSpace(token),
	}, nil
}

func (s *Sender) Name() string {
	return "webhook"
}

func (s *Sender) Send(ctx context.Context, message notify.Message) error {
	topic := message.Topic
	if s.topic != "" {
		topic = s.topic
	}
	body := payload{
		Topic:    topic,
		Title:    message.Title,
		Message:  message.Body,
		Tags:     []string{"moneybag"},
		SaleID:   message.Sale.ID,
		Market:   message.Sale.Market,
		Currency: message.Sale.Currency,
	}

	return retry.Do(ctx, retry.Config{
		Attempts:    3,
		BaseDelay:   200 * time.Millisecond,
		ShouldRetry: func(err error) bool { return errors.Is(err, errTransient) },
	}, func() error {
		req := s.client.R().SetContext(ctx).SetBody(body)
		if s.token != "" {
			req.SetAuthToken(s.token)
		}
		resp, err := req.Post(s.url)
		if err != nil {
			return fmt.Errorf("%w: %w", errTransient, err)
		}
		status := resp.StatusCode()
		if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %s", errTransient, resp.Status())
		}
		if status < 200 || status >= 300 {
			return fmt.Errorf("webhook rejected notification: %s: %s", resp.Status(), strings.TrimSpace(resp.String()))
		}
		return nil
	})
}
