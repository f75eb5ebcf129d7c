package mock

import (
	"context"

	"github.com/bakkerme/salewatch/internal/notify"
)

type Transport struct {
	TransportName string
	Messages      []notify.Message
	Attempts      int
	Err           error
}

func (t *Transport) Name() string {
	if t.TransportName == "" {
		return "mock"
	}
	return t.TransportName
}

func (t *Transport) Send(ctx context.Context, message notify.Message) error {
	_ = ctx
	t.Attempts++
	if t.Err != nil {
		return t.Err
	}
	t.Messages = append(t.Messages, message)
	return nil
}
