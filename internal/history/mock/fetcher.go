package mock

import (
	"context"
	"encoding/json"
)

// Fetcher returns a canned payload per market and records every call.
type Fetcher struct {
	PayloadByMarket map[string]string
	Payload         string
	Err             error
	Calls           []string
}

func (f *Fetcher) Fetch(ctx context.Context, market string) (json.RawMessage, error) {
	_ = ctx
	f.Calls = append(f.Calls, market)
	if f.Err != nil {
		return nil, f.Err
	}
	if payload, ok := f.PayloadByMarket[market]; ok {
		return json.RawMessage(payload), nil
	}
	if f.Payload == "" {
		return json.RawMessage("[]"), nil
	}
	return json.RawMessage(f.Payload), nil
}
