package core

import "context"

type runIDKey struct{}
type marketKey struct{}

func WithRunID(ctx context.Context, runID string) context.Context {
	if ctx == nil || runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey{}, runID)
}

func WithMarket(ctx context.Context, market string) context.Context {
	if ctx == nil || market == "" {
		return ctx
	}
	return context.WithValue(ctx, marketKey{}, market)
}

func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}

func MarketFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(marketKey{}).(string); ok {
		return v
	}
	return ""
}
