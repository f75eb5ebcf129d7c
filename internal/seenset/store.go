package seenset

import (
	"context"
	"errors"
	"strings"

	"github.com/bakkerme/salewatch/internal/core"
)

var (
	// ErrLoad wraps every failure to read a seen-set document.
	ErrLoad = errors.New("load seen-set")
	// ErrMerge wraps every failure to write a delta into a seen-set document.
	ErrMerge = errors.New("merge seen-set")
)

const documentPrefix = "sales_history"

// Store persists the seen-set of a single document.
//
// Merge must be additive: keys already present keep their first-seen
// timestamp and nothing is ever removed. Concurrent mergers of overlapping
// deltas must converge on the union.
type Store interface {
	Load(ctx context.Context) (core.SeenSet, error)
	Merge(ctx context.Context, delta core.SeenSet) error
	Close() error
}

// DocumentName returns the document a market's seen-set lives under.
func DocumentName(market string) string {
	market = strings.TrimSpace(market)
	if market == "" {
		return documentPrefix
	}
	return documentPrefix + "/" + market
}
