// Package history fetches the trade-history payload for a league and turns
// it into an ordered list of raw sale entries.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// SnippetLimit bounds how much of an upstream body is kept for diagnostics.
const SnippetLimit = 500

// ErrUnexpectedStructure is returned by Entries when the payload is neither an
// array nor an object carrying a "sales" array.
var ErrUnexpectedStructure = errors.New("unexpected API response structure")

// Fetcher retrieves the raw trade-history payload for a market.
// The payload is guaranteed to be syntactically valid JSON.
type Fetcher interface {
	Fetch(ctx context.Context, market string) (json.RawMessage, error)
}

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trade history returned status %d", e.StatusCode)
}

// ParseError is returned when the upstream body is not valid JSON.
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "invalid JSON in trade history response"
	}
	return fmt.Sprintf("invalid JSON in trade history response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Entries normalizes a payload into its sale entries, preserving order.
// Both a bare array and {"sales": [...]} are accepted.
func Entries(payload json.RawMessage) ([]gjson.Result, error) {
	if !gjson.ValidBytes(payload) {
		return nil, &ParseError{Snippet: Snippet(payload)}
	}
	root := gjson.ParseBytes(payload)
	switch {
	case root.IsArray():
		return root.Array(), nil
	case root.IsObject():
		sales := root.Get("sales")
		if sales.IsArray() {
			return sales.Array(), nil
		}
		if !sales.Exists() {
			return nil, fmt.Errorf("%w: object without sales field: %s", ErrUnexpectedStructure, truncate(root.Raw, 200))
		}
		return nil, fmt.Errorf("%w: sales field is %s", ErrUnexpectedStructure, sales.Type)
	default:
		return nil, fmt.Errorf("%w: top-level %s", ErrUnexpectedStructure, root.Type)
	}
}

// Snippet returns at most SnippetLimit bytes of body for logging.
func Snippet(body []byte) string {
	return truncate(string(body), SnippetLimit)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
