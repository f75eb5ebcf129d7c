package core

import (
	"net/http"
	"time"
)

// Placeholders used when a sale entry omits or mangles a display field.
const (
	UnknownItem     = "Unknown Item"
	UnknownAmount   = "Unknown Amount"
	UnknownCurrency = "Unknown Currency"
)

// Sale is a single trade-history entry after field extraction.
type Sale struct {
	ID       string `json:"id"`
	ItemName string `json:"item_name"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Market   string `json:"market"`
}

// Price renders the amount and currency the way notifications show them.
func (s Sale) Price() string {
	return s.Amount + " " + s.Currency
}

// SeenSet maps a sale identifier to the time it was first recorded.
// Keys are only ever added.
type SeenSet map[string]time.Time

// Has reports whether key has been recorded.
func (s SeenSet) Has(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s[key]
	return ok
}

// Keys returns the identifiers in no particular order.
func (s SeenSet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeConfigError    Outcome = "config_error"
	OutcomeFetchError     Outcome = "fetch_error"
	OutcomeStructureError Outcome = "structure_error"
	OutcomeStoreError     Outcome = "store_error"
)

// RunResult is the report a run hands back to its trigger.
type RunResult struct {
	RunID    string
	Market   string
	Detected int
	Outcome  Outcome
	Message  string
	// LoadDegraded is set when the seen-set could not be read and the run
	// proceeded with an empty set.
	LoadDegraded bool
	Err          error
	StartedAt    time.Time
	CompletedAt  time.Time
}

// OK reports whether the run completed without aborting.
func (r RunResult) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// StatusCode maps the outcome onto an HTTP status.
func (r RunResult) StatusCode() int {
	if r.OK() {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
