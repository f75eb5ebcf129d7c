package reconcile

import (
	"strings"

	"github.com/bakkerme/salewatch/internal/core"
	"github.com/tidwall/gjson"
)

// RecordKind tags the result of extracting one sale entry.
type RecordKind int

const (
	// RecordOK means every field was present and well-typed.
	RecordOK RecordKind = iota
	// RecordSkip means the entry has no usable identifier and cannot be deduplicated.
	RecordSkip
	// RecordMalformed means the identifier is usable but at least one display
	// field was the wrong type and got a placeholder.
	RecordMalformed
)

func (k RecordKind) String() string {
	switch k {
	case RecordOK:
		return "ok"
	case RecordSkip:
		return "skip"
	case RecordMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Extraction is the outcome of Extract.
type Extraction struct {
	Kind RecordKind
	Sale core.Sale
	// Reason explains a skip or lists the malformed fields.
	Reason string
}

// Extract pulls a Sale out of a raw trade-history entry. It never fails: a
// missing identifier yields RecordSkip and a bad display field yields
// RecordMalformed with a placeholder in its place.
func Extract(entry gjson.Result, market string) Extraction {
	if !entry.IsObject() {
		return Extraction{Kind: RecordSkip, Reason: "entry is not an object"}
	}

	id, reason := saleKey(entry.Get("id"))
	if reason != "" {
		return Extraction{Kind: RecordSkip, Reason: reason}
	}

	var malformed []string
	// Present values pass through as sent: strings verbatim, numbers as their
	// JSON literal. Only absent or null fields get a placeholder.
	field := func(name string, parent gjson.Result, key, placeholder string) string {
		if parent.Exists() && parent.Type != gjson.Null && !parent.IsObject() {
			malformed = append(malformed, name)
			return placeholder
		}
		value := parent.Get(key)
		switch value.Type {
		case gjson.String:
			return value.Str
		case gjson.Number:
			return value.Raw
		case gjson.Null:
			return placeholder
		default:
			malformed = append(malformed, name)
			return placeholder
		}
	}

	item := entry.Get("item")
	price := entry.Get("price")
	sale := core.Sale{
		ID:       id,
		ItemName: field("item.name", item, "name", core.UnknownItem),
		Amount:   field("price.amount", price, "amount", core.UnknownAmount),
		Currency: field("price.currency", price, "currency", core.UnknownCurrency),
		Market:   market,
	}

	if len(malformed) > 0 {
		return Extraction{Kind: RecordMalformed, Sale: sale, Reason: "malformed " + strings.Join(dedupeStrings(malformed), ", ")}
	}
	return Extraction{Kind: RecordOK, Sale: sale}
}

// saleKey derives the seen-set key. Numeric ids keep their JSON literal.
func saleKey(id gjson.Result) (string, string) {
	switch id.Type {
	case gjson.String:
		if id.Str == "" {
			return "", "empty id"
		}
		return id.Str, ""
	case gjson.Number:
		return id.Raw, ""
	case gjson.Null:
		return "", "missing id"
	default:
		return "", "id is not a string or number"
	}
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
