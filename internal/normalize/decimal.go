// Package normalize prepares detection documents for storage by replacing
// binary floats with exact decimals.
package normalize

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Value returns a copy of v in which every float32 and float64 has been
// replaced by a decimal.Decimal. Maps and slices are rebuilt; v itself is
// never modified. All other values are returned unchanged.
//
// The decimal is parsed from the float's shortest round-trip string, so
// 12.34 becomes exactly 12.34 rather than the expansion of its binary form.
func Value(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Value(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Value(item)
		}
		return out
	case float64:
		return fromFloat(t, 64)
	case float32:
		return fromFloat(float64(t), 32)
	default:
		return v
	}
}

func fromFloat(f float64, bitSize int) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	d, err := decimal.NewFromString(strconv.FormatFloat(f, 'g', -1, bitSize))
	if err != nil {
		// FormatFloat output always parses; keep the float rather than lose it.
		return f
	}
	return d
}

// Slice normalizes each element of a document list.
func Slice(docs []any) []any {
	return Value(docs).([]any)
}
