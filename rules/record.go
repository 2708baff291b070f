package rules

import "encoding/json"

// Record is a sparse applicant profile: field name to scalar value
type Record map[string]any

// normalize returns a copy of the record with every numeric value widened to
// float64 so rule expressions compare in a single numeric domain. Null values
// are dropped: a field sent as null reads exactly like a missing one.
func (r Record) normalize() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		if v == nil {
			continue
		}
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return v
}
