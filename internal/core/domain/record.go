package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is a single entity as exchanged with the persistence layer.
type Record map[string]any

// Clone returns a deep copy of the record. Nested maps and slices are copied,
// scalar values are shared.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []Record:
		out := make([]Record, len(t))
		for i, e := range t {
			out[i] = e.Clone()
		}
		return out
	default:
		return v
	}
}

// IDString renders an identifier in the canonical string form used for
// comparison and storage keys. It accepts the shapes identifiers take after
// JSON decoding (json.Number, float64, string) as well as Go integers.
func IDString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	default:
		return fmt.Sprint(t)
	}
}

// PreparedRelation is the membership to assign to one collection
// association once the owning record exists.
type PreparedRelation struct {
	Collection string
	Values     []any
}

// Envelope is the client-facing success payload.
type Envelope map[string]any
