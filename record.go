package tokenauth

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
)

// Record is a user entity as returned by a Repository.
type Record map[string]any

// ID returns the numeric "id" attribute. Numbers decoded from JSON (float64,
// json.Number) and numeric strings are accepted.
func (r Record) ID() (int64, bool) {
	return toInt64(r["id"])
}

// String returns field formatted as text, or "" when absent.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// Without returns a copy of r without fields.
func (r Record) Without(fields ...string) Record {
	out := r.Clone()
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Project returns the listed fields and the names of those r lacks.
func (r Record) Project(fields []string) (Record, []string) {
	out := make(Record, len(fields))
	var missing []string
	for _, f := range fields {
		v, ok := r[f]
		if !ok {
			missing = append(missing, f)
			continue
		}
		out[f] = v
	}
	return out, missing
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return floatID(float64(n))
	case float64:
		return floatID(n)
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	case []byte:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func floatID(f float64) (int64, bool) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
