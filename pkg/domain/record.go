// Package domain defines the record, query, and error primitives shared by the
// messagecore service facade and its persistence backends.
package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Well-known record field names.
const (
	// FieldID is the server-assigned integer identifier.
	FieldID = "id"
	// FieldText carries the message body.
	FieldText = "text"
	// FieldCounter is the optional numeric field kept by the database variant.
	FieldCounter = "counter"
	// FieldCreatedAt is stamped once when a record is created.
	FieldCreatedAt = "createdAt"
	// FieldPatchedAt is stamped on create and on every patch.
	FieldPatchedAt = "patchedAt"
	// FieldUpdatedAt is stamped on create and on every full update.
	FieldUpdatedAt = "updatedAt"
)

// Record is a single stored entity: a mapping from field name to value that
// always carries an integer id once persisted.
type Record map[string]any

// ID returns the record identifier and whether one is present.
func (r Record) ID() (int64, bool) {
	if r == nil {
		return 0, false
	}
	v, ok := r[FieldID]
	if !ok {
		return 0, false
	}
	id, ok := AsInt64(v)
	return id, ok
}

// Text returns the text field when it holds a string.
func (r Record) Text() (string, bool) {
	s, ok := r[FieldText].(string)
	return s, ok
}

// Time returns a timestamp field when it holds a time.Time.
func (r Record) Time(field string) (time.Time, bool) {
	t, ok := r[field].(time.Time)
	return t, ok
}

// Clone returns a shallow copy of the record. Slice and map values are copied
// one level deep so callers cannot reach stored state through them.
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

// Merge copies every field of patch onto r, skipping the id field.
func (r Record) Merge(patch Record) {
	for k, v := range patch {
		if k == FieldID {
			continue
		}
		r[k] = cloneValue(v)
	}
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(val))
		for k, inner := range val {
			cp[k] = cloneValue(inner)
		}
		return cp
	case Record:
		return val.Clone()
	case []any:
		cp := make([]any, len(val))
		for i, inner := range val {
			cp[i] = cloneValue(inner)
		}
		return cp
	default:
		return v
	}
}

// CloneRecords clones every record in the slice.
func CloneRecords(in []Record) []Record {
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// AsInt64 converts integral numeric values to int64. Non-integral floats and
// non-numeric values report false.
func AsInt64(v any) (int64, bool) {
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
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return floatToInt64(f)
		}
	}
	return 0, false
}

// ParseInt64 is AsInt64 that also accepts integral strings, as produced by
// url-encoded form bodies.
func ParseInt64(v any) (int64, bool) {
	if s, ok := v.(string); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return n, err == nil
	}
	return AsInt64(v)
}

// AsFloat64 converts any numeric value to float64.
func AsFloat64(v any) (float64, bool) {
	if i, ok := AsInt64(v); ok {
		return float64(i), true
	}
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// NormalizeValue folds decoded JSON numbers into int64 when they are integral
// and recurses into nested maps and slices.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case float64, float32, json.Number:
		if i, ok := AsInt64(val); ok {
			return i
		}
		if f, ok := AsFloat64(val); ok {
			return f
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = NormalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = NormalizeValue(inner)
		}
		return out
	default:
		return v
	}
}

// NormalizeRecord applies NormalizeValue to every field.
func NormalizeRecord(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = NormalizeValue(v)
	}
	return out
}
