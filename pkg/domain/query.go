package domain

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Operator is a comparison applied to a single field.
type Operator string

// Supported query operators, named as they appear in query strings.
const (
	OpEq  Operator = "$eq"
	OpNe  Operator = "$ne"
	OpGt  Operator = "$gt"
	OpGte Operator = "$gte"
	OpLt  Operator = "$lt"
	OpLte Operator = "$lte"
	OpIn  Operator = "$in"
)

var knownOperators = map[Operator]struct{}{
	OpEq: {}, OpNe: {}, OpGt: {}, OpGte: {}, OpLt: {}, OpLte: {}, OpIn: {},
}

// Condition restricts a query to records whose field satisfies Op against Value.
// For OpIn, Value is a []any.
type Condition struct {
	Field string
	Op    Operator
	Value any
}

// SortKey orders results by a field.
type SortKey struct {
	Field string
	Desc  bool
}

// Query selects, orders, and windows records. Limit and Skip of zero mean unset.
type Query struct {
	Conditions []Condition
	Sort       []SortKey
	Limit      int
	Skip       int
}

// Where returns a copy of q with an additional condition.
func (q Query) Where(field string, op Operator, value any) Query {
	q.Conditions = append(append([]Condition(nil), q.Conditions...), Condition{Field: field, Op: op, Value: value})
	return q
}

// SortBy returns a copy of q with an additional sort key.
func (q Query) SortBy(field string, desc bool) Query {
	q.Sort = append(append([]SortKey(nil), q.Sort...), SortKey{Field: field, Desc: desc})
	return q
}

// WithLimit returns a copy of q with the limit set.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// WithSkip returns a copy of q with the skip offset set.
func (q Query) WithSkip(n int) Query {
	q.Skip = n
	return q
}

// IsZero reports whether q selects every record without ordering or windowing.
func (q Query) IsZero() bool {
	return len(q.Conditions) == 0 && len(q.Sort) == 0 && q.Limit == 0 && q.Skip == 0
}

// Validate checks operators and windowing values.
func (q Query) Validate() error {
	if q.Limit < 0 {
		return InvalidInputError{Field: "$limit", Reason: "must not be negative"}
	}
	if q.Skip < 0 {
		return InvalidInputError{Field: "$skip", Reason: "must not be negative"}
	}
	for _, c := range q.Conditions {
		if c.Field == "" {
			return InvalidInputError{Reason: "query condition without field"}
		}
		if _, ok := knownOperators[c.Op]; !ok {
			return InvalidInputError{Field: c.Field, Reason: fmt.Sprintf("unsupported operator %q", c.Op)}
		}
		if c.Op == OpIn {
			if _, ok := c.Value.([]any); !ok {
				return InvalidInputError{Field: c.Field, Reason: "$in requires a list"}
			}
		}
	}
	for _, s := range q.Sort {
		if s.Field == "" {
			return InvalidInputError{Field: "$sort", Reason: "sort key without field"}
		}
	}
	return nil
}

// Match reports whether r satisfies every condition of q.
func (q Query) Match(r Record) bool {
	for _, c := range q.Conditions {
		if !c.match(r) {
			return false
		}
	}
	return true
}

func (c Condition) match(r Record) bool {
	v, present := r[c.Field]
	switch c.Op {
	case OpEq:
		return present && equalValues(v, c.Value)
	case OpNe:
		return !present || !equalValues(v, c.Value)
	case OpIn:
		list, _ := c.Value.([]any)
		for _, candidate := range list {
			if present && equalValues(v, candidate) {
				return true
			}
		}
		return false
	}
	if !present {
		return false
	}
	cmp, ok := CompareValues(v, c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

func equalValues(a, b any) bool {
	cmp, ok := CompareValues(a, b)
	if ok {
		return cmp == 0
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// CompareValues orders two field values. Strings taken from query strings are
// coerced to the type of the stored value: numbers, RFC 3339 timestamps, and
// booleans. The second result is false when the values are not comparable.
func CompareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return 0, true
		}
		return 0, false
	}
	if at, ok := asTime(a); ok {
		bt, ok := ParseTimeValue(b)
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}
	if af, ok := AsFloat64(a); ok {
		bf, ok := asNumber(b)
		if !ok {
			return 0, false
		}
		return compareFloat(af, bf), true
	}
	if ab, ok := a.(bool); ok {
		bb, ok := asBool(b)
		if !ok {
			return 0, false
		}
		switch {
		case ab == bb:
			return 0, true
		case !ab:
			return -1, true
		default:
			return 1, true
		}
	}
	if as, ok := a.(string); ok {
		if bf, ok := AsFloat64(b); ok {
			af, err := strconv.ParseFloat(as, 64)
			if err != nil {
				return 0, false
			}
			return compareFloat(af, bf), true
		}
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asNumber(v any) (float64, bool) {
	if f, ok := AsFloat64(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}

// ParseTimeValue accepts time.Time values and RFC 3339 strings.
func ParseTimeValue(v any) (time.Time, bool) {
	if t, ok := asTime(v); ok {
		return t, true
	}
	if s, ok := v.(string); ok {
		t, err := time.Parse(time.RFC3339Nano, s)
		return t, err == nil
	}
	return time.Time{}, false
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	}
	return false, false
}

// Apply filters, sorts, and windows records in memory. Without sort keys the
// input order is preserved.
func (q Query) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	if len(q.Sort) > 0 {
		SortRecords(out, q.Sort)
	}
	if q.Skip > 0 {
		if q.Skip >= len(out) {
			return out[:0]
		}
		out = out[q.Skip:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out
}

// SortRecords stably orders records by keys. Records missing a field sort first.
func SortRecords(records []Record, keys []SortKey) {
	sort.SliceStable(records, func(i, j int) bool {
		for _, k := range keys {
			a, aok := records[i][k.Field]
			b, bok := records[j][k.Field]
			var cmp int
			switch {
			case !aok && !bok:
				cmp = 0
			case !aok:
				cmp = -1
			case !bok:
				cmp = 1
			default:
				c, ok := CompareValues(a, b)
				if !ok {
					c = strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
				}
				cmp = c
			}
			if cmp == 0 {
				continue
			}
			if k.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// Paginate bounds the number of records a find may return.
type Paginate struct {
	Default int
	Max     int
}

// Enabled reports whether any bound is configured.
func (p Paginate) Enabled() bool {
	return p.Default > 0 || p.Max > 0
}

// Apply fills a missing limit with Default and clamps it to Max.
func (p Paginate) Apply(q Query) Query {
	if q.Limit == 0 && p.Default > 0 {
		q.Limit = p.Default
	}
	if p.Max > 0 && (q.Limit == 0 || q.Limit > p.Max) {
		q.Limit = p.Max
	}
	return q
}

// ParseQuery reads a query string in the bracketed style used by REST clients:
//
//	text=hello&counter[$gt]=50&counter[$lt]=70&$sort[counter]=1&$sort[id]=-1&$limit=20&$skip=10
//
// Parameter order is preserved so that sort keys keep their precedence.
func ParseQuery(raw string) (Query, error) {
	var q Query
	if raw == "" {
		return q, nil
	}
	inIndex := map[string]int{}
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return Query{}, InvalidInputError{Field: rawKey, Reason: "malformed query key"}
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return Query{}, InvalidInputError{Field: key, Reason: "malformed query value"}
		}
		base, sub, hasSub := splitBracket(key)
		switch {
		case base == "$limit":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Query{}, InvalidInputError{Field: "$limit", Reason: "must be an integer"}
			}
			q.Limit = n
		case base == "$skip":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Query{}, InvalidInputError{Field: "$skip", Reason: "must be an integer"}
			}
			q.Skip = n
		case base == "$sort":
			if !hasSub {
				return Query{}, InvalidInputError{Field: "$sort", Reason: "expected $sort[field]"}
			}
			dir, err := strconv.Atoi(value)
			if err != nil || (dir != 1 && dir != -1) {
				return Query{}, InvalidInputError{Field: "$sort", Reason: "direction must be 1 or -1"}
			}
			q.Sort = append(q.Sort, SortKey{Field: sub, Desc: dir < 0})
		case strings.HasPrefix(base, "$"):
			return Query{}, InvalidInputError{Field: base, Reason: "unsupported query parameter"}
		case !hasSub:
			q.Conditions = append(q.Conditions, Condition{Field: base, Op: OpEq, Value: value})
		default:
			op := Operator(strings.TrimSuffix(sub, "]["))
			if op == OpIn {
				if idx, ok := inIndex[base]; ok {
					list := q.Conditions[idx].Value.([]any)
					q.Conditions[idx].Value = append(list, value)
					continue
				}
				inIndex[base] = len(q.Conditions)
				q.Conditions = append(q.Conditions, Condition{Field: base, Op: OpIn, Value: []any{value}})
				continue
			}
			q.Conditions = append(q.Conditions, Condition{Field: base, Op: op, Value: value})
		}
	}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// splitBracket turns "counter[$gt]" into ("counter", "$gt", true). A trailing
// "[]" after the operator is kept in sub for list operators.
func splitBracket(key string) (string, string, bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, "", false
	}
	return key[:open], strings.TrimSuffix(key[open+1:], "]"), true
}
