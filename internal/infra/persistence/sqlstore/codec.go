package sqlstore

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"messagecore/pkg/domain"
)

type columnKind int

const (
	kindInt columnKind = iota
	kindText
	kindTime
)

type column struct {
	name string
	kind columnKind
}

// columns maps record fields onto table columns.
var columns = map[string]column{
	domain.FieldID:        {name: "id", kind: kindInt},
	domain.FieldText:      {name: "text", kind: kindText},
	domain.FieldCounter:   {name: "counter", kind: kindInt},
	domain.FieldCreatedAt: {name: "created_at", kind: kindTime},
	domain.FieldPatchedAt: {name: "patched_at", kind: kindTime},
	domain.FieldUpdatedAt: {name: "updated_at", kind: kindTime},
}

const selectColumns = "id, text, counter, created_at, patched_at, updated_at, extra"

const defaultCounter int64 = 1

// row is the column-level form of a record.
type row struct {
	text      sql.NullString
	counter   int64
	createdAt sql.NullInt64
	patchedAt sql.NullInt64
	updatedAt sql.NullInt64
	extra     string
}

func (r row) args() []any {
	return []any{r.text, r.counter, r.createdAt, r.patchedAt, r.updatedAt, r.extra}
}

// encodeRecord splits rec into mapped columns and the extra JSON document.
func encodeRecord(rec domain.Record) (row, error) {
	out := row{counter: defaultCounter, extra: "{}"}
	extra := map[string]any{}
	for field, value := range rec {
		switch field {
		case domain.FieldID:
			continue
		case domain.FieldText:
			if value == nil {
				continue
			}
			s, ok := value.(string)
			if !ok {
				return row{}, domain.InvalidInputError{Field: field, Reason: "must be a string"}
			}
			out.text = sql.NullString{String: s, Valid: true}
		case domain.FieldCounter:
			if value == nil {
				continue
			}
			n, ok := domain.ParseInt64(value)
			if !ok {
				return row{}, domain.InvalidInputError{Field: field, Reason: "must be an integer"}
			}
			out.counter = n
		case domain.FieldCreatedAt, domain.FieldPatchedAt, domain.FieldUpdatedAt:
			ts, err := encodeTime(field, value)
			if err != nil {
				return row{}, err
			}
			switch field {
			case domain.FieldCreatedAt:
				out.createdAt = ts
			case domain.FieldPatchedAt:
				out.patchedAt = ts
			default:
				out.updatedAt = ts
			}
		default:
			extra[field] = value
		}
	}
	if len(extra) > 0 {
		data, err := json.Marshal(extra)
		if err != nil {
			return row{}, domain.InvalidInputError{Field: "extra", Reason: err.Error()}
		}
		out.extra = string(data)
	}
	return out, nil
}

func encodeTime(field string, value any) (sql.NullInt64, error) {
	if value == nil {
		return sql.NullInt64{}, nil
	}
	t, ok := domain.ParseTimeValue(value)
	if !ok {
		return sql.NullInt64{}, domain.InvalidInputError{Field: field, Reason: "must be a timestamp"}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (domain.Record, error) {
	var (
		id  int64
		r   row
		raw string
	)
	if err := s.Scan(&id, &r.text, &r.counter, &r.createdAt, &r.patchedAt, &r.updatedAt, &raw); err != nil {
		return nil, err
	}
	rec := domain.Record{}
	if raw != "" && raw != "{}" {
		dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.UseNumber()
		var extra map[string]any
		if err := dec.Decode(&extra); err != nil {
			return nil, fmt.Errorf("decode extra for id %d: %w", id, err)
		}
		for k, v := range extra {
			rec[k] = domain.NormalizeValue(v)
		}
	}
	rec[domain.FieldID] = id
	if r.text.Valid {
		rec[domain.FieldText] = r.text.String
	}
	rec[domain.FieldCounter] = r.counter
	putTime(rec, domain.FieldCreatedAt, r.createdAt)
	putTime(rec, domain.FieldPatchedAt, r.patchedAt)
	putTime(rec, domain.FieldUpdatedAt, r.updatedAt)
	return rec, nil
}

func putTime(rec domain.Record, field string, v sql.NullInt64) {
	if v.Valid {
		rec[field] = time.Unix(0, v.Int64).UTC()
	}
}

// columnValue converts a query operand to the storage form of col.
func columnValue(field string, col column, value any) (any, error) {
	switch col.kind {
	case kindInt:
		if n, ok := domain.AsInt64(value); ok {
			return n, nil
		}
		if f, ok := domain.AsFloat64(value); ok {
			return f, nil
		}
		if s, ok := value.(string); ok {
			s = strings.TrimSpace(s)
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, nil
			}
		}
		return nil, domain.InvalidInputError{Field: field, Reason: "must be a number"}
	case kindTime:
		ts, err := encodeTime(field, value)
		if err != nil {
			return nil, err
		}
		if !ts.Valid {
			return nil, domain.InvalidInputError{Field: field, Reason: "must be a timestamp"}
		}
		return ts.Int64, nil
	default:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return fmt.Sprint(value), nil
	}
}
