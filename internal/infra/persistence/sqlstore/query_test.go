package sqlstore

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"messagecore/pkg/domain"
)

func TestCompileFindDefaultsToIDOrder(t *testing.T) {
	query, args, err := compileFind(SQLite, domain.Query{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := "SELECT " + selectColumns + " FROM messages ORDER BY id ASC"
	if query != want {
		t.Fatalf("unexpected query:\n got %s\nwant %s", query, want)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
}

func TestCompileFindPostgresPlaceholders(t *testing.T) {
	q, err := domain.ParseQuery("counter[$gt]=50&counter[$lt]=70&$sort[counter]=-1&$limit=5&$skip=10")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	query, args, err := compileFind(Postgres, q)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(query, "WHERE counter > $1 AND counter < $2") {
		t.Fatalf("expected numbered placeholders, got %s", query)
	}
	if !strings.HasSuffix(query, "ORDER BY counter DESC, id ASC LIMIT 5 OFFSET 10") {
		t.Fatalf("unexpected ordering clause: %s", query)
	}
	if !reflect.DeepEqual(args, []any{int64(50), int64(70)}) {
		t.Fatalf("unexpected args %#v", args)
	}
}

func TestCompileFindSkipWithoutLimit(t *testing.T) {
	for _, d := range []Dialect{SQLite, Postgres} {
		query, _, err := compileFind(d, domain.Query{Skip: 3})
		if err != nil {
			t.Fatalf("%s compile: %v", d.Name, err)
		}
		if !strings.HasSuffix(query, "LIMIT "+d.NoLimit+" OFFSET 3") {
			t.Fatalf("%s: unexpected window %s", d.Name, query)
		}
	}
}

func TestCompileFindOperators(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	q := domain.Query{}.
		Where(domain.FieldText, domain.OpNe, "x").
		Where(domain.FieldID, domain.OpIn, []any{"1", int64(2)}).
		Where(domain.FieldCreatedAt, domain.OpGte, ts.Format(time.RFC3339Nano)).
		Where(domain.FieldCounter, domain.OpIn, []any{}).
		SortBy(domain.FieldText, false)
	query, args, err := compileFind(SQLite, q)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, fragment := range []string{
		"(text IS NULL OR text <> ?)",
		"id IN (?, ?)",
		"created_at >= ?",
		"1 = 0",
		"ORDER BY (text IS NULL) DESC, text ASC, id ASC",
	} {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected %q in %s", fragment, query)
		}
	}
	want := []any{"x", int64(1), int64(2), ts.UnixNano()}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("unexpected args %#v", args)
	}
}

func TestCompileFindRejectsUnmappedFields(t *testing.T) {
	if _, _, err := compileFind(SQLite, domain.Query{}.Where("evil", domain.OpEq, "1")); !domain.IsInvalidInput(err) {
		t.Fatalf("expected invalid input for filter, got %v", err)
	}
	if _, _, err := compileFind(SQLite, domain.Query{}.SortBy("evil", true)); !domain.IsInvalidInput(err) {
		t.Fatalf("expected invalid input for sort, got %v", err)
	}
	if _, _, err := compileFind(SQLite, domain.Query{}.Where(domain.FieldCounter, domain.OpGt, "many")); !domain.IsInvalidInput(err) {
		t.Fatalf("expected invalid input for non-numeric operand, got %v", err)
	}
}

func TestEncodeRecordSplitsExtra(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 10, time.UTC)
	r, err := encodeRecord(domain.Record{
		domain.FieldID:        int64(9),
		domain.FieldText:      "hello",
		domain.FieldCreatedAt: ts,
		"tags":                []any{"a"},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !r.text.Valid || r.text.String != "hello" {
		t.Fatalf("unexpected text %#v", r.text)
	}
	if r.counter != defaultCounter {
		t.Fatalf("expected default counter, got %d", r.counter)
	}
	if !r.createdAt.Valid || r.createdAt.Int64 != ts.UnixNano() {
		t.Fatalf("unexpected createdAt %#v", r.createdAt)
	}
	if r.patchedAt.Valid {
		t.Fatalf("expected patchedAt unset")
	}
	if r.extra != `{"tags":["a"]}` {
		t.Fatalf("unexpected extra %s", r.extra)
	}
}

func TestEncodeRecordAcceptsIntegralCounterStrings(t *testing.T) {
	r, err := encodeRecord(domain.Record{domain.FieldText: "hi", domain.FieldCounter: " 42 "})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if r.counter != 42 {
		t.Fatalf("expected counter 42, got %d", r.counter)
	}
}

func TestEncodeRecordRejectsBadTypes(t *testing.T) {
	cases := []domain.Record{
		{domain.FieldText: 12},
		{domain.FieldCounter: 1.5},
		{domain.FieldCounter: "five"},
		{domain.FieldUpdatedAt: "yesterday"},
	}
	for _, rec := range cases {
		if _, err := encodeRecord(rec); !domain.IsInvalidInput(err) {
			t.Fatalf("expected invalid input for %v, got %v", rec, err)
		}
	}
}
