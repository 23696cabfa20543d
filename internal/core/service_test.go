package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"messagecore/pkg/domain"
)

func TestServiceEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	svc := newMessageService()

	first, err := svc.Create(ctx, domain.Record{domain.FieldText: "First message"})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := svc.Create(ctx, domain.Record{domain.FieldText: "Second message"})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if id, _ := first.ID(); id != 1 {
		t.Fatalf("expected first id 1, got %d", id)
	}
	if id, _ := second.ID(); id != 2 {
		t.Fatalf("expected second id 2, got %d", id)
	}

	if _, err := svc.Patch(ctx, 1, domain.Record{domain.FieldText: "updated"}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	got, err := svc.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got[domain.FieldText] != "updated" {
		t.Fatalf("expected patched text, got %v", got[domain.FieldText])
	}

	all, err := svc.Find(ctx, domain.Query{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if id, _ := all[0].ID(); id != 1 {
		t.Fatalf("expected id 1 first, got %d", id)
	}
}

func TestServiceCreateIDsStrictlyIncrease(t *testing.T) {
	ctx := context.Background()
	svc := newMessageService()
	var last int64
	for i := 0; i < 20; i++ {
		rec, err := svc.Create(ctx, domain.Record{domain.FieldText: "m"})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		id, _ := rec.ID()
		if id <= last {
			t.Fatalf("id %d not greater than %d", id, last)
		}
		last = id
		got, err := svc.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %d: %v", id, err)
		}
		if gid, _ := got.ID(); gid != id {
			t.Fatalf("get returned id %d for %d", gid, id)
		}
	}
}

func TestServiceCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := newMessageService()
	for _, data := range []domain.Record{
		{domain.FieldText: ""},
		{domain.FieldText: "   "},
		{},
		nil,
		{domain.FieldText: nil},
		{domain.FieldText: 42},
	} {
		if _, err := svc.Create(ctx, data); !domain.IsInvalidInput(err) {
			t.Fatalf("create(%v): expected invalid input, got %v", data, err)
		}
	}
	if all, _ := svc.Find(ctx, domain.Query{}); len(all) != 0 {
		t.Fatalf("failed creates must not reach the store, found %d", len(all))
	}

	rec, err := svc.Create(ctx, domain.Record{domain.FieldText: "hi", "evil": true, domain.FieldCounter: 5})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := rec["evil"]; ok {
		t.Fatalf("expected extraneous field discarded: %v", rec)
	}
	if _, ok := rec[domain.FieldCounter]; ok {
		t.Fatalf("memory variant must drop counter: %v", rec)
	}
}

func TestServiceDatabaseVariantForwardsCounter(t *testing.T) {
	svc := NewInMemoryService(WithHooks(MessageHooks(VariantDatabase)))
	rec, err := svc.Create(context.Background(), domain.Record{domain.FieldText: "hi", domain.FieldCounter: float64(7)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec[domain.FieldCounter] != int64(7) {
		t.Fatalf("expected counter 7, got %#v", rec[domain.FieldCounter])
	}
	if _, err := svc.Create(context.Background(), domain.Record{domain.FieldText: "hi", domain.FieldCounter: "x"}); !domain.IsInvalidInput(err) {
		t.Fatalf("expected invalid counter rejected, got %v", err)
	}
}

func TestServiceTimestamps(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	now := created
	svc := newMessageService(WithClock(ClockFunc(func() time.Time { return now })))

	rec, err := svc.Create(ctx, domain.Record{domain.FieldText: "a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c, _ := rec.Time(domain.FieldCreatedAt)
	p, _ := rec.Time(domain.FieldPatchedAt)
	u, _ := rec.Time(domain.FieldUpdatedAt)
	if !c.Equal(created) || !c.Equal(p) || !c.Equal(u) {
		t.Fatalf("expected identical create timestamps, got %v %v %v", c, p, u)
	}

	now = created.Add(time.Minute)
	patched, err := svc.Patch(ctx, 1, domain.Record{domain.FieldText: "b"})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if ts, _ := patched.Time(domain.FieldPatchedAt); !ts.Equal(now) {
		t.Fatalf("expected patchedAt %v, got %v", now, ts)
	}
	if ts, _ := patched.Time(domain.FieldUpdatedAt); !ts.Equal(created) {
		t.Fatalf("patch must not touch updatedAt, got %v", ts)
	}

	now = created.Add(2 * time.Minute)
	updated, err := svc.Update(ctx, 1, domain.Record{domain.FieldText: "c"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ts, _ := updated.Time(domain.FieldUpdatedAt); !ts.Equal(now) {
		t.Fatalf("expected updatedAt %v, got %v", now, ts)
	}
	if _, ok := updated[domain.FieldCreatedAt]; ok {
		t.Fatalf("update replaces every field: %v", updated)
	}
}

func TestServicePatchPreservesOtherFields(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	if _, err := svc.Create(ctx, domain.Record{"a": int64(1), "b": "two"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	rec, err := svc.Patch(ctx, 1, domain.Record{"b": "three", "c": true})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if rec["a"] != int64(1) || rec["b"] != "three" || rec["c"] != true {
		t.Fatalf("unexpected patch result %v", rec)
	}
}

func TestServiceRemove(t *testing.T) {
	ctx := context.Background()
	svc := newMessageService()
	_, _ = svc.Create(ctx, domain.Record{domain.FieldText: "keep"})
	_, _ = svc.Create(ctx, domain.Record{domain.FieldText: "drop"})
	removed, err := svc.Remove(ctx, 2)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed[domain.FieldText] != "drop" {
		t.Fatalf("unexpected removed record %v", removed)
	}
	if _, err := svc.Get(ctx, 2); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	all, _ := svc.Find(ctx, domain.Query{})
	for _, rec := range all {
		if id, _ := rec.ID(); id == 2 {
			t.Fatalf("removed record still listed")
		}
	}
}

func TestServiceNotFoundPropagates(t *testing.T) {
	ctx := context.Background()
	svc := newMessageService()
	checks := map[string]func() error{
		"get":    func() error { _, err := svc.Get(ctx, 9); return err },
		"patch":  func() error { _, err := svc.Patch(ctx, 9, domain.Record{"x": 1}); return err },
		"update": func() error { _, err := svc.Update(ctx, 9, domain.Record{"x": 1}); return err },
		"remove": func() error { _, err := svc.Remove(ctx, 9); return err },
	}
	for name, call := range checks {
		err := call()
		var nf domain.NotFoundError
		if !errors.As(err, &nf) || nf.ID != 9 {
			t.Fatalf("%s: expected NotFoundError{9}, got %v", name, err)
		}
	}
}

func TestServiceListenersRunInOrderOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	svc := newMessageService()
	var order []string
	svc.On(domain.EventCreated, func(_ context.Context, _ domain.Event, _ domain.Record) error {
		order = append(order, "L1")
		return nil
	})
	svc.On(domain.EventCreated, func(_ context.Context, _ domain.Event, _ domain.Record) error {
		order = append(order, "L2")
		return nil
	})

	if _, err := svc.Create(ctx, domain.Record{}); err == nil {
		t.Fatalf("expected validation failure")
	}
	if len(order) != 0 {
		t.Fatalf("failed create emitted events: %v", order)
	}
	if _, err := svc.Create(ctx, domain.Record{domain.FieldText: "ok"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(order) != 2 || order[0] != "L1" || order[1] != "L2" {
		t.Fatalf("expected L1 then L2, got %v", order)
	}
}

func TestServiceEmitsMutationEvents(t *testing.T) {
	ctx := context.Background()
	svc := newMessageService()
	var seen []domain.Event
	svc.Emitter().OnAll(func(_ context.Context, ev domain.Event, rec domain.Record) error {
		seen = append(seen, ev)
		if _, ok := rec.ID(); !ok {
			t.Errorf("event %s without id", ev)
		}
		return nil
	})
	_, _ = svc.Create(ctx, domain.Record{domain.FieldText: "a"})
	_, _ = svc.Patch(ctx, 1, domain.Record{domain.FieldText: "b"})
	_, _ = svc.Update(ctx, 1, domain.Record{domain.FieldText: "c"})
	_, _ = svc.Get(ctx, 1)
	_, _ = svc.Find(ctx, domain.Query{})
	_, _ = svc.Remove(ctx, 1)
	want := []domain.Event{domain.EventCreated, domain.EventPatched, domain.EventUpdated, domain.EventRemoved}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}
}

func TestServiceListenerFailureDoesNotAffectResult(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	svc := newMessageService(WithLogger(logger))
	reached := false
	svc.On(domain.EventCreated, func(context.Context, domain.Event, domain.Record) error {
		return errors.New("listener broke")
	})
	svc.On(domain.EventCreated, func(context.Context, domain.Event, domain.Record) error {
		panic("listener exploded")
	})
	svc.On(domain.EventCreated, func(_ context.Context, _ domain.Event, rec domain.Record) error {
		reached = true
		rec[domain.FieldText] = "tampered"
		return nil
	})

	rec, err := svc.Create(ctx, domain.Record{domain.FieldText: "safe"})
	if err != nil {
		t.Fatalf("listener failure leaked to caller: %v", err)
	}
	if !reached {
		t.Fatalf("later listener skipped after failure")
	}
	if rec[domain.FieldText] != "safe" {
		t.Fatalf("listener mutation reached caller: %v", rec)
	}
	stored, _ := svc.Get(ctx, 1)
	if stored[domain.FieldText] != "safe" {
		t.Fatalf("listener mutation reached store: %v", stored)
	}
	if n := logger.count("error", "event listener failed"); n != 2 {
		t.Fatalf("expected 2 listener failures logged, got %d", n)
	}
}

func TestServiceErrorObserverCalledOncePerFailure(t *testing.T) {
	ctx := context.Background()
	obs := &captureObserver{}
	svc := newMessageService(WithErrorObserver(obs.observe), WithPath("chat"))

	_, createErr := svc.Create(ctx, domain.Record{})
	_, getErr := svc.Get(ctx, 3)
	if _, err := svc.Create(ctx, domain.Record{domain.FieldText: "fine"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(obs.calls) != 2 {
		t.Fatalf("expected 2 observed errors, got %d", len(obs.calls))
	}
	if obs.calls[0].path != "chat" || obs.calls[0].method != domain.MethodCreate || obs.calls[0].err != createErr {
		t.Fatalf("unexpected first observation %+v", obs.calls[0])
	}
	if obs.calls[1].method != domain.MethodGet || obs.calls[1].err != getErr {
		t.Fatalf("unexpected second observation %+v", obs.calls[1])
	}
	if svc.Path() != "chat" {
		t.Fatalf("expected path chat, got %s", svc.Path())
	}
}

func TestServiceDefaultObserverLogs(t *testing.T) {
	logger := &captureLogger{}
	svc := newMessageService(WithLogger(logger))
	_, _ = svc.Get(context.Background(), 1)
	if logger.count("error", "service method failed") != 1 {
		t.Fatalf("expected failure logged once, got %+v", logger.entries)
	}
	if path, _ := logger.arg("error", "service method failed", "path"); path != DefaultPath {
		t.Fatalf("expected path %s, got %v", DefaultPath, path)
	}
}

func TestServiceReturnsClones(t *testing.T) {
	ctx := context.Background()
	svc := newMessageService()
	input := domain.Record{domain.FieldText: "orig"}
	rec, _ := svc.Create(ctx, input)
	input[domain.FieldText] = "changed input"
	rec[domain.FieldText] = "changed result"
	got, _ := svc.Get(ctx, 1)
	if got[domain.FieldText] != "orig" {
		t.Fatalf("stored record aliased caller data: %v", got)
	}
}

func TestServiceFindPagination(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(WithPaginate(domain.Paginate{Default: 5, Max: 10}))
	for i := 0; i < 30; i++ {
		if _, err := svc.Create(ctx, domain.Record{domain.FieldCounter: int64(i)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	page, err := svc.Find(ctx, domain.Query{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(page) != 5 {
		t.Fatalf("expected default page of 5, got %d", len(page))
	}
	page, _ = svc.Find(ctx, domain.Query{Limit: 50})
	if len(page) != 10 {
		t.Fatalf("expected max page of 10, got %d", len(page))
	}
	page, _ = svc.Find(ctx, domain.Query{Skip: 28, Limit: 5})
	if len(page) != 2 {
		t.Fatalf("expected trailing page of 2, got %d", len(page))
	}
}

func TestOpenStoreMemoryAndUnknown(t *testing.T) {
	store, err := OpenStore(context.Background(), StorageOptions{})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if store == nil {
		t.Fatalf("expected store")
	}
	if _, err := OpenStore(context.Background(), StorageOptions{Driver: "mongo"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if StorageMemory.SQLBacked() || !StorageSQLite.SQLBacked() || !StoragePostgres.SQLBacked() {
		t.Fatalf("unexpected SQLBacked classification")
	}
}
