package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"messagecore/pkg/domain"
)

func TestEmitterDeliversInSubscriptionOrder(t *testing.T) {
	e := NewEmitter(nil)
	var got []int
	for i := 0; i < 4; i++ {
		i := i
		e.On(domain.EventPatched, func(context.Context, domain.Event, domain.Record) error {
			got = append(got, i)
			return nil
		})
	}
	e.On(domain.EventPatched, nil)
	e.Emit(context.Background(), domain.EventPatched, domain.Record{domain.FieldID: int64(1)})
	if len(got) != 4 {
		t.Fatalf("expected 4 deliveries, got %v", got)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order delivery %v", got)
		}
	}
	if e.ListenerCount(domain.EventPatched) != 4 {
		t.Fatalf("nil listener should be ignored")
	}
	e.Emit(context.Background(), domain.EventRemoved, domain.Record{})
}

func TestEmitterIsolatesFailures(t *testing.T) {
	logger := &captureLogger{}
	e := NewEmitter(logger)
	e.On(domain.EventRemoved, func(context.Context, domain.Event, domain.Record) error { return errors.New("bad") })
	e.On(domain.EventRemoved, func(context.Context, domain.Event, domain.Record) error { panic("worse") })
	delivered := false
	e.On(domain.EventRemoved, func(context.Context, domain.Event, domain.Record) error {
		delivered = true
		return nil
	})
	e.Emit(context.Background(), domain.EventRemoved, domain.Record{domain.FieldID: int64(3)})
	if !delivered {
		t.Fatalf("expected delivery after failing listeners")
	}
	if n := logger.count("error", "event listener failed"); n != 2 {
		t.Fatalf("expected 2 logged failures, got %d", n)
	}
	if idx, _ := logger.arg("error", "event listener failed", "listener"); idx != 0 {
		t.Fatalf("expected listener index logged, got %v", idx)
	}
}

func TestEmitterSubscribeDuringEmit(t *testing.T) {
	e := NewEmitter(nil)
	calls := 0
	e.On(domain.EventCreated, func(context.Context, domain.Event, domain.Record) error {
		calls++
		e.On(domain.EventCreated, func(context.Context, domain.Event, domain.Record) error {
			calls += 100
			return nil
		})
		return nil
	})
	e.Emit(context.Background(), domain.EventCreated, domain.Record{})
	if calls != 1 {
		t.Fatalf("listener added during emit must wait for the next event, calls=%d", calls)
	}
	e.Emit(context.Background(), domain.EventCreated, domain.Record{})
	if calls != 102 {
		t.Fatalf("expected late subscriber on next event, calls=%d", calls)
	}
}

func TestEmitterOnAllAndConcurrentSubscribe(t *testing.T) {
	e := NewEmitter(nil)
	var mu sync.Mutex
	seen := map[domain.Event]int{}
	e.OnAll(func(_ context.Context, ev domain.Event, _ domain.Record) error {
		mu.Lock()
		seen[ev]++
		mu.Unlock()
		return nil
	})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.On(domain.EventUpdated, func(context.Context, domain.Event, domain.Record) error { return nil })
			e.Emit(context.Background(), domain.EventUpdated, domain.Record{})
		}()
	}
	wg.Wait()
	for _, ev := range domain.Events {
		if ev == domain.EventUpdated {
			continue
		}
		e.Emit(context.Background(), ev, domain.Record{})
	}
	mu.Lock()
	defer mu.Unlock()
	if seen[domain.EventUpdated] != 8 || seen[domain.EventCreated] != 1 || seen[domain.EventRemoved] != 1 {
		t.Fatalf("unexpected deliveries %v", seen)
	}
	if e.ListenerCount(domain.EventUpdated) != 9 {
		t.Fatalf("expected 9 update listeners, got %d", e.ListenerCount(domain.EventUpdated))
	}
}
