package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"messagecore/internal/core"
	"messagecore/pkg/domain"
)

type capturePublisher struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

type sent struct {
	channel string
	payload []byte
}

func (c *capturePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sent{channel: channel, payload: append([]byte(nil), payload...)})
	return nil
}

func TestRelayPublishesEveryMutation(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := New(pub, WithChannel("chat"), WithNow(func() time.Time { return fixed }))

	svc := core.NewInMemoryService(core.WithHooks(core.MessageHooks(core.VariantMemory)))
	r.Attach(svc.Emitter())

	rec, err := svc.Create(ctx, domain.Record{"text": "hi"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id, _ := rec.ID()
	if _, err := svc.Patch(ctx, id, domain.Record{"text": "hey"}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if _, err := svc.Find(ctx, domain.Query{}); err != nil {
		t.Fatalf("find: %v", err)
	}
	if _, err := svc.Remove(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if len(pub.sent) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(pub.sent))
	}
	want := []domain.Event{domain.EventCreated, domain.EventPatched, domain.EventRemoved}
	for i, s := range pub.sent {
		if s.channel != "chat" {
			t.Fatalf("unexpected channel %q", s.channel)
		}
		var n Notification
		if err := json.Unmarshal(s.payload, &n); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if n.Event != want[i] || n.Path != "messages" || !n.SentAt.Equal(fixed) {
			t.Fatalf("unexpected notification %+v", n)
		}
	}
}

func TestRelayWrapsPublishErrors(t *testing.T) {
	boom := errors.New("down")
	r := New(&capturePublisher{err: boom})
	err := r.Listen(context.Background(), domain.EventCreated, domain.Record{"id": int64(1)})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
	if r.Channel() != DefaultChannel {
		t.Fatalf("unexpected default channel %q", r.Channel())
	}
}

func TestRedisPublisherDeliversToSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	pub, err := NewRedisPublisher(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = pub.Close() }()

	sub := pub.Client().Subscribe(ctx, DefaultChannel)
	defer func() { _ = sub.Close() }()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	r := New(pub)
	if err := r.Listen(ctx, domain.EventCreated, domain.Record{"id": int64(7), "text": "x"}); err != nil {
		t.Fatalf("listen: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var n Notification
		if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if n.Event != domain.EventCreated || n.Record["text"] != "x" {
			t.Fatalf("unexpected notification %+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for notification")
	}
}

func TestNewRedisPublisherFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisPublisher(ctx, "127.0.0.1:1"); err == nil {
		t.Fatalf("expected ping failure")
	}
}
