// Package relay forwards service events to Redis pub/sub so that other
// processes can follow message changes.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"messagecore/internal/core"
	"messagecore/pkg/domain"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "messagecore.events"

// Publisher sends a payload to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Notification is the JSON document published for every event.
type Notification struct {
	Path   string        `json:"path"`
	Event  domain.Event  `json:"event"`
	Record domain.Record `json:"record"`
	SentAt time.Time     `json:"sentAt"`
}

// Relay is an event listener that publishes notifications.
type Relay struct {
	pub     Publisher
	channel string
	path    string
	now     func() time.Time
}

// Option configures a Relay.
type Option func(*Relay)

// WithChannel overrides the channel.
func WithChannel(channel string) Option {
	return func(r *Relay) {
		if channel != "" {
			r.channel = channel
		}
	}
}

// WithPath sets the service path included in notifications.
func WithPath(path string) Option {
	return func(r *Relay) { r.path = path }
}

// WithNow overrides the notification clock.
func WithNow(now func() time.Time) Option {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}

// New returns a relay publishing through pub.
func New(pub Publisher, opts ...Option) *Relay {
	r := &Relay{
		pub:     pub,
		channel: DefaultChannel,
		path:    core.DefaultPath,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Channel returns the channel notifications are published on.
func (r *Relay) Channel() string { return r.channel }

// Attach subscribes the relay to every mutation event.
func (r *Relay) Attach(e *core.Emitter) {
	e.OnAll(r.Listen)
}

// Listen is a core.Listener.
func (r *Relay) Listen(ctx context.Context, event domain.Event, record domain.Record) error {
	payload, err := json.Marshal(Notification{Path: r.path, Event: event, Record: record, SentAt: r.now()})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := r.pub.Publish(ctx, r.channel, payload); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event, r.channel, err)
	}
	return nil
}

// RedisPublisher publishes through a go-redis client.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to addr and verifies the connection.
func NewRedisPublisher(ctx context.Context, addr string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &RedisPublisher{client: client}, nil
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// Client exposes the underlying client.
func (p *RedisPublisher) Client() *redis.Client { return p.client }

// Close releases the connection pool.
func (p *RedisPublisher) Close() error { return p.client.Close() }
