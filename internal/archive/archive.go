// Package archive keeps a write-once history of message revisions in blob
// storage. It is attached to the service as an event listener, so archive
// failures are logged by the emitter and never fail the originating call.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"messagecore/internal/blob"
	"messagecore/internal/core"
	"messagecore/pkg/domain"
)

const (
	// DefaultPrefix is the key prefix under which revisions are stored.
	DefaultPrefix = "messages"
	contentType   = "application/json"
	// maxKeyAttempts bounds how far a colliding key is moved forward, one
	// nanosecond per attempt.
	maxKeyAttempts = 64
)

// Revision is one archived record state.
type Revision struct {
	Event      domain.Event  `json:"event"`
	RecordID   int64         `json:"recordId"`
	Record     domain.Record `json:"record"`
	ArchivedAt time.Time     `json:"archivedAt"`
}

// Archiver writes revisions to a blob store.
type Archiver struct {
	store  blob.Store
	prefix string
	events map[domain.Event]struct{}
	now    func() time.Time
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithPrefix changes the key prefix.
func WithPrefix(prefix string) Option {
	return func(a *Archiver) {
		if p := strings.Trim(prefix, "/"); p != "" {
			a.prefix = p
		}
	}
}

// WithEvents restricts which events are archived. The default is patched,
// updated and removed.
func WithEvents(events ...domain.Event) Option {
	return func(a *Archiver) {
		a.events = make(map[domain.Event]struct{}, len(events))
		for _, ev := range events {
			a.events[ev] = struct{}{}
		}
	}
}

// WithNow overrides the clock used for revision keys.
func WithNow(now func() time.Time) Option {
	return func(a *Archiver) {
		if now != nil {
			a.now = now
		}
	}
}

// New returns an archiver over store.
func New(store blob.Store, opts ...Option) *Archiver {
	a := &Archiver{
		store:  store,
		prefix: DefaultPrefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
	WithEvents(domain.EventUpdated, domain.EventPatched, domain.EventRemoved)(a)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Attach subscribes the archiver to every event it archives.
func (a *Archiver) Attach(e *core.Emitter) {
	for _, ev := range domain.Events {
		if _, ok := a.events[ev]; ok {
			e.On(ev, a.Listen)
		}
	}
}

// Listen is a core.Listener that archives record.
func (a *Archiver) Listen(ctx context.Context, event domain.Event, record domain.Record) error {
	if _, ok := a.events[event]; !ok {
		return nil
	}
	_, err := a.Archive(ctx, event, record)
	return err
}

// Archive stores one revision of record and returns its blob info.
func (a *Archiver) Archive(ctx context.Context, event domain.Event, record domain.Record) (blob.Info, error) {
	id, ok := record.ID()
	if !ok {
		return blob.Info{}, domain.InvalidInputError{Field: domain.FieldID, Reason: "archived record has no id"}
	}
	rev := Revision{Event: event, RecordID: id, Record: record, ArchivedAt: a.now()}
	payload, err := json.Marshal(rev)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode revision: %w", err)
	}
	opts := blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"event":     string(event),
			"record-id": strconv.FormatInt(id, 10),
		},
	}
	at := rev.ArchivedAt
	for attempt := 0; ; attempt++ {
		info, err := a.store.Put(ctx, a.key(id, at, event), bytes.NewReader(payload), opts)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, blob.ErrExists) || attempt+1 >= maxKeyAttempts {
			return blob.Info{}, fmt.Errorf("archive record %d: %w", id, err)
		}
		at = at.Add(time.Nanosecond)
	}
}

// History returns the archived revisions of the record with id, oldest first.
func (a *Archiver) History(ctx context.Context, id int64) ([]Revision, error) {
	infos, err := a.store.List(ctx, a.recordPrefix(id))
	if err != nil {
		return nil, fmt.Errorf("list revisions of %d: %w", id, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	out := make([]Revision, 0, len(infos))
	for _, info := range infos {
		rev, err := a.read(ctx, info.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, nil
}

func (a *Archiver) read(ctx context.Context, key string) (Revision, error) {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return Revision{}, fmt.Errorf("read revision %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return Revision{}, fmt.Errorf("read revision %s: %w", key, err)
	}
	var rev Revision
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rev); err != nil {
		return Revision{}, fmt.Errorf("decode revision %s: %w", key, err)
	}
	rev.Record = domain.NormalizeRecord(rev.Record)
	return rev, nil
}

func (a *Archiver) recordPrefix(id int64) string {
	return fmt.Sprintf("%s/%d/", a.prefix, id)
}

// key sorts lexically in archive order: nanos are zero padded to 20 digits.
// Revisions stamped in the same nanosecond are moved to the next free one.
func (a *Archiver) key(id int64, at time.Time, event domain.Event) string {
	return fmt.Sprintf("%s%020d-%s.json", a.recordPrefix(id), at.UnixNano(), event)
}
