// Package memory provides the in-memory record store used for tests, demos,
// and ephemeral deployments. Records live in insertion order in a slice and
// ids come from a monotonically increasing counter.
package memory

import (
	"context"
	"sync"

	"messagecore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.RecordStore = (*Store)(nil)

type (
	// Record aliases domain.Record for in-memory persistence operations.
	Record = domain.Record
	// Query aliases domain.Query.
	Query = domain.Query
)

// Store keeps records in insertion order. Lookups are linear scans by id.
// All methods lock internally; callers that need read-modify-write atomicity
// across several calls must still serialize access themselves.
type Store struct {
	mu      sync.RWMutex
	records []Record
	lastID  int64
}

// NewStore returns an empty store whose first assigned id is 1.
func NewStore() *Store {
	return &Store{}
}

// Find returns the records selected by q, in insertion order unless q sorts.
func (s *Store) Find(_ context.Context, q Query) ([]Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q.IsZero() {
		return domain.CloneRecords(s.records), nil
	}
	return domain.CloneRecords(q.Apply(s.records)), nil
}

// Get returns the record with the given id.
func (s *Store) Get(_ context.Context, id int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, domain.NotFoundError{ID: id}
	}
	return s.records[idx].Clone(), nil
}

// Create assigns the next id and appends the record. A supplied id is ignored.
func (s *Store) Create(_ context.Context, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	rec := make(Record, len(fields)+1)
	rec.Merge(fields)
	rec[domain.FieldID] = s.lastID
	s.records = append(s.records, rec)
	return rec.Clone(), nil
}

// Update replaces every field except the id.
func (s *Store) Update(_ context.Context, id int64, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, domain.NotFoundError{ID: id}
	}
	rec := make(Record, len(fields)+1)
	rec.Merge(fields)
	rec[domain.FieldID] = id
	s.records[idx] = rec
	return rec.Clone(), nil
}

// Patch merges fields onto the stored record in place.
func (s *Store) Patch(_ context.Context, id int64, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, domain.NotFoundError{ID: id}
	}
	s.records[idx].Merge(fields)
	return s.records[idx].Clone(), nil
}

// Remove deletes the record and returns it.
func (s *Store) Remove(_ context.Context, id int64) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, domain.NotFoundError{ID: id}
	}
	removed := s.records[idx]
	s.records = append(s.records[:idx], s.records[idx+1:]...)
	return removed, nil
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) indexOf(id int64) int {
	for i, r := range s.records {
		if rid, ok := r.ID(); ok && rid == id {
			return i
		}
	}
	return -1
}

// Snapshot is a point-in-time copy of the store, including the id counter so
// that restored stores never reuse ids.
type Snapshot struct {
	Records []Record `json:"records"`
	LastID  int64    `json:"lastId"`
}

// ExportState returns a deep copy of the store contents.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Records: domain.CloneRecords(s.records), LastID: s.lastID}
}

// ImportState replaces the store contents with snapshot. The id counter is
// raised to the largest record id when the snapshot counter lags behind.
// Timestamp fields decoded from JSON as RFC 3339 strings become time.Time again.
func (s *Store) ImportState(snapshot Snapshot) {
	records := make([]Record, 0, len(snapshot.Records))
	last := snapshot.LastID
	for _, r := range snapshot.Records {
		id, ok := r.ID()
		if !ok {
			continue
		}
		rec := domain.NormalizeRecord(r)
		rec[domain.FieldID] = id
		restoreTimestamps(rec)
		records = append(records, rec)
		if id > last {
			last = id
		}
	}
	s.mu.Lock()
	s.records = records
	s.lastID = last
	s.mu.Unlock()
}

func restoreTimestamps(rec Record) {
	for _, field := range []string{domain.FieldCreatedAt, domain.FieldPatchedAt, domain.FieldUpdatedAt} {
		v, ok := rec[field]
		if !ok {
			continue
		}
		if t, ok := domain.ParseTimeValue(v); ok {
			rec[field] = t
		}
	}
}
