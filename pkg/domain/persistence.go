package domain

import "context"

// RecordStore is the persistence contract behind the service facade. Every
// implementation assigns strictly increasing ids that are never reused and
// returns clones that callers may freely mutate.
type RecordStore interface {
	// Find returns the records selected by q. An empty query returns every
	// record in insertion order.
	Find(ctx context.Context, q Query) ([]Record, error)
	// Get returns the record with the given id or a NotFoundError.
	Get(ctx context.Context, id int64) (Record, error)
	// Create assigns the next id, overwriting any supplied id, and stores fields.
	Create(ctx context.Context, fields Record) (Record, error)
	// Update replaces every field of the record except its id.
	Update(ctx context.Context, id int64, fields Record) (Record, error)
	// Patch merges fields onto the record; fields not named keep their values.
	Patch(ctx context.Context, id int64, fields Record) (Record, error)
	// Remove deletes the record and returns it as it was before removal.
	Remove(ctx context.Context, id int64) (Record, error)
}

// Closer is implemented by stores holding external resources.
type Closer interface {
	Close() error
}
