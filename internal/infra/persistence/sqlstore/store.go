package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"messagecore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.RecordStore = (*Store)(nil)

// Store persists records to a single SQL table.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the clock used to fill missing timestamps on create.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps db. Call EnsureSchema before first use.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the messages table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Schema); err != nil {
		return fmt.Errorf("ensure %s table: %w", Table, err)
	}
	return nil
}

// Dialect reports the SQL dialect in use.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Find runs q against the table.
func (s *Store) Find(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	query, args, err := compileFind(s.dialect, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", Table, err)
	}
	defer func() { _ = rows.Close() }()
	out := []domain.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", Table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", Table, err)
	}
	return out, nil
}

// Get returns the record with id.
func (s *Store) Get(ctx context.Context, id int64) (domain.Record, error) {
	return s.get(ctx, s.db, id)
}

// Create inserts fields as a new row. Missing timestamps are filled with the
// store clock and a missing counter takes the column default.
func (s *Store) Create(ctx context.Context, fields domain.Record) (domain.Record, error) {
	r, err := encodeRecord(fields)
	if err != nil {
		return nil, err
	}
	now := sql.NullInt64{Int64: s.now().UnixNano(), Valid: true}
	for _, ts := range []*sql.NullInt64{&r.createdAt, &r.patchedAt, &r.updatedAt} {
		if !ts.Valid {
			*ts = now
		}
	}
	var rec domain.Record
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		b := &builder{dialect: s.dialect}
		params := make([]string, 0, 6)
		for _, arg := range r.args() {
			params = append(params, b.bind(arg))
		}
		stmt := "INSERT INTO " + Table + " (text, counter, created_at, patched_at, updated_at, extra) VALUES (" +
			strings.Join(params, ", ") + ") RETURNING id"
		var id int64
		if err := tx.QueryRowContext(ctx, stmt, b.args...).Scan(&id); err != nil {
			return fmt.Errorf("insert %s: %w", Table, err)
		}
		rec, err = s.get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update replaces every column except the id.
func (s *Store) Update(ctx context.Context, id int64, fields domain.Record) (domain.Record, error) {
	r, err := encodeRecord(fields)
	if err != nil {
		return nil, err
	}
	var rec domain.Record
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.get(ctx, tx, id); err != nil {
			return err
		}
		if err := s.write(ctx, tx, id, r); err != nil {
			return err
		}
		rec, err = s.get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Patch merges fields onto the stored row.
func (s *Store) Patch(ctx context.Context, id int64, fields domain.Record) (domain.Record, error) {
	var rec domain.Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		current.Merge(fields)
		r, err := encodeRecord(current)
		if err != nil {
			return err
		}
		if err := s.write(ctx, tx, id, r); err != nil {
			return err
		}
		rec, err = s.get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Remove deletes the row and returns the record it held.
func (s *Store) Remove(ctx context.Context, id int64) (domain.Record, error) {
	var rec domain.Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		rec, err = s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+Table+" WHERE id = "+s.dialect.Placeholder(1), id); err != nil {
			return fmt.Errorf("delete %s: %w", Table, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) get(ctx context.Context, q queryer, id int64) (domain.Record, error) {
	stmt := "SELECT " + selectColumns + " FROM " + Table + " WHERE id = " + s.dialect.Placeholder(1)
	rec, err := scanRecord(q.QueryRowContext(ctx, stmt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("select %s %d: %w", Table, id, err)
	}
	return rec, nil
}

func (s *Store) write(ctx context.Context, tx *sql.Tx, id int64, r row) error {
	b := &builder{dialect: s.dialect}
	names := []string{"text", "counter", "created_at", "patched_at", "updated_at", "extra"}
	sets := make([]string, 0, len(names))
	for i, arg := range r.args() {
		sets = append(sets, names[i]+" = "+b.bind(arg))
	}
	stmt := "UPDATE " + Table + " SET " + strings.Join(sets, ", ") + " WHERE id = " + b.bind(id)
	if _, err := tx.ExecContext(ctx, stmt, b.args...); err != nil {
		return fmt.Errorf("update %s %d: %w", Table, id, err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}
