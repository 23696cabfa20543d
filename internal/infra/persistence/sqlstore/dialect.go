// Package sqlstore implements the record store on database/sql. Mapped
// message fields live in real columns so that filtering, ordering, limit and
// skip run in the database; any other field is kept in a JSON extra column.
package sqlstore

import "strconv"

// Table is the name of the messages table.
const Table = "messages"

// Dialect captures the differences between supported SQL engines.
type Dialect struct {
	Name string
	// Schema creates the messages table when absent.
	Schema string
	// NoLimit is the LIMIT expression used when only an offset is requested.
	NoLimit string

	numbered bool
}

// Placeholder returns the bind parameter for the n-th argument (1-based).
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// SQLite is the dialect for modernc.org/sqlite. AUTOINCREMENT keeps ids from
// being reused after the highest row is deleted.
var SQLite = Dialect{
	Name: "sqlite",
	Schema: `CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT,
		counter INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER,
		patched_at INTEGER,
		updated_at INTEGER,
		extra TEXT NOT NULL DEFAULT '{}'
	)`,
	NoLimit: "-1",
}

// Postgres is the dialect for the pgx database/sql driver.
var Postgres = Dialect{
	Name: "postgres",
	Schema: `CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		text TEXT,
		counter BIGINT NOT NULL DEFAULT 1,
		created_at BIGINT,
		patched_at BIGINT,
		updated_at BIGINT,
		extra TEXT NOT NULL DEFAULT '{}'
	)`,
	NoLimit:  "ALL",
	numbered: true,
}
