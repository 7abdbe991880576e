package memory

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DSN selects the in-memory backend in place of a Postgres connection string.
const DSN = "memory://"

// OpenTxDB returns an empty in-memory SQLite handle. Services still open
// transactions through it, while all rows live in the Store.
func OpenTxDB() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open in-memory db: %w", err)
	}
	return db, nil
}
