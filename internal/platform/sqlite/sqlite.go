package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Register sqlite driver
)

type DB struct {
	*sql.DB
}

// Open opens the cache database. No migration runs here: the rates table's
// column set is only known after the first provider response, so the
// repository creates it at runtime.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// In-memory databases are per-connection; multiple connections each get a
	// separate empty database. Limit to one connection so all queries see the
	// same data.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	return &DB{db}, nil
}
