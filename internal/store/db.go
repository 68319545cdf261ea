package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS bot_states (
    bot_id TEXT PRIMARY KEY,
    state TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS connected_accounts (
    account_key TEXT PRIMARY KEY,
    provider TEXT NOT NULL DEFAULT 'oanda',
    trail_start_pct REAL,
    trail_offset_pct REAL,
    trading_enabled INTEGER,
    app_base_url TEXT NOT NULL DEFAULT '',
    analysis TEXT,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps the SQL handle shared by the state store and the account records.
type DB struct {
	DB *sql.DB
}

// Open opens (and creates if needed) the SQLite database at path and applies
// the schema. ":memory:" is accepted for tests.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection also keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	if path != ":memory:" {
		db.SetConnMaxIdleTime(time.Hour)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{DB: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
