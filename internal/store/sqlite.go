package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions is used when the database directory has to be created.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore keeps the directory and ledgers in a SQLite database file.
type SQLiteStore struct {
	sqlStore
}

// sqlitePath extracts the file path from a DSN such as "file:/x/gymbro.db?_foreign_keys=on".
func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// NewSQLiteStore opens (creating if needed) the SQLite database at the configured DSN and
// applies the migrations.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlite store: DSN not set")
	}

	path := sqlitePath(cfg.DSN)
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
			return nil, fmt.Errorf("sqlite store: create directory: %w", err)
		}
	}

	// single writer
	db, err := openSQL("sqlite3", cfg.DSN, sqliteMigrations, func(db *sql.DB) { db.SetMaxOpenConns(1) })
	if err != nil {
		return nil, err
	}
	slog.Info("SQLiteStore ready", "path", path)
	return &SQLiteStore{sqlStore{db: db, backend: "sqlite"}}, nil
}
