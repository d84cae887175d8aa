package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Open opens the SQLite database at dbPath and creates missing tables.
// ":memory:" opens a private in-memory database.
func Open(dbPath string, logger zerolog.Logger) (*sql.DB, error) {
	dsn := ":memory:"
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?_foreign_keys=1&_busy_timeout=5000"
	}

	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps :memory: databases shared and serialises writers
	database.SetMaxOpenConns(1)

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createTables(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("database initialized")
	return database, nil
}

// createTables creates all necessary tables
func createTables(database *sql.DB) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"presenter_remotes", `
	CREATE TABLE IF NOT EXISTS presenter_remotes (
		id TEXT PRIMARY KEY,
		mac_address TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		press_count INTEGER NOT NULL DEFAULT 0,
		last_press DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`},
		{"presented_rows", `
	CREATE TABLE IF NOT EXISTS presented_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identity TEXT NOT NULL DEFAULT '',
		row_json TEXT NOT NULL,
		slide_id TEXT NOT NULL DEFAULT '',
		presented_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`},
		{"idx_remote_mac", `CREATE INDEX IF NOT EXISTS idx_remote_mac ON presenter_remotes(mac_address);`},
		{"idx_presented_identity", `CREATE INDEX IF NOT EXISTS idx_presented_identity ON presented_rows(identity);`},
	}

	for _, st := range statements {
		if _, err := database.Exec(st.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.name, err)
		}
	}
	return nil
}
