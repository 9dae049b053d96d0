package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// BusyTimeoutMillis is how long a writer waits on a locked database before
// the driver reports SQLITE_BUSY.
const BusyTimeoutMillis = 5000

var (
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
)

// SetPath overrides the database file used by GetDB. Must be called before
// the first GetDB call to take effect.
func SetPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	dbPath = path
}

// GetDB returns the database connection, initializing if needed
func GetDB() (*sql.DB, error) {
	mu.Lock()
	defer mu.Unlock()

	if db != nil {
		return db, nil
	}

	path := dbPath
	if path == "" {
		var err error
		path, err = GetDBPath()
		if err != nil {
			return nil, err
		}
	}

	conn, err := Open(path)
	if err != nil {
		return nil, err
	}

	if err := InitSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	db = conn
	return db, nil
}

// Open opens the SQLite database at path with the connection settings the
// repositories rely on: foreign keys (message cascade), a busy timeout,
// immediate write transactions and WAL journaling.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return conn, nil
}

// DSN builds the go-sqlite3 connection string for path. Options are set on
// the DSN so every pooled connection gets them, not just the first.
func DSN(path string) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", fmt.Sprint(BusyTimeoutMillis))
	params.Set("_txlock", "immediate")
	params.Set("_journal_mode", "WAL")
	return "file:" + path + "?" + params.Encode()
}

// Close closes the database connection
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// GetDBPath returns the default path to the database file
func GetDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".inbox", "inbox.db"), nil
}
