// Package store is the local cache store: an embedded SQLite database
// holding cached messages, participants and message operations. A store
// is either durable (one file per cache name) or ephemeral (name-scoped
// in-memory); both modes run the same schema and SQL.
package store

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

const pragmas = "_busy_timeout=5000&_foreign_keys=on"

// Store wraps a SQLite connection for one named cache database.
type Store struct {
	*sql.DB
}

// Open creates a durable store at the given file path, with WAL mode and
// recommended pragmas.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&"+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{db}, nil
}

// OpenInMemory creates an ephemeral name-scoped store. Two opens with the
// same name within one process share the database.
func OpenInMemory(name string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", url.PathEscape(name), pragmas)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open in-memory db: %w", err)
	}
	// A shared in-memory database lives only while a connection is open;
	// pin a single connection so the pool never drops the last one. This
	// also serializes writes, matching the single-owner model.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping in-memory db: %w", err)
	}
	return &Store{db}, nil
}
