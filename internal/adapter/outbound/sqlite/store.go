// Package sqlite provides sqlite-backed implementations of the outbound
// store ports.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS workflows (
	id                    TEXT PRIMARY KEY,
	name                  TEXT NOT NULL DEFAULT '',
	description           TEXT NOT NULL DEFAULT '',
	with_review           TEXT NOT NULL,
	with_review_mode      TEXT NOT NULL,
	without_review        TEXT NOT NULL,
	without_review_mode   TEXT NOT NULL,
	end_rule_update       TEXT NOT NULL,
	end_rule_update_mode  TEXT NOT NULL,
	auto_approve          TEXT NOT NULL,
	auto_approve_mode     TEXT NOT NULL,
	counted_votes         TEXT NOT NULL,
	counted_votes_mode    TEXT NOT NULL,
	group_exclusions      TEXT NOT NULL DEFAULT '[]',
	group_exclusions_mode TEXT NOT NULL DEFAULT 'default',
	user_exclusions       TEXT NOT NULL DEFAULT '[]',
	user_exclusions_mode  TEXT NOT NULL DEFAULT 'default',
	tests                 TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	workflow_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS branches (
	project_id  TEXT NOT NULL,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	workflow_id TEXT NOT NULL DEFAULT '',
	position    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (project_id, id)
);

CREATE TABLE IF NOT EXISTS reviews (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	state          TEXT NOT NULL,
	author         TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	pending_commit INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS review_changes (
	review_id INTEGER NOT NULL,
	change_id INTEGER NOT NULL,
	PRIMARY KEY (review_id, change_id)
);

CREATE TABLE IF NOT EXISTS review_commits (
	review_id INTEGER NOT NULL,
	change_id INTEGER NOT NULL,
	PRIMARY KEY (review_id, change_id)
);

CREATE TABLE IF NOT EXISTS changes (
	id          INTEGER PRIMARY KEY,
	user        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS change_projects (
	change_id  INTEGER NOT NULL,
	project_id TEXT NOT NULL,
	branch_id  TEXT NOT NULL,
	PRIMARY KEY (change_id, project_id, branch_id)
);

CREATE TABLE IF NOT EXISTS test_runs (
	review_id INTEGER NOT NULL,
	test_id   TEXT NOT NULL,
	status    TEXT NOT NULL,
	PRIMARY KEY (review_id, test_id)
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id TEXT NOT NULL,
	user_id  TEXT NOT NULL,
	PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS content_digests (
	kind   TEXT NOT NULL,
	id     INTEGER NOT NULL,
	digest TEXT NOT NULL,
	PRIMARY KEY (kind, id)
);
`

// Store is a sqlite-backed implementation of every outbound store port.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and applies
// the schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}
	// modernc sqlite serializes on a single connection; more would race on
	// in-memory databases and buy nothing for file ones at this scale.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(b), nil
}

func unmarshalJSON(data string, v any) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

// isNoRows reports whether err is the no-rows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// tx runs fn inside a transaction, committing on nil and rolling back on
// error.
func (s *Store) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
