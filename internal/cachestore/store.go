// Package cachestore implements the durable, content-addressed cache
// described in spec.md §4.4: streams, items, and sync_state relations with
// an embedded full-text index, grounded on the teacher's
// content/repo/sql/db package shape (a *sqlx.DB wrapped with a narrow log
// field, opened once and migrated forward-only at startup).
//
// Deviation from the teacher: the driver is modernc.org/sqlite rather than
// mattn/go-sqlite3, so the hub never requires CGO (see DESIGN.md).
package cachestore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"

	"scryforge/internal/log"
)

// ErrNotFound is returned by read and state-mutation methods when the
// requested stream, item, or collection does not exist.
var ErrNotFound = errors.New("cachestore: not found")

// Store is the durable cache. It is opened once per process and holds a
// single pooled connection (see Open), so every read and write is
// serialized through that one connection; readers do not run
// concurrently with each other or with a writer. Store relies on that
// rather than an additional application-level mutex.
type Store struct {
	db  *sqlx.DB
	log log.Log

	maxItemsPerStream int
}

// Open opens (creating if absent) the cache database at path and runs
// forward-only migrations, per spec.md §6.
func Open(path string, maxItemsPerStream int, logger log.Log) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrapf(err, "creating cache directory %s", dir)
			}
		}
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening cache database at %s", path)
	}

	// SQLite allows only one writer; a single open connection avoids
	// SQLITE_BUSY races between concurrent writers. Reads go through the
	// same connection, so they are serialized with writes as well.
	db.SetMaxOpenConns(1)

	// foreign_keys is a no-op and a WAL switch is an error inside a
	// transaction, so both are set on the connection before migrate runs.
	for _, pragma := range []string{`PRAGMA foreign_keys = ON`, `PRAGMA journal_mode = WAL`} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "running %s", pragma)
		}
	}

	s := &Store{db: db, log: logger, maxItemsPerStream: maxItemsPerStream}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	tx, err := s.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "beginning migration transaction")
	}
	defer tx.Rollback()

	var count int
	if err := tx.Get(&count, `SELECT count(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`); err != nil {
		return errors.Wrap(err, "checking for schema_version table")
	}

	var current int
	if count > 0 {
		if err := tx.Get(&current, `SELECT version FROM schema_version LIMIT 1`); err != nil && err != sql.ErrNoRows {
			return errors.Wrap(err, "reading schema_version")
		}
	}

	if current >= schemaVersion {
		return tx.Commit()
	}

	for _, stmt := range migrations {
		if _, err := tx.Exec(stmt); err != nil {
			return errors.Wrapf(err, "running migration statement: %s", stmt)
		}
	}

	if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
		return errors.Wrap(err, "clearing schema_version")
	}
	if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (?)`, schemaVersion); err != nil {
		return errors.Wrap(err, "recording schema_version")
	}

	return tx.Commit()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. Every multi-statement write in this package
// goes through withTx so upserts are atomic per spec.md §5's ordering
// guarantee (1): "items are observable atomically."
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}
