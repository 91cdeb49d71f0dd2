// Package auditdb implements sqlite3-backed persistence for rebuild
// summaries and validate_env_vars rejections, modeled on
// db/atlasdb.DB and db/pdatadb's migration framework.
package auditdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
)

// DB stores audit records in a sqlite3 database.
type DB struct {
	x *sqlx.DB
}

// Open opens a DB from the provided sqlite3 filename, in WAL mode with
// a larger page cache, matching atlasdb.Open's connection tuning.
func Open(name string) (*DB, error) {
	x, err := sqlx.Connect("sqlite3", (&url.URL{
		Path: name,
		RawQuery: (url.Values{
			"_journal":      {"WAL"},
			"_cache_size":   {"-32000"},
			"_busy_timeout": {"6000"},
		}).Encode(),
	}).String())
	if err != nil {
		return nil, err
	}
	return &DB{x}, nil
}

func (db *DB) Close() error {
	return db.x.Close()
}

// RebuildRecord summarizes one completed rebuild for the audit log.
type RebuildRecord struct {
	Time       time.Time
	Invoker    string
	Target     string
	Command    string
	Deleted    int
	Kept       int
	CleanSlate bool
}

// RecordRebuild inserts a RebuildRecord.
func (db *DB) RecordRebuild(r RebuildRecord) error {
	_, err := db.x.NamedExec(`
		INSERT INTO rebuilds (time, invoker, target, command, deleted, kept, clean_slate)
		VALUES (:time, :invoker, :target, :command, :deleted, :kept, :clean_slate)
	`, map[string]any{
		"time":        r.Time.Unix(),
		"invoker":     r.Invoker,
		"target":      r.Target,
		"command":     r.Command,
		"deleted":     r.Deleted,
		"kept":        r.Kept,
		"clean_slate": r.CleanSlate,
	})
	return err
}

// RejectionRecord captures one validate_env_vars failure.
type RejectionRecord struct {
	Time    time.Time
	Invoker string
	Names   string // comma-joined rejected names, values elided
}

// RecordRejection inserts a RejectionRecord.
func (db *DB) RecordRejection(r RejectionRecord) error {
	_, err := db.x.NamedExec(`
		INSERT INTO rejections (time, invoker, names)
		VALUES (:time, :invoker, :names)
	`, map[string]any{
		"time":    r.Time.Unix(),
		"invoker": r.Invoker,
		"names":   r.Names,
	})
	return err
}

// RecentRebuilds returns the most recent limit rebuild records, newest
// first.
func (db *DB) RecentRebuilds(limit int) ([]RebuildRecord, error) {
	var rows []struct {
		Time       int64  `db:"time"`
		Invoker    string `db:"invoker"`
		Target     string `db:"target"`
		Command    string `db:"command"`
		Deleted    int    `db:"deleted"`
		Kept       int    `db:"kept"`
		CleanSlate bool   `db:"clean_slate"`
	}
	if err := db.x.Select(&rows, `
		SELECT time, invoker, target, command, deleted, kept, clean_slate
		FROM rebuilds ORDER BY time DESC LIMIT ?
	`, limit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("auditdb: recent rebuilds: %w", err)
	}

	out := make([]RebuildRecord, len(rows))
	for i, r := range rows {
		out[i] = RebuildRecord{
			Time:       time.Unix(r.Time, 0),
			Invoker:    r.Invoker,
			Target:     r.Target,
			Command:    r.Command,
			Deleted:    r.Deleted,
			Kept:       r.Kept,
			CleanSlate: r.CleanSlate,
		}
	}
	return out, nil
}

// Version gets the current and required database versions, the way
// pdatadb.DB.Version does.
func (db *DB) Version() (current, required uint64, err error) {
	if err = db.x.Get(&current, `PRAGMA user_version`); err != nil {
		err = fmt.Errorf("auditdb: get version: %w", err)
		return
	}
	for v := range migrations {
		if v > required {
			required = v
		}
	}
	return
}

// MigrateUp migrates the database up to the provided version.
func (db *DB) MigrateUp(ctx context.Context, to uint64) error {
	tx, err := db.x.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("auditdb: begin transaction: %w", err)
	}
	defer tx.Rollback()

	var cv uint64
	if err := tx.GetContext(ctx, &cv, `PRAGMA user_version`); err != nil {
		return fmt.Errorf("auditdb: get version: %w", err)
	}
	if to < cv {
		return fmt.Errorf("auditdb: target version %d is less than current version %d", to, cv)
	}

	for v := uint64(1); v <= to; v++ {
		if _, ok := migrations[v]; !ok && v > cv {
			return fmt.Errorf("auditdb: unknown migration version %d", v)
		}
	}

	for v := cv + 1; v <= to; v++ {
		if err := migrations[v].Up(ctx, tx); err != nil {
			return fmt.Errorf("auditdb: migrate %d: %w", v, err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, to)); err != nil {
		return fmt.Errorf("auditdb: update version: %w", err)
	}
	return tx.Commit()
}
