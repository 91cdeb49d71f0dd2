package auditdb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type migration struct {
	Up func(context.Context, *sqlx.Tx) error
}

var migrations = map[uint64]migration{
	1: {Up: up001},
}

func up001(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE rebuilds (
			id          INTEGER PRIMARY KEY,
			time        INTEGER NOT NULL,
			invoker     TEXT NOT NULL,
			target      TEXT NOT NULL,
			command     TEXT NOT NULL DEFAULT '',
			deleted     INTEGER NOT NULL DEFAULT 0,
			kept        INTEGER NOT NULL DEFAULT 0,
			clean_slate INTEGER NOT NULL DEFAULT 0
		) STRICT;
	`); err != nil {
		return fmt.Errorf("create rebuilds table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE INDEX rebuilds_time_idx ON rebuilds(time)`); err != nil {
		return fmt.Errorf("create rebuilds index: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE rejections (
			id      INTEGER PRIMARY KEY,
			time    INTEGER NOT NULL,
			invoker TEXT NOT NULL,
			names   TEXT NOT NULL DEFAULT ''
		) STRICT;
	`); err != nil {
		return fmt.Errorf("create rejections table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE INDEX rejections_time_idx ON rejections(time)`); err != nil {
		return fmt.Errorf("create rejections index: %w", err)
	}
	return nil
}
