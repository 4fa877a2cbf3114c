package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE view_prefs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				profile TEXT NOT NULL UNIQUE,
				last_platform TEXT,
				column_layout TEXT,
				sort_field TEXT NOT NULL DEFAULT 'name',
				sort_asc BOOLEAN NOT NULL DEFAULT TRUE,
				panel_sizes TEXT
			)
		`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("DROP TABLE IF EXISTS view_prefs")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
