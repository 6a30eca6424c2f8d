package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// EnsureSchema creates the signals and outcomes tables when missing. Two
// tables is small enough that idempotent DDL on startup replaces a
// migration tool. The unique constraints back the ON CONFLICT clauses the
// batch inserts rely on.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id          BIGSERIAL PRIMARY KEY,
			run_id      TEXT NOT NULL,
			symbol      TEXT NOT NULL,
			signal_date DATE NOT NULL,
			grade       TEXT NOT NULL,
			score       DOUBLE PRECISION NOT NULL,
			entry       DOUBLE PRECISION NOT NULL,
			stop        DOUBLE PRECISION NOT NULL,
			tp1         DOUBLE PRECISION NOT NULL,
			tp2         DOUBLE PRECISION NOT NULL,
			tp3         DOUBLE PRECISION NOT NULL,
			atr         DOUBLE PRECISION NOT NULL,
			detail      JSONB,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (symbol, signal_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_run_id ON signals(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_date ON signals(signal_date)`,

		`CREATE TABLE IF NOT EXISTS outcomes (
			id          BIGSERIAL PRIMARY KEY,
			run_id      TEXT NOT NULL,
			symbol      TEXT NOT NULL,
			signal_date DATE NOT NULL,
			grade       TEXT NOT NULL,
			state       TEXT NOT NULL,
			reason      TEXT NOT NULL DEFAULT '',
			return_pct  DOUBLE PRECISION NOT NULL,
			days_held   INTEGER NOT NULL,
			exit_date   DATE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (run_id, symbol, signal_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_symbol ON outcomes(symbol, signal_date)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return nil
}
