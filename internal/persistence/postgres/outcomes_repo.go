package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/swingdesk/swingrun/internal/persistence"
)

// outcomesRepo implements OutcomesRepo for PostgreSQL
type outcomesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewOutcomesRepo creates a new PostgreSQL outcomes repository
func NewOutcomesRepo(db *sqlx.DB, timeout time.Duration) persistence.OutcomesRepo {
	return &outcomesRepo{
		db:      db,
		timeout: timeout,
	}
}

// InsertBatch stores a whole backtest atomically. A symbol already recorded
// for the same signal date and run is skipped.
func (r *outcomesRepo) InsertBatch(ctx context.Context, recs []persistence.OutcomeRecord) error {
	if len(recs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(recs)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outcomes (run_id, symbol, signal_date, grade, state,
		                      reason, return_pct, days_held, exit_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, symbol, signal_date) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		_, err = stmt.ExecContext(ctx,
			rec.RunID, rec.Symbol, rec.SignalDate, rec.Grade, rec.State,
			rec.Reason, rec.ReturnPct, rec.DaysHeld, rec.ExitDate)
		if err != nil {
			return fmt.Errorf("failed to insert outcome for %s in batch: %w", rec.Symbol, err)
		}
	}

	return tx.Commit()
}

// ListBySymbol retrieves outcomes for a symbol within the date range, newest first
func (r *outcomesRepo) ListBySymbol(ctx context.Context, symbol string, tr persistence.TimeRange, limit int) ([]persistence.OutcomeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, run_id, symbol, signal_date, grade, state,
		       reason, return_pct, days_held, exit_date, created_at
		FROM outcomes
		WHERE symbol = $1 AND signal_date >= $2 AND signal_date <= $3
		ORDER BY signal_date DESC
		LIMIT $4`

	rows, err := r.db.QueryxContext(ctx, query, symbol, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes by symbol: %w", err)
	}
	defer rows.Close()

	return r.scanOutcomes(rows)
}

// WinRateByGrade aggregates win rates per grade over closed trades in the
// range. A win is a closed trade with a positive realized return; rates are
// percentages.
func (r *outcomesRepo) WinRateByGrade(ctx context.Context, tr persistence.TimeRange) (map[string]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT grade,
		       COUNT(*) FILTER (WHERE return_pct > 0) * 100.0 / COUNT(*)
		FROM outcomes
		WHERE signal_date >= $1 AND signal_date <= $2 AND state <> 'Open'
		GROUP BY grade
		ORDER BY grade`

	rows, err := r.db.QueryxContext(ctx, query, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate win rates: %w", err)
	}
	defer rows.Close()

	rates := make(map[string]float64)
	for rows.Next() {
		var grade string
		var rate float64
		if err := rows.Scan(&grade, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan win rate: %w", err)
		}
		rates[grade] = rate
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return rates, nil
}

// Count returns total outcomes in the date range
func (r *outcomesRepo) Count(ctx context.Context, tr persistence.TimeRange) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM outcomes
		WHERE signal_date >= $1 AND signal_date <= $2`

	var count int64
	err := r.db.QueryRowxContext(ctx, query, tr.From, tr.To).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", err)
	}

	return count, nil
}

// Helper methods

func (r *outcomesRepo) scanOutcomes(rows *sqlx.Rows) ([]persistence.OutcomeRecord, error) {
	var recs []persistence.OutcomeRecord

	for rows.Next() {
		var rec persistence.OutcomeRecord
		err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.Symbol, &rec.SignalDate, &rec.Grade, &rec.State,
			&rec.Reason, &rec.ReturnPct, &rec.DaysHeld, &rec.ExitDate, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome row: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return recs, nil
}
