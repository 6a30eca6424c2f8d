// Package postgres implements the persistence repositories on PostgreSQL
// through sqlx. Every query runs under the configured statement timeout.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/swingdesk/swingrun/internal/persistence"
)

// signalsRepo implements SignalsRepo for PostgreSQL
type signalsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSignalsRepo creates a new PostgreSQL signals repository
func NewSignalsRepo(db *sqlx.DB, timeout time.Duration) persistence.SignalsRepo {
	return &signalsRepo{
		db:      db,
		timeout: timeout,
	}
}

// Insert adds a single signal record
func (r *signalsRepo) Insert(ctx context.Context, rec persistence.SignalRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	detailJSON, err := json.Marshal(rec.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal detail: %w", err)
	}

	query := `
		INSERT INTO signals (run_id, symbol, signal_date, grade, score,
		                     entry, stop, tp1, tp2, tp3, atr, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err = r.db.QueryRowxContext(ctx, query,
		rec.RunID, rec.Symbol, rec.SignalDate, rec.Grade, rec.Score,
		rec.Entry, rec.Stop, rec.TP1, rec.TP2, rec.TP3, rec.ATR, detailJSON).
		Scan(&rec.ID, &rec.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("signal %s %s: %w",
				rec.Symbol, rec.SignalDate.Format("2006-01-02"), persistence.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert signal: %w", err)
	}

	return nil
}

// InsertBatch stores a whole run atomically. Conflicts on symbol+date are
// skipped so scheduled reruns of the same day stay idempotent.
func (r *signalsRepo) InsertBatch(ctx context.Context, recs []persistence.SignalRecord) error {
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
		INSERT INTO signals (run_id, symbol, signal_date, grade, score,
		                     entry, stop, tp1, tp2, tp3, atr, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (symbol, signal_date) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		detailJSON, err := json.Marshal(rec.Detail)
		if err != nil {
			return fmt.Errorf("failed to marshal detail for %s: %w", rec.Symbol, err)
		}

		_, err = stmt.ExecContext(ctx,
			rec.RunID, rec.Symbol, rec.SignalDate, rec.Grade, rec.Score,
			rec.Entry, rec.Stop, rec.TP1, rec.TP2, rec.TP3, rec.ATR, detailJSON)
		if err != nil {
			return fmt.Errorf("failed to insert signal for %s in batch: %w", rec.Symbol, err)
		}
	}

	return tx.Commit()
}

// ListBySymbol retrieves signals for a symbol within the date range, newest first
func (r *signalsRepo) ListBySymbol(ctx context.Context, symbol string, tr persistence.TimeRange, limit int) ([]persistence.SignalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, run_id, symbol, signal_date, grade, score,
		       entry, stop, tp1, tp2, tp3, atr, detail, created_at
		FROM signals
		WHERE symbol = $1 AND signal_date >= $2 AND signal_date <= $3
		ORDER BY signal_date DESC
		LIMIT $4`

	rows, err := r.db.QueryxContext(ctx, query, symbol, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals by symbol: %w", err)
	}
	defer rows.Close()

	return r.scanSignals(rows)
}

// ListByRun retrieves every signal emitted by one run
func (r *signalsRepo) ListByRun(ctx context.Context, runID string) ([]persistence.SignalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, run_id, symbol, signal_date, grade, score,
		       entry, stop, tp1, tp2, tp3, atr, detail, created_at
		FROM signals
		WHERE run_id = $1
		ORDER BY symbol ASC`

	rows, err := r.db.QueryxContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals by run: %w", err)
	}
	defer rows.Close()

	return r.scanSignals(rows)
}

// GetLatest returns most recent signals across all symbols
func (r *signalsRepo) GetLatest(ctx context.Context, limit int) ([]persistence.SignalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, run_id, symbol, signal_date, grade, score,
		       entry, stop, tp1, tp2, tp3, atr, detail, created_at
		FROM signals
		ORDER BY signal_date DESC, symbol ASC
		LIMIT $1`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest signals: %w", err)
	}
	defer rows.Close()

	return r.scanSignals(rows)
}

// Count returns total signals in the date range
func (r *signalsRepo) Count(ctx context.Context, tr persistence.TimeRange) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM signals
		WHERE signal_date >= $1 AND signal_date <= $2`

	var count int64
	err := r.db.QueryRowxContext(ctx, query, tr.From, tr.To).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count signals: %w", err)
	}

	return count, nil
}

// Helper methods

func (r *signalsRepo) scanSignals(rows *sqlx.Rows) ([]persistence.SignalRecord, error) {
	var recs []persistence.SignalRecord

	for rows.Next() {
		rec, err := r.scanSignalFromRows(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return recs, nil
}

func (r *signalsRepo) scanSignalFromRows(rows *sqlx.Rows) (*persistence.SignalRecord, error) {
	var rec persistence.SignalRecord
	var detailJSON []byte

	err := rows.Scan(
		&rec.ID, &rec.RunID, &rec.Symbol, &rec.SignalDate, &rec.Grade, &rec.Score,
		&rec.Entry, &rec.Stop, &rec.TP1, &rec.TP2, &rec.TP3, &rec.ATR,
		&detailJSON, &rec.CreatedAt)

	if err != nil {
		return nil, err
	}

	if len(detailJSON) > 0 {
		if err := json.Unmarshal(detailJSON, &rec.Detail); err != nil {
			return nil, fmt.Errorf("failed to unmarshal detail: %w", err)
		}
	}

	return &rec, nil
}
