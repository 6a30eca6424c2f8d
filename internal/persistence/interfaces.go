// Package persistence defines the storage contracts for signals and
// backtest outcomes. The CLI runs fine without a database; these interfaces
// only come alive when the Postgres store is enabled.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/swingdesk/swingrun/internal/backtest"
	"github.com/swingdesk/swingrun/internal/pipeline"
)

// ErrDuplicate marks an insert that hit a unique constraint. A signal is
// unique per symbol and date, so re-running a day is detectable.
var ErrDuplicate = errors.New("duplicate record")

// TimeRange bounds list queries, inclusive on both ends.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SignalRecord is one approved signal in its stored form. Detail carries the
// full gate, criteria and snapshot breakdown as JSONB for later audits.
type SignalRecord struct {
	ID         int64                  `json:"id" db:"id"`
	RunID      string                 `json:"run_id" db:"run_id"`
	Symbol     string                 `json:"symbol" db:"symbol"`
	SignalDate time.Time              `json:"signal_date" db:"signal_date"`
	Grade      string                 `json:"grade" db:"grade"`
	Score      float64                `json:"score" db:"score"`
	Entry      float64                `json:"entry" db:"entry"`
	Stop       float64                `json:"stop" db:"stop"`
	TP1        float64                `json:"tp1" db:"tp1"`
	TP2        float64                `json:"tp2" db:"tp2"`
	TP3        float64                `json:"tp3" db:"tp3"`
	ATR        float64                `json:"atr" db:"atr"`
	Detail     map[string]interface{} `json:"detail,omitempty" db:"detail"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}

// OutcomeRecord is one simulated trade outcome. ExitDate stays nil for
// positions still open when the data ran out.
type OutcomeRecord struct {
	ID         int64      `json:"id" db:"id"`
	RunID      string     `json:"run_id" db:"run_id"`
	Symbol     string     `json:"symbol" db:"symbol"`
	SignalDate time.Time  `json:"signal_date" db:"signal_date"`
	Grade      string     `json:"grade" db:"grade"`
	State      string     `json:"state" db:"state"`
	Reason     string     `json:"reason,omitempty" db:"reason"`
	ReturnPct  float64    `json:"return_pct" db:"return_pct"`
	DaysHeld   int        `json:"days_held" db:"days_held"`
	ExitDate   *time.Time `json:"exit_date,omitempty" db:"exit_date"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// SignalsRepo stores screening signals.
type SignalsRepo interface {
	// Insert adds one signal, ErrDuplicate on a symbol+date rerun.
	Insert(ctx context.Context, rec SignalRecord) error

	// InsertBatch stores a whole run atomically. Conflicting rows are
	// skipped so scheduled reruns stay idempotent.
	InsertBatch(ctx context.Context, recs []SignalRecord) error

	// ListBySymbol returns signals for one symbol, newest first.
	ListBySymbol(ctx context.Context, symbol string, tr TimeRange, limit int) ([]SignalRecord, error)

	// ListByRun returns every signal from one run.
	ListByRun(ctx context.Context, runID string) ([]SignalRecord, error)

	// GetLatest returns the most recent signals across all symbols.
	GetLatest(ctx context.Context, limit int) ([]SignalRecord, error)

	// Count returns signals in the range.
	Count(ctx context.Context, tr TimeRange) (int64, error)
}

// OutcomesRepo stores backtest outcomes.
type OutcomesRepo interface {
	// InsertBatch stores a whole backtest atomically, skipping conflicts.
	InsertBatch(ctx context.Context, recs []OutcomeRecord) error

	// ListBySymbol returns outcomes for one symbol, newest first.
	ListBySymbol(ctx context.Context, symbol string, tr TimeRange, limit int) ([]OutcomeRecord, error)

	// WinRateByGrade aggregates closed-trade win rates per grade.
	WinRateByGrade(ctx context.Context, tr TimeRange) (map[string]float64, error)

	// Count returns outcomes in the range.
	Count(ctx context.Context, tr TimeRange) (int64, error)
}

// Repository bundles the repos behind one handle.
type Repository struct {
	Signals  SignalsRepo
	Outcomes OutcomesRepo
}

// HealthCheck reports storage health for logs and the health endpoint.
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth is implemented by the connection manager.
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
}

// FromSignal flattens an approved signal into its stored form.
func FromSignal(runID string, sig *pipeline.Signal) SignalRecord {
	detail := map[string]interface{}{
		"snapshot": sig.Snapshot,
	}
	if sig.Mandatory != nil {
		detail["checks"] = sig.Mandatory.Checks
	}
	if sig.Quality != nil {
		detail["criteria"] = sig.Quality.Criteria
	}

	return SignalRecord{
		RunID:      runID,
		Symbol:     sig.Symbol,
		SignalDate: sig.Date,
		Grade:      string(sig.Grade),
		Score:      sig.Score,
		Entry:      sig.Plan.Entry,
		Stop:       sig.Plan.Stop,
		TP1:        sig.Plan.TP1,
		TP2:        sig.Plan.TP2,
		TP3:        sig.Plan.TP3,
		ATR:        sig.ATR,
		Detail:     detail,
	}
}

// FromTrade flattens a simulated trade into its stored form.
func FromTrade(runID string, tr backtest.Trade) OutcomeRecord {
	rec := OutcomeRecord{
		RunID:      runID,
		Symbol:     tr.Symbol,
		SignalDate: tr.SignalDate,
		Grade:      string(tr.Grade),
		State:      tr.Outcome.State.String(),
		Reason:     tr.Outcome.Reason,
		ReturnPct:  tr.Outcome.RealizedReturnPct,
		DaysHeld:   tr.Outcome.DaysHeld,
	}
	if !tr.Outcome.ExitDate.IsZero() {
		exit := tr.Outcome.ExitDate
		rec.ExitDate = &exit
	}
	return rec
}
