package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/swingdesk/swingrun/internal/exits"
	"github.com/swingdesk/swingrun/internal/indicators"
	logprogress "github.com/swingdesk/swingrun/internal/log"
)

// DataSource supplies daily price history for one symbol, most recent bar
// last. Implementations may return more bars than asked for but never fewer
// without an error.
type DataSource interface {
	Daily(ctx context.Context, symbol string, bars int) (indicators.PriceSeries, error)
}

// Error kinds recorded against symbols that failed to screen.
const (
	ErrKindFetch      = "fetch"
	ErrKindHistory    = "insufficient_history"
	ErrKindMalformed  = "malformed_data"
	ErrKindVolatility = "invalid_volatility"
	ErrKindInternal   = "internal"
)

// SymbolError records a symbol the screener had to skip and why.
type SymbolError struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// Totals summarizes how the universe split across pipeline stages.
type Totals struct {
	Universe      int `json:"universe"`
	Evaluated     int `json:"evaluated"`
	Signals       int `json:"signals"`
	GateFailures  int `json:"gate_failures"`
	LowGrade      int `json:"low_grade"`
	SafetyRejects int `json:"safety_rejects"`
	Errors        int `json:"errors"`
}

// Result is the complete output of one screening run.
type Result struct {
	RunID       string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    string        `json:"duration"`
	Totals      Totals        `json:"totals"`
	Evaluations []*Evaluation `json:"evaluations"`
	Signals     []*Signal     `json:"signals"`
	Errors      []SymbolError `json:"errors,omitempty"`
}

// Screener fans the universe out across workers and funnels per-symbol
// evaluations back into one ordered result.
type Screener struct {
	source        DataSource
	eval          *Evaluator
	maxConcurrent int
}

// NewScreener builds a screener over a data source; maxConcurrent caps the
// number of symbols in flight (8 when non-positive).
func NewScreener(source DataSource, eval *Evaluator, maxConcurrent int) *Screener {
	if eval == nil {
		eval = NewEvaluator(nil)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Screener{
		source:        source,
		eval:          eval,
		maxConcurrent: maxConcurrent,
	}
}

// Screen evaluates the most recent bar of every universe symbol. Symbols
// that fail to fetch or evaluate are recorded and skipped; only an empty
// universe or a canceled context fails the whole run.
func (s *Screener) Screen(ctx context.Context, universe []string) (*Result, error) {
	if len(universe) == 0 {
		return nil, errors.New("universe is empty")
	}

	runID := uuid.New().String()[:8]
	startedAt := time.Now()
	barsNeed := s.eval.BarsRequired()

	log.Info().
		Str("run_id", runID).
		Int("universe", len(universe)).
		Int("bars_required", barsNeed).
		Int("max_concurrent", s.maxConcurrent).
		Msg("Starting screening run")

	var (
		mu          sync.Mutex
		evaluations []*Evaluation
		symbolErrs  []SymbolError
	)

	semaphore := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	progress := logprogress.NewTracker("screen", len(universe))

	for _, symbol := range universe {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				return
			}

			evaluation, err := s.screenSymbol(ctx, sym, barsNeed)
			progress.Mark(sym)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				kind := classifyError(err)
				symbolErrs = append(symbolErrs, SymbolError{Symbol: sym, Kind: kind, Error: err.Error()})
				log.Warn().Str("run_id", runID).Str("symbol", sym).Str("kind", kind).Err(err).Msg("Symbol skipped")
				return
			}
			evaluations = append(evaluations, evaluation)
		}(symbol)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("screening run canceled: %w", err)
	}

	result := assembleResult(runID, startedAt, len(universe), evaluations, symbolErrs)

	log.Info().
		Str("run_id", runID).
		Int("evaluated", result.Totals.Evaluated).
		Int("signals", result.Totals.Signals).
		Int("gate_failures", result.Totals.GateFailures).
		Int("safety_rejects", result.Totals.SafetyRejects).
		Int("errors", result.Totals.Errors).
		Str("duration", result.Duration).
		Msg("Screening run completed")

	return result, nil
}

// screenSymbol fetches history and evaluates the latest bar for one symbol.
func (s *Screener) screenSymbol(ctx context.Context, symbol string, bars int) (*Evaluation, error) {
	series, err := s.source.Daily(ctx, symbol, bars)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return s.eval.EvaluateLatest(series)
}

// assembleResult tallies totals and fixes the output ordering: signals rank
// by grade then score descending with symbol as the tiebreak, evaluations
// sort by symbol.
func assembleResult(runID string, startedAt time.Time, universe int, evaluations []*Evaluation, symbolErrs []SymbolError) *Result {
	totals := Totals{
		Universe:  universe,
		Evaluated: len(evaluations),
		Errors:    len(symbolErrs),
	}

	var signals []*Signal
	for _, e := range evaluations {
		switch e.Status {
		case StatusSignal:
			totals.Signals++
			signals = append(signals, e.Signal())
		case StatusGateFail:
			totals.GateFailures++
		case StatusLowGrade:
			totals.LowGrade++
		case StatusSafetyReject:
			totals.SafetyRejects++
		}
	}

	sort.Slice(evaluations, func(i, j int) bool {
		return evaluations[i].Symbol < evaluations[j].Symbol
	})
	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Grade.Rank() != signals[j].Grade.Rank() {
			return signals[i].Grade.Rank() > signals[j].Grade.Rank()
		}
		if signals[i].Score != signals[j].Score {
			return signals[i].Score > signals[j].Score
		}
		return signals[i].Symbol < signals[j].Symbol
	})
	sort.Slice(symbolErrs, func(i, j int) bool {
		return symbolErrs[i].Symbol < symbolErrs[j].Symbol
	})

	return &Result{
		RunID:       runID,
		StartedAt:   startedAt,
		Duration:    time.Since(startedAt).String(),
		Totals:      totals,
		Evaluations: evaluations,
		Signals:     signals,
		Errors:      symbolErrs,
	}
}

// classifyError maps pipeline failures onto stable error kinds for
// reporting and metrics.
func classifyError(err error) string {
	switch {
	case errors.Is(err, indicators.ErrInsufficientHistory):
		return ErrKindHistory
	case errors.Is(err, indicators.ErrMalformedBar):
		return ErrKindMalformed
	case errors.Is(err, exits.ErrInvalidVolatility):
		return ErrKindVolatility
	case strings.HasPrefix(err.Error(), "fetch:"):
		return ErrKindFetch
	default:
		return ErrKindInternal
	}
}
