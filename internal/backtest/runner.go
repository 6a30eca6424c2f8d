package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/swingdesk/swingrun/internal/indicators"
	logprogress "github.com/swingdesk/swingrun/internal/log"
	"github.com/swingdesk/swingrun/internal/pipeline"
)

// DataSource supplies daily price history for one symbol, most recent bar
// last.
type DataSource interface {
	Daily(ctx context.Context, symbol string, bars int) (indicators.PriceSeries, error)
}

// Config controls how the historical replay walks each series.
type Config struct {
	LookbackBars  int `yaml:"lookback_bars"`  // total history to request per symbol
	EntryLag      int `yaml:"entry_lag"`      // 0 fills at the signal close, 1 at the next open
	MaxConcurrent int `yaml:"max_concurrent"` // symbols replayed in parallel
}

// DefaultConfig replays roughly a year of evaluable days per symbol with
// same-close fills.
func DefaultConfig() *Config {
	return &Config{
		LookbackBars:  500,
		EntryLag:      0,
		MaxConcurrent: 4,
	}
}

// Validate returns a list of configuration problems, empty when sane.
func (c *Config) Validate() []string {
	var issues []string
	if c.LookbackBars < 1 {
		issues = append(issues, fmt.Sprintf("lookback_bars %d must be positive", c.LookbackBars))
	}
	if c.EntryLag != 0 && c.EntryLag != 1 {
		issues = append(issues, fmt.Sprintf("entry_lag %d must be 0 or 1", c.EntryLag))
	}
	return issues
}

// Runner replays the screening rules over history and simulates every
// signal through its exit plan.
type Runner struct {
	source DataSource
	eval   *pipeline.Evaluator
	config *Config
}

// NewRunner builds a backtest runner; nil config means defaults.
func NewRunner(source DataSource, eval *pipeline.Evaluator, cfg *Config) *Runner {
	if eval == nil {
		eval = pipeline.NewEvaluator(nil)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Runner{source: source, eval: eval, config: cfg}
}

// Run replays every universe symbol and aggregates outcomes. Per-symbol
// failures are recorded and skipped; only an empty universe or a canceled
// context fails the run.
func (r *Runner) Run(ctx context.Context, universe []string) (*Result, error) {
	if len(universe) == 0 {
		return nil, errors.New("universe is empty")
	}

	runID := uuid.New().String()[:8]
	startedAt := time.Now()

	log.Info().
		Str("run_id", runID).
		Int("universe", len(universe)).
		Int("lookback_bars", r.config.LookbackBars).
		Int("entry_lag", r.config.EntryLag).
		Msg("Starting backtest run")

	maxConcurrent := r.config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	semaphore := make(chan struct{}, maxConcurrent)

	var (
		mu     sync.Mutex
		trades []Trade
		errs   []string
		wg     sync.WaitGroup
	)
	progress := logprogress.NewTracker("backtest", len(universe))

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

			symbolTrades, err := r.runSymbol(ctx, sym)
			progress.Mark(sym)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", sym, err))
				log.Warn().Str("run_id", runID).Str("symbol", sym).Err(err).Msg("Symbol skipped in backtest")
				return
			}
			trades = append(trades, symbolTrades...)
		}(symbol)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("backtest run canceled: %w", err)
	}

	sort.Slice(trades, func(i, j int) bool {
		if !trades[i].SignalDate.Equal(trades[j].SignalDate) {
			return trades[i].SignalDate.Before(trades[j].SignalDate)
		}
		return trades[i].Symbol < trades[j].Symbol
	})
	sort.Strings(errs)

	result := &Result{
		RunID:     runID,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt).String(),
		Symbols:   len(universe),
		Errors:    errs,
		Trades:    trades,
		Summary:   Summarize(trades),
	}

	log.Info().
		Str("run_id", runID).
		Int("trades", result.Summary.Trades).
		Int("closed", result.Summary.Closed).
		Int("wins", result.Summary.Wins).
		Float64("win_rate", result.Summary.WinRate).
		Int("errors", len(errs)).
		Str("duration", result.Duration).
		Msg("Backtest run completed")

	return result, nil
}

// runSymbol walks one series chronologically. Dates that error (history
// gaps, malformed bars, degenerate volatility) are skipped; a signal opens
// a trade and evaluation resumes the day after it exits, so positions in
// one symbol never overlap.
func (r *Runner) runSymbol(ctx context.Context, symbol string) ([]Trade, error) {
	series, err := r.source.Daily(ctx, symbol, r.config.LookbackBars)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	c, err := r.eval.Engine().Compute(series)
	if err != nil {
		return nil, err
	}

	var trades []Trade
	idx := r.eval.BarsRequired() - 1

	for idx < c.Len() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		evaluation, err := r.eval.EvaluateAt(c, idx)
		if err != nil {
			idx++
			continue
		}
		if evaluation.Status != pipeline.StatusSignal {
			idx++
			continue
		}

		trade, nextIdx, ok := r.openTrade(c, evaluation, idx)
		if !ok {
			idx++
			continue
		}
		trades = append(trades, trade)
		if !trade.Outcome.Closed() {
			break
		}
		idx = nextIdx
	}

	return trades, nil
}

// openTrade fills the signal per the entry lag, simulates it forward and
// returns the index where evaluation resumes.
func (r *Runner) openTrade(c *indicators.Computed, evaluation *pipeline.Evaluation, idx int) (Trade, int, bool) {
	plan := *evaluation.Plan
	entryDate := evaluation.Date
	forwardStart := idx + 1

	if r.config.EntryLag == 1 {
		if idx+1 >= c.Len() {
			return Trade{}, 0, false
		}
		next := c.Bar(idx + 1)
		lagged, err := r.eval.PlanAt(next.Open, plan.ATR)
		if err != nil {
			return Trade{}, 0, false
		}
		plan = lagged
		entryDate = next.Date
	}

	if forwardStart >= c.Len() {
		return Trade{}, 0, false
	}

	n := plan.MaxHoldDays
	if forwardStart+n > c.Len() {
		n = c.Len() - forwardStart
	}
	forward := make([]indicators.Bar, n)
	for i := 0; i < n; i++ {
		forward[i] = c.Bar(forwardStart + i)
	}

	outcome := Simulate(evaluation.Symbol, entryDate, plan, forward)
	trade := Trade{
		Symbol:     evaluation.Symbol,
		SignalDate: evaluation.Date,
		Grade:      evaluation.Quality.Grade,
		Score:      evaluation.Quality.Score,
		Plan:       plan,
		Outcome:    outcome,
	}
	return trade, forwardStart + outcome.DaysHeld, true
}

// Summarize aggregates win and return statistics over closed trades.
func Summarize(trades []Trade) *Summary {
	s := &Summary{
		Trades:   len(trades),
		ByReason: make(map[string]int),
		ByGrade:  make(map[string]*GradeStats),
	}

	var total float64
	gradeTotals := make(map[string]float64)

	for _, tr := range trades {
		o := tr.Outcome
		if !o.Closed() {
			s.StillOpen++
			continue
		}
		s.Closed++
		s.ByReason[o.Reason]++
		total += o.RealizedReturnPct

		g := s.ByGrade[string(tr.Grade)]
		if g == nil {
			g = &GradeStats{}
			s.ByGrade[string(tr.Grade)] = g
		}
		g.Trades++
		gradeTotals[string(tr.Grade)] += o.RealizedReturnPct

		if o.RealizedReturnPct > 0 {
			s.Wins++
			g.Wins++
		}
	}

	if s.Closed > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Closed) * 100
		s.AvgReturnPct = total / float64(s.Closed)
	}
	for grade, g := range s.ByGrade {
		g.WinRate = float64(g.Wins) / float64(g.Trades) * 100
		g.AvgReturnPct = gradeTotals[grade] / float64(g.Trades)
	}

	return s
}
