// Package gates enforces the mandatory entry criteria. All six checks must
// pass before a security becomes a signal candidate; a failure always names
// the specific check so rejection reporting stays auditable.
package gates

import (
	"fmt"
	"time"

	"github.com/swingdesk/swingrun/internal/indicators"
)

// Check names, stable identifiers used in reports and metrics.
const (
	CheckTrendStrength      = "trend_strength"
	CheckDirectionalDom     = "directional_dominance"
	CheckMomentumBand       = "momentum_band"
	CheckVolumeConfirmation = "volume_confirmation"
	CheckEstablishedTrend   = "established_trend"
	CheckValidPullback      = "valid_pullback"
)

// Config contains hard thresholds for the mandatory gate.
type Config struct {
	MinADX            float64 `yaml:"min_adx"`             // trend strength floor
	MinCandlePosition float64 `yaml:"min_candle_position"` // close in top of range
	RSIFloor          float64 `yaml:"rsi_floor"`           // momentum band, exclusive
	RSICeiling        float64 `yaml:"rsi_ceiling"`         // momentum band, exclusive
	MinRVol           float64 `yaml:"min_rvol"`            // relative volume floor
	RSIRiseDays       int     `yaml:"rsi_rise_days"`       // strictly rising RSI days
}

// DefaultConfig returns the production rule set.
func DefaultConfig() *Config {
	return &Config{
		MinADX:            25.0,
		MinCandlePosition: 75.0,
		RSIFloor:          50.0,
		RSICeiling:        70.0,
		MinRVol:           1.5,
		RSIRiseDays:       2,
	}
}

// Validate returns a list of configuration problems, empty when sane.
func (c *Config) Validate() []string {
	var issues []string
	if c.MinADX <= 0 || c.MinADX >= 100 {
		issues = append(issues, fmt.Sprintf("min_adx %0.1f outside (0,100)", c.MinADX))
	}
	if c.MinCandlePosition < 0 || c.MinCandlePosition > 100 {
		issues = append(issues, fmt.Sprintf("min_candle_position %0.1f outside [0,100]", c.MinCandlePosition))
	}
	if c.RSIFloor >= c.RSICeiling {
		issues = append(issues, fmt.Sprintf("rsi_floor %0.1f must be below rsi_ceiling %0.1f", c.RSIFloor, c.RSICeiling))
	}
	if c.RSIFloor < 0 || c.RSICeiling > 100 {
		issues = append(issues, "rsi band must sit inside [0,100]")
	}
	if c.MinRVol <= 0 {
		issues = append(issues, fmt.Sprintf("min_rvol %0.2f must be positive", c.MinRVol))
	}
	if c.RSIRiseDays < 1 {
		issues = append(issues, fmt.Sprintf("rsi_rise_days %d must be at least 1", c.RSIRiseDays))
	}
	return issues
}

// Check is the outcome of a single mandatory criterion.
type Check struct {
	Name        string      `json:"name"`
	Passed      bool        `json:"passed"`
	Value       interface{} `json:"value"`
	Threshold   interface{} `json:"threshold"`
	Description string      `json:"description"`
}

// Result is the full gate evaluation for one security on one day.
type Result struct {
	Symbol           string            `json:"symbol"`
	Date             time.Time         `json:"date"`
	Passed           bool              `json:"passed"`
	Checks           map[string]*Check `json:"checks"`
	PassedChecks     []string          `json:"passed_checks"`
	FailureReasons   []string          `json:"failure_reasons"`
	EvaluationTimeMs int64             `json:"evaluation_time_ms"`
}

// Evaluator applies the mandatory gate to indicator snapshots.
type Evaluator struct {
	config *Config
}

// NewEvaluator builds a gate evaluator; nil config means defaults.
func NewEvaluator(cfg *Config) *Evaluator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Evaluator{config: cfg}
}

// WindowSize is the number of trailing snapshots Evaluate needs, newest
// included (the rising-RSI chain looks back rsi_rise_days snapshots).
func (e *Evaluator) WindowSize() int {
	return e.config.RSIRiseDays + 1
}

// Evaluate runs all six checks against the snapshot window (oldest first,
// current day last). Every check is always evaluated so the report can show
// the complete pass/fail picture, not only the first failure.
func (e *Evaluator) Evaluate(symbol string, window []indicators.IndicatorSnapshot) (*Result, error) {
	if len(window) < e.WindowSize() {
		return nil, fmt.Errorf("%s: gate needs %d snapshots, have %d: %w",
			symbol, e.WindowSize(), len(window), indicators.ErrInsufficientHistory)
	}
	start := time.Now()
	snap := window[len(window)-1]

	result := &Result{
		Symbol:         symbol,
		Date:           snap.Date,
		Checks:         make(map[string]*Check, 6),
		PassedChecks:   []string{},
		FailureReasons: []string{},
	}

	// 1. Trend strength: ADX above the floor.
	result.add(&Check{
		Name:        CheckTrendStrength,
		Passed:      snap.ADX > e.config.MinADX,
		Value:       snap.ADX,
		Threshold:   e.config.MinADX,
		Description: fmt.Sprintf("ADX %.1f > %.1f", snap.ADX, e.config.MinADX),
	})

	// 2. Directional dominance with a strong close in the day's range.
	result.add(&Check{
		Name:      CheckDirectionalDom,
		Passed:    snap.PlusDI > snap.MinusDI && snap.CandlePositionPct > e.config.MinCandlePosition,
		Value:     fmt.Sprintf("+DI %.1f / -DI %.1f, candle %.0f%%", snap.PlusDI, snap.MinusDI, snap.CandlePositionPct),
		Threshold: fmt.Sprintf("+DI > -DI and candle > %.0f%%", e.config.MinCandlePosition),
		Description: fmt.Sprintf("+DI %.1f > -DI %.1f and close at %.0f%% of range",
			snap.PlusDI, snap.MinusDI, snap.CandlePositionPct),
	})

	// 3. Momentum sweet spot: RSI strictly inside the band.
	result.add(&Check{
		Name:        CheckMomentumBand,
		Passed:      snap.RSI14 > e.config.RSIFloor && snap.RSI14 < e.config.RSICeiling,
		Value:       snap.RSI14,
		Threshold:   fmt.Sprintf("(%.0f, %.0f)", e.config.RSIFloor, e.config.RSICeiling),
		Description: fmt.Sprintf("RSI %.1f inside (%.0f, %.0f)", snap.RSI14, e.config.RSIFloor, e.config.RSICeiling),
	})

	// 4. Volume confirmation: elevated relative volume on a non-thin tape.
	result.add(&Check{
		Name:      CheckVolumeConfirmation,
		Passed:    snap.RVol >= e.config.MinRVol && snap.Volume > snap.VolumeP25,
		Value:     fmt.Sprintf("rvol %.2f, volume %.0f", snap.RVol, snap.Volume),
		Threshold: fmt.Sprintf("rvol >= %.2f and volume > p25 %.0f", e.config.MinRVol, snap.VolumeP25),
		Description: fmt.Sprintf("RVOL %.2f >= %.2f and volume %.0f above 20d p25 %.0f",
			snap.RVol, e.config.MinRVol, snap.Volume, snap.VolumeP25),
	})

	// 5. Established long-term trend: price above a rising SMA200.
	result.add(&Check{
		Name:      CheckEstablishedTrend,
		Passed:    snap.Close > snap.SMA200 && snap.SMA200 > snap.SMA200Back20,
		Value:     fmt.Sprintf("close %.2f, sma200 %.2f, sma200[-20] %.2f", snap.Close, snap.SMA200, snap.SMA200Back20),
		Threshold: "close > sma200 > sma200 20d ago",
		Description: fmt.Sprintf("close %.2f above SMA200 %.2f, SMA200 rising from %.2f",
			snap.Close, snap.SMA200, snap.SMA200Back20),
	})

	// 6. Valid pullback: RSI strictly rising across the chain and price
	// reclaiming the fast EMA.
	rising := true
	for i := len(window) - e.config.RSIRiseDays; i < len(window); i++ {
		if window[i].RSI14 <= window[i-1].RSI14 {
			rising = false
			break
		}
	}
	result.add(&Check{
		Name:      CheckValidPullback,
		Passed:    rising && snap.Close > snap.EMA20,
		Value:     fmt.Sprintf("rsi chain %s, close %.2f vs ema20 %.2f", rsiChain(window, e.config.RSIRiseDays), snap.Close, snap.EMA20),
		Threshold: fmt.Sprintf("RSI rising %d days and close > ema20", e.config.RSIRiseDays),
		Description: fmt.Sprintf("RSI rising over %d days and close %.2f above EMA20 %.2f",
			e.config.RSIRiseDays, snap.Close, snap.EMA20),
	})

	result.Passed = len(result.FailureReasons) == 0
	result.EvaluationTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

func (r *Result) add(c *Check) {
	r.Checks[c.Name] = c
	if c.Passed {
		r.PassedChecks = append(r.PassedChecks, c.Name)
		return
	}
	r.FailureReasons = append(r.FailureReasons, fmt.Sprintf("%s: %s", c.Name, c.Description))
}

func rsiChain(window []indicators.IndicatorSnapshot, days int) string {
	s := ""
	for i := len(window) - days - 1; i < len(window); i++ {
		if s != "" {
			s += " -> "
		}
		s += fmt.Sprintf("%.1f", window[i].RSI14)
	}
	return s
}
