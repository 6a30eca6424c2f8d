// Package scoring grades gate-qualified candidates by a weighted set of
// optional criteria. Scores are a pure function of the criteria table and
// never consult mandatory gate outcomes, so they stay reusable for analytics
// over unfiltered universes.
package scoring

import (
	"fmt"
	"time"

	"github.com/swingdesk/swingrun/internal/indicators"
)

// Grade buckets. SKIP is an output state, not a letter grade: a SKIP-graded
// security drops out of further processing.
type Grade string

const (
	GradeA    Grade = "A"
	GradeB    Grade = "B"
	GradeC    Grade = "C"
	GradeSkip Grade = "SKIP"
)

// Rank orders grades for sorting, best first.
func (g Grade) Rank() int {
	switch g {
	case GradeA:
		return 3
	case GradeB:
		return 2
	case GradeC:
		return 1
	default:
		return 0
	}
}

// Criterion names, stable identifiers used in reports.
const (
	CritEMA50Rising        = "ema50_rising"
	CritADXRising          = "adx_rising"
	CritRSINotOverbought   = "rsi_not_overbought"
	CritVolumeAccelerating = "volume_accelerating"
	CritHeadroom           = "headroom"
	CritATRSteady          = "atr_steady"
	CritCloseTopQuartile   = "close_top_quartile"
)

// Weights assigns the fixed weight of each optional criterion.
type Weights struct {
	EMA50Rising        float64 `yaml:"ema50_rising"`
	ADXRising          float64 `yaml:"adx_rising"`
	RSINotOverbought   float64 `yaml:"rsi_not_overbought"`
	VolumeAccelerating float64 `yaml:"volume_accelerating"`
	Headroom           float64 `yaml:"headroom"`
	ATRSteady          float64 `yaml:"atr_steady"`
	CloseTopQuartile   float64 `yaml:"close_top_quartile"`
}

// Sum is the maximum attainable score for this weight table.
func (w Weights) Sum() float64 {
	return w.EMA50Rising + w.ADXRising + w.RSINotOverbought + w.VolumeAccelerating +
		w.Headroom + w.ATRSteady + w.CloseTopQuartile
}

// Config carries the weight table, the criteria thresholds and the grade
// cut lines.
type Config struct {
	Weights Weights `yaml:"weights"`

	RisingLookback  int     `yaml:"rising_lookback"`  // days for EMA50/ADX rising
	RSICeiling      float64 `yaml:"rsi_ceiling"`      // not-overbought bound, exclusive
	MinHeadroomPct  float64 `yaml:"min_headroom_pct"` // headroom criterion floor
	ATRSteadyMinPct float64 `yaml:"atr_steady_min_pct"`
	ATRSteadyMaxPct float64 `yaml:"atr_steady_max_pct"`
	TopQuartilePct  float64 `yaml:"top_quartile_pct"` // candle position floor

	GradeAMin float64 `yaml:"grade_a_min"`
	GradeBMin float64 `yaml:"grade_b_min"`
	GradeCMin float64 `yaml:"grade_c_min"`
}

// DefaultConfig returns the production weight table, 13.5 points total.
func DefaultConfig() *Config {
	return &Config{
		Weights: Weights{
			EMA50Rising:        2.0,
			ADXRising:          2.0,
			RSINotOverbought:   1.5,
			VolumeAccelerating: 2.5,
			Headroom:           1.0,
			ATRSteady:          2.5,
			CloseTopQuartile:   2.0,
		},
		RisingLookback:  5,
		RSICeiling:      70.0,
		MinHeadroomPct:  5.0,
		ATRSteadyMinPct: 1.0,
		ATRSteadyMaxPct: 3.0,
		TopQuartilePct:  75.0,
		GradeAMin:       11.0,
		GradeBMin:       8.0,
		GradeCMin:       5.0,
	}
}

// Validate returns a list of configuration problems, empty when sane.
func (c *Config) Validate() []string {
	var issues []string
	for name, w := range map[string]float64{
		"ema50_rising":        c.Weights.EMA50Rising,
		"adx_rising":          c.Weights.ADXRising,
		"rsi_not_overbought":  c.Weights.RSINotOverbought,
		"volume_accelerating": c.Weights.VolumeAccelerating,
		"headroom":            c.Weights.Headroom,
		"atr_steady":          c.Weights.ATRSteady,
		"close_top_quartile":  c.Weights.CloseTopQuartile,
	} {
		if w < 0 {
			issues = append(issues, fmt.Sprintf("weight %s is negative: %0.2f", name, w))
		}
	}
	if c.RisingLookback < 1 {
		issues = append(issues, fmt.Sprintf("rising_lookback %d must be at least 1", c.RisingLookback))
	}
	if c.ATRSteadyMinPct >= c.ATRSteadyMaxPct {
		issues = append(issues, fmt.Sprintf("atr_steady band [%0.1f, %0.1f] is empty", c.ATRSteadyMinPct, c.ATRSteadyMaxPct))
	}
	max := c.Weights.Sum()
	if !(c.GradeCMin < c.GradeBMin && c.GradeBMin < c.GradeAMin) {
		issues = append(issues, "grade cut lines must be strictly increasing C < B < A")
	}
	if c.GradeAMin > max {
		issues = append(issues, fmt.Sprintf("grade A cut %0.1f exceeds the maximum score %0.1f", c.GradeAMin, max))
	}
	return issues
}

// GradeFor maps a numeric score onto a letter grade using the cut lines.
func (c *Config) GradeFor(score float64) Grade {
	switch {
	case score >= c.GradeAMin:
		return GradeA
	case score >= c.GradeBMin:
		return GradeB
	case score >= c.GradeCMin:
		return GradeC
	default:
		return GradeSkip
	}
}

// Criterion is the evaluated outcome of one optional check.
type Criterion struct {
	Name        string  `json:"name"`
	Met         bool    `json:"met"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// Score is the quality evaluation for one security on one day. Criteria
// always holds all seven entries in table order, satisfied or not.
type Score struct {
	Symbol   string      `json:"symbol"`
	Date     time.Time   `json:"date"`
	Criteria []Criterion `json:"criteria"`
	Score    float64     `json:"score"`
	MaxScore float64     `json:"max_score"`
	Grade    Grade       `json:"grade"`
}

// Scorer evaluates the weighted optional criteria.
type Scorer struct {
	config *Config
}

// NewScorer builds a scorer; nil config means defaults.
func NewScorer(cfg *Config) *Scorer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Scorer{config: cfg}
}

// WindowSize is the number of trailing snapshots Evaluate needs, newest
// included.
func (s *Scorer) WindowSize() int {
	return s.config.RisingLookback + 1
}

// Evaluate scores the snapshot window (oldest first, current day last).
func (s *Scorer) Evaluate(symbol string, window []indicators.IndicatorSnapshot) (*Score, error) {
	if len(window) < s.WindowSize() {
		return nil, fmt.Errorf("%s: scorer needs %d snapshots, have %d: %w",
			symbol, s.WindowSize(), len(window), indicators.ErrInsufficientHistory)
	}

	cur := window[len(window)-1]
	back := window[len(window)-1-s.config.RisingLookback]
	prev := window[len(window)-2]
	w := s.config.Weights

	atrPct := cur.ATRPct()
	criteria := []Criterion{
		{
			Name:        CritEMA50Rising,
			Met:         cur.EMA50 > back.EMA50,
			Weight:      w.EMA50Rising,
			Description: fmt.Sprintf("EMA50 %.2f vs %.2f %dd ago", cur.EMA50, back.EMA50, s.config.RisingLookback),
		},
		{
			Name:        CritADXRising,
			Met:         cur.ADX > back.ADX,
			Weight:      w.ADXRising,
			Description: fmt.Sprintf("ADX %.1f vs %.1f %dd ago", cur.ADX, back.ADX, s.config.RisingLookback),
		},
		{
			Name:        CritRSINotOverbought,
			Met:         cur.RSI14 < s.config.RSICeiling,
			Weight:      w.RSINotOverbought,
			Description: fmt.Sprintf("RSI %.1f below %.0f", cur.RSI14, s.config.RSICeiling),
		},
		{
			Name:        CritVolumeAccelerating,
			Met:         cur.Volume > prev.Volume,
			Weight:      w.VolumeAccelerating,
			Description: fmt.Sprintf("volume %.0f vs %.0f prior day", cur.Volume, prev.Volume),
		},
		{
			Name:        CritHeadroom,
			Met:         cur.RoomToRunPct >= s.config.MinHeadroomPct,
			Weight:      w.Headroom,
			Description: fmt.Sprintf("headroom %.1f%% vs %.1f%% floor", cur.RoomToRunPct, s.config.MinHeadroomPct),
		},
		{
			Name:        CritATRSteady,
			Met:         atrPct >= s.config.ATRSteadyMinPct && atrPct <= s.config.ATRSteadyMaxPct,
			Weight:      w.ATRSteady,
			Description: fmt.Sprintf("ATR %.2f%% of price inside [%.1f%%, %.1f%%]", atrPct, s.config.ATRSteadyMinPct, s.config.ATRSteadyMaxPct),
		},
		{
			Name:        CritCloseTopQuartile,
			Met:         cur.CandlePositionPct >= s.config.TopQuartilePct,
			Weight:      w.CloseTopQuartile,
			Description: fmt.Sprintf("close at %.0f%% of range, quartile floor %.0f%%", cur.CandlePositionPct, s.config.TopQuartilePct),
		},
	}

	total := 0.0
	for _, c := range criteria {
		if c.Met {
			total += c.Weight
		}
	}

	return &Score{
		Symbol:   symbol,
		Date:     cur.Date,
		Criteria: criteria,
		Score:    total,
		MaxScore: w.Sum(),
		Grade:    s.config.GradeFor(total),
	}, nil
}
