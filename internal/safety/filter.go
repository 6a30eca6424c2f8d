// Package safety applies hard post-scoring rejects to gate-qualified
// signals. Rules run in a fixed order and the first match wins, so a signal
// violating several rules always reports the same, highest-precedence reason.
package safety

import (
	"fmt"

	"github.com/swingdesk/swingrun/internal/indicators"
)

// Rejection reasons, verbatim in reports.
const (
	ReasonVolatility    = "volatility too high"
	ReasonStructuralLow = "near structural low"
	ReasonExhaustion    = "exhaustion"
	ReasonVolumeDecline = "volume declining"
	ReasonNoTrend       = "no trend"
)

// Rule identifiers, stable keys for metrics and reports.
const (
	RuleMaxATRPct   = "max_atr_pct"
	RuleMinHeadroom = "min_headroom"
	RuleMaxRSI      = "max_rsi"
	RuleMinRVol     = "min_rvol"
	RuleMinADX      = "min_adx"
)

// Config contains the hard safety limits.
type Config struct {
	MaxATRPct      float64 `yaml:"max_atr_pct"`      // volatility ceiling, percent of price
	MinHeadroomPct float64 `yaml:"min_headroom_pct"` // below this the base is too close
	MaxRSI         float64 `yaml:"max_rsi"`          // exhaustion ceiling
	MinRVol        float64 `yaml:"min_rvol"`         // participation floor
	MinADX         float64 `yaml:"min_adx"`          // trend floor
}

// DefaultConfig returns the production safety limits.
func DefaultConfig() *Config {
	return &Config{
		MaxATRPct:      5.0,
		MinHeadroomPct: 0.0,
		MaxRSI:         75.0,
		MinRVol:        1.0,
		MinADX:         20.0,
	}
}

// Validate returns a list of configuration problems, empty when sane.
func (c *Config) Validate() []string {
	var issues []string
	if c.MaxATRPct <= 0 {
		issues = append(issues, fmt.Sprintf("max_atr_pct %0.1f must be positive", c.MaxATRPct))
	}
	if c.MaxRSI <= 0 || c.MaxRSI > 100 {
		issues = append(issues, fmt.Sprintf("max_rsi %0.1f outside (0,100]", c.MaxRSI))
	}
	if c.MinRVol < 0 {
		issues = append(issues, fmt.Sprintf("min_rvol %0.2f must be non-negative", c.MinRVol))
	}
	if c.MinADX < 0 || c.MinADX >= 100 {
		issues = append(issues, fmt.Sprintf("min_adx %0.1f outside [0,100)", c.MinADX))
	}
	return issues
}

// Verdict is the safety outcome for one signal. Rejected signals keep their
// place in the output with the first matching reason attached.
type Verdict struct {
	Approved bool    `json:"approved"`
	Rule     string  `json:"rule,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	Value    float64 `json:"value,omitempty"`
	Limit    float64 `json:"limit,omitempty"`
}

// Filter evaluates the ordered safety rules.
type Filter struct {
	config *Config
}

// NewFilter builds a filter; nil config means defaults.
func NewFilter(cfg *Config) *Filter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Filter{config: cfg}
}

// Check runs the rules in precedence order against the entry-day snapshot.
func (f *Filter) Check(snap indicators.IndicatorSnapshot) Verdict {
	atrPct := snap.ATRPct()
	if atrPct > f.config.MaxATRPct {
		return Verdict{Rule: RuleMaxATRPct, Reason: ReasonVolatility, Value: atrPct, Limit: f.config.MaxATRPct}
	}
	if snap.RoomToRunPct < f.config.MinHeadroomPct {
		return Verdict{Rule: RuleMinHeadroom, Reason: ReasonStructuralLow, Value: snap.RoomToRunPct, Limit: f.config.MinHeadroomPct}
	}
	if snap.RSI14 > f.config.MaxRSI {
		return Verdict{Rule: RuleMaxRSI, Reason: ReasonExhaustion, Value: snap.RSI14, Limit: f.config.MaxRSI}
	}
	if snap.RVol < f.config.MinRVol {
		return Verdict{Rule: RuleMinRVol, Reason: ReasonVolumeDecline, Value: snap.RVol, Limit: f.config.MinRVol}
	}
	if snap.ADX < f.config.MinADX {
		return Verdict{Rule: RuleMinADX, Reason: ReasonNoTrend, Value: snap.ADX, Limit: f.config.MinADX}
	}
	return Verdict{Approved: true}
}
