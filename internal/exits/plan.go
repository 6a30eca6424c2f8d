// Package exits derives the volatility-scaled exit plan for a signal: three
// ascending take-profit tiers and one stop, all ATR multiples off the entry.
package exits

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidVolatility marks an ATR from which no usable plan can be built.
var ErrInvalidVolatility = errors.New("invalid volatility")

// Config fixes the ATR multipliers and the hold horizon.
type Config struct {
	TP1Mult     float64 `yaml:"tp1_mult"`
	TP2Mult     float64 `yaml:"tp2_mult"`
	TP3Mult     float64 `yaml:"tp3_mult"`
	StopMult    float64 `yaml:"stop_mult"`
	MaxHoldDays int     `yaml:"max_hold_days"`
}

// DefaultConfig returns the production exit geometry: 1.5/3.0/5.0 ATR
// targets against a 1.5 ATR stop, five-day horizon.
func DefaultConfig() *Config {
	return &Config{
		TP1Mult:     1.5,
		TP2Mult:     3.0,
		TP3Mult:     5.0,
		StopMult:    1.5,
		MaxHoldDays: 5,
	}
}

// Validate returns a list of configuration problems, empty when sane.
func (c *Config) Validate() []string {
	var issues []string
	if c.TP1Mult <= 0 {
		issues = append(issues, fmt.Sprintf("tp1_mult %0.2f must be positive", c.TP1Mult))
	}
	if !(c.TP1Mult < c.TP2Mult && c.TP2Mult < c.TP3Mult) {
		issues = append(issues, fmt.Sprintf("take-profit multipliers must ascend, got %0.2f %0.2f %0.2f",
			c.TP1Mult, c.TP2Mult, c.TP3Mult))
	}
	if c.StopMult <= 0 {
		issues = append(issues, fmt.Sprintf("stop_mult %0.2f must be positive", c.StopMult))
	}
	if c.MaxHoldDays < 1 {
		issues = append(issues, fmt.Sprintf("max_hold_days %d must be at least 1", c.MaxHoldDays))
	}
	return issues
}

// Plan is the immutable exit geometry for one signal. Prices ascend
// Stop < Entry < TP1 < TP2 < TP3 whenever ATR is positive.
type Plan struct {
	Entry       float64    `json:"entry"`
	ATR         float64    `json:"atr"`
	TP1         float64    `json:"tp1"`
	TP2         float64    `json:"tp2"`
	TP3         float64    `json:"tp3"`
	Stop        float64    `json:"stop"`
	RiskPct     float64    `json:"risk_pct"`
	RewardPcts  [3]float64 `json:"reward_pcts"`
	RiskReward  float64    `json:"risk_reward"`
	MaxHoldDays int        `json:"max_hold_days"`
}

// Targets returns the take-profit prices in ascending tier order.
func (p Plan) Targets() [3]float64 {
	return [3]float64{p.TP1, p.TP2, p.TP3}
}

// Generator builds exit plans from entry price and volatility.
type Generator struct {
	config *Config
}

// NewGenerator builds a generator; nil config means defaults.
func NewGenerator(cfg *Config) *Generator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Generator{config: cfg}
}

// MaxHoldDays exposes the configured hold horizon.
func (g *Generator) MaxHoldDays() int { return g.config.MaxHoldDays }

// Plan derives the exit plan for an entry at the given price and ATR.
// A zero, negative or non-finite ATR is degenerate input and fails with
// ErrInvalidVolatility, as does an ATR so large the stop lands at or below
// zero.
func (g *Generator) Plan(entry, atr float64) (Plan, error) {
	if entry <= 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return Plan{}, fmt.Errorf("entry price %.4f must be positive and finite", entry)
	}
	if atr <= 0 || math.IsNaN(atr) || math.IsInf(atr, 0) {
		return Plan{}, fmt.Errorf("atr %.4f: %w", atr, ErrInvalidVolatility)
	}

	stop := entry - g.config.StopMult*atr
	if stop <= 0 {
		return Plan{}, fmt.Errorf("stop %.4f non-positive for entry %.2f atr %.2f: %w",
			stop, entry, atr, ErrInvalidVolatility)
	}

	p := Plan{
		Entry:       entry,
		ATR:         atr,
		TP1:         entry + g.config.TP1Mult*atr,
		TP2:         entry + g.config.TP2Mult*atr,
		TP3:         entry + g.config.TP3Mult*atr,
		Stop:        stop,
		MaxHoldDays: g.config.MaxHoldDays,
	}
	p.RiskPct = (entry - stop) / entry * 100
	p.RewardPcts = [3]float64{
		(p.TP1 - entry) / entry * 100,
		(p.TP2 - entry) / entry * 100,
		(p.TP3 - entry) / entry * 100,
	}
	p.RiskReward = (p.TP3 - entry) / (entry - stop)
	return p, nil
}
