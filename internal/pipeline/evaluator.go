// Package pipeline runs the screening stages in order: indicators, mandatory
// gates, quality scoring, safety filter, exit plan. Every symbol produces an
// evaluation; only symbols that clear all three verdicts produce a signal.
package pipeline

import (
	"time"

	"github.com/swingdesk/swingrun/internal/config"
	"github.com/swingdesk/swingrun/internal/exits"
	"github.com/swingdesk/swingrun/internal/gates"
	"github.com/swingdesk/swingrun/internal/indicators"
	"github.com/swingdesk/swingrun/internal/safety"
	"github.com/swingdesk/swingrun/internal/scoring"
)

// Status classifies how far a symbol made it through the pipeline.
type Status string

const (
	StatusSignal       Status = "signal"
	StatusGateFail     Status = "gate_fail"
	StatusLowGrade     Status = "low_grade"
	StatusSafetyReject Status = "safety_reject"
)

// Evaluation is the full decision record for one symbol on one date. Gate,
// quality and safety verdicts are always populated; Plan whenever the
// symbol cleared the gate and grade stages, including safety-rejected
// candidates, whose records keep their trade geometry for reporting.
type Evaluation struct {
	Symbol       string                       `json:"symbol"`
	Date         time.Time                    `json:"date"`
	Status       Status                       `json:"status"`
	Mandatory    *gates.Result                `json:"mandatory"`
	Quality      *scoring.Score               `json:"quality"`
	Safety       safety.Verdict               `json:"safety"`
	Plan         *exits.Plan                  `json:"plan,omitempty"`
	Snapshot     indicators.IndicatorSnapshot `json:"snapshot"`
	EvaluationMs float64                      `json:"evaluation_ms"`
}

// Signal is the tradeable projection of a fully approved evaluation.
type Signal struct {
	Symbol    string                       `json:"symbol"`
	Date      time.Time                    `json:"date"`
	Entry     float64                      `json:"entry"`
	ATR       float64                      `json:"atr"`
	Grade     scoring.Grade                `json:"grade"`
	Score     float64                      `json:"score"`
	Plan      exits.Plan                   `json:"plan"`
	Quality   *scoring.Score               `json:"quality,omitempty"`
	Mandatory *gates.Result                `json:"mandatory,omitempty"`
	Snapshot  indicators.IndicatorSnapshot `json:"snapshot"`
}

// Signal projects the evaluation into a Signal, nil unless it passed
// every stage.
func (e *Evaluation) Signal() *Signal {
	if e.Status != StatusSignal || e.Plan == nil {
		return nil
	}
	return &Signal{
		Symbol:    e.Symbol,
		Date:      e.Date,
		Entry:     e.Plan.Entry,
		ATR:       e.Plan.ATR,
		Grade:     e.Quality.Grade,
		Score:     e.Quality.Score,
		Plan:      *e.Plan,
		Quality:   e.Quality,
		Mandatory: e.Mandatory,
		Snapshot:  e.Snapshot,
	}
}

// Evaluator applies the full rule table to computed indicator series.
type Evaluator struct {
	engine  *indicators.Engine
	gate    *gates.Evaluator
	scorer  *scoring.Scorer
	filter  *safety.Filter
	exitGen *exits.Generator
	window  int
}

// NewEvaluator wires the rule table into stage evaluators; nil means the
// default rules.
func NewEvaluator(rules *config.Rules) *Evaluator {
	if rules == nil {
		rules = config.DefaultRules()
	}

	gate := gates.NewEvaluator(&rules.Gate)
	scorer := scoring.NewScorer(&rules.Quality)

	window := gate.WindowSize()
	if scorer.WindowSize() > window {
		window = scorer.WindowSize()
	}

	return &Evaluator{
		engine:  indicators.NewEngine(&rules.Indicators),
		gate:    gate,
		scorer:  scorer,
		filter:  safety.NewFilter(&rules.Safety),
		exitGen: exits.NewGenerator(&rules.Exit),
		window:  window,
	}
}

// Engine exposes the indicator engine for callers that precompute series.
func (ev *Evaluator) Engine() *indicators.Engine { return ev.engine }

// PlanAt builds an exit plan for an arbitrary entry price with the
// configured multipliers, for callers that fill away from the signal close.
func (ev *Evaluator) PlanAt(entry, atr float64) (exits.Plan, error) {
	return ev.exitGen.Plan(entry, atr)
}

// BarsRequired is the minimum series length for an evaluation at the final
// bar: the indicator warmup plus the trailing snapshot window the gate and
// quality stages look back across.
func (ev *Evaluator) BarsRequired() int {
	return ev.engine.MinBars() + ev.window - 1
}

// EvaluateAt runs every stage against the snapshot at idx. The gate,
// quality and safety verdicts are recorded regardless of each other's
// outcome so rejected symbols still explain themselves; the exit plan is
// generated for every gate-passing, graded candidate.
func (ev *Evaluator) EvaluateAt(c *indicators.Computed, idx int) (*Evaluation, error) {
	start := time.Now()

	window, err := c.Window(idx, ev.window)
	if err != nil {
		return nil, err
	}
	snap := window[len(window)-1]

	mandatory, err := ev.gate.Evaluate(c.Symbol(), window)
	if err != nil {
		return nil, err
	}
	quality, err := ev.scorer.Evaluate(c.Symbol(), window)
	if err != nil {
		return nil, err
	}
	verdict := ev.filter.Check(snap)

	e := &Evaluation{
		Symbol:    c.Symbol(),
		Date:      snap.Date,
		Mandatory: mandatory,
		Quality:   quality,
		Safety:    verdict,
		Snapshot:  snap,
	}

	switch {
	case !mandatory.Passed:
		e.Status = StatusGateFail
	case quality.Grade == scoring.GradeSkip:
		e.Status = StatusLowGrade
	default:
		// Safety-rejected candidates keep their exit plan: the record is
		// retained for reporting and must show the full trade geometry
		// alongside the rejection reason.
		plan, err := ev.exitGen.Plan(snap.Close, snap.ATR14)
		if err != nil {
			return nil, err
		}
		e.Plan = &plan
		if verdict.Approved {
			e.Status = StatusSignal
		} else {
			e.Status = StatusSafetyReject
		}
	}

	e.EvaluationMs = float64(time.Since(start).Microseconds()) / 1000.0
	return e, nil
}

// EvaluateLatest computes indicators for the series and evaluates its most
// recent bar.
func (ev *Evaluator) EvaluateLatest(ps indicators.PriceSeries) (*Evaluation, error) {
	c, err := ev.engine.Compute(ps)
	if err != nil {
		return nil, err
	}
	return ev.EvaluateAt(c, c.Len()-1)
}
