package backtest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/swingdesk/swingrun/internal/exits"
	"github.com/swingdesk/swingrun/internal/scoring"
)

// State tracks where a simulated trade sits in its lifecycle.
type State int

const (
	StateOpen State = iota
	StateClosedTP3
	StateClosedStop
	StateClosedTimeExit
)

// String returns the state label used in artifacts and logs.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "Open"
	case StateClosedTP3:
		return "ClosedTP3"
	case StateClosedStop:
		return "ClosedStop"
	case StateClosedTimeExit:
		return "ClosedTimeExit"
	default:
		return "Unknown"
	}
}

// MarshalJSON encodes the state as its label.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state label written by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	switch label {
	case "Open":
		*s = StateOpen
	case "ClosedTP3":
		*s = StateClosedTP3
	case "ClosedStop":
		*s = StateClosedStop
	case "ClosedTimeExit":
		*s = StateClosedTimeExit
	default:
		return fmt.Errorf("unknown trade state %q", label)
	}
	return nil
}

// Terminal exit reasons recorded on closed outcomes.
const (
	ReasonTP3      = "TP3"
	ReasonStopLoss = "StopLoss"
	ReasonTimeExit = "TimeExit"
)

// Fill is one liquidation event: a fraction of the original position sold
// at a known price on a known forward day.
type Fill struct {
	Tier     int       `json:"tier"` // 1..3 for take-profit tiers, 0 for stop and time exits
	Kind     string    `json:"kind"` // tp1, tp2, tp3, stop, time
	Day      int       `json:"day"`  // 1-based day in the forward window
	Date     time.Time `json:"date"`
	Price    float64   `json:"price"`
	Fraction float64   `json:"fraction"`
}

// Outcome is the full accounting of one simulated trade. Fill fractions plus
// Remaining always sum to the original position of 1.0.
type Outcome struct {
	Symbol            string    `json:"symbol"`
	EntryDate         time.Time `json:"entry_date"`
	Entry             float64   `json:"entry"`
	State             State     `json:"state"`
	Reason            string    `json:"reason,omitempty"`
	Fills             []Fill    `json:"fills"`
	Remaining         float64   `json:"remaining"`
	RealizedReturnPct float64   `json:"realized_return_pct"`
	DaysHeld          int       `json:"days_held"`
	ExitDate          time.Time `json:"exit_date,omitempty"`
}

// Closed reports whether the trade reached a terminal state.
func (o Outcome) Closed() bool { return o.State != StateOpen }

// Trade couples a historical signal with its simulated outcome.
type Trade struct {
	Symbol     string        `json:"symbol"`
	SignalDate time.Time     `json:"signal_date"`
	Grade      scoring.Grade `json:"grade"`
	Score      float64       `json:"score"`
	Plan       exits.Plan    `json:"plan"`
	Outcome    Outcome       `json:"outcome"`
}

// GradeStats aggregates closed-trade performance for one quality grade.
type GradeStats struct {
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	WinRate      float64 `json:"win_rate"`
	AvgReturnPct float64 `json:"avg_return_pct"`
}

// Summary aggregates a backtest run. Win and return statistics cover closed
// trades only; positions still open when data ran out are counted separately.
type Summary struct {
	Trades       int                    `json:"trades"`
	Closed       int                    `json:"closed"`
	StillOpen    int                    `json:"still_open"`
	Wins         int                    `json:"wins"`
	WinRate      float64                `json:"win_rate"`
	AvgReturnPct float64                `json:"avg_return_pct"`
	ByReason     map[string]int         `json:"by_reason"`
	ByGrade      map[string]*GradeStats `json:"by_grade"`
}

// Result is the complete output of one backtest run.
type Result struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Symbols   int       `json:"symbols"`
	Errors    []string  `json:"errors,omitempty"`
	Trades    []Trade   `json:"trades"`
	Summary   *Summary  `json:"summary"`
}
