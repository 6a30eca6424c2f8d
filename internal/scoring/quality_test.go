package scoring

import (
	"errors"
	"testing"
	"time"

	"github.com/swingdesk/swingrun/internal/indicators"
)

// fullScoreWindow returns six snapshots where every criterion is satisfied
// on the final day.
func fullScoreWindow() []indicators.IndicatorSnapshot {
	w := make([]indicators.IndicatorSnapshot, 6)
	for i := range w {
		f := float64(i)
		w[i] = indicators.IndicatorSnapshot{
			Date:              time.Date(2025, 3, 3+i, 0, 0, 0, 0, time.UTC),
			Close:             100 + f,
			Volume:            1_000_000 + 50_000*f,
			RSI14:             60,
			ADX:               28 + f,
			ATR14:             2, // 2% of ~100
			EMA50:             95 + f,
			RoomToRunPct:      18,
			CandlePositionPct: 80,
		}
	}
	return w
}

func TestPerfectScoreHitsMax(t *testing.T) {
	s := NewScorer(nil)
	score, err := s.Evaluate("FULL.NS", fullScoreWindow())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if score.Score != 13.5 {
		t.Errorf("all-criteria score = %v, want 13.5", score.Score)
	}
	if score.MaxScore != 13.5 {
		t.Errorf("max score = %v, want 13.5", score.MaxScore)
	}
	if score.Grade != GradeA {
		t.Errorf("grade = %v, want A", score.Grade)
	}
	if len(score.Criteria) != 7 {
		t.Fatalf("criteria count = %d, want exactly 7 (none dropped, none duplicated)", len(score.Criteria))
	}
	seen := map[string]bool{}
	for _, c := range score.Criteria {
		if seen[c.Name] {
			t.Errorf("criterion %s appears twice", c.Name)
		}
		seen[c.Name] = true
		if !c.Met {
			t.Errorf("criterion %s unexpectedly unmet", c.Name)
		}
	}
}

func TestWeightTableSumsToMax(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Weights.Sum(); got != 13.5 {
		t.Fatalf("default weights sum = %v, want 13.5", got)
	}
}

func TestGradeBoundariesExact(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		score float64
		want  Grade
	}{
		{13.5, GradeA},
		{11.0, GradeA},
		{10.999, GradeB},
		{8.0, GradeB},
		{7.999, GradeC},
		{5.0, GradeC},
		{4.999, GradeSkip},
		{0, GradeSkip},
	}
	for _, tc := range cases {
		if got := cfg.GradeFor(tc.score); got != tc.want {
			t.Errorf("GradeFor(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestScoreMonotonicUnderCriterionToggle(t *testing.T) {
	// Turning one criterion off never increases the score.
	s := NewScorer(nil)
	base, err := s.Evaluate("BASE.NS", fullScoreWindow())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	mutations := []func(w []indicators.IndicatorSnapshot){
		func(w []indicators.IndicatorSnapshot) { w[5].EMA50 = w[0].EMA50 - 1 },
		func(w []indicators.IndicatorSnapshot) { w[5].ADX = w[0].ADX - 1 },
		func(w []indicators.IndicatorSnapshot) { w[5].RSI14 = 75 },
		func(w []indicators.IndicatorSnapshot) { w[5].Volume = w[4].Volume },
		func(w []indicators.IndicatorSnapshot) { w[5].RoomToRunPct = 2 },
		func(w []indicators.IndicatorSnapshot) { w[5].ATR14 = 6 }, // ~6% of price
		func(w []indicators.IndicatorSnapshot) { w[5].CandlePositionPct = 40 },
	}
	for i, mutate := range mutations {
		w := fullScoreWindow()
		mutate(w)
		got, err := s.Evaluate("MUT.NS", w)
		if err != nil {
			t.Fatalf("mutation %d: %v", i, err)
		}
		if got.Score >= base.Score {
			t.Errorf("mutation %d: score %v did not drop below full score %v", i, got.Score, base.Score)
		}
		if got.Score < 0 || got.Score > got.MaxScore {
			t.Errorf("mutation %d: score %v outside [0, %v]", i, got.Score, got.MaxScore)
		}
		if len(got.Criteria) != 7 {
			t.Errorf("mutation %d: criteria count %d, want 7", i, len(got.Criteria))
		}
	}
}

func TestATRSteadyBandInclusive(t *testing.T) {
	s := NewScorer(nil)

	w := fullScoreWindow()
	w[5].Close = 100
	w[5].ATR14 = 1.0 // exactly 1%
	score, err := s.Evaluate("LOWBAND.NS", w)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !criterionMet(score, CritATRSteady) {
		t.Errorf("ATR exactly 1%% of price must satisfy the steady band")
	}

	w = fullScoreWindow()
	w[5].Close = 100
	w[5].ATR14 = 3.0 // exactly 3%
	score, err = s.Evaluate("HIGHBAND.NS", w)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !criterionMet(score, CritATRSteady) {
		t.Errorf("ATR exactly 3%% of price must satisfy the steady band")
	}

	w = fullScoreWindow()
	w[5].Close = 100
	w[5].ATR14 = 3.01
	score, err = s.Evaluate("OVER.NS", w)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if criterionMet(score, CritATRSteady) {
		t.Errorf("ATR above 3%% must miss the steady band")
	}
}

func TestScorerIgnoresGateOutcome(t *testing.T) {
	// A window that would fail the mandatory gate hard (weak ADX, weak RSI)
	// still scores normally: quality is independent of gating.
	s := NewScorer(nil)
	w := fullScoreWindow()
	for i := range w {
		w[i].ADX = 5 + float64(i) // rising but far below any gate floor
		w[i].RSI14 = 20
	}
	score, err := s.Evaluate("WEAK.NS", w)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// adx_rising and rsi_not_overbought are both satisfied here.
	if !criterionMet(score, CritADXRising) || !criterionMet(score, CritRSINotOverbought) {
		t.Errorf("criteria must evaluate on their own terms, got %+v", score.Criteria)
	}
}

func TestShortWindowRejected(t *testing.T) {
	s := NewScorer(nil)
	_, err := s.Evaluate("SHORT.NS", fullScoreWindow()[:3])
	if !errors.Is(err, indicators.ErrInsufficientHistory) {
		t.Fatalf("short window must fail with ErrInsufficientHistory, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	if issues := DefaultConfig().Validate(); len(issues) != 0 {
		t.Fatalf("default config must validate cleanly, got %v", issues)
	}
	bad := DefaultConfig()
	bad.GradeAMin = 3 // below B cut
	if issues := bad.Validate(); len(issues) == 0 {
		t.Errorf("unordered grade cuts must be flagged")
	}
	bad = DefaultConfig()
	bad.Weights.Headroom = -1
	if issues := bad.Validate(); len(issues) == 0 {
		t.Errorf("negative weight must be flagged")
	}
}

func criterionMet(s *Score, name string) bool {
	for _, c := range s.Criteria {
		if c.Name == name {
			return c.Met
		}
	}
	return false
}
