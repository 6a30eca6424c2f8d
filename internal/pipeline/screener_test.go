package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/swingdesk/swingrun/internal/config"
	"github.com/swingdesk/swingrun/internal/exits"
	"github.com/swingdesk/swingrun/internal/indicators"
	"github.com/swingdesk/swingrun/internal/scoring"
)

// relaxedRules loosens every threshold that depends on the market's mood so
// a clean synthetic uptrend deterministically clears the pipeline.
func relaxedRules() *config.Rules {
	rules := config.DefaultRules()
	rules.Gate.MinADX = 1
	rules.Gate.MinCandlePosition = 1
	rules.Gate.RSIFloor = 1
	rules.Gate.RSICeiling = 100
	rules.Gate.MinRVol = 0.5
	rules.Quality.GradeAMin = 10
	rules.Quality.GradeBMin = 6
	rules.Quality.GradeCMin = 0.5
	rules.Safety.MaxATRPct = 50
	rules.Safety.MinHeadroomPct = -100
	rules.Safety.MaxRSI = 100
	rules.Safety.MinRVol = 0.1
	rules.Safety.MinADX = 0
	return rules
}

// rampSeries rises half a point a day with closes near the highs and gently
// growing volume. One early down day keeps RSI strictly below 100 so the
// momentum band and rising-RSI chain stay satisfiable.
func rampSeries(symbol string, n int) indicators.PriceSeries {
	bars := make([]indicators.Bar, n)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		if i > 0 {
			if i == 5 {
				price -= 0.2
			} else {
				price += 0.5
			}
		}
		bars[i] = indicators.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   price - 0.3,
			High:   price + 0.1,
			Low:    price - 0.7,
			Close:  price,
			Volume: 1_000_000 + float64(i)*1_000,
		}
	}
	return indicators.PriceSeries{Symbol: symbol, Bars: bars}
}

// fadeSeries declines steadily; it can never sit above a rising SMA200.
func fadeSeries(symbol string, n int) indicators.PriceSeries {
	bars := make([]indicators.Bar, n)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 400.0
	for i := 0; i < n; i++ {
		if i > 0 {
			price -= 0.4
		}
		bars[i] = indicators.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   price + 0.3,
			High:   price + 0.7,
			Low:    price - 0.1,
			Close:  price,
			Volume: 900_000,
		}
	}
	return indicators.PriceSeries{Symbol: symbol, Bars: bars}
}

type fakeSource struct {
	mu       sync.Mutex
	series   map[string]indicators.PriceSeries
	errs     map[string]error
	delay    time.Duration
	inflight int
	peak     int
}

func (f *fakeSource) Daily(ctx context.Context, symbol string, bars int) (indicators.PriceSeries, error) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()

	if err, ok := f.errs[symbol]; ok {
		return indicators.PriceSeries{}, err
	}
	ps, ok := f.series[symbol]
	if !ok {
		return indicators.PriceSeries{}, fmt.Errorf("no fixture for %s", symbol)
	}
	return ps, nil
}

func TestScreenEmitsSignalForTrendingSymbol(t *testing.T) {
	source := &fakeSource{series: map[string]indicators.PriceSeries{
		"RAMP.NS": rampSeries("RAMP.NS", 300),
	}}
	screener := NewScreener(source, NewEvaluator(relaxedRules()), 2)

	result, err := screener.Screen(context.Background(), []string{"RAMP.NS"})
	if err != nil {
		t.Fatalf("Screen failed: %v", err)
	}

	if result.Totals.Signals != 1 {
		t.Fatalf("Signals = %d, want 1 (evaluations: %+v)", result.Totals.Signals, result.Totals)
	}
	if len(result.RunID) != 8 {
		t.Errorf("RunID %q should be 8 chars", result.RunID)
	}

	sig := result.Signals[0]
	if sig.Symbol != "RAMP.NS" {
		t.Errorf("Symbol = %q", sig.Symbol)
	}
	if sig.Grade == scoring.GradeSkip {
		t.Error("signal grade should not be SKIP")
	}
	if !sig.Mandatory.Passed {
		t.Errorf("mandatory gate should pass, failures: %v", sig.Mandatory.FailureReasons)
	}
	last := source.series["RAMP.NS"].Bars[299]
	if sig.Entry != last.Close {
		t.Errorf("Entry = %v, want last close %v", sig.Entry, last.Close)
	}
	plan := sig.Plan
	if !(plan.Stop < plan.Entry && plan.Entry < plan.TP1 && plan.TP1 < plan.TP2 && plan.TP2 < plan.TP3) {
		t.Errorf("plan prices out of order: %+v", plan)
	}

	eval := result.Evaluations[0]
	if eval.Status != StatusSignal {
		t.Errorf("Status = %q, want signal", eval.Status)
	}
	if !eval.Safety.Approved {
		t.Errorf("safety should approve: %+v", eval.Safety)
	}
}

func TestScreenSplitsUniverse(t *testing.T) {
	source := &fakeSource{
		series: map[string]indicators.PriceSeries{
			"RAMP.NS":  rampSeries("RAMP.NS", 300),
			"FADE.NS":  fadeSeries("FADE.NS", 300),
			"SHORT.NS": rampSeries("SHORT.NS", 60),
		},
		errs: map[string]error{
			"DOWN.NS": errors.New("connection refused"),
		},
	}
	screener := NewScreener(source, NewEvaluator(relaxedRules()), 4)

	result, err := screener.Screen(context.Background(), []string{"RAMP.NS", "FADE.NS", "SHORT.NS", "DOWN.NS"})
	if err != nil {
		t.Fatalf("Screen failed: %v", err)
	}

	if result.Totals.Universe != 4 || result.Totals.Evaluated != 2 {
		t.Errorf("totals = %+v, want universe 4 evaluated 2", result.Totals)
	}
	if result.Totals.Signals != 1 || result.Totals.GateFailures != 1 {
		t.Errorf("totals = %+v, want 1 signal and 1 gate failure", result.Totals)
	}
	if result.Totals.Errors != 2 {
		t.Fatalf("Errors = %d, want 2: %+v", result.Totals.Errors, result.Errors)
	}

	kinds := map[string]string{}
	for _, se := range result.Errors {
		kinds[se.Symbol] = se.Kind
	}
	if kinds["DOWN.NS"] != ErrKindFetch {
		t.Errorf("DOWN.NS kind = %q, want fetch", kinds["DOWN.NS"])
	}
	if kinds["SHORT.NS"] != ErrKindHistory {
		t.Errorf("SHORT.NS kind = %q, want insufficient_history", kinds["SHORT.NS"])
	}

	for i := 1; i < len(result.Evaluations); i++ {
		if result.Evaluations[i-1].Symbol > result.Evaluations[i].Symbol {
			t.Errorf("evaluations not sorted by symbol at %d", i)
		}
	}
}

func TestScreenEmptyUniverse(t *testing.T) {
	screener := NewScreener(&fakeSource{}, NewEvaluator(nil), 2)
	if _, err := screener.Screen(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty universe")
	}
}

func TestScreenRespectsConcurrencyCap(t *testing.T) {
	series := map[string]indicators.PriceSeries{}
	universe := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		sym := fmt.Sprintf("SYM%02d.NS", i)
		series[sym] = rampSeries(sym, 300)
		universe = append(universe, sym)
	}
	source := &fakeSource{series: series, delay: 5 * time.Millisecond}

	screener := NewScreener(source, NewEvaluator(relaxedRules()), 3)
	if _, err := screener.Screen(context.Background(), universe); err != nil {
		t.Fatalf("Screen failed: %v", err)
	}

	if source.peak > 3 {
		t.Errorf("peak concurrency %d exceeded cap 3", source.peak)
	}
}

func TestEvaluateLatestGateFailStillExplains(t *testing.T) {
	eval := NewEvaluator(relaxedRules())

	e, err := eval.EvaluateLatest(fadeSeries("FADE.NS", 300))
	if err != nil {
		t.Fatalf("EvaluateLatest failed: %v", err)
	}

	if e.Status != StatusGateFail {
		t.Fatalf("Status = %q, want gate_fail", e.Status)
	}
	if e.Mandatory == nil || len(e.Mandatory.FailureReasons) == 0 {
		t.Error("gate failures should be reported")
	}
	if e.Quality == nil {
		t.Error("quality score should be computed for rejected symbols")
	}
	if e.Plan != nil {
		t.Error("no exit plan for rejected symbols")
	}
	if e.Signal() != nil {
		t.Error("Signal() must be nil for gate failures")
	}
}

func TestEvaluateLatestSafetyRejectKeepsPlan(t *testing.T) {
	rules := relaxedRules()
	rules.Safety.MaxATRPct = 0.01

	eval := NewEvaluator(rules)

	e, err := eval.EvaluateLatest(rampSeries("RAMP.NS", 300))
	if err != nil {
		t.Fatalf("EvaluateLatest failed: %v", err)
	}

	if e.Status != StatusSafetyReject {
		t.Fatalf("Status = %q, want safety_reject", e.Status)
	}
	if e.Mandatory == nil || !e.Mandatory.Passed {
		t.Error("safety rejection implies the gate stage passed")
	}
	if e.Safety.Rule != "max_atr_pct" || e.Safety.Reason == "" {
		t.Errorf("Safety verdict = %+v, want max_atr_pct with a reason", e.Safety)
	}
	if e.Plan == nil {
		t.Fatal("safety-rejected evaluations keep their exit plan")
	}
	if e.Plan.Entry != e.Snapshot.Close || e.Plan.Stop >= e.Plan.Entry {
		t.Errorf("plan geometry off: entry %.2f stop %.2f close %.2f",
			e.Plan.Entry, e.Plan.Stop, e.Snapshot.Close)
	}
	if e.Signal() != nil {
		t.Error("Signal() must be nil for safety rejections")
	}
}

func TestEvaluatorBarsRequired(t *testing.T) {
	eval := NewEvaluator(nil)

	// 220 bars of indicator warmup plus five extra so the six-snapshot
	// trailing window is fully defined.
	if got := eval.BarsRequired(); got != 225 {
		t.Errorf("BarsRequired = %d, want 225", got)
	}
}

func TestAssembleResultOrdering(t *testing.T) {
	sig := func(sym string, grade scoring.Grade, score float64) *Evaluation {
		return &Evaluation{
			Symbol:  sym,
			Status:  StatusSignal,
			Quality: &scoring.Score{Symbol: sym, Grade: grade, Score: score},
			Plan:    &exits.Plan{Entry: 100},
		}
	}
	evaluations := []*Evaluation{
		sig("ZETA.NS", scoring.GradeB, 9.0),
		sig("ALPHA.NS", scoring.GradeA, 11.5),
		sig("MID.NS", scoring.GradeB, 10.0),
		sig("AAA.NS", scoring.GradeB, 9.0),
		{Symbol: "GATE.NS", Status: StatusGateFail},
		{Symbol: "SKIP.NS", Status: StatusLowGrade},
		{Symbol: "RISK.NS", Status: StatusSafetyReject},
	}

	result := assembleResult("test1234", time.Now(), 9, evaluations, []SymbolError{{Symbol: "ERR.NS", Kind: ErrKindFetch}})

	want := Totals{Universe: 9, Evaluated: 7, Signals: 4, GateFailures: 1, LowGrade: 1, SafetyRejects: 1, Errors: 1}
	if result.Totals != want {
		t.Errorf("Totals = %+v, want %+v", result.Totals, want)
	}

	var order []string
	for _, s := range result.Signals {
		order = append(order, s.Symbol)
	}
	wantOrder := []string{"ALPHA.NS", "MID.NS", "AAA.NS", "ZETA.NS"}
	for i := range wantOrder {
		if order[i] != wantOrder[i] {
			t.Fatalf("signal order = %v, want %v", order, wantOrder)
		}
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", indicators.ErrInsufficientHistory), ErrKindHistory},
		{fmt.Errorf("x: %w", indicators.ErrMalformedBar), ErrKindMalformed},
		{fmt.Errorf("x: %w", exits.ErrInvalidVolatility), ErrKindVolatility},
		{errors.New("fetch: connection refused"), ErrKindFetch},
		{errors.New("boom"), ErrKindInternal},
	}
	for _, c := range cases {
		if got := classifyError(c.err); got != c.want {
			t.Errorf("classifyError(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
