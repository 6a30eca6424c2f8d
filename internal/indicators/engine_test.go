package indicators

import (
	"errors"
	"math"
	"testing"
	"time"
)

// trendSeries builds a deterministic drifting series long enough for every
// window: a gentle uptrend with a mild oscillation, constant-ish volume.
func trendSeries(symbol string, n int) PriceSeries {
	bars := make([]Bar, n)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		base := 100 + 0.25*float64(i) + 2*math.Sin(float64(i)/9)
		bars[i] = Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   base - 0.4,
			High:   base + 1.2,
			Low:    base - 1.2,
			Close:  base + 0.5,
			Volume: 1_000_000 + 10_000*float64(i%7),
		}
	}
	return PriceSeries{Symbol: symbol, Bars: bars}
}

func TestSnapshotOnHealthySeries(t *testing.T) {
	eng := NewEngine(nil)
	ps := trendSeries("TEST.NS", 300)

	snap, err := eng.Snapshot(ps)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if snap.Date != ps.Last().Date {
		t.Errorf("snapshot date = %v, want last bar date %v", snap.Date, ps.Last().Date)
	}
	if snap.Close != ps.Last().Close {
		t.Errorf("snapshot close = %v, want %v", snap.Close, ps.Last().Close)
	}
	for name, v := range map[string]float64{
		"rsi14": snap.RSI14, "adx": snap.ADX, "atr14": snap.ATR14,
		"rvol": snap.RVol, "sma200": snap.SMA200, "ema20": snap.EMA20,
		"ema50": snap.EMA50, "sma200_20d_ago": snap.SMA200Back20,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s is not finite: %v", name, v)
		}
	}
	if snap.RSI14 < 0 || snap.RSI14 > 100 {
		t.Errorf("rsi out of bounds: %v", snap.RSI14)
	}
	if snap.CandlePositionPct < 0 || snap.CandlePositionPct > 100 {
		t.Errorf("candle position out of bounds: %v", snap.CandlePositionPct)
	}
	if !snap.PriceAboveSMA200 {
		t.Errorf("a 300-day uptrend must close above its SMA200")
	}
	if snap.SMA200 <= snap.SMA200Back20 {
		t.Errorf("uptrend SMA200 %v should exceed its 20-day-ago value %v", snap.SMA200, snap.SMA200Back20)
	}
}

func TestSnapshotInsufficientHistory(t *testing.T) {
	eng := NewEngine(nil)
	ps := trendSeries("SHORT.NS", 150)

	_, err := eng.Snapshot(ps)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("150 bars must fail with ErrInsufficientHistory, got %v", err)
	}
}

func TestSnapshotEmptySeries(t *testing.T) {
	eng := NewEngine(nil)
	_, err := eng.Snapshot(PriceSeries{Symbol: "EMPTY"})
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("empty series must fail with ErrInsufficientHistory, got %v", err)
	}
}

func TestMalformedFinalBarRejectsThatDay(t *testing.T) {
	eng := NewEngine(nil)
	ps := trendSeries("BAD.NS", 300)
	last := len(ps.Bars) - 1
	ps.Bars[last].High = ps.Bars[last].Low - 5 // high below low

	_, err := eng.Snapshot(ps)
	if !errors.Is(err, ErrMalformedBar) {
		t.Fatalf("want ErrMalformedBar for the offending day, got %v", err)
	}
}

func TestMalformedBarInsideLookbackSurfacesInsufficientHistory(t *testing.T) {
	eng := NewEngine(nil)
	ps := trendSeries("DIRTY.NS", 300)
	ps.Bars[250].Close = -1 // inside the 220-bar window of the final bar

	_, err := eng.Snapshot(ps)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("dirty lookback must surface ErrInsufficientHistory, got %v", err)
	}
	if errors.Is(err, ErrMalformedBar) {
		t.Fatalf("the final day itself is clean; error must not be ErrMalformedBar")
	}
}

func TestMalformedBarOutsideLookbackIsIgnored(t *testing.T) {
	eng := NewEngine(nil)
	ps := trendSeries("OLDBAD.NS", 600)
	ps.Bars[10].Close = -1 // far older than the final bar's lookback window

	if _, err := eng.Snapshot(ps); err != nil {
		t.Fatalf("malformed bar outside the lookback must not fail the date: %v", err)
	}
}

func TestUnsortedSeriesRejected(t *testing.T) {
	eng := NewEngine(nil)
	ps := trendSeries("SWAP.NS", 300)
	ps.Bars[5], ps.Bars[6] = ps.Bars[6], ps.Bars[5]

	_, err := eng.Compute(ps)
	if !errors.Is(err, ErrMalformedBar) {
		t.Fatalf("out-of-order bars must be rejected, got %v", err)
	}
}

func TestFlatDayCandlePositionNeutral(t *testing.T) {
	eng := NewEngine(nil)
	ps := trendSeries("FLAT.NS", 300)
	last := len(ps.Bars) - 1
	c := ps.Bars[last].Close
	ps.Bars[last].High = c
	ps.Bars[last].Low = c
	ps.Bars[last].Open = c

	snap, err := eng.Snapshot(ps)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.CandlePositionPct != 50 {
		t.Errorf("zero-range day candle position = %v, want neutral 50", snap.CandlePositionPct)
	}
}

func TestRVolSpikeMeasuredAgainstPriorDaysOnly(t *testing.T) {
	eng := NewEngine(nil)
	ps := trendSeries("SPIKE.NS", 300)
	last := len(ps.Bars) - 1
	// Flatten the trailing window, then spike the final day 3x.
	for i := last - 25; i < last; i++ {
		ps.Bars[i].Volume = 1_000_000
	}
	ps.Bars[last].Volume = 3_000_000

	snap, err := eng.Snapshot(ps)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !almostEqual(snap.RVol, 3, 1e-9) {
		t.Errorf("rvol = %v, want exactly 3 when the spike is excluded from its own denominator", snap.RVol)
	}
}

func TestWindowOrderAndLength(t *testing.T) {
	eng := NewEngine(nil)
	ps := trendSeries("WIN.NS", 300)

	comp, err := eng.Compute(ps)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	win, err := comp.Window(299, 3)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(win) != 3 {
		t.Fatalf("window length = %d, want 3", len(win))
	}
	if !win[0].Date.Before(win[1].Date) || !win[1].Date.Before(win[2].Date) {
		t.Errorf("window must be oldest-first: %v %v %v", win[0].Date, win[1].Date, win[2].Date)
	}
	if win[2].Date != ps.Last().Date {
		t.Errorf("window must end at the requested index")
	}
}

func TestMinBarsDominatedByLongSMA(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.MinBars(); got != 220 {
		t.Errorf("default MinBars = %d, want 220 (SMA200 + 20-day shift)", got)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if issues := cfg.Validate(); len(issues) != 0 {
		t.Fatalf("default config must validate cleanly, got %v", issues)
	}
	cfg.FastEMA = 60
	if issues := cfg.Validate(); len(issues) == 0 {
		t.Errorf("fast EMA above slow EMA must be flagged")
	}
	cfg = DefaultConfig()
	cfg.RSIPeriod = 0
	if issues := cfg.Validate(); len(issues) == 0 {
		t.Errorf("zero RSI period must be flagged")
	}
}
