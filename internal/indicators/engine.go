package indicators

import (
	"fmt"
	"math"
	"time"
)

// Config fixes the indicator windows. Periods are trading days.
type Config struct {
	RSIPeriod       int `yaml:"rsi_period"`
	ADXPeriod       int `yaml:"adx_period"`
	ATRPeriod       int `yaml:"atr_period"`
	FastEMA         int `yaml:"fast_ema"`
	SlowEMA         int `yaml:"slow_ema"`
	LongSMA         int `yaml:"long_sma"`
	LongSMAShift    int `yaml:"long_sma_shift"`
	RVolWindow      int `yaml:"rvol_window"`
	VolumeP25Window int `yaml:"volume_p25_window"`
	HeadroomWindow  int `yaml:"headroom_window"`
}

// DefaultConfig returns the standard swing-screen windows.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:       14,
		ADXPeriod:       14,
		ATRPeriod:       14,
		FastEMA:         20,
		SlowEMA:         50,
		LongSMA:         200,
		LongSMAShift:    20,
		RVolWindow:      20,
		VolumeP25Window: 20,
		HeadroomWindow:  252,
	}
}

// Validate returns a list of configuration problems, empty when sane.
func (c Config) Validate() []string {
	var issues []string
	check := func(name string, v int) {
		if v <= 0 {
			issues = append(issues, fmt.Sprintf("%s must be positive, got %d", name, v))
		}
	}
	check("rsi_period", c.RSIPeriod)
	check("adx_period", c.ADXPeriod)
	check("atr_period", c.ATRPeriod)
	check("fast_ema", c.FastEMA)
	check("slow_ema", c.SlowEMA)
	check("long_sma", c.LongSMA)
	check("rvol_window", c.RVolWindow)
	check("volume_p25_window", c.VolumeP25Window)
	check("headroom_window", c.HeadroomWindow)
	if c.LongSMAShift < 0 {
		issues = append(issues, fmt.Sprintf("long_sma_shift must be non-negative, got %d", c.LongSMAShift))
	}
	if c.FastEMA >= c.SlowEMA {
		issues = append(issues, fmt.Sprintf("fast_ema %d must be below slow_ema %d", c.FastEMA, c.SlowEMA))
	}
	return issues
}

// MinBars is the shortest series that yields a fully defined snapshot at its
// last bar. The long SMA plus its shift dominates with default windows.
func (c Config) MinBars() int {
	min := c.LongSMA + c.LongSMAShift
	for _, v := range []int{2*c.ADXPeriod + 1, c.RSIPeriod + 3, c.ATRPeriod + 1, c.SlowEMA, c.RVolWindow + 1, c.VolumeP25Window} {
		if v > min {
			min = v
		}
	}
	return min
}

// IndicatorSnapshot is the derived, immutable view of one security on one
// trading day. Every field is computed from history up to and including the
// snapshot day only.
type IndicatorSnapshot struct {
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`

	RSI14             float64 `json:"rsi14"`
	PlusDI            float64 `json:"plus_di"`
	MinusDI           float64 `json:"minus_di"`
	ADX               float64 `json:"adx"`
	ATR14             float64 `json:"atr14"`
	RVol              float64 `json:"rvol"`
	SMA200            float64 `json:"sma200"`
	SMA200Back20      float64 `json:"sma200_20d_ago"`
	EMA20             float64 `json:"ema20"`
	EMA50             float64 `json:"ema50"`
	CandlePositionPct float64 `json:"candle_position_pct"`
	VolumeP25         float64 `json:"volume_25th_percentile_20d"`
	RoomToRunPct      float64 `json:"room_to_run_pct"`
	PriceAboveSMA200  bool    `json:"price_above_sma200"`
}

// ATRPct is the ATR expressed as a percentage of the close.
func (s IndicatorSnapshot) ATRPct() float64 {
	if s.Close == 0 {
		return 0
	}
	return s.ATR14 / s.Close * 100
}

// Engine computes snapshots for a configured set of windows.
type Engine struct {
	cfg Config
}

// NewEngine builds an engine; nil config means defaults.
func NewEngine(cfg *Config) *Engine {
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	return &Engine{cfg: *cfg}
}

// Config returns the engine's window configuration.
func (e *Engine) Config() Config { return e.cfg }

// MinBars is the minimum series length for a defined snapshot.
func (e *Engine) MinBars() int { return e.cfg.MinBars() }

// Computed holds the full indicator arrays for one series so that many
// snapshot dates can be read without recomputation (the backtest sweep).
type Computed struct {
	cfg    Config
	symbol string
	bars   []Bar

	rsi      []float64
	plusDI   []float64
	minusDI  []float64
	adx      []float64
	atr      []float64
	rvol     []float64
	smaLong  []float64
	emaFast  []float64
	emaSlow  []float64
	volP25   []float64
	headroom []float64

	// badBefore[i] counts malformed bars in bars[0..i-1].
	badBefore []int
}

// Compute derives every indicator array for the series in one pass per
// indicator. The series must be chronological; bars stay untouched.
func (e *Engine) Compute(ps PriceSeries) (*Computed, error) {
	if ps.Len() == 0 {
		return nil, fmt.Errorf("%s: empty series: %w", ps.Symbol, ErrInsufficientHistory)
	}
	if !ps.SortedByDate() {
		return nil, fmt.Errorf("%s: bars out of order: %w", ps.Symbol, ErrMalformedBar)
	}

	bars := ps.Bars
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	plusDI, minusDI, adx := dmiSeries(bars, e.cfg.ADXPeriod)

	c := &Computed{
		cfg:      e.cfg,
		symbol:   ps.Symbol,
		bars:     bars,
		rsi:      rsiSeries(closes, e.cfg.RSIPeriod),
		plusDI:   plusDI,
		minusDI:  minusDI,
		adx:      adx,
		atr:      atrSeries(bars, e.cfg.ATRPeriod),
		rvol:     relativeVolume(volumes, e.cfg.RVolWindow),
		smaLong:  smaSeries(closes, e.cfg.LongSMA),
		emaFast:  emaSeries(closes, e.cfg.FastEMA),
		emaSlow:  emaSeries(closes, e.cfg.SlowEMA),
		volP25:   rollingPercentile(volumes, e.cfg.VolumeP25Window, 25),
		headroom: headroomSeries(bars, e.cfg.HeadroomWindow),
	}

	c.badBefore = make([]int, len(bars)+1)
	for i, b := range bars {
		c.badBefore[i+1] = c.badBefore[i]
		if b.Validate() != nil {
			c.badBefore[i+1]++
		}
	}
	return c, nil
}

// Len returns the number of bars behind the computed arrays.
func (c *Computed) Len() int { return len(c.bars) }

// Symbol returns the series identifier.
func (c *Computed) Symbol() string { return c.symbol }

// Bar returns the raw bar at idx.
func (c *Computed) Bar(idx int) Bar { return c.bars[idx] }

// At assembles the snapshot for bar index idx. It fails with
// ErrInsufficientHistory when fewer than MinBars bars precede idx or when a
// malformed bar sits inside the required lookback, and with ErrMalformedBar
// when idx itself is the offending day.
func (c *Computed) At(idx int) (IndicatorSnapshot, error) {
	var snap IndicatorSnapshot
	need := c.cfg.MinBars()
	if idx < 0 || idx >= len(c.bars) {
		return snap, fmt.Errorf("%s: index %d out of range: %w", c.symbol, idx, ErrInsufficientHistory)
	}
	if idx+1 < need {
		return snap, fmt.Errorf("%s: need %d bars, have %d: %w", c.symbol, need, idx+1, ErrInsufficientHistory)
	}

	bar := c.bars[idx]
	if err := bar.Validate(); err != nil {
		return snap, err
	}
	windowStart := idx + 1 - need
	if c.badBefore[idx+1]-c.badBefore[windowStart] > 0 {
		return snap, fmt.Errorf("%s: malformed bar inside %d-day lookback of %s: %w",
			c.symbol, need, bar.Date.Format("2006-01-02"), ErrInsufficientHistory)
	}

	shift := c.cfg.LongSMAShift
	snap = IndicatorSnapshot{
		Date:              bar.Date,
		Close:             bar.Close,
		Volume:            bar.Volume,
		RSI14:             c.rsi[idx],
		PlusDI:            c.plusDI[idx],
		MinusDI:           c.minusDI[idx],
		ADX:               c.adx[idx],
		ATR14:             c.atr[idx],
		RVol:              c.rvol[idx],
		SMA200:            c.smaLong[idx],
		SMA200Back20:      c.smaLong[idx-shift],
		EMA20:             c.emaFast[idx],
		EMA50:             c.emaSlow[idx],
		CandlePositionPct: candlePosition(bar),
		VolumeP25:         c.volP25[idx],
		RoomToRunPct:      c.headroom[idx],
	}
	snap.PriceAboveSMA200 = snap.Close > snap.SMA200

	for name, v := range map[string]float64{
		"rsi14": snap.RSI14, "plus_di": snap.PlusDI, "minus_di": snap.MinusDI,
		"adx": snap.ADX, "atr14": snap.ATR14, "rvol": snap.RVol,
		"sma200": snap.SMA200, "sma200_20d_ago": snap.SMA200Back20,
		"ema20": snap.EMA20, "ema50": snap.EMA50,
		"volume_p25": snap.VolumeP25, "room_to_run": snap.RoomToRunPct,
	} {
		if math.IsNaN(v) {
			return IndicatorSnapshot{}, fmt.Errorf("%s: %s undefined at %s: %w",
				c.symbol, name, bar.Date.Format("2006-01-02"), ErrInsufficientHistory)
		}
	}
	return snap, nil
}

// Window returns n consecutive snapshots ending at and including idx,
// oldest first. The gate and scorer consume these for their trailing checks.
func (c *Computed) Window(idx, n int) ([]IndicatorSnapshot, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%s: window size %d: %w", c.symbol, n, ErrInsufficientHistory)
	}
	out := make([]IndicatorSnapshot, 0, n)
	for i := idx - n + 1; i <= idx; i++ {
		snap, err := c.At(i)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Snapshot computes the snapshot for the final bar of the series.
func (e *Engine) Snapshot(ps PriceSeries) (IndicatorSnapshot, error) {
	c, err := e.Compute(ps)
	if err != nil {
		return IndicatorSnapshot{}, err
	}
	return c.At(ps.Len() - 1)
}
