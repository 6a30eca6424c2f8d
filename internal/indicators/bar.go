// Package indicators derives per-day technical indicator snapshots from raw
// daily price/volume series. All oscillators share one smoothing convention
// (Wilder) so RSI, +DI/-DI, ADX and ATR stay internally consistent.
package indicators

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInsufficientHistory means the series is too short (or too dirty)
	// to compute the full indicator window for the requested date.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrMalformedBar means a single day's OHLCV relationship is invalid.
	ErrMalformedBar = errors.New("malformed bar")
)

// Bar is one daily OHLCV record.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate rejects bars with broken OHLC relationships. A nil return does not
// guarantee the bar is sensible, only that the math downstream cannot divide
// by garbage or propagate NaNs.
func (b Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite field on %s: %w", b.Date.Format("2006-01-02"), ErrMalformedBar)
		}
	}
	if b.High < b.Low {
		return fmt.Errorf("high %.4f below low %.4f on %s: %w", b.High, b.Low, b.Date.Format("2006-01-02"), ErrMalformedBar)
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("non-positive price on %s: %w", b.Date.Format("2006-01-02"), ErrMalformedBar)
	}
	if b.Volume < 0 {
		return fmt.Errorf("negative volume on %s: %w", b.Date.Format("2006-01-02"), ErrMalformedBar)
	}
	return nil
}

// PriceSeries is the chronological daily history for one security. It is
// owned by the caller and read, never mutated, by this package.
type PriceSeries struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// Len returns the number of bars.
func (p PriceSeries) Len() int { return len(p.Bars) }

// Last returns the most recent bar. Callers must check Len first.
func (p PriceSeries) Last() Bar { return p.Bars[len(p.Bars)-1] }

// SortedByDate reports whether bars are strictly ascending by date.
// Duplicate or reversed dates break the engine's window arithmetic.
func (p PriceSeries) SortedByDate() bool {
	for i := 1; i < len(p.Bars); i++ {
		if !p.Bars[i].Date.After(p.Bars[i-1].Date) {
			return false
		}
	}
	return true
}
