package gates

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swingdesk/swingrun/internal/indicators"
)

// passingWindow builds a three-snapshot window that clears every check.
func passingWindow() []indicators.IndicatorSnapshot {
	day := func(offset int, rsi float64) indicators.IndicatorSnapshot {
		return indicators.IndicatorSnapshot{
			Date:              time.Date(2025, 6, 2+offset, 0, 0, 0, 0, time.UTC),
			Close:             150,
			Volume:            2_000_000,
			RSI14:             rsi,
			PlusDI:            28,
			MinusDI:           12,
			ADX:               31,
			ATR14:             3,
			RVol:              1.8,
			SMA200:            140,
			SMA200Back20:      138,
			EMA20:             148,
			EMA50:             145,
			CandlePositionPct: 82,
			VolumeP25:         1_000_000,
			RoomToRunPct:      22,
			PriceAboveSMA200:  true,
		}
	}
	return []indicators.IndicatorSnapshot{day(0, 58), day(1, 60), day(2, 62)}
}

func TestAllChecksPass(t *testing.T) {
	ev := NewEvaluator(nil)
	res, err := ev.Evaluate("RELIANCE.NS", passingWindow())
	require.NoError(t, err)

	assert.True(t, res.Passed)
	assert.Len(t, res.PassedChecks, 6)
	assert.Empty(t, res.FailureReasons)
	assert.Len(t, res.Checks, 6)
	assert.Equal(t, "RELIANCE.NS", res.Symbol)
}

func TestEachCheckFailsIndependently(t *testing.T) {
	cur := func(w []indicators.IndicatorSnapshot) *indicators.IndicatorSnapshot {
		return &w[len(w)-1]
	}

	cases := []struct {
		name      string
		wantCheck string
		mutate    func(w []indicators.IndicatorSnapshot)
	}{
		{"weak adx", CheckTrendStrength, func(w []indicators.IndicatorSnapshot) {
			cur(w).ADX = 20
		}},
		{"minus di dominant", CheckDirectionalDom, func(w []indicators.IndicatorSnapshot) {
			cur(w).PlusDI = 8
		}},
		{"weak candle close", CheckDirectionalDom, func(w []indicators.IndicatorSnapshot) {
			cur(w).CandlePositionPct = 60
		}},
		{"rsi overheated", CheckMomentumBand, func(w []indicators.IndicatorSnapshot) {
			cur(w).RSI14 = 70.5 // still above the prior chain, isolates the band check
		}},
		{"thin relative volume", CheckVolumeConfirmation, func(w []indicators.IndicatorSnapshot) {
			cur(w).RVol = 1.2
		}},
		{"volume below p25", CheckVolumeConfirmation, func(w []indicators.IndicatorSnapshot) {
			cur(w).Volume = 900_000
		}},
		{"below sma200", CheckEstablishedTrend, func(w []indicators.IndicatorSnapshot) {
			cur(w).SMA200 = 155 // close 150 no longer above, EMA20 still below close
		}},
		{"sma200 falling", CheckEstablishedTrend, func(w []indicators.IndicatorSnapshot) {
			cur(w).SMA200Back20 = 145
		}},
		{"rsi chain broken", CheckValidPullback, func(w []indicators.IndicatorSnapshot) {
			w[1].RSI14 = 63 // 58 -> 63 -> 62 is not strictly rising
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := NewEvaluator(nil)
			w := passingWindow()
			tc.mutate(w)

			res, err := ev.Evaluate("X.NS", w)
			require.NoError(t, err)

			assert.False(t, res.Passed, "gate must fail")
			require.NotEmpty(t, res.FailureReasons)
			assert.False(t, res.Checks[tc.wantCheck].Passed, "check %s must be the failure", tc.wantCheck)

			named := false
			for _, reason := range res.FailureReasons {
				if strings.HasPrefix(reason, tc.wantCheck+":") {
					named = true
				}
			}
			assert.True(t, named, "failure reasons %v must name %s", res.FailureReasons, tc.wantCheck)
		})
	}
}

func TestGateCheckCombinations(t *testing.T) {
	// One field mutation per check, each breaking that check and nothing
	// else. RSI 70.5 keeps the 58 -> 60 rise strict so the pullback chain
	// stays intact while the band check trips.
	breakers := []struct {
		check  string
		mutate func(w []indicators.IndicatorSnapshot)
	}{
		{CheckTrendStrength, func(w []indicators.IndicatorSnapshot) { w[2].ADX = 20 }},
		{CheckDirectionalDom, func(w []indicators.IndicatorSnapshot) { w[2].PlusDI = 8 }},
		{CheckMomentumBand, func(w []indicators.IndicatorSnapshot) { w[2].RSI14 = 70.5 }},
		{CheckVolumeConfirmation, func(w []indicators.IndicatorSnapshot) { w[2].RVol = 1.2 }},
		{CheckEstablishedTrend, func(w []indicators.IndicatorSnapshot) { w[2].SMA200Back20 = 145 }},
		{CheckValidPullback, func(w []indicators.IndicatorSnapshot) { w[2].EMA20 = 155 }},
	}

	for mask := 0; mask < 1<<len(breakers); mask++ {
		t.Run(fmt.Sprintf("mask_%06b", mask), func(t *testing.T) {
			ev := NewEvaluator(nil)
			w := passingWindow()
			for i, b := range breakers {
				if mask&(1<<i) != 0 {
					b.mutate(w)
				}
			}

			res, err := ev.Evaluate("GRID.NS", w)
			require.NoError(t, err)

			assert.Equal(t, mask == 0, res.Passed, "only the unbroken window passes")
			assert.Len(t, res.PassedChecks, len(breakers)-bits.OnesCount(uint(mask)))
			assert.Len(t, res.FailureReasons, bits.OnesCount(uint(mask)))
			for i, b := range breakers {
				broken := mask&(1<<i) != 0
				assert.Equal(t, !broken, res.Checks[b.check].Passed, "check %s", b.check)
			}
		})
	}
}

func TestMomentumBandBoundsAreExclusive(t *testing.T) {
	ev := NewEvaluator(nil)

	w := passingWindow()
	w[2].RSI14 = 70 // exactly at the ceiling
	res, err := ev.Evaluate("CEIL.NS", w)
	require.NoError(t, err)
	assert.False(t, res.Checks[CheckMomentumBand].Passed, "RSI 70 is outside the open interval")

	w = passingWindow()
	w[0].RSI14 = 40
	w[1].RSI14 = 45
	w[2].RSI14 = 50 // exactly at the floor
	res, err = ev.Evaluate("FLOOR.NS", w)
	require.NoError(t, err)
	assert.False(t, res.Checks[CheckMomentumBand].Passed, "RSI 50 is outside the open interval")
}

func TestAllFailuresReported(t *testing.T) {
	// The gate reports every failing check, not only the first one.
	ev := NewEvaluator(nil)
	w := passingWindow()
	w[2].ADX = 10
	w[2].RVol = 0.5

	res, err := ev.Evaluate("MULTI.NS", w)
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.GreaterOrEqual(t, len(res.FailureReasons), 2)
	assert.False(t, res.Checks[CheckTrendStrength].Passed)
	assert.False(t, res.Checks[CheckVolumeConfirmation].Passed)
}

func TestShortWindowRejected(t *testing.T) {
	ev := NewEvaluator(nil)
	w := passingWindow()[:2]

	_, err := ev.Evaluate("SHORT.NS", w)
	require.Error(t, err)
	assert.True(t, errors.Is(err, indicators.ErrInsufficientHistory))
}

func TestConfigValidate(t *testing.T) {
	require.Empty(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.RSIFloor = 80 // above ceiling
	assert.NotEmpty(t, bad.Validate())

	bad = DefaultConfig()
	bad.RSIRiseDays = 0
	assert.NotEmpty(t, bad.Validate())
}

func TestWindowSizeTracksRiseDays(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RSIRiseDays = 4
	ev := NewEvaluator(cfg)
	assert.Equal(t, 5, ev.WindowSize())
}
