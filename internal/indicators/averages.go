package indicators

import (
	"math"
	"sort"
)

// smaSeries computes a simple moving average. sma[i] is defined for
// i >= period-1.
func smaSeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// emaSeries computes an exponential moving average seeded with the SMA of
// the first period values, alpha = 2/(period+1). ema[i] is defined for
// i >= period-1.
func emaSeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// percentile returns the p-th percentile (0-100) of values using linear
// interpolation between closest ranks. values is not modified.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)

	if p <= 0 {
		return s[0]
	}
	if p >= 100 {
		return s[len(s)-1]
	}
	rank := p / 100 * float64(len(s)-1)
	lo := int(math.Floor(rank))
	frac := rank - float64(lo)
	if lo+1 >= len(s) {
		return s[lo]
	}
	return s[lo] + frac*(s[lo+1]-s[lo])
}

// relativeVolume divides each day's volume by the mean volume of the
// trailing window days, excluding the day itself from the denominator.
// Defined for i >= window.
func relativeVolume(volumes []float64, window int) []float64 {
	out := nanSlice(len(volumes))
	if window <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range volumes {
		if i >= window {
			avg := sum / float64(window)
			if avg > 0 {
				out[i] = v / avg
			} else {
				out[i] = 0
			}
		}
		sum += v
		if i >= window {
			sum -= volumes[i-window]
		}
	}
	return out
}

// rollingPercentile computes the p-th percentile of the trailing window
// values ending at and including each index. Defined for i >= window-1.
func rollingPercentile(values []float64, window int, p float64) []float64 {
	out := nanSlice(len(values))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		out[i] = percentile(values[i-window+1:i+1], p)
	}
	return out
}

// candlePosition places the close within the day's [low, high] range on a
// 0-100 scale. A zero-range day is neutral 50 rather than a division by zero.
func candlePosition(b Bar) float64 {
	if b.High == b.Low {
		return 50
	}
	return (b.Close - b.Low) / (b.High - b.Low) * 100
}

// headroomSeries measures how far each close sits above the lowest low of
// the preceding window bars (the current day excluded, so a collapse below
// the prior range yields a negative value). Defined for i >= 1.
func headroomSeries(bars []Bar, window int) []float64 {
	out := nanSlice(len(bars))
	for i := 1; i < len(bars); i++ {
		lo := math.Inf(1)
		start := i - window
		if start < 0 {
			start = 0
		}
		for j := start; j < i; j++ {
			if bars[j].Low < lo {
				lo = bars[j].Low
			}
		}
		if lo <= 0 || math.IsInf(lo, 1) {
			continue
		}
		out[i] = (bars[i].Close - lo) / lo * 100
	}
	return out
}
