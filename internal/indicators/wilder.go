package indicators

import "math"

// wilderSmoothFrom applies Wilder's smoothing to values, treating
// values[start] as the first defined input. The output is NaN until index
// start+period-1, where it seeds with the arithmetic mean of the first
// period inputs, then follows v = (prev*(period-1) + x) / period.
func wilderSmoothFrom(values []float64, period, start int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || start < 0 || start+period > len(values) {
		return out
	}

	sum := 0.0
	for i := start; i < start+period; i++ {
		sum += values[i]
	}
	seed := start + period - 1
	out[seed] = sum / float64(period)

	p := float64(period)
	for i := seed + 1; i < len(values); i++ {
		out[i] = (out[i-1]*(p-1) + values[i]) / p
	}
	return out
}

// wilderSmooth smooths a derived series whose index 0 has no prior close
// (deltas, true ranges, directional moves). Defined from index period on.
func wilderSmooth(values []float64, period int) []float64 {
	return wilderSmoothFrom(values, period, 1)
}

// rsiSeries computes Wilder-smoothed RSI. rsi[i] is defined for i >= period.
// When the average loss is zero the RSI saturates at 100.
func rsiSeries(closes []float64, period int) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	avgGain := wilderSmooth(gains, period)
	avgLoss := wilderSmooth(losses, period)

	out := nanSlice(n)
	for i := period; i < n; i++ {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			continue
		}
		if avgLoss[i] == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// trueRanges returns the true-range series. tr[0] has no prior close and is
// ignored by the Wilder seed.
func trueRanges(bars []Bar) []float64 {
	tr := make([]float64, len(bars))
	for i := range bars {
		if i == 0 {
			tr[0] = bars[0].High - bars[0].Low
			continue
		}
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// atrSeries computes the Wilder-smoothed average true range.
// atr[i] is defined for i >= period.
func atrSeries(bars []Bar, period int) []float64 {
	return wilderSmooth(trueRanges(bars), period)
}

// dmiSeries computes +DI, -DI and ADX with Wilder smoothing throughout.
// +DI/-DI are defined from index period; ADX, being a smoothing of DX,
// from index 2*period-1.
func dmiSeries(bars []Bar, period int) (plusDI, minusDI, adx []float64) {
	n := len(bars)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	smTR := wilderSmooth(trueRanges(bars), period)
	smPlus := wilderSmooth(plusDM, period)
	smMinus := wilderSmooth(minusDM, period)

	plusDI = nanSlice(n)
	minusDI = nanSlice(n)
	dx := nanSlice(n)
	for i := period; i < n; i++ {
		if math.IsNaN(smTR[i]) || smTR[i] == 0 {
			plusDI[i] = 0
			minusDI[i] = 0
			dx[i] = 0
			continue
		}
		plusDI[i] = 100 * smPlus[i] / smTR[i]
		minusDI[i] = 100 * smMinus[i] / smTR[i]
		sum := plusDI[i] + minusDI[i]
		if sum == 0 {
			dx[i] = 0
		} else {
			dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / sum
		}
	}

	adx = wilderSmoothFrom(dx, period, period)
	return plusDI, minusDI, adx
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
