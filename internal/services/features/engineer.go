package features

import (
	"math"

	"stockpulse/internal/domain/models"
)

// Calculate derives the per-day indicator vector from a chronologically
// sorted OHLCV series for one symbol. Pure and deterministic: no I/O,
// no randomness, no wall-clock dependence. Values whose rolling window
// is not yet full are NaN.
func Calculate(bars []models.EODBar) []models.FeatureRow {
	n := len(bars)
	if n == 0 {
		return nil
	}

	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closePx := make([]float64, n)
	volume := make([]float64, n)
	for i, b := range bars {
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		closePx[i] = b.Close
		volume[i] = b.Volume
	}

	hlRange := make([]float64, n)
	for i := range bars {
		if closePx[i] == 0 {
			hlRange[i] = math.NaN()
		} else {
			hlRange[i] = (high[i] - low[i]) / closePx[i]
		}
	}

	ema5 := emaRecursive(closePx, 5)
	ema12 := emaRecursive(closePx, 12)
	ema26 := emaRecursive(closePx, 26)
	ema50 := emaRecursive(closePx, 50)

	macdLine := make([]float64, n)
	for i := range macdLine {
		macdLine[i] = ema12[i] - ema26[i]
	}
	macdSignal := emaRecursive(macdLine, 9)

	hlRangeMean3 := rollingMean(hlRange, 3)
	atr5 := rollingMean(hlRange, 5)
	volMean3 := rollingMean(volume, 3)

	closeMean20 := rollingMean(closePx, 20)
	closeStd20 := rollingStd(closePx, 20)
	bbWidth := make([]float64, n)
	for i := range bbWidth {
		bbWidth[i] = 4 * closeStd20[i] / closeMean20[i]
	}
	bbWidthMean20 := rollingMean(bbWidth, 20)

	trendRaw := make([]float64, n)
	for i := range trendRaw {
		if i == 0 {
			trendRaw[i] = 0
			continue
		}
		upMove := high[i] - high[i-1]
		downMove := math.Abs(low[i] - low[i-1])
		if upMove > downMove {
			trendRaw[i] = upMove
		} else {
			trendRaw[i] = 0
		}
	}
	trendStrength14 := rollingMean(trendRaw, 14)

	trueRange := make([]float64, n)
	for i := range trueRange {
		if i == 0 {
			trueRange[i] = math.NaN()
			continue
		}
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - closePx[i-1])
		lc := math.Abs(low[i] - closePx[i-1])
		trueRange[i] = math.Max(hl, math.Max(hc, lc))
	}
	atr14 := rollingMean(trueRange, 14)

	rsi14 := wilderRSI(closePx, 14)

	rows := make([]models.FeatureRow, n)
	for i := range bars {
		row := models.FeatureRow{
			SymbolID: bars[i].SymbolID,
			Date:     bars[i].Date,
			// Monday=0 .. Sunday=6
			WeekDay: float64((int(bars[i].Date.Weekday()) + 6) % 7),
			HLRange: hlRange[i],
		}

		if i == 0 || closePx[i-1] == 0 {
			row.GapPct = math.NaN()
		} else {
			row.GapPct = open[i]/closePx[i-1] - 1
		}

		if high[i] == low[i] {
			row.BodyToRangeRatio = math.NaN()
		} else {
			row.BodyToRangeRatio = math.Abs(closePx[i]-open[i]) / (high[i] - low[i])
		}

		row.DistanceFromEMA5 = closePx[i] - ema5[i]

		if i < 3 || closePx[i-3] == 0 {
			row.Return3D = math.NaN()
		} else {
			row.Return3D = closePx[i]/closePx[i-3] - 1
		}

		row.RangeCompressionRatio = hlRange[i] / hlRangeMean3[i]
		row.ATR5 = atr5[i]
		row.VolumeSpikeRatio = volume[i] / volMean3[i]
		row.VolatilitySqueeze = bbWidth[i] / bbWidthMean20[i]
		row.TrendZoneStrength = trendStrength14[i]
		row.RSI14 = rsi14[i]
		row.CloseEMA50GapPct = (closePx[i] - ema50[i]) / ema50[i] * 100

		if i == 0 || closePx[i-1] == 0 {
			row.OpenGapPct = 0
		} else {
			row.OpenGapPct = (open[i] - closePx[i-1]) / closePx[i-1] * 100
		}

		row.MACDHistogram = macdLine[i] - macdSignal[i]
		row.ATR14Normalized = atr14[i] / closePx[i]

		rows[i] = row
	}
	return rows
}

// emaRecursive applies the non-adjusted exponential smoothing
// convention: y[0] = x[0], y[t] = (1-a)*y[t-1] + a*x[t], a = 2/(span+1).
func emaRecursive(vals []float64, span int) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = (1-alpha)*out[i-1] + alpha*vals[i]
	}
	return out
}

// rollingMean uses min_periods == window: NaN until the window is full,
// and NaN whenever the window contains a NaN.
func rollingMean(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	for i := range out {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		var sum float64
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(vals[j]) {
				ok = false
				break
			}
			sum += vals[j]
		}
		if !ok {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// rollingStd is the sample standard deviation (ddof=1) with
// min_periods == window.
func rollingStd(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	for i := range out {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		var sum float64
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(vals[j]) {
				ok = false
				break
			}
			sum += vals[j]
		}
		if !ok {
			out[i] = math.NaN()
			continue
		}
		mean := sum / float64(window)
		var sq float64
		for j := i - window + 1; j <= i; j++ {
			d := vals[j] - mean
			sq += d * d
		}
		out[i] = math.Sqrt(sq / float64(window-1))
	}
	return out
}

// wilderRSI seeds from the first period+1 deltas and smooths
// iteratively afterwards. A zero cumulative loss yields RSI 100.
func wilderRSI(prices []float64, period int) []float64 {
	n := len(prices)
	out := make([]float64, n)
	if n < 2 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	deltas := make([]float64, n-1)
	for i := 1; i < n; i++ {
		deltas[i-1] = prices[i] - prices[i-1]
	}

	seedLen := period + 1
	if seedLen > len(deltas) {
		seedLen = len(deltas)
	}
	var up, down float64
	for _, d := range deltas[:seedLen] {
		if d >= 0 {
			up += d
		} else {
			down -= d
		}
	}
	up /= float64(period)
	down /= float64(period)

	if down == 0 {
		for i := range out {
			out[i] = 100.0
		}
		return out
	}

	rs := up / down
	seedRSI := 100.0 - 100.0/(1.0+rs)
	head := period + 1
	if head > n {
		head = n
	}
	for i := 0; i < head; i++ {
		out[i] = seedRSI
	}

	for i := period + 1; i < n; i++ {
		delta := deltas[i-1]
		var upval, downval float64
		if delta > 0 {
			upval = delta
		} else {
			downval = -delta
		}
		up = (up*float64(period-1) + upval) / float64(period)
		down = (down*float64(period-1) + downval) / float64(period)
		if down == 0 {
			out[i] = 100.0
			continue
		}
		rs = up / down
		out[i] = 100.0 - 100.0/(1.0+rs)
	}
	return out
}
