package models

import (
	"math"
	"time"
)

// Feature column names, in canonical order. Artifact selected-feature
// lists and dataset matrices index into this namespace.
const (
	FeatWeekDay               = "week_day"
	FeatHLRange               = "hl_range"
	FeatGapPct                = "gap_pct"
	FeatBodyToRangeRatio      = "body_to_range_ratio"
	FeatDistanceFromEMA5      = "distance_from_ema_5"
	FeatReturn3D              = "return_3d"
	FeatRangeCompressionRatio = "range_compression_ratio"
	FeatATR5                  = "atr_5"
	FeatVolumeSpikeRatio      = "volume_spike_ratio"
	FeatVolatilitySqueeze     = "volatility_squeeze"
	FeatTrendZoneStrength     = "trend_zone_strength"
	FeatRSI14                 = "rsi_14"
	FeatCloseEMA50GapPct      = "close_ema50_gap_pct"
	FeatOpenGapPct            = "open_gap_pct"
	FeatMACDHistogram         = "macd_histogram"
	FeatATR14Normalized       = "atr_14_normalized"
)

// FeatureNames returns the canonical feature column order.
func FeatureNames() []string {
	return []string{
		FeatWeekDay,
		FeatHLRange,
		FeatGapPct,
		FeatBodyToRangeRatio,
		FeatDistanceFromEMA5,
		FeatReturn3D,
		FeatRangeCompressionRatio,
		FeatATR5,
		FeatVolumeSpikeRatio,
		FeatVolatilitySqueeze,
		FeatTrendZoneStrength,
		FeatRSI14,
		FeatCloseEMA50GapPct,
		FeatOpenGapPct,
		FeatMACDHistogram,
		FeatATR14Normalized,
	}
}

// FeatureRow is one day's derived indicator vector for one symbol.
// Undefined values (rolling window not yet full) are NaN.
type FeatureRow struct {
	SymbolID int64
	Date     time.Time

	WeekDay               float64
	HLRange               float64
	GapPct                float64
	BodyToRangeRatio      float64
	DistanceFromEMA5      float64
	Return3D              float64
	RangeCompressionRatio float64
	ATR5                  float64
	VolumeSpikeRatio      float64
	VolatilitySqueeze     float64
	TrendZoneStrength     float64
	RSI14                 float64
	CloseEMA50GapPct      float64
	OpenGapPct            float64
	MACDHistogram         float64
	ATR14Normalized       float64
}

// Value returns the named feature, and whether the name is known.
func (r *FeatureRow) Value(name string) (float64, bool) {
	switch name {
	case FeatWeekDay:
		return r.WeekDay, true
	case FeatHLRange:
		return r.HLRange, true
	case FeatGapPct:
		return r.GapPct, true
	case FeatBodyToRangeRatio:
		return r.BodyToRangeRatio, true
	case FeatDistanceFromEMA5:
		return r.DistanceFromEMA5, true
	case FeatReturn3D:
		return r.Return3D, true
	case FeatRangeCompressionRatio:
		return r.RangeCompressionRatio, true
	case FeatATR5:
		return r.ATR5, true
	case FeatVolumeSpikeRatio:
		return r.VolumeSpikeRatio, true
	case FeatVolatilitySqueeze:
		return r.VolatilitySqueeze, true
	case FeatTrendZoneStrength:
		return r.TrendZoneStrength, true
	case FeatRSI14:
		return r.RSI14, true
	case FeatCloseEMA50GapPct:
		return r.CloseEMA50GapPct, true
	case FeatOpenGapPct:
		return r.OpenGapPct, true
	case FeatMACDHistogram:
		return r.MACDHistogram, true
	case FeatATR14Normalized:
		return r.ATR14Normalized, true
	}
	return math.NaN(), false
}

// Vector renders the row in canonical feature order.
func (r *FeatureRow) Vector() []float64 {
	names := FeatureNames()
	out := make([]float64, len(names))
	for i, n := range names {
		out[i], _ = r.Value(n)
	}
	return out
}
