package features

import (
	"math"
	"testing"
	"time"

	"stockpulse/internal/domain/models"
)

func barSeries(n int, symbolID int64) []models.EODBar {
	bars := make([]models.EODBar, n)
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC) // a Monday
	px := 100.0
	for i := range bars {
		// deterministic wiggle, strictly positive prices
		px += math.Sin(float64(i)) * 1.5
		bars[i] = models.EODBar{
			SymbolID: symbolID,
			Date:     start.AddDate(0, 0, i),
			Open:     px - 0.5,
			High:     px + 1.0,
			Low:      px - 1.0,
			Close:    px,
			Volume:   1000 + float64(i%7)*50,
		}
	}
	return bars
}

func TestCalculateDeterminism(t *testing.T) {
	bars := barSeries(80, 1)
	a := Calculate(bars)
	b := Calculate(bars)
	if len(a) != len(b) || len(a) != 80 {
		t.Fatalf("expected 80 rows twice, got %d and %d", len(a), len(b))
	}
	for i := range a {
		va, vb := a[i].Vector(), b[i].Vector()
		for j := range va {
			if math.IsNaN(va[j]) && math.IsNaN(vb[j]) {
				continue
			}
			if va[j] != vb[j] {
				t.Fatalf("row %d feature %d differs between runs: %v vs %v", i, j, va[j], vb[j])
			}
		}
	}
}

func TestCalculateFirstRowSemantics(t *testing.T) {
	bars := barSeries(10, 1)
	rows := Calculate(bars)

	first := rows[0]
	if !math.IsNaN(first.GapPct) {
		t.Fatalf("gap_pct must be undefined on the first row, got %v", first.GapPct)
	}
	if first.OpenGapPct != 0 {
		t.Fatalf("open_gap_pct defaults to 0 without a previous close, got %v", first.OpenGapPct)
	}
	if !math.IsNaN(first.ATR5) {
		t.Fatalf("atr_5 must be NaN before the window fills, got %v", first.ATR5)
	}
	if !math.IsNaN(first.Return3D) || !math.IsNaN(rows[2].Return3D) {
		t.Fatalf("return_3d must be NaN for the first three rows")
	}
	if !math.IsNaN(rows[3].Return3D) && rows[3].Return3D == 0 {
		t.Fatalf("return_3d should be defined and nonzero from row 3")
	}

	// Monday=0 convention
	if first.WeekDay != 0 {
		t.Fatalf("expected Monday to map to 0, got %v", first.WeekDay)
	}
	if rows[5].WeekDay != 5 {
		t.Fatalf("expected Saturday to map to 5, got %v", rows[5].WeekDay)
	}
}

func TestCalculateHLRangeAndGap(t *testing.T) {
	bars := []models.EODBar{
		{SymbolID: 1, Date: day(0), Open: 100, High: 104, Low: 96, Close: 100, Volume: 1000},
		{SymbolID: 1, Date: day(1), Open: 102, High: 106, Low: 100, Close: 104, Volume: 1100},
	}
	rows := Calculate(bars)

	if got := rows[0].HLRange; got != 0.08 {
		t.Fatalf("hl_range = (104-96)/100 = 0.08, got %v", got)
	}
	if got := rows[1].GapPct; math.Abs(got-0.02) > 1e-12 {
		t.Fatalf("gap_pct = 102/100-1 = 0.02, got %v", got)
	}
	if got := rows[1].OpenGapPct; math.Abs(got-2.0) > 1e-12 {
		t.Fatalf("open_gap_pct = 2.0, got %v", got)
	}
}

func TestBodyToRangeUndefinedOnFlatBar(t *testing.T) {
	bars := []models.EODBar{
		{SymbolID: 1, Date: day(0), Open: 100, High: 100, Low: 100, Close: 100, Volume: 10},
	}
	rows := Calculate(bars)
	if !math.IsNaN(rows[0].BodyToRangeRatio) {
		t.Fatalf("body_to_range_ratio must be undefined when high == low")
	}
}

func TestRSIAllGainsIs100(t *testing.T) {
	bars := make([]models.EODBar, 30)
	for i := range bars {
		px := 100.0 + float64(i)
		bars[i] = models.EODBar{
			SymbolID: 1, Date: day(i),
			Open: px, High: px + 1, Low: px - 1, Close: px, Volume: 100,
		}
	}
	rows := Calculate(bars)
	for i, r := range rows {
		if r.RSI14 != 100.0 {
			t.Fatalf("monotone gains must give RSI 100 at row %d, got %v", i, r.RSI14)
		}
	}
}

func TestRollingWindowsStayNaNUntilFull(t *testing.T) {
	bars := barSeries(60, 1)
	rows := Calculate(bars)

	if !math.IsNaN(rows[12].TrendZoneStrength) {
		t.Fatalf("trend_zone_strength needs 14 rows")
	}
	if math.IsNaN(rows[13].TrendZoneStrength) {
		t.Fatalf("trend_zone_strength should be defined from row 13")
	}

	// bollinger width needs 20 rows, its mean another 19
	if !math.IsNaN(rows[37].VolatilitySqueeze) {
		t.Fatalf("volatility_squeeze should still be NaN at row 37")
	}
	if math.IsNaN(rows[38].VolatilitySqueeze) {
		t.Fatalf("volatility_squeeze should be defined from row 38")
	}

	// true range starts at row 1, so atr_14 fills at row 14
	if !math.IsNaN(rows[13].ATR14Normalized) {
		t.Fatalf("atr_14_normalized should still be NaN at row 13")
	}
	if math.IsNaN(rows[14].ATR14Normalized) {
		t.Fatalf("atr_14_normalized should be defined from row 14")
	}
}

func day(i int) time.Time {
	return time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}
