package dataset

import (
	"errors"
	"math"
	"sort"
	"time"

	"stockpulse/internal/domain/models"
)

// Config are the tenant-scoped labeling parameters.
type Config struct {
	ThresholdPercent float64 // strong-move threshold, in percent
	MaxDays          int     // forward fulfillment window, in trading rows
}

// Dataset is supervised training data for one symbol. Row i of X is the
// feature vector for Dates[i]; labels are built strictly from closes in
// (t, t+MaxDays].
type Dataset struct {
	Dates        []time.Time
	FeatureNames []string
	X            [][]float64
	YMove        []int // 1 when a strong move occurs in the forward window
	UpMovePct    []float64
	DownMovePct  []float64
	Direction    []int // 1=UP, 0=DOWN; meaningful only where YMove==1
}

// ErrNoData is returned when features and closes share no dates.
var ErrNoData = errors.New("dataset: no joinable feature rows")

// Build joins feature rows with close prices by date and labels each
// row from the forward rolling max/min of close over the next MaxDays
// trading rows. Rows whose forward window is incomplete are dropped.
func Build(features []models.FeatureRow, points []models.ClosePoint, cfg Config) (*Dataset, error) {
	if cfg.MaxDays <= 0 {
		return nil, errors.New("dataset: max days must be positive")
	}

	closeByDate := make(map[time.Time]float64, len(points))
	for _, p := range points {
		closeByDate[dayKey(p.Date)] = p.Close
	}

	// joined rows, chronologically
	rows := make([]models.FeatureRow, 0, len(features))
	for _, f := range features {
		if _, ok := closeByDate[dayKey(f.Date)]; ok {
			rows = append(rows, f)
		}
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	closes := make([]float64, len(rows))
	for i, r := range rows {
		closes[i] = closeByDate[dayKey(r.Date)]
	}

	// rows at the tail have incomplete forward windows and are dropped
	usable := len(rows) - cfg.MaxDays
	if usable <= 0 {
		return nil, ErrNoData
	}

	ds := &Dataset{
		FeatureNames: models.FeatureNames(),
		Dates:        make([]time.Time, 0, usable),
		X:            make([][]float64, 0, usable),
		YMove:        make([]int, 0, usable),
		UpMovePct:    make([]float64, 0, usable),
		DownMovePct:  make([]float64, 0, usable),
		Direction:    make([]int, 0, usable),
	}

	for t := 0; t < usable; t++ {
		futureMax := closes[t+1]
		futureMin := closes[t+1]
		for k := t + 2; k <= t+cfg.MaxDays; k++ {
			if closes[k] > futureMax {
				futureMax = closes[k]
			}
			if closes[k] < futureMin {
				futureMin = closes[k]
			}
		}

		up := (futureMax - closes[t]) / closes[t] * 100
		down := (futureMin - closes[t]) / closes[t] * 100

		move := 0
		if up >= cfg.ThresholdPercent || down <= -cfg.ThresholdPercent {
			move = 1
		}
		dir := 0
		if up > math.Abs(down) {
			dir = 1
		}

		ds.Dates = append(ds.Dates, rows[t].Date)
		ds.X = append(ds.X, rows[t].Vector())
		ds.YMove = append(ds.YMove, move)
		ds.UpMovePct = append(ds.UpMovePct, up)
		ds.DownMovePct = append(ds.DownMovePct, down)
		ds.Direction = append(ds.Direction, dir)
	}

	return ds, nil
}

// Len returns the number of labeled rows.
func (d *Dataset) Len() int { return len(d.X) }

// StrongMoveSubset filters to rows where a strong move occurred, the
// only rows on which direction labels are defined.
func (d *Dataset) StrongMoveSubset() ([][]float64, []int) {
	var x [][]float64
	var y []int
	for i := range d.X {
		if d.YMove[i] == 1 {
			x = append(x, d.X[i])
			y = append(y, d.Direction[i])
		}
	}
	return x, y
}

func dayKey(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
