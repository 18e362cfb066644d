package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"stockpulse/internal/domain/models"
	domrepo "stockpulse/internal/domain/repository"
	pkgch "stockpulse/pkg/clickhouse"
	applogger "stockpulse/pkg/logger"
)

// insertChunkSize bounds one multi-row INSERT statement.
const insertChunkSize = 2000

var marketSchema = []string{
	`CREATE TABLE IF NOT EXISTS eod_data (
        symbol_id      Int64,
        date           Date,
        open           Float64,
        high           Float64,
        low            Float64,
        close          Float64,
        volume         Float64,
        change_percent Float64
    ) ENGINE = ReplacingMergeTree
    ORDER BY (symbol_id, date)`,
	`CREATE TABLE IF NOT EXISTS feature_data (
        symbol_id               Int64,
        date                    Date,
        week_day                Float64,
        hl_range                Float64,
        gap_pct                 Float64,
        body_to_range_ratio     Float64,
        distance_from_ema_5     Float64,
        return_3d               Float64,
        range_compression_ratio Float64,
        atr_5                   Float64,
        volume_spike_ratio      Float64,
        volatility_squeeze      Float64,
        trend_zone_strength     Float64,
        rsi_14                  Float64,
        close_ema50_gap_pct     Float64,
        open_gap_pct            Float64,
        macd_histogram          Float64,
        atr_14_normalized       Float64
    ) ENGINE = ReplacingMergeTree
    ORDER BY (symbol_id, date)`,
}

// CHMarketStore implements MarketStore backed by ClickHouse. EOD and
// feature rows are append-only series ordered by (symbol_id, date).
type CHMarketStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

// NewCHMarketStore creates the store.
func NewCHMarketStore(ch *pkgch.Client, l *applogger.Logger) *CHMarketStore {
	return &CHMarketStore{ch: ch, db: ch.DB(), l: l}
}

// Init creates the tables when absent.
func (s *CHMarketStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, marketSchema)
}

const eodColumns = "symbol_id, date, open, high, low, close, volume, change_percent"

func (s *CHMarketStore) EODRange(ctx context.Context, symbolID int64, from, to time.Time) ([]models.EODBar, error) {
	q := fmt.Sprintf(`
        SELECT %s FROM eod_data
        WHERE symbol_id = ? AND date >= ? AND date <= ?
        ORDER BY date ASC`, eodColumns)
	return s.queryBars(ctx, q, symbolID, from, to)
}

func (s *CHMarketStore) EODAfter(ctx context.Context, symbolID int64, after time.Time, limit int) ([]models.EODBar, error) {
	q := fmt.Sprintf(`
        SELECT %s FROM eod_data
        WHERE symbol_id = ? AND date > ?
        ORDER BY date ASC
        LIMIT ?`, eodColumns)
	return s.queryBars(ctx, q, symbolID, after, limit)
}

// Closes reads only the close column for a date range. Label building
// walks long histories, so the projection keeps the scan narrow.
func (s *CHMarketStore) Closes(ctx context.Context, symbolID int64, from, to time.Time) ([]models.ClosePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT symbol_id, date, close FROM eod_data
        WHERE symbol_id = ? AND date >= ? AND date <= ?
        ORDER BY date ASC`, symbolID, from, to)
	if err != nil {
		return nil, fmt.Errorf("closes: %w", err)
	}
	defer rows.Close()

	var out []models.ClosePoint
	for rows.Next() {
		var p models.ClosePoint
		if err := rows.Scan(&p.SymbolID, &p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("scan close: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *CHMarketStore) EODDates(ctx context.Context, symbolID int64) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT date FROM eod_data WHERE symbol_id = ? ORDER BY date ASC`, symbolID)
	if err != nil {
		return nil, fmt.Errorf("eod dates: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan eod date: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *CHMarketStore) InsertEOD(ctx context.Context, bars []models.EODBar) error {
	if len(bars) == 0 {
		return nil
	}
	start := time.Now()
	for lo := 0; lo < len(bars); lo += insertChunkSize {
		hi := lo + insertChunkSize
		if hi > len(bars) {
			hi = len(bars)
		}
		chunk := bars[lo:hi]

		values := make([]string, 0, len(chunk))
		args := make([]interface{}, 0, len(chunk)*8)
		for _, b := range chunk {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, b.SymbolID, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume, b.ChangePercent)
		}
		q := fmt.Sprintf("INSERT INTO eod_data (%s) VALUES %s", eodColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert eod chunk: %w", err)
		}
	}
	s.l.Debug("eod insert ok",
		applogger.Int("rows", len(bars)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

var featureColumns = append([]string{"symbol_id", "date"}, models.FeatureNames()...)

func (s *CHMarketStore) FeatureDates(ctx context.Context, symbolID int64) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT date FROM feature_data WHERE symbol_id = ? ORDER BY date ASC`, symbolID)
	if err != nil {
		return nil, fmt.Errorf("feature dates: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan feature date: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *CHMarketStore) FeatureRange(ctx context.Context, symbolID int64, from, to time.Time) ([]models.FeatureRow, error) {
	q := fmt.Sprintf(`
        SELECT %s FROM feature_data
        WHERE symbol_id = ? AND date >= ? AND date <= ?
        ORDER BY date ASC`, strings.Join(featureColumns, ", "))
	rows, err := s.db.QueryContext(ctx, q, symbolID, from, to)
	if err != nil {
		return nil, fmt.Errorf("feature range: %w", err)
	}
	defer rows.Close()
	return scanFeatureRows(rows)
}

func (s *CHMarketStore) LatestFeature(ctx context.Context, symbolID int64) (*models.FeatureRow, error) {
	q := fmt.Sprintf(`
        SELECT %s FROM feature_data
        WHERE symbol_id = ?
        ORDER BY date DESC
        LIMIT 1`, strings.Join(featureColumns, ", "))
	rows, err := s.db.QueryContext(ctx, q, symbolID)
	if err != nil {
		return nil, fmt.Errorf("latest feature: %w", err)
	}
	defer rows.Close()

	out, err := scanFeatureRows(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domrepo.ErrNotFound
	}
	return &out[0], nil
}

func (s *CHMarketStore) InsertFeatures(ctx context.Context, frows []models.FeatureRow) error {
	if len(frows) == 0 {
		return nil
	}
	start := time.Now()
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(featureColumns)), ", ") + ")"

	for lo := 0; lo < len(frows); lo += insertChunkSize {
		hi := lo + insertChunkSize
		if hi > len(frows) {
			hi = len(frows)
		}
		chunk := frows[lo:hi]

		values := make([]string, 0, len(chunk))
		args := make([]interface{}, 0, len(chunk)*len(featureColumns))
		for i := range chunk {
			r := &chunk[i]
			values = append(values, placeholders)
			args = append(args, r.SymbolID, r.Date)
			for _, name := range models.FeatureNames() {
				v, _ := r.Value(name)
				args = append(args, v)
			}
		}
		q := fmt.Sprintf("INSERT INTO feature_data (%s) VALUES %s",
			strings.Join(featureColumns, ", "), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert feature chunk: %w", err)
		}
	}
	s.l.Debug("feature insert ok",
		applogger.Int("rows", len(frows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHMarketStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHMarketStore) Close() error {
	return nil // connection owned by pkg/clickhouse
}

func (s *CHMarketStore) queryBars(ctx context.Context, q string, args ...interface{}) ([]models.EODBar, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query eod: %w", err)
	}
	defer rows.Close()

	out := make([]models.EODBar, 0, 256)
	for rows.Next() {
		var b models.EODBar
		if err := rows.Scan(&b.SymbolID, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.ChangePercent); err != nil {
			return nil, fmt.Errorf("scan eod bar: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanFeatureRows(rows *sql.Rows) ([]models.FeatureRow, error) {
	names := models.FeatureNames()
	var out []models.FeatureRow
	for rows.Next() {
		var r models.FeatureRow
		vals := make([]float64, len(names))
		dest := make([]interface{}, 0, len(names)+2)
		dest = append(dest, &r.SymbolID, &r.Date)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		assignFeatures(&r, names, vals)
		out = append(out, r)
	}
	return out, rows.Err()
}

func assignFeatures(r *models.FeatureRow, names []string, vals []float64) {
	for i, name := range names {
		switch name {
		case models.FeatWeekDay:
			r.WeekDay = vals[i]
		case models.FeatHLRange:
			r.HLRange = vals[i]
		case models.FeatGapPct:
			r.GapPct = vals[i]
		case models.FeatBodyToRangeRatio:
			r.BodyToRangeRatio = vals[i]
		case models.FeatDistanceFromEMA5:
			r.DistanceFromEMA5 = vals[i]
		case models.FeatReturn3D:
			r.Return3D = vals[i]
		case models.FeatRangeCompressionRatio:
			r.RangeCompressionRatio = vals[i]
		case models.FeatATR5:
			r.ATR5 = vals[i]
		case models.FeatVolumeSpikeRatio:
			r.VolumeSpikeRatio = vals[i]
		case models.FeatVolatilitySqueeze:
			r.VolatilitySqueeze = vals[i]
		case models.FeatTrendZoneStrength:
			r.TrendZoneStrength = vals[i]
		case models.FeatRSI14:
			r.RSI14 = vals[i]
		case models.FeatCloseEMA50GapPct:
			r.CloseEMA50GapPct = vals[i]
		case models.FeatOpenGapPct:
			r.OpenGapPct = vals[i]
		case models.FeatMACDHistogram:
			r.MACDHistogram = vals[i]
		case models.FeatATR14Normalized:
			r.ATR14Normalized = vals[i]
		}
	}
}
