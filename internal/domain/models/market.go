package models

import "time"

// EODBar is one end-of-day OHLCV row for a symbol.
// Prices are strictly positive; High >= {Open, Close, Low} and
// Low <= {Open, Close, High}. Append-only from the core's point of view.
type EODBar struct {
	SymbolID      int64
	Date          time.Time
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Volume        float64
	ChangePercent float64
}

// ClosePoint is a close-price projection of an EOD row. Label building
// needs nothing else, so reads can prune the other columns.
type ClosePoint struct {
	SymbolID int64
	Date     time.Time
	Close    float64
}

// Symbol is a tradable instrument, global across tenants. The core only
// reads it; the active and F&O flags gate batch selection.
type Symbol struct {
	ID             int64  `gorm:"primaryKey"`
	TradingCode    string `gorm:"uniqueIndex;size:32"`
	Exchange       string `gorm:"size:16"`
	InstrumentType string `gorm:"size:16"`
	LotSize        int
	FnoEligible    bool
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Symbol) TableName() string { return "symbols" }
