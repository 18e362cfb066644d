package models

import "time"

// Direction is a predicted or realized move direction.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Prediction is one row per (tenant, symbol, date). Created by the
// predictor, mutated once by the verifier, replaced wholesale on
// regenerate.
type Prediction struct {
	ID       int64     `gorm:"primaryKey" json:"id"`
	TenantID int64     `gorm:"index:idx_pred_key,unique" json:"tenant_id"`
	SymbolID int64     `gorm:"index:idx_pred_key,unique" json:"symbol_id"`
	Date     time.Time `gorm:"index:idx_pred_key,unique" json:"date"`

	StrongMoveConfidence float64    `json:"strong_move_confidence"`
	DirectionPrediction  *Direction `gorm:"size:8" json:"direction_prediction,omitempty"`
	DirectionConfidence  *float64   `json:"direction_confidence,omitempty"`

	Verified          bool       `json:"verified"`
	Processed         bool       `json:"processed"`
	VerificationDate  *time.Time `json:"verification_date,omitempty"`
	ActualMovePercent *float64   `json:"actual_move_percent,omitempty"`
	ActualDirection   *Direction `gorm:"size:8" json:"actual_direction,omitempty"`
	DaysToFulfill     *int       `json:"days_to_fulfill,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Prediction) TableName() string { return "predictions" }

// PredictionStats summarizes verification outcomes over a period.
type PredictionStats struct {
	Total             int64    `json:"total"`
	Processed         int64    `json:"processed"`
	Verified          int64    `json:"verified"`
	UpPredictions     int64    `json:"up_predictions"`
	DownPredictions   int64    `json:"down_predictions"`
	DirectionAccuracy float64  `json:"direction_accuracy"`
	AvgDaysToFulfill  *float64 `json:"avg_days_to_fulfill,omitempty"`
}

// AccuracyPoint is one day of the accuracy trend.
type AccuracyPoint struct {
	Date     time.Time `json:"date"`
	Total    int64     `json:"total"`
	Verified int64     `json:"verified"`
	Accuracy float64   `json:"accuracy"`
}
