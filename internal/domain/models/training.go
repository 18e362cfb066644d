package models

import "time"

// ModelType distinguishes the two classifiers of the cascade.
type ModelType string

const (
	ModelTypeMove      ModelType = "move"
	ModelTypeDirection ModelType = "direction"
)

// ModelMetrics are the evaluation scores of one trained classifier.
type ModelMetrics struct {
	Accuracy  float64  `json:"accuracy"`
	Precision float64  `json:"precision"`
	Recall    float64  `json:"recall"`
	F1        float64  `json:"f1"`
	ROCAUC    *float64 `json:"roc_auc,omitempty"`
	MSE       *float64 `json:"mse,omitempty"`
	RMSE      *float64 `json:"rmse,omitempty"`
	MAE       *float64 `json:"mae,omitempty"`
}

// ModelPerformance is an append-only evaluation record, one per
// (tenant, symbol, model type, evaluation date). Never mutated.
type ModelPerformance struct {
	ID             int64     `gorm:"primaryKey"`
	TenantID       int64     `gorm:"index"`
	SymbolID       int64     `gorm:"index"`
	ModelType      ModelType `gorm:"size:16"`
	ModelKind      string    `gorm:"size:32"`
	EvaluationDate time.Time
	Accuracy       float64
	Precision      float64
	Recall         float64
	F1             float64
	ROCAUC         *float64
	TrainSamples   int
	TestSamples    int
	CreatedAt      time.Time
}

func (ModelPerformance) TableName() string { return "model_performances" }

// TrainStatus classifies the outcome of one model's training attempt.
type TrainStatus string

const (
	TrainStatusSuccess TrainStatus = "success"
	TrainStatusSkipped TrainStatus = "skipped"
	TrainStatusError   TrainStatus = "error"
)

// ModelTrainResult is the outcome for one classifier of the cascade.
type ModelTrainResult struct {
	Status       TrainStatus   `json:"status"`
	Reason       string        `json:"reason,omitempty"`
	Metrics      *ModelMetrics `json:"metrics,omitempty"`
	TrainSamples int           `json:"train_samples"`
	TestSamples  int           `json:"test_samples"`
}

// TrainingResult is the structured outcome of one train(tenant, symbol)
// call. Data-insufficiency is reported here, never raised.
type TrainingResult struct {
	TenantID     int64            `json:"tenant_id"`
	SymbolID     int64            `json:"symbol_id"`
	Status       TrainStatus      `json:"status"`
	Reason       string           `json:"reason,omitempty"`
	ModelKind    string           `json:"model_kind,omitempty"`
	FeatureCount int              `json:"feature_count"`
	Move         ModelTrainResult `json:"move"`
	Direction    ModelTrainResult `json:"direction"`
	Duration     time.Duration    `json:"duration_ms"`
}
