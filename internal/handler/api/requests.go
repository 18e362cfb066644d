package api

// ListPredictionsRequest filters a tenant's prediction listing.
type ListPredictionsRequest struct {
	SymbolID      *int64   `query:"symbol_id" validate:"omitempty,gt=0"`
	Date          string   `query:"date"`
	Verified      *bool    `query:"verified"`
	Direction     string   `query:"direction" validate:"omitempty,oneof=UP DOWN"`
	MinConfidence *float64 `query:"min_confidence" validate:"omitempty,gte=0,lte=1"`
	Limit         int      `query:"limit" validate:"omitempty,gte=1,lte=500"`
	Offset        int      `query:"offset" validate:"omitempty,gte=0"`
}

// LatestPredictionRequest fetches the newest prediction for one symbol.
type LatestPredictionRequest struct {
	SymbolID int64 `query:"symbol_id" validate:"required,gt=0"`
}

// StatsRequest bounds the verification statistics period. Empty bounds
// fall back to the trailing 30 days.
type StatsRequest struct {
	From string `query:"from"`
	To   string `query:"to"`
}

// TrendRequest sets the accuracy trend window.
type TrendRequest struct {
	Days int `query:"days" default:"30" validate:"omitempty,gte=1,lte=365"`
}

// PerformanceRequest fetches training evaluation history for one symbol.
type PerformanceRequest struct {
	SymbolID int64 `query:"symbol_id" validate:"required,gt=0"`
	Limit    int   `query:"limit" default:"20" validate:"omitempty,gte=1,lte=100"`
}

// BatchRequest names the symbols a batch operation should cover. An
// empty list means the caller's default universe.
type BatchRequest struct {
	SymbolIDs []int64 `json:"symbol_ids"`
}

// RefreshRequest targets one symbol for an on-demand prediction
// refresh, with an optional retrain first.
type RefreshRequest struct {
	SymbolID int64 `json:"symbol_id" validate:"required,gt=0"`
	Retrain  bool  `json:"retrain"`
}
