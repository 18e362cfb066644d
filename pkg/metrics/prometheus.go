package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trainingsTotal     *prometheus.CounterVec
	predictionsTotal   *prometheus.CounterVec
	verificationsTotal *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	cacheEvents        *prometheus.CounterVec
	modelAccuracy      *prometheus.GaugeVec
	batchDuration      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		trainingsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_trainings_total",
				Help: "Total number of model training runs",
			},
			[]string{"tenant", "model_type", "result"},
		),
		predictionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_predictions_total",
				Help: "Total number of predictions generated",
			},
			[]string{"tenant", "direction"},
		),
		verificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_verifications_total",
				Help: "Total number of prediction verification outcomes",
			},
			[]string{"tenant", "outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		cacheEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_model_cache_events_total",
				Help: "Model cache hits, misses and evictions",
			},
			[]string{"event"},
		),
		modelAccuracy: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockpulse_model_accuracy",
				Help: "Last recorded test accuracy for a trained model",
			},
			[]string{"tenant", "symbol", "model_type"},
		),
		batchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockpulse_batch_duration_seconds",
				Help:    "Duration of batch pipeline stages in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"stage"},
		),
	}
}

// RecordTraining records a training run outcome.
func (r *Recorder) RecordTraining(tenant, modelType, result string) {
	r.trainingsTotal.WithLabelValues(tenant, modelType, result).Inc()
}

// RecordPrediction records a generated prediction.
func (r *Recorder) RecordPrediction(tenant, direction string) {
	r.predictionsTotal.WithLabelValues(tenant, direction).Inc()
}

// RecordVerification records a verification outcome.
func (r *Recorder) RecordVerification(tenant, outcome string) {
	r.verificationsTotal.WithLabelValues(tenant, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordCacheEvent records a model cache hit, miss or eviction.
func (r *Recorder) RecordCacheEvent(event string) {
	r.cacheEvents.WithLabelValues(event).Inc()
}

// RecordModelAccuracy records the test accuracy of a trained model.
func (r *Recorder) RecordModelAccuracy(tenant, symbol, modelType string, accuracy float64) {
	r.modelAccuracy.WithLabelValues(tenant, symbol, modelType).Set(accuracy)
}

// RecordBatchDuration records the duration of a batch stage in seconds.
func (r *Recorder) RecordBatchDuration(stage string, seconds float64) {
	r.batchDuration.WithLabelValues(stage).Observe(seconds)
}
