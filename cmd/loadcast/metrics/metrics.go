// Package metrics provides Prometheus metrics instrumentation for loadcast.
//
// It exposes the duration of each benchmark stage (load, fit, predict,
// score), the age and size of the latest forecast, the latest error scores
// per series and an error counter. All metrics are exposed via the /metrics
// HTTP endpoint for Prometheus scraping.
//
// Metrics exposed:
//   - loadcast_adapter_load_seconds: Histogram of data loading duration
//   - loadcast_model_fit_seconds: Histogram of model fit duration
//   - loadcast_model_predict_seconds: Histogram of prediction duration
//   - loadcast_score_seconds: Histogram of scoring duration
//   - loadcast_forecast_age_seconds: Gauge of current forecast age
//   - loadcast_forecast_rows: Gauge of rows in the latest forecast
//   - loadcast_series_rmse: Gauge of the latest RMSE per series
//   - loadcast_series_smape_percent: Gauge of the latest SMAPE per series
//   - loadcast_errors_total: Counter of errors by component and reason
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HatiCode/loadcast/pkg/scoring"
)

// Metrics holds all Prometheus metrics of a loadcast process.
type Metrics struct {
	AdapterLoadSeconds  prometheus.Histogram
	ModelFitSeconds     prometheus.Histogram
	ModelPredictSeconds prometheus.Histogram
	ScoreSeconds        prometheus.Histogram
	ForecastAgeSeconds  prometheus.Gauge
	ForecastRows        prometheus.Gauge
	SeriesRMSE          *prometheus.GaugeVec
	SeriesSMAPE         *prometheus.GaugeVec
	ErrorsTotal         *prometheus.CounterVec
}

// New creates and registers all metrics on the default registry.
func New(adapter, model string) *Metrics {
	return NewWith(prometheus.DefaultRegisterer, adapter, model)
}

// NewWith creates all metrics and registers them on reg.
func NewWith(reg prometheus.Registerer, adapter, model string) *Metrics {
	factory := promauto.With(reg)

	// Benchmarks run for seconds to minutes, well past DefBuckets.
	buckets := prometheus.ExponentialBuckets(0.01, 4, 9)

	return &Metrics{
		AdapterLoadSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "loadcast_adapter_load_seconds",
			Help:        "Time spent loading observations from the adapter",
			ConstLabels: prometheus.Labels{"adapter": adapter},
			Buckets:     buckets,
		}),

		ModelFitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "loadcast_model_fit_seconds",
			Help:        "Time spent fitting the model",
			ConstLabels: prometheus.Labels{"model": model},
			Buckets:     buckets,
		}),

		ModelPredictSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "loadcast_model_predict_seconds",
			Help:        "Time spent predicting the test period",
			ConstLabels: prometheus.Labels{"model": model},
			Buckets:     buckets,
		}),

		ScoreSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "loadcast_score_seconds",
			Help:        "Time spent scoring predictions",
			ConstLabels: prometheus.Labels{"model": model},
			Buckets:     buckets,
		}),

		ForecastAgeSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "loadcast_forecast_age_seconds",
			Help:        "Age of the current forecast in seconds",
			ConstLabels: prometheus.Labels{"model": model},
		}),

		ForecastRows: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "loadcast_forecast_rows",
			Help:        "Number of rows in the latest forecast",
			ConstLabels: prometheus.Labels{"model": model},
		}),

		SeriesRMSE: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "loadcast_series_rmse",
			Help:        "Root mean squared error of the latest forecast per series",
			ConstLabels: prometheus.Labels{"model": model},
		}, []string{"series"}),

		SeriesSMAPE: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "loadcast_series_smape_percent",
			Help:        "Symmetric mean absolute percentage error of the latest forecast per series",
			ConstLabels: prometheus.Labels{"model": model},
		}, []string{"series"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "loadcast_errors_total",
			Help:        "Total number of errors by component and reason",
			ConstLabels: prometheus.Labels{"model": model},
		}, []string{"component", "reason"}),
	}
}

// RecordLoad records the time spent loading observations.
func (m *Metrics) RecordLoad(seconds float64) {
	m.AdapterLoadSeconds.Observe(seconds)
}

// RecordFit records the time spent fitting.
func (m *Metrics) RecordFit(seconds float64) {
	m.ModelFitSeconds.Observe(seconds)
}

// RecordPredict records the time spent predicting.
func (m *Metrics) RecordPredict(seconds float64) {
	m.ModelPredictSeconds.Observe(seconds)
}

// RecordScore records the time spent scoring.
func (m *Metrics) RecordScore(seconds float64) {
	m.ScoreSeconds.Observe(seconds)
}

// SetForecastAge sets the current forecast age.
func (m *Metrics) SetForecastAge(seconds float64) {
	m.ForecastAgeSeconds.Set(seconds)
}

// SetForecastRows sets the row count of the latest forecast.
func (m *Metrics) SetForecastRows(rows int) {
	m.ForecastRows.Set(float64(rows))
}

// SetScores publishes the latest scores of every series.
func (m *Metrics) SetScores(scores map[string]scoring.Scores) {
	for series, s := range scores {
		m.SeriesRMSE.WithLabelValues(series).Set(s.RMSE)
		m.SeriesSMAPE.WithLabelValues(series).Set(s.SMAPE)
	}
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
