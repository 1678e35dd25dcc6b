package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "erowatch"

// Metrics holds the Prometheus counters, histograms, and gauges for the assessment pipeline.
type Metrics struct {
	MessagesConsumed     prometheus.Counter
	MeasurementsProduced prometheus.Counter
	TransformErrors      prometheus.Counter
	PipelineRunning      prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Assessment outcome metrics.
	RiskLevels    *prometheus.CounterVec // labels: level
	AlertsRaised  *prometheus.CounterVec // labels: type, criticality
	Notifications *prometheus.CounterVec // labels: outcome={sent,failed,suppressed}

	// Soil calibration metrics.
	SoilTableRefreshes  *prometheus.CounterVec // labels: outcome={success,error}
	DefaultCalibrations prometheus.Counter

	// Forecast metrics.
	ForecastRequests    *prometheus.CounterVec // labels: outcome={success,error}
	ForecastCache       *prometheus.CounterVec // labels: result={hit,miss}
	ForecastAPIDuration prometheus.Histogram
	ForecastEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total telemetry messages read from the source topic.",
		}),
		MeasurementsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_produced_total",
			Help:      "Total assessed measurements handed to the loaders.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total telemetry messages that could not be assessed.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-assess-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		RiskLevels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_levels_total",
			Help:      "Assessed measurements by final risk level.",
		}, []string{"level"}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Alerts raised by type and criticality.",
		}, []string{"type", "criticality"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Alert notifications by outcome.",
		}, []string{"outcome"}),
		SoilTableRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "soil_table_refreshes_total",
			Help:      "Soil type table reloads by outcome.",
		}, []string{"outcome"}),
		DefaultCalibrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "default_calibrations_total",
			Help:      "Readings assessed with the fallback soil calibration.",
		}),
		ForecastRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_requests_total",
			Help:      "Forecast API requests by outcome.",
		}, []string{"outcome"}),
		ForecastCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_cache_total",
			Help:      "Forecast cache lookups by result.",
		}, []string{"result"}),
		ForecastAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_api_duration_seconds",
			Help:      "OpenWeather API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		ForecastEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_enabled",
			Help:      "1 when forecast enrichment is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.MeasurementsProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.RiskLevels,
		m.AlertsRaised,
		m.Notifications,
		m.SoilTableRefreshes,
		m.DefaultCalibrations,
		m.ForecastRequests,
		m.ForecastCache,
		m.ForecastAPIDuration,
		m.ForecastEnabled,
	}
}
