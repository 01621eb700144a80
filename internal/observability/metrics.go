package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the refresh pipeline.
type Metrics struct {
	ForecastFetches *prometheus.CounterVec // labels: period={current,next}, outcome={success,error}

	// Clearance metrics.
	ClearanceFeatures    *prometheus.GaugeVec   // labels: rule={day,night}
	IntersectionFailures *prometheus.CounterVec // labels: region
	RegionsExcluded      prometheus.Gauge

	SlotsInstalled prometheus.Gauge
	CycleDuration  prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ForecastFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gaf_clearance",
			Name:      "forecast_fetches_total",
			Help:      "Forecast document fetches by period and outcome.",
		}, []string{"period", "outcome"}),
		ClearanceFeatures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gaf_clearance",
			Name:      "clearance_features",
			Help:      "Clearance features currently installed, by rule.",
		}, []string{"rule"}),
		IntersectionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gaf_clearance",
			Name:      "intersection_failures_total",
			Help:      "Grid cell and map area pairs whose intersection failed, by region.",
		}, []string{"region"}),
		RegionsExcluded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gaf_clearance",
			Name:      "regions_excluded",
			Help:      "Number of regions skipped by the clearance engine.",
		}),
		SlotsInstalled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gaf_clearance",
			Name:      "slots_installed",
			Help:      "Number of (period, region) slots holding a processed forecast.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gaf_clearance",
			Name:      "refresh_cycle_duration_seconds",
			Help:      "Duration of a complete refresh cycle across all periods and regions.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}

	prometheus.MustRegister(
		m.ForecastFetches,
		m.ClearanceFeatures,
		m.IntersectionFailures,
		m.RegionsExcluded,
		m.SlotsInstalled,
		m.CycleDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ForecastFetches:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gaf_clearance", Name: "forecast_fetches_total"}, []string{"period", "outcome"}),
		ClearanceFeatures:    prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "gaf_clearance", Name: "clearance_features"}, []string{"rule"}),
		IntersectionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gaf_clearance", Name: "intersection_failures_total"}, []string{"region"}),
		RegionsExcluded:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "gaf_clearance", Name: "regions_excluded"}),
		SlotsInstalled:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "gaf_clearance", Name: "slots_installed"}),
		CycleDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "gaf_clearance", Name: "refresh_cycle_duration_seconds"}),
	}
}
