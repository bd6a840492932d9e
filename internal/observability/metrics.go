package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storage_anomaly"

// Metrics holds the Prometheus counters and histograms of the pipeline.
type Metrics struct {
	CellsMatched           *prometheus.CounterVec   // labels: region
	SeriesProduced         *prometheus.CounterVec   // labels: source
	ReconstructionFailures *prometheus.CounterVec   // labels: source
	StageDuration          *prometheus.HistogramVec // labels: stage={load,match,anomaly,reconstruct,combine,write}
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		CellsMatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_matched_total",
			Help:      help("Grid cells matched to regions."),
		}, []string{"region"}),
		SeriesProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_produced_total",
			Help:      help("Regional anomaly series produced by source."),
		}, []string{"source"}),
		ReconstructionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconstruction_failures_total",
			Help:      help("Series whose temporal reconstruction failed."),
		}, []string{"source"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      help("Duration of each pipeline stage."),
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"stage"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.CellsMatched,
		m.SeriesProduced,
		m.ReconstructionFailures,
		m.StageDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics so tests can build
// as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
