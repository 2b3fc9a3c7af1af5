package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	ReadingsCompleted  prometheus.Counter
	ReadingsFailed     prometheus.Counter
	ReadingsSkipped    prometheus.Counter
	PhotosSkippedTotal prometheus.Counter
	ReadingDuration    prometheus.Histogram
}

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	return &Metrics{
		ReadingsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fortuna_readings_completed_total",
			Help: "Total number of readings that reached the completed state",
		}),
		ReadingsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fortuna_readings_failed_total",
			Help: "Total number of readings that reached the error state",
		}),
		ReadingsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fortuna_readings_skipped_total",
			Help: "Total number of readings skipped by the idempotency guard or lock",
		}),
		PhotosSkippedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fortuna_photos_skipped_total",
			Help: "Total number of palm photos skipped during materialization",
		}),
		ReadingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fortuna_reading_duration_seconds",
			Help:    "End-to-end processing latency per reading in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120}, // Gemini calls dominate
		}),
	}
}

// ReadingCompleted records a successful reading and its latency
func (m *Metrics) ReadingCompleted(duration time.Duration) {
	m.ReadingsCompleted.Inc()
	m.ReadingDuration.Observe(duration.Seconds())
}

// ReadingFailed records a reading that terminated in the error state
func (m *Metrics) ReadingFailed() {
	m.ReadingsFailed.Inc()
}

// ReadingSkipped records a reading skipped without processing
func (m *Metrics) ReadingSkipped() {
	m.ReadingsSkipped.Inc()
}

// PhotosSkipped records photos dropped during materialization
func (m *Metrics) PhotosSkipped(n int) {
	m.PhotosSkippedTotal.Add(float64(n))
}
