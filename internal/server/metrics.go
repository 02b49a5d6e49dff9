package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the job runner's Prometheus collectors. Each server owns a
// registry so several servers can live in one process (tests).
type metrics struct {
	registry *prometheus.Registry

	jobsTotal    *prometheus.CounterVec
	activeJobs   prometheus.Gauge
	generations  prometheus.Counter
	bestFitness  *prometheus.GaugeVec
	diversity    *prometheus.GaugeVec
	checkpoints  prometheus.Counter
	genDurations prometheus.Histogram
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evotimetable_jobs_total",
			Help: "Jobs that reached a final state, by state",
		}, []string{"state"}),
		activeJobs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "evotimetable_jobs_active",
			Help: "Jobs currently running",
		}),
		generations: factory.NewCounter(prometheus.CounterOpts{
			Name: "evotimetable_generations_total",
			Help: "Generations completed across all jobs",
		}),
		bestFitness: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evotimetable_best_fitness",
			Help: "Best fitness of the latest generation, by job",
		}, []string{"job_id"}),
		diversity: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evotimetable_avg_self_diversity",
			Help: "Average self diversity of the latest generation, by job",
		}, []string{"job_id"}),
		checkpoints: factory.NewCounter(prometheus.CounterOpts{
			Name: "evotimetable_checkpoints_total",
			Help: "Checkpoints written by server jobs",
		}),
		genDurations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "evotimetable_generation_duration_seconds",
			Help:    "Wall time between consecutive generations",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
}

// forget drops per-job series once a job is finished.
func (m *metrics) forget(jobID string) {
	m.bestFitness.DeleteLabelValues(jobID)
	m.diversity.DeleteLabelValues(jobID)
}
