package helper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus metrics of a docgrapher instance.
// Every collector owns its registry so several instances can live in one process.
type Collector struct {
	registry *prometheus.Registry

	DocumentsProcessed    *prometheus.CounterVec
	StageFailures         *prometheus.CounterVec
	StageDuration         *prometheus.HistogramVec
	RelationshipsAccepted prometheus.Counter
	CandidatesDropped     prometheus.Counter
	OrphansSwept          *prometheus.CounterVec
}

// NewCollector creates and registers all metrics under the given namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		DocumentsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_processed_total",
				Help:      "Total number of document pipeline runs by outcome",
			},
			[]string{"status"},
		),
		StageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_failures_total",
				Help:      "Total number of pipeline stage failures",
			},
			[]string{"stage"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		RelationshipsAccepted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relationships_accepted_total",
				Help:      "Total number of accepted relationships (inverses excluded)",
			},
		),
		CandidatesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_dropped_total",
				Help:      "Total number of relationship candidates dropped during characterization",
			},
		),
		OrphansSwept: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orphans_swept_total",
				Help:      "Total number of orphaned documents removed per store",
			},
			[]string{"store"},
		),
	}

	registry.MustRegister(
		c.DocumentsProcessed,
		c.StageFailures,
		c.StageDuration,
		c.RelationshipsAccepted,
		c.CandidatesDropped,
		c.OrphansSwept,
	)

	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveStage records the duration of a stage and counts it as failed if err is not nil.
// Safe to call on a nil collector.
func (c *Collector) ObserveStage(stage string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if err != nil {
		c.StageFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveDocument counts a finished pipeline run. Safe to call on a nil collector.
func (c *Collector) ObserveDocument(success bool) {
	if c == nil {
		return
	}
	status := "failed"
	if success {
		status = "committed"
	}
	c.DocumentsProcessed.WithLabelValues(status).Inc()
}

// ObserveRelationships counts accepted relationships and dropped candidates.
// Safe to call on a nil collector.
func (c *Collector) ObserveRelationships(accepted int, dropped int) {
	if c == nil {
		return
	}
	c.RelationshipsAccepted.Add(float64(accepted))
	c.CandidatesDropped.Add(float64(dropped))
}

// ObserveOrphans counts swept orphans for a store. Safe to call on a nil collector.
func (c *Collector) ObserveOrphans(store string, count int) {
	if c == nil {
		return
	}
	c.OrphansSwept.WithLabelValues(store).Add(float64(count))
}
