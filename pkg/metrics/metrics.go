// Package metrics exposes Prometheus collectors for repository operations
// and module executions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/vizier/pkg/execution"
	"github.com/dshills/vizier/pkg/repository"
)

const (
	namespace = "vizier"

	operationLabel = "operation"
	resultLabel    = "result"
	packageLabel   = "package"
	outcomeLabel   = "outcome"
)

var (
	_ execution.Observer  = (*Collector)(nil)
	_ repository.Recorder = (*Collector)(nil)
)

// Collector records repository and engine events.
type Collector struct {
	operations *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
	executions *prometheus.CounterVec
	runs       prometheus.Histogram
}

// New creates the collectors. They are not registered.
func New() *Collector {
	return &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repository_operations_total",
			Help:      "Count of repository operations by result",
		}, []string{operationLabel, resultLabel}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "repository_operation_duration_seconds",
			Help:      "Histogram of repository operation runtimes",
			Buckets:   prometheus.DefBuckets,
		}, []string{operationLabel}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_executions_total",
			Help:      "Count of modules visited by the re-execution engine by outcome",
		}, []string{packageLabel, outcomeLabel}),
		runs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reexecution_duration_seconds",
			Help:      "Histogram of re-execution runtimes",
			Buckets:   []float64{0.001, 0.01, 0.1, 1.0, 10.0, 100.0},
		}),
	}
}

// Register registers every collector with reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.operations, c.opDuration, c.executions, c.runs} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// OperationCompleted implements repository.Recorder.
func (c *Collector) OperationCompleted(operation, result string, duration time.Duration) {
	c.operations.WithLabelValues(operation, result).Inc()
	c.opDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ModuleVisited implements execution.Observer.
func (c *Collector) ModuleVisited(pkg, outcome string, _ time.Duration) {
	c.executions.WithLabelValues(pkg, outcome).Inc()
}

// RunCompleted implements execution.Observer.
func (c *Collector) RunCompleted(duration time.Duration) {
	c.runs.Observe(duration.Seconds())
}
