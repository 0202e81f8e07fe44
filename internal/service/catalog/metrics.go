package catalog

import (
	"errors"

	"diskcatalog/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts catalog operations.
	// Labels: operation (import, delete, nodes, updates, history), outcome (ok, invalid, not_found, error)
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diskcatalog",
		Subsystem: "catalog",
		Name:      "operations_total",
		Help:      "Catalog operations by outcome",
	}, []string{"operation", "outcome"})

	// operationDuration measures catalog operation latency
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "diskcatalog",
		Subsystem: "catalog",
		Name:      "operation_duration_seconds",
		Help:      "Catalog operation latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"operation"})

	// importBatchSize tracks the number of descriptors per accepted batch
	importBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "diskcatalog",
		Subsystem: "import",
		Name:      "batch_size",
		Help:      "Descriptors per committed import batch",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	// itemsRemovedTotal counts items removed by cascading deletes
	itemsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "diskcatalog",
		Subsystem: "delete",
		Name:      "items_removed_total",
		Help:      "Items removed by cascading deletes",
	})
)

// outcome classifies err for the operations counter
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func observe(operation string, seconds float64, err error) {
	operationsTotal.WithLabelValues(operation, outcome(err)).Inc()
	operationDuration.WithLabelValues(operation).Observe(seconds)
}
