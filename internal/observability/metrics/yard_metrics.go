package metrics

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/portyard/internal/errs"
)

const (
	LockResourceContainer = "container"
	LockResourceSlot      = "yard_slot"
	LockResourceTask      = "task"
)

const (
	OutcomeOK                = "ok"
	OutcomeSlotOccupied      = "slot_occupied"
	OutcomeInconsistentState = "inconsistent_state"
	OutcomeTerminalState     = "terminal_state"
	OutcomeInvalidContainer  = "invalid_container_state"
	OutcomeValidation        = "validation"
	OutcomeForbidden         = "forbidden"
	OutcomeDB                = "db"
)

// YardMetrics captures slot contention and task latency as prometheus series
// scraped from /metrics.
type YardMetrics struct {
	operationDuration *prometheus.HistogramVec
	operationOutcomes *prometheus.CounterVec
	lockWait          *prometheus.HistogramVec
	slow              time.Duration
}

var (
	yardMetricsOnce sync.Once
	yardMetrics     *YardMetrics
)

// Yard returns the singleton yard metrics registry.
func Yard() *YardMetrics {
	return YardWithConfig(Config{})
}

// YardWithConfig returns the singleton yard metrics registry using config labels.
func YardWithConfig(cfg Config) *YardMetrics {
	yardMetricsOnce.Do(func() {
		yardMetrics = newYardMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return yardMetrics
}

func newYardMetrics(registerer prometheus.Registerer, cfg Config) *YardMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "portyard"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	operationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "portyard_task_operation_duration_seconds",
		Help:        "Task create and advance latency including row lock waits.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"operation"})
	operationOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "portyard_task_operation_outcomes_total",
		Help:        "Task operations by low-cardinality outcome.",
		ConstLabels: constLabels,
	}, []string{"operation", "outcome"})
	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "portyard_db_lock_wait_seconds",
		Help:        "SELECT FOR UPDATE wait time by locked resource.",
		Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		ConstLabels: constLabels,
	}, []string{"resource"})

	registerer.MustRegister(operationDuration, operationOutcomes, lockWait)

	return &YardMetrics{
		operationDuration: operationDuration,
		operationOutcomes: operationOutcomes,
		lockWait:          lockWait,
		slow:              cfg.SlowOperation,
	}
}

// ObserveOperation records latency and outcome of a task operation and
// reports whether it ran past the slow threshold.
func (m *YardMetrics) ObserveOperation(operation string, started time.Time, err error) bool {
	if m == nil {
		return false
	}
	elapsed := time.Since(started)
	m.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	m.operationOutcomes.WithLabelValues(operation, Outcome(err)).Inc()
	return m.slow > 0 && elapsed > m.slow
}

// ObserveLockWait records how long a row lock took to acquire.
func (m *YardMetrics) ObserveLockWait(resource string, wait time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.WithLabelValues(resource).Observe(wait.Seconds())
}

// Outcome maps a domain error onto a metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, errs.ErrSlotOccupied):
		return OutcomeSlotOccupied
	case errors.Is(err, errs.ErrInconsistentState):
		return OutcomeInconsistentState
	case errors.Is(err, errs.ErrTerminalState):
		return OutcomeTerminalState
	case errors.Is(err, errs.ErrInvalidContainerState):
		return OutcomeInvalidContainer
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrNotFound):
		return OutcomeValidation
	case errors.Is(err, errs.ErrPermissionDenied):
		return OutcomeForbidden
	default:
		return OutcomeDB
	}
}
