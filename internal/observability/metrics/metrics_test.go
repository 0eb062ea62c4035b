package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/portyard/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("task_type", "Move"),
		attribute.String("container_number", "ABCD1234567"),
		attribute.String("role", "operator"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "task_type" && attrs[1].Key != "task_type" {
		t.Fatalf("expected task_type to be retained")
	}
	if attrs[0].Key != "role" && attrs[1].Key != "role" {
		t.Fatalf("expected role to be retained")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordTaskCreated(context.Background(), "Move")
	m.RecordIntegrityAlert(context.Background(), "from_slot_mismatch")

	var y *YardMetrics
	y.ObserveOperation("advance", time.Now(), nil)
	y.ObserveLockWait(LockResourceSlot, time.Millisecond)

	noop := NewNoop()
	noop.RecordTaskTransition(context.Background(), "Move", "Pending", "Completed")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, OutcomeSlotOccupied, Outcome(errs.SlotOccupied(1, 2)))
	assert.Equal(t, OutcomeInconsistentState, Outcome(errs.Inconsistent("yard_slot", 1, "x")))
	assert.Equal(t, OutcomeTerminalState, Outcome(errs.Terminal("task", 1, "Completed")))
	assert.Equal(t, OutcomeForbidden, Outcome(errs.PermissionDenied("viewer", "task", "create")))
	assert.Equal(t, OutcomeDB, Outcome(errors.New("boom")))
}

func TestYardMetricsRecordsOutcomes(t *testing.T) {
	m := newYardMetrics(prometheus.NewRegistry(), Config{ServiceName: "test"})

	m.ObserveOperation("advance", time.Now(), nil)
	m.ObserveOperation("advance", time.Now(), errs.SlotOccupied(1, 2))
	m.ObserveOperation("advance", time.Now(), errs.SlotOccupied(1, 3))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationOutcomes.WithLabelValues("advance", OutcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.operationOutcomes.WithLabelValues("advance", OutcomeSlotOccupied)))
}

func TestYardMetricsFlagsSlowOperations(t *testing.T) {
	m := newYardMetrics(prometheus.NewRegistry(), Config{SlowOperation: time.Second})

	assert.False(t, m.ObserveOperation("create", time.Now(), nil))
	assert.True(t, m.ObserveOperation("create", time.Now().Add(-2*time.Second), nil))

	unset := newYardMetrics(prometheus.NewRegistry(), Config{})
	assert.False(t, unset.ObserveOperation("create", time.Now().Add(-time.Hour), nil))
}

func TestYardMetricsLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newYardMetrics(reg, Config{ServiceName: "yard-api", Environment: "test"})
	m.ObserveLockWait(LockResourceSlot, 3*time.Millisecond)
	m.ObserveLockWait(LockResourceSlot, 7*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	family := findFamily(families, "portyard_db_lock_wait_seconds")
	require.NotNil(t, family)
	require.Equal(t, dto.MetricType_HISTOGRAM, family.GetType())
	require.Len(t, family.GetMetric(), 1)

	sample := family.GetMetric()[0]
	assert.Equal(t, map[string]string{
		"env":      "test",
		"resource": LockResourceSlot,
		"service":  "yard-api",
	}, labelMap(sample))
	assert.EqualValues(t, 2, sample.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.010, sample.GetHistogram().GetSampleSum(), 1e-9)
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func labelMap(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, pair := range m.GetLabel() {
		out[pair.GetName()] = pair.GetValue()
	}
	return out
}
