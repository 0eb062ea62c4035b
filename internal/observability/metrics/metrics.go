package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
	SlowOperation    time.Duration
}

// Metrics exposes application-level instruments.
type Metrics struct {
	tasksCreated      metric.Int64Counter
	taskTransitions   metric.Int64Counter
	slotConflicts     metric.Int64Counter
	integrityAlerts   metric.Int64Counter
	permissionDenials metric.Int64Counter
	reportFallbacks   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "portyard"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
	}{
		{&m.tasksCreated, "portyard_tasks_created_total"},
		{&m.taskTransitions, "portyard_task_transitions_total"},
		{&m.slotConflicts, "portyard_slot_conflicts_total"},
		{&m.integrityAlerts, "portyard_integrity_alerts_total"},
		{&m.permissionDenials, "portyard_permission_denied_total"},
		{&m.reportFallbacks, "portyard_report_fallbacks_total"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}
	return m, nil
}

// NewNoop returns instruments bound to a no-op provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordTaskCreated counts new tasks by type. Deduplicated requests are not counted.
func (m *Metrics) RecordTaskCreated(ctx context.Context, taskType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("task_type", strings.TrimSpace(taskType)))
	m.tasksCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTaskTransition counts a committed status change.
func (m *Metrics) RecordTaskTransition(ctx context.Context, taskType, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("task_type", strings.TrimSpace(taskType)),
		attribute.String("from_status", strings.TrimSpace(from)),
		attribute.String("to_status", strings.TrimSpace(to)),
	)
	m.taskTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSlotConflict counts rejected moves onto an occupied slot.
func (m *Metrics) RecordSlotConflict(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("stage", strings.TrimSpace(stage)))
	m.slotConflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordIntegrityAlert counts detected occupancy invariant breaches.
func (m *Metrics) RecordIntegrityAlert(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.integrityAlerts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPermissionDenied counts gate rejections.
func (m *Metrics) RecordPermissionDenied(ctx context.Context, role, kind, op string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("role", strings.TrimSpace(role)),
		attribute.String("entity_kind", strings.TrimSpace(kind)),
		attribute.String("operation", strings.TrimSpace(op)),
	)
	m.permissionDenials.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReportFallback counts reads served from tables because a view failed.
func (m *Metrics) RecordReportFallback(ctx context.Context, report string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("report", strings.TrimSpace(report)))
	m.reportFallbacks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"task_type":   {},
	"from_status": {},
	"to_status":   {},
	"stage":       {},
	"reason":      {},
	"role":        {},
	"entity_kind": {},
	"operation":   {},
	"report":      {},
	"endpoint":    {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
