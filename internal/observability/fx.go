package observability

import (
	"github.com/smallbiznis/portyard/internal/observability/logger"
	"github.com/smallbiznis/portyard/internal/observability/metrics"
	"github.com/smallbiznis/portyard/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	gormlogger "gorm.io/gorm/logger"
)

// Module wires logging, tracing and metrics for the yard service. The
// slow-operation threshold from the telemetry config is shared by the task
// metrics and the gorm query logger so both flag the same statements.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		splitConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		yardMetrics,
		queryLogger,
	),
	fx.Invoke(func(_ *sdktrace.TracerProvider, _ *metrics.YardMetrics) {}),
)

// splitConfig derives the per-component configs from the one telemetry block.
func splitConfig(cfg Config) (logger.Config, tracing.Config, metrics.Config) {
	debug := cfg.Debug()
	return logger.Config{
			ServiceName:         cfg.ServiceName,
			Environment:         cfg.Environment,
			Version:             cfg.Version,
			Level:               cfg.LogLevel,
			Format:              cfg.LogFormat,
			Debug:               debug,
			IncludeCaller:       true,
			IncludeStackOnError: debug,
		}, tracing.Config{
			Enabled:          cfg.OtelEnabled,
			ServiceName:      cfg.ServiceName,
			ServiceVersion:   cfg.Version,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			SamplingRatio:    cfg.OtelSamplingRatio,
		}, metrics.Config{
			Enabled:          cfg.OtelEnabled,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			ServiceName:      cfg.ServiceName,
			Environment:      cfg.Environment,
			SlowOperation:    cfg.SlowOperation,
		}
}

// yardMetrics registers the task operation and lock wait series once per
// process, labelled with the service and environment.
func yardMetrics(cfg metrics.Config) *metrics.YardMetrics {
	return metrics.YardWithConfig(cfg)
}

// queryLogger is the gorm logger handed to the db module. Debug environments
// log every statement.
func queryLogger(cfg Config) *logger.GormLogger {
	gcfg := logger.DefaultGormLoggerConfig()
	if cfg.SlowOperation > 0 {
		gcfg.SlowThreshold = cfg.SlowOperation
	}
	if cfg.Debug() {
		gcfg.Level = gormlogger.Info
	}
	return logger.NewGormLogger(gcfg)
}
