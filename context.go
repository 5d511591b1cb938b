package ledger

import (
	"context"

	"github.com/HayleyDeckers/ledger/log"
	"github.com/HayleyDeckers/ledger/opentelemetry/metrics"
)

type contextKey struct{}

// ContextValues holds the process facilities attached to a context.
type ContextValues struct {
	RunID         string
	Logger        log.Logger
	MetricFactory *metrics.MetricsFactory
}

func valuesFrom(ctx context.Context) ContextValues {
	if ctx == nil {
		return ContextValues{}
	}

	if values, ok := ctx.Value(contextKey{}).(*ContextValues); ok && values != nil {
		return *values
	}

	return ContextValues{}
}

// with returns a child context holding a modified copy of the current values,
// so parents never observe changes made through children.
func with(ctx context.Context, update func(*ContextValues)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	values := valuesFrom(ctx)
	update(&values)

	return context.WithValue(ctx, contextKey{}, &values)
}

// ContextWithLogger returns a context carrying logger.
func ContextWithLogger(ctx context.Context, logger log.Logger) context.Context {
	return with(ctx, func(v *ContextValues) { v.Logger = logger })
}

// ContextWithMetricFactory returns a context carrying factory.
func ContextWithMetricFactory(ctx context.Context, factory *metrics.MetricsFactory) context.Context {
	return with(ctx, func(v *ContextValues) { v.MetricFactory = factory })
}

// ContextWithRunID returns a context carrying the batch run id.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return with(ctx, func(v *ContextValues) { v.RunID = runID })
}

// NewLoggerFromContext returns the context logger or a no-op logger.
//
//nolint:ireturn
func NewLoggerFromContext(ctx context.Context) log.Logger {
	if logger := valuesFrom(ctx).Logger; logger != nil {
		return logger
	}

	return log.NewNop()
}

// NewMetricFactoryFromContext returns the context metrics factory or a no-op factory.
func NewMetricFactoryFromContext(ctx context.Context) *metrics.MetricsFactory {
	if factory := valuesFrom(ctx).MetricFactory; factory != nil {
		return factory
	}

	return metrics.NewNopFactory()
}

// RunIDFromContext returns the run id, or "" when none is set.
func RunIDFromContext(ctx context.Context) string {
	return valuesFrom(ctx).RunID
}
