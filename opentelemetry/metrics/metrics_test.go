package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/HayleyDeckers/ledger/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestFactory wires a factory to an in-memory ManualReader.
func newTestFactory(t *testing.T) (*MetricsFactory, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	factory, err := NewMetricsFactory(mp.Meter("ledger-test"), log.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	return factory, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}

	return nil
}

func counterPoints(t *testing.T, m *metricdata.Metrics) []metricdata.DataPoint[int64] {
	t.Helper()
	require.NotNil(t, m)

	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)

	return data.DataPoints
}

func gaugePoints(t *testing.T, m *metricdata.Metrics) []metricdata.DataPoint[int64] {
	t.Helper()
	require.NotNil(t, m)

	data, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "expected Gauge[int64], got %T", m.Data)

	return data.DataPoints
}

func histogramPoints(t *testing.T, m *metricdata.Metrics) []metricdata.HistogramDataPoint[int64] {
	t.Helper()
	require.NotNil(t, m)

	data, ok := m.Data.(metricdata.Histogram[int64])
	require.True(t, ok, "expected Histogram[int64], got %T", m.Data)

	return data.DataPoints
}

func hasAttribute(attrs attribute.Set, key, value string) bool {
	v, found := attrs.Value(attribute.Key(key))

	return found && v.AsString() == value
}

func TestNewMetricsFactory(t *testing.T) {
	t.Parallel()

	_, err := NewMetricsFactory(nil, nil)
	assert.ErrorIs(t, err, ErrNilMeter)

	factory, _ := newTestFactory(t)
	assert.NotNil(t, factory)
	assert.NotNil(t, NewNopFactory())
}

func TestCounterCachingAndLabels(t *testing.T) {
	t.Parallel()

	factory, reader := newTestFactory(t)
	ctx := context.Background()

	first, err := factory.Counter(MetricActionsApplied)
	require.NoError(t, err)

	second, err := factory.Counter(MetricActionsApplied)
	require.NoError(t, err)
	assert.Equal(t, first.counter, second.counter)

	require.NoError(t, first.WithLabels(map[string]string{"kind": "deposit"}).Add(ctx, 2))
	require.NoError(t, second.WithAttributes(AttrKind.String("deposit")).AddOne(ctx))
	require.NoError(t, first.WithLabels(map[string]string{"kind": "withdrawal"}).AddOne(ctx))

	points := counterPoints(t, findMetric(collectMetrics(t, reader), MetricActionsApplied.Name))
	require.Len(t, points, 2)

	for _, dp := range points {
		switch {
		case hasAttribute(dp.Attributes, "kind", "deposit"):
			assert.Equal(t, int64(3), dp.Value)
		case hasAttribute(dp.Attributes, "kind", "withdrawal"):
			assert.Equal(t, int64(1), dp.Value)
		default:
			t.Fatalf("unexpected attributes %v", dp.Attributes)
		}
	}
}

func TestBuildersDoNotShareAttributes(t *testing.T) {
	t.Parallel()

	factory, _ := newTestFactory(t)

	base, err := factory.Counter(MetricActionsRejected)
	require.NoError(t, err)

	a := base.WithAttributes(AttrKind.String("deposit"))
	b := base.WithAttributes(AttrKind.String("dispute"))

	assert.Empty(t, base.attrs)
	assert.Len(t, a.attrs, 1)
	assert.Len(t, b.attrs, 1)
	assert.NotEqual(t, a.attrs, b.attrs)
}

func TestLabelsAreOrdered(t *testing.T) {
	t.Parallel()

	attrs := appendLabels(nil, map[string]string{"b": "2", "a": "1", "c": "3"})
	require.Len(t, attrs, 3)
	assert.Equal(t, attribute.Key("a"), attrs[0].Key)
	assert.Equal(t, attribute.Key("b"), attrs[1].Key)
	assert.Equal(t, attribute.Key("c"), attrs[2].Key)
}

func TestNilInstrumentErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	assert.ErrorIs(t, (&CounterBuilder{}).AddOne(ctx), ErrNilCounter)
	assert.ErrorIs(t, (&GaugeBuilder{}).Set(ctx, 1), ErrNilGauge)
	assert.ErrorIs(t, (&HistogramBuilder{}).Record(ctx, 1), ErrNilHistogram)
}

func TestHistogramCacheKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "h", histogramCacheKey("h", nil))
	assert.Equal(t, "h:1,5,10", histogramCacheKey("h", []float64{10, 1, 5}))
}

func TestSelectDefaultBuckets(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultRowBuckets, selectDefaultBuckets("ledger_rows_per_run"))
	assert.Equal(t, DefaultDurationBuckets, selectDefaultBuckets("ledger_run_duration"))
	assert.Equal(t, DefaultDurationBuckets, selectDefaultBuckets("anything"))
}

func TestConcurrentInstrumentCreation(t *testing.T) {
	t.Parallel()

	factory, reader := newTestFactory(t)

	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = factory.RecordRowMalformed(context.Background())
		}()
	}

	wg.Wait()

	points := counterPoints(t, findMetric(collectMetrics(t, reader), MetricRowsMalformed.Name))
	require.Len(t, points, 1)
	assert.Equal(t, int64(16), points[0].Value)
}

func TestLedgerHelpers(t *testing.T) {
	t.Parallel()

	factory, reader := newTestFactory(t)
	ctx := context.Background()

	require.NoError(t, factory.RecordActionApplied(ctx, "deposit"))
	require.NoError(t, factory.RecordActionRejected(ctx, "withdrawal", "0018"))
	require.NoError(t, factory.RecordActionRejected(ctx, "withdrawal", "0018"))
	require.NoError(t, factory.RecordRowMalformed(ctx))
	require.NoError(t, factory.RecordClients(ctx, 5, 2))
	require.NoError(t, factory.RecordRun(ctx, 1500*time.Millisecond, 42))

	rm := collectMetrics(t, reader)

	rejected := counterPoints(t, findMetric(rm, MetricActionsRejected.Name))
	require.Len(t, rejected, 1)
	assert.Equal(t, int64(2), rejected[0].Value)
	assert.True(t, hasAttribute(rejected[0].Attributes, "code", "0018"))
	assert.True(t, hasAttribute(rejected[0].Attributes, "kind", "withdrawal"))

	clients := gaugePoints(t, findMetric(rm, MetricClients.Name))
	require.Len(t, clients, 1)
	assert.Equal(t, int64(5), clients[0].Value)

	locked := gaugePoints(t, findMetric(rm, MetricLockedClients.Name))
	require.Len(t, locked, 1)
	assert.Equal(t, int64(2), locked[0].Value)

	duration := histogramPoints(t, findMetric(rm, MetricRunDuration.Name))
	require.Len(t, duration, 1)
	assert.Equal(t, uint64(1), duration[0].Count)
	assert.Equal(t, int64(1500), duration[0].Sum)
	assert.Equal(t, DefaultDurationBuckets, duration[0].Bounds)

	rows := histogramPoints(t, findMetric(rm, MetricRowsPerRun.Name))
	require.Len(t, rows, 1)
	assert.Equal(t, int64(42), rows[0].Sum)
}

func TestNopFactoryHelpers(t *testing.T) {
	t.Parallel()

	factory := NewNopFactory()
	ctx := context.Background()

	assert.NoError(t, factory.RecordActionApplied(ctx, "deposit"))
	assert.NoError(t, factory.RecordActionRejected(ctx, "deposit", "0083"))
	assert.NoError(t, factory.RecordRowMalformed(ctx))
	assert.NoError(t, factory.RecordClients(ctx, 1, 0))
	assert.NoError(t, factory.RecordRun(ctx, time.Second, 1))
}
