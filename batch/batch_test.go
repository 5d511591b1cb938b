package batch

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/HayleyDeckers/ledger"
	ledgerassert "github.com/HayleyDeckers/ledger/assert"
	"github.com/HayleyDeckers/ledger/opentelemetry/metrics"
	"github.com/HayleyDeckers/ledger/record"
	"github.com/HayleyDeckers/ledger/transaction"
	"github.com/HayleyDeckers/ledger/zap"
)

const sampleInput = `type,client,tx,amount
deposit,1,1,10.0
withdrawal,1,2,5.0
withdrawal,1,3,100.0
deposit,2,4,3.0
dispute,2,4,
chargeback,2,4,
withdrawal,2,5,1.0
deposit,1,1,1.0
bogus,1,6,1.0
resolve,1,99,
`

func newObserved(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, observed := observer.New(level)

	return zap.NewFromCore(core), observed
}

func newMetrics(t *testing.T) (*metrics.MetricsFactory, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	factory, err := metrics.NewMetricsFactory(mp.Meter("batch-test"), nil)
	require.NoError(t, err)

	return factory, reader
}

func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}

			var total int64

			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
			default:
				t.Fatalf("unexpected data %T for %s", m.Data, name)
			}

			return total
		}
	}

	return 0
}

func TestRunSampleInput(t *testing.T) {
	t.Parallel()

	logger, observed := newObserved(zapcore.DebugLevel)
	factory, reader := newMetrics(t)
	engine := transaction.NewEngine()

	summary, err := New(engine, WithLogger(logger), WithMetrics(factory)).
		Run(context.Background(), record.NewReader(strings.NewReader(sampleInput)))
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Rows)
	assert.Equal(t, 5, summary.Applied)
	assert.Equal(t, 1, summary.Malformed)
	assert.Equal(t, 4, summary.TotalRejected())
	assert.Equal(t, map[transaction.ErrorCode]int{
		transaction.ErrorInsufficientFunds:    1,
		transaction.ErrorAccountLocked:        1,
		transaction.ErrorDuplicateTransaction: 1,
		transaction.ErrorTransactionNotFound:  1,
	}, summary.Rejected)
	assert.NotEmpty(t, summary.RunID)

	c1, ok := engine.Client(transaction.NewClientID(1))
	require.True(t, ok)
	assert.Equal(t, "5.0000", c1.Available.String())

	c2, ok := engine.Client(transaction.NewClientID(2))
	require.True(t, ok)
	assert.True(t, c2.Locked)

	rejected := observed.FilterMessage("transaction rejected").All()
	require.Len(t, rejected, 4)
	assert.Equal(t, zapcore.WarnLevel, rejected[0].Level)
	assert.Equal(t, "0018", rejected[0].ContextMap()["code"])
	assert.Equal(t, "withdrawal", rejected[0].ContextMap()["kind"])
	assert.Equal(t, "3", rejected[0].ContextMap()["tx"])
	assert.Equal(t, summary.RunID, rejected[0].ContextMap()["run_id"])

	malformed := observed.FilterMessage("skipping malformed row").All()
	require.Len(t, malformed, 1)
	assert.Equal(t, int64(10), malformed[0].ContextMap()["line"])

	assert.Len(t, observed.FilterMessage("transaction applied").All(), 5)

	finished := observed.FilterMessage("batch run finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, int64(1), finished[0].ContextMap()["rejected_insufficient_funds"])
	assert.Equal(t, int64(1), finished[0].ContextMap()["locked_clients"])

	assert.Equal(t, int64(5), sumOf(t, reader, metrics.MetricActionsApplied.Name))
	assert.Equal(t, int64(4), sumOf(t, reader, metrics.MetricActionsRejected.Name))
	assert.Equal(t, int64(1), sumOf(t, reader, metrics.MetricRowsMalformed.Name))
	assert.Equal(t, int64(2), sumOf(t, reader, metrics.MetricClients.Name))
	assert.Equal(t, int64(1), sumOf(t, reader, metrics.MetricLockedClients.Name))
}

func TestRunUsesContextFacilities(t *testing.T) {
	t.Parallel()

	logger, observed := newObserved(zapcore.InfoLevel)
	factory, reader := newMetrics(t)

	ctx := ledger.ContextWithLogger(context.Background(), logger)
	ctx = ledger.ContextWithMetricFactory(ctx, factory)
	ctx = ledger.ContextWithRunID(ctx, "run-from-ctx")

	summary, err := New(transaction.NewEngine()).
		Run(ctx, record.NewReader(strings.NewReader("type,client,tx,amount\ndeposit,1,1,1.0\n")))
	require.NoError(t, err)

	assert.Equal(t, "run-from-ctx", summary.RunID)
	assert.Equal(t, 1, summary.Applied)
	assert.Empty(t, observed.FilterMessage("transaction applied").All(), "debug entries stay off at info level")
	require.Len(t, observed.FilterMessage("batch run finished").All(), 1)
	assert.Equal(t, int64(1), sumOf(t, reader, metrics.MetricActionsApplied.Name))
}

type scriptedSource struct {
	steps []func() (transaction.AccountAction, error)
}

func (s *scriptedSource) Next() (transaction.AccountAction, error) {
	if len(s.steps) == 0 {
		return nil, io.EOF
	}

	step := s.steps[0]
	s.steps = s.steps[1:]

	return step()
}

func TestRunAbortsOnSourceFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	logger, observed := newObserved(zapcore.DebugLevel)

	src := &scriptedSource{steps: []func() (transaction.AccountAction, error){
		func() (transaction.AccountAction, error) {
			return transaction.Deposit{Tx: transaction.NewTransactionID(1), Client: transaction.NewClientID(1), Amount: transaction.NewAmount(1)}, nil
		},
		func() (transaction.AccountAction, error) { return nil, boom },
		func() (transaction.AccountAction, error) {
			t.Fatal("source read after a fatal error")
			return nil, nil
		},
	}}

	summary, err := New(transaction.NewEngine(), WithLogger(logger), WithMetrics(metrics.NewNopFactory())).
		Run(context.Background(), src)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, summary.Applied)
	assert.Len(t, observed.FilterMessage("batch run aborted").All(), 1)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := New(transaction.NewEngine(), WithMetrics(metrics.NewNopFactory())).
		Run(ctx, record.NewReader(strings.NewReader(sampleInput)))

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Rows)
}

func TestRunMeasuresDuration(t *testing.T) {
	t.Parallel()

	p := New(transaction.NewEngine(), WithMetrics(metrics.NewNopFactory()))

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	calls := 0
	p.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * 250 * time.Millisecond)
	}

	summary, err := p.Run(context.Background(), &scriptedSource{})
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, summary.Duration)
}

type brokenLedger struct {
	clients []transaction.Client
}

func (l *brokenLedger) Apply(transaction.AccountAction) error { return nil }

func (l *brokenLedger) Clients() []transaction.Client { return l.clients }

func TestCheckInvariantsReportsNegativeHeld(t *testing.T) {
	t.Parallel()

	logger, observed := newObserved(zapcore.DebugLevel)
	factory, reader := newMetrics(t)

	l := &brokenLedger{clients: []transaction.Client{
		{ID: transaction.NewClientID(1), Held: transaction.NewBalance(5)},
		{ID: transaction.NewClientID(2), Held: transaction.NewBalance(-1)},
	}}

	asserter := ledgerassert.New(logger, "batch", "check_invariants", ledgerassert.WithMetrics(factory))

	_, err := New(l, WithLogger(logger), WithMetrics(factory), WithAsserter(asserter)).
		Run(context.Background(), &scriptedSource{})
	require.ErrorIs(t, err, ledgerassert.ErrAssertionFailed)
	assert.Contains(t, err.Error(), "client=2")
	assert.Contains(t, err.Error(), "held=-0.0001")

	require.Len(t, observed.FilterLevelExact(zapcore.ErrorLevel).All(), 1)
	assert.Equal(t, int64(1), sumOf(t, reader, ledgerassert.AssertionFailedMetric.Name))
}

func TestCheckInvariantsPassesForEngine(t *testing.T) {
	t.Parallel()

	engine := transaction.NewEngine()
	require.NoError(t, engine.Apply(transaction.Deposit{Tx: transaction.NewTransactionID(1), Client: transaction.NewClientID(1), Amount: transaction.NewAmount(1)}))

	assert.NoError(t, New(engine).CheckInvariants(context.Background()))
}
