package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Ledger metrics.
var (
	MetricActionsApplied = Metric{
		Name:        "ledger_actions_applied",
		Unit:        "1",
		Description: "Number of account actions applied to the ledger.",
	}

	MetricActionsRejected = Metric{
		Name:        "ledger_actions_rejected",
		Unit:        "1",
		Description: "Number of account actions rejected by the ledger, by error code.",
	}

	MetricRowsMalformed = Metric{
		Name:        "ledger_rows_malformed",
		Unit:        "1",
		Description: "Number of input rows that could not be decoded into an action.",
	}

	MetricClients = Metric{
		Name:        "ledger_clients",
		Unit:        "1",
		Description: "Number of client accounts held by the ledger.",
	}

	MetricLockedClients = Metric{
		Name:        "ledger_locked_clients",
		Unit:        "1",
		Description: "Number of client accounts locked by a chargeback.",
	}

	MetricRunDuration = Metric{
		Name:        "ledger_run_duration",
		Unit:        "ms",
		Description: "Wall time of one batch run.",
	}

	MetricRowsPerRun = Metric{
		Name:        "ledger_rows_per_run",
		Unit:        "1",
		Description: "Rows read in one batch run.",
	}
)

// Attribute keys shared by the ledger metrics.
const (
	AttrKind = attribute.Key("kind")
	AttrCode = attribute.Key("code")
)

// RecordActionApplied counts one applied action of the given kind.
func (f *MetricsFactory) RecordActionApplied(ctx context.Context, kind string) error {
	b, err := f.Counter(MetricActionsApplied)
	if err != nil {
		return err
	}

	return b.WithAttributes(AttrKind.String(kind)).AddOne(ctx)
}

// RecordActionRejected counts one rejected action of the given kind and error code.
func (f *MetricsFactory) RecordActionRejected(ctx context.Context, kind, code string) error {
	b, err := f.Counter(MetricActionsRejected)
	if err != nil {
		return err
	}

	return b.WithAttributes(AttrKind.String(kind), AttrCode.String(code)).AddOne(ctx)
}

// RecordRowMalformed counts one undecodable input row.
func (f *MetricsFactory) RecordRowMalformed(ctx context.Context) error {
	b, err := f.Counter(MetricRowsMalformed)
	if err != nil {
		return err
	}

	return b.AddOne(ctx)
}

// RecordClients sets the client and locked-client gauges.
func (f *MetricsFactory) RecordClients(ctx context.Context, total, locked int) error {
	clients, err := f.Gauge(MetricClients)
	if err != nil {
		return err
	}

	if err := clients.Set(ctx, int64(total)); err != nil {
		return err
	}

	lockedGauge, err := f.Gauge(MetricLockedClients)
	if err != nil {
		return err
	}

	return lockedGauge.Set(ctx, int64(locked))
}

// RecordRun records the duration and row count of a finished batch run.
func (f *MetricsFactory) RecordRun(ctx context.Context, elapsed time.Duration, rows int) error {
	duration, err := f.Histogram(MetricRunDuration)
	if err != nil {
		return err
	}

	if err := duration.Record(ctx, elapsed.Milliseconds()); err != nil {
		return err
	}

	perRun, err := f.Histogram(MetricRowsPerRun)
	if err != nil {
		return err
	}

	return perRun.Record(ctx, int64(rows))
}
