// Package batch drives a stream of account actions through a ledger engine,
// one at a time and in input order.
//
// Malformed rows and rejected actions are logged, counted and skipped; only a
// failure to read the source or a cancelled context stops a run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/HayleyDeckers/ledger"
	"github.com/HayleyDeckers/ledger/assert"
	"github.com/HayleyDeckers/ledger/log"
	"github.com/HayleyDeckers/ledger/opentelemetry/metrics"
	"github.com/HayleyDeckers/ledger/record"
	"github.com/HayleyDeckers/ledger/transaction"
)

// Source yields actions until io.EOF. A *record.RowError marks a single bad
// row; any other error aborts the run.
type Source interface {
	Next() (transaction.AccountAction, error)
}

// Ledger is the engine surface the processor needs.
type Ledger interface {
	Apply(action transaction.AccountAction) error
	Clients() []transaction.Client
}

// Summary counts what happened during a run.
type Summary struct {
	RunID     string
	Rows      int
	Applied   int
	Malformed int
	Rejected  map[transaction.ErrorCode]int
	Duration  time.Duration
}

// TotalRejected returns the number of actions the ledger refused.
func (s Summary) TotalRejected() int {
	total := 0
	for _, n := range s.Rejected {
		total += n
	}

	return total
}

// Processor applies a Source to a Ledger.
type Processor struct {
	ledger   Ledger
	logger   log.Logger
	metrics  *metrics.MetricsFactory
	asserter *assert.Asserter
	now      func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger. Without it the context logger is used.
func WithLogger(logger log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics factory. Without it the context factory is used.
func WithMetrics(factory *metrics.MetricsFactory) Option {
	return func(p *Processor) {
		p.metrics = factory
	}
}

// WithAsserter sets the asserter used by CheckInvariants.
func WithAsserter(asserter *assert.Asserter) Option {
	return func(p *Processor) {
		p.asserter = asserter
	}
}

// New returns a Processor for ledger.
func New(l Ledger, opts ...Option) *Processor {
	p := &Processor{
		ledger: l,
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// Run applies every action from src. The returned Summary is valid even when
// an error is returned, and covers the rows processed up to that point.
func (p *Processor) Run(ctx context.Context, src Source) (Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	runID := ledger.RunIDFromContext(ctx)
	if runID == "" {
		runID = ledger.NewRunID()
		ctx = ledger.ContextWithRunID(ctx, runID)
	}

	logger := p.loggerFor(ctx).With(log.String("run_id", runID))
	factory := p.metricsFor(ctx)

	summary := Summary{RunID: runID, Rejected: make(map[transaction.ErrorCode]int)}
	started := p.now()

	logger.Log(ctx, log.LevelInfo, "batch run started")

	err := p.consume(ctx, src, logger, factory, &summary)

	summary.Duration = p.now().Sub(started)
	p.finish(ctx, logger, factory, summary)

	if err != nil {
		logger.Log(ctx, log.LevelError, "batch run aborted", log.Int("rows", summary.Rows), log.Err(err))

		return summary, err
	}

	if err := p.CheckInvariants(ctx); err != nil {
		return summary, err
	}

	return summary, nil
}

func (p *Processor) consume(ctx context.Context, src Source, logger log.Logger, factory *metrics.MetricsFactory, summary *Summary) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("batch run cancelled: %w", err)
		}

		action, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		var rowErr *record.RowError

		switch {
		case errors.As(err, &rowErr):
			summary.Rows++
			summary.Malformed++

			logger.Log(ctx, log.LevelWarn, "skipping malformed row",
				log.Int("line", rowErr.Line), log.Err(rowErr.Err))
			p.record(ctx, logger, factory.RecordRowMalformed(ctx))

			continue
		case err != nil:
			return fmt.Errorf("read source: %w", err)
		}

		summary.Rows++

		if err := p.ledger.Apply(action); err != nil {
			code := transaction.CodeOf(err)
			summary.Rejected[code]++

			logger.Log(ctx, log.LevelWarn, "transaction rejected",
				log.Int("row", summary.Rows),
				log.String("kind", string(action.Kind())),
				log.Stringer("tx", action.TxID()),
				log.Stringer("client", action.ClientID()),
				log.String("code", string(code)),
				log.Err(err))
			p.record(ctx, logger, factory.RecordActionRejected(ctx, string(action.Kind()), string(code)))

			continue
		}

		summary.Applied++

		if logger.Enabled(log.LevelDebug) {
			logger.Log(ctx, log.LevelDebug, "transaction applied",
				log.Int("row", summary.Rows),
				log.String("kind", string(action.Kind())),
				log.Stringer("tx", action.TxID()),
				log.Stringer("client", action.ClientID()))
		}

		p.record(ctx, logger, factory.RecordActionApplied(ctx, string(action.Kind())))
	}
}

func (p *Processor) finish(ctx context.Context, logger log.Logger, factory *metrics.MetricsFactory, summary Summary) {
	clients := p.ledger.Clients()

	locked := 0
	for _, c := range clients {
		if c.Locked {
			locked++
		}
	}

	p.record(ctx, logger, factory.RecordClients(ctx, len(clients), locked))
	p.record(ctx, logger, factory.RecordRun(ctx, summary.Duration, summary.Rows))

	fields := []log.Field{
		log.Int("rows", summary.Rows),
		log.Int("applied", summary.Applied),
		log.Int("rejected", summary.TotalRejected()),
		log.Int("malformed", summary.Malformed),
		log.Int("clients", len(clients)),
		log.Int("locked_clients", locked),
		log.Int64("duration_ms", summary.Duration.Milliseconds()),
	}

	for _, code := range slices.Sorted(maps.Keys(summary.Rejected)) {
		fields = append(fields, log.Int("rejected_"+code.Name(), summary.Rejected[code]))
	}

	logger.Log(ctx, log.LevelInfo, "batch run finished", fields...)
}

// record logs a metric recording failure; metrics never fail a run.
func (p *Processor) record(ctx context.Context, logger log.Logger, err error) {
	if err != nil {
		logger.Log(ctx, log.LevelDebug, "failed to record metric", log.Err(err))
	}
}

// CheckInvariants verifies the ledger snapshot: no client may hold negative
// funds. Violations are reported through the asserter.
func (p *Processor) CheckInvariants(ctx context.Context) error {
	asserter := p.asserter
	if asserter == nil {
		asserter = assert.New(p.loggerFor(ctx), "batch", "check_invariants", assert.WithMetrics(p.metricsFor(ctx)))
	}

	var errs []error

	for _, c := range p.ledger.Clients() {
		if err := asserter.That(ctx, !c.Held.IsNegative(), "held funds must not be negative",
			"client", c.ID, "held", c.Held); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

//nolint:ireturn
func (p *Processor) loggerFor(ctx context.Context) log.Logger {
	if p.logger != nil {
		return p.logger
	}

	return ledger.NewLoggerFromContext(ctx)
}

func (p *Processor) metricsFor(ctx context.Context) *metrics.MetricsFactory {
	if p.metrics != nil {
		return p.metrics
	}

	return ledger.NewMetricFactoryFromContext(ctx)
}
