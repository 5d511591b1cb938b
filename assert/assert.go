// Package assert checks runtime invariants without panicking. A failed
// assertion returns an *AssertionError, logs it, counts it in
// assertion_failed_total and marks the active span, if any.
package assert

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/HayleyDeckers/ledger/log"
	"github.com/HayleyDeckers/ledger/opentelemetry/metrics"
)

// Logger is the part of log.Logger the asserter needs.
type Logger interface {
	Log(ctx context.Context, level log.Level, msg string, fields ...log.Field)
}

// ErrAssertionFailed is the sentinel behind every *AssertionError.
var ErrAssertionFailed = errors.New("assertion failed")

// SpanEventName is the span event added on failure.
const SpanEventName = "assertion.failed"

// AssertionFailedMetric counts failed assertions by component, operation and assertion.
var AssertionFailedMetric = metrics.Metric{
	Name:        "assertion_failed_total",
	Unit:        "1",
	Description: "Total number of failed assertions",
}

// AssertionError describes one failed assertion.
type AssertionError struct {
	Assertion string
	Message   string
	Component string
	Operation string
	Details   string
}

func (entry *AssertionError) Error() string {
	if entry == nil {
		return ErrAssertionFailed.Error()
	}

	if entry.Details == "" {
		return "assertion failed: " + entry.Message
	}

	return "assertion failed: " + entry.Message + "\n" + entry.Details
}

func (entry *AssertionError) Unwrap() error {
	return ErrAssertionFailed
}

// Asserter evaluates invariants for one component/operation pair.
type Asserter struct {
	logger       Logger
	factory      *metrics.MetricsFactory
	component    string
	operation    string
	includeStack bool
}

// Option configures an Asserter.
type Option func(*Asserter)

// WithMetrics counts failures through factory.
func WithMetrics(factory *metrics.MetricsFactory) Option {
	return func(a *Asserter) {
		a.factory = factory
	}
}

// WithStack attaches a stack trace to failure logs and span events.
func WithStack(enabled bool) Option {
	return func(a *Asserter) {
		a.includeStack = enabled
	}
}

// New returns an Asserter labelled with component and operation. logger may be nil.
func New(logger Logger, component, operation string, opts ...Option) *Asserter {
	a := &Asserter{
		logger:    logger,
		component: component,
		operation: operation,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// That returns an error if ok is false.
//
// Example:
//
//	if err := asserter.That(ctx, !held.IsNegative(), "held must not be negative", "client", id); err != nil {
//		return err
//	}
func (asserter *Asserter) That(ctx context.Context, ok bool, msg string, kv ...any) error {
	if ok {
		return nil
	}

	return asserter.fail(ctx, "That", msg, kv...)
}

// NotNil returns an error if v is nil, including typed nils.
func (asserter *Asserter) NotNil(ctx context.Context, v any, msg string, kv ...any) error {
	if !isNil(v) {
		return nil
	}

	return asserter.fail(ctx, "NotNil", msg, kv...)
}

// NoError returns an error if err is not nil. The error text and type are
// added to the details.
func (asserter *Asserter) NoError(ctx context.Context, err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}

	kvWithError := make([]any, 0, len(kv)+4)
	kvWithError = append(kvWithError, "error", err.Error(), "error_type", fmt.Sprintf("%T", err))
	kvWithError = append(kvWithError, kv...)

	return asserter.fail(ctx, "NoError", msg, kvWithError...)
}

// Never always fails. Use it on paths that must be unreachable.
func (asserter *Asserter) Never(ctx context.Context, msg string, kv ...any) error {
	return asserter.fail(ctx, "Never", msg, kv...)
}

func (asserter *Asserter) fail(ctx context.Context, assertion, msg string, kv ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var a Asserter
	if asserter != nil {
		a = *asserter
	}

	details := formatKeyValueLines(withContextPairs(assertion, a.component, a.operation, kv))

	var stack []byte
	if a.includeStack {
		stack = debug.Stack()
	}

	if a.logger != nil {
		a.logger.Log(ctx, log.LevelError, formatLogMessage(msg, details, stack))
	}

	a.recordMetric(ctx, assertion)
	recordToSpan(ctx, assertion, msg, stack, a.component, a.operation)

	return &AssertionError{
		Assertion: assertion,
		Message:   msg,
		Component: a.component,
		Operation: a.operation,
		Details:   details,
	}
}

func (asserter Asserter) recordMetric(ctx context.Context, assertion string) {
	if asserter.factory == nil {
		return
	}

	counter, err := asserter.factory.Counter(AssertionFailedMetric)
	if err == nil {
		err = counter.WithLabels(map[string]string{
			"component": asserter.component,
			"operation": asserter.operation,
			"assertion": assertion,
		}).AddOne(ctx)
	}

	if err != nil && asserter.logger != nil {
		asserter.logger.Log(ctx, log.LevelError, "failed to record assertion metric", log.Err(err))
	}
}

func recordToSpan(ctx context.Context, assertion, message string, stack []byte, component, operation string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("assertion.name", assertion),
		attribute.String("assertion.message", message),
	}

	if component != "" {
		attrs = append(attrs, attribute.String("assertion.component", component))
	}

	if operation != "" {
		attrs = append(attrs, attribute.String("assertion.operation", operation))
	}

	if len(stack) > 0 {
		attrs = append(attrs, attribute.String("assertion.stack", string(stack)))
	}

	span.AddEvent(SpanEventName, trace.WithAttributes(attrs...))
	span.RecordError(fmt.Errorf("%w: %s", ErrAssertionFailed, message))
	span.SetStatus(codes.Error, "assertion failed in "+strings.Trim(component+"/"+operation, "/"))
}

const maxValueLength = 200

// truncateValue bounds logged values; row data can be arbitrarily long.
func truncateValue(v any) string {
	s := fmt.Sprintf("%v", v)
	if len(s) <= maxValueLength {
		return s
	}

	return s[:maxValueLength] + "... (truncated " + strconv.Itoa(len(s)-maxValueLength) + " chars)"
}

func withContextPairs(assertion, component, operation string, kv []any) []any {
	pairs := make([]any, 0, len(kv)+6)
	pairs = append(pairs, "assertion", assertion)

	if component != "" {
		pairs = append(pairs, "component", component)
	}

	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}

	return append(pairs, kv...)
}

func formatKeyValueLines(kv []any) string {
	var sb strings.Builder

	for i := 0; i < len(kv); i += 2 {
		if i > 0 {
			sb.WriteString("\n")
		}

		var value any = "MISSING_VALUE"
		if i+1 < len(kv) {
			value = kv[i+1]
		}

		fmt.Fprintf(&sb, "    %v=%v", kv[i], truncateValue(value))
	}

	return sb.String()
}

func formatLogMessage(msg, details string, stack []byte) string {
	var sb strings.Builder

	sb.WriteString("ASSERTION FAILED: ")
	sb.WriteString(msg)

	if details != "" {
		sb.WriteString("\n")
		sb.WriteString(details)
	}

	if len(stack) > 0 {
		sb.WriteString("\nstack trace:\n")
		sb.Write(stack)
	}

	return sb.String()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
