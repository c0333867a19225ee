package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability/logctx"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

const (
	SpanPrefix     = "UC."
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	StatusOK       = "OK"
)

// Instrumentation holds the RED instruments shared by every use case of a service.
type Instrumentation struct {
	tel observability.Observability

	// Base logger with fixed fields prebound.
	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{target,operation,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{target,operation}
}

func NewInstrumentation(tel observability.Observability, service string) *Instrumentation {
	tel = observability.Or(tel)
	m := tel.Metrics()
	return &Instrumentation{
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

func (in *Instrumentation) Logger() observability.Logger { return in.log }

func (in *Instrumentation) Metrics() observability.Metrics { return in.tel.Metrics() }

// Call tracks one use case execution from Begin to End.
type Call struct {
	in      *Instrumentation
	useCase string
	start   time.Time
	span    trace.Span
	log     observability.Logger
	outcome string
	status  string
	fields  []observability.Field
}

// Begin opens the span and binds a use-case logger (with trace ids) into the returned context.
func (in *Instrumentation) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Call) {
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tel.Tracer().Start(ctx, SpanPrefix+spanName, attrs...)

	logger := logctx.FromOr(ctx, in.log).With(observability.F("use_case", useCase))
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	ctx = logctx.With(ctx, logger)

	return ctx, &Call{
		in:      in,
		useCase: useCase,
		start:   time.Now(),
		span:    span,
		log:     logger,
		outcome: OutcomeSuccess,
		status:  StatusOK,
	}
}

func (c *Call) Span() trace.Span             { return c.span }
func (c *Call) Logger() observability.Logger { return c.log }

// Fail marks the call as an error with a status text for span, metric and log.
func (c *Call) Fail(status string) {
	c.outcome, c.status = OutcomeError, status
}

// Outcome records a non-error outcome other than success (rejected, duplicate, ignored).
func (c *Call) Outcome(outcome, status string) {
	c.outcome, c.status = outcome, status
}

// Status overrides the status text while keeping the outcome.
func (c *Call) Status(status string) {
	c.status = status
}

func (c *Call) With(fields ...observability.Field) {
	c.fields = append(c.fields, fields...)
}

// End closes the span, records RED metrics and writes the use_case_done line.
func (c *Call) End(err error) {
	lat := time.Since(c.start).Seconds()

	if c.span != nil {
		if err != nil {
			c.span.RecordError(err)
		}
		if c.outcome == OutcomeError {
			c.span.SetStatus(codes.Error, c.status)
		} else {
			c.span.SetStatus(codes.Ok, c.status)
		}
		c.span.End()
	}

	c.in.reqCounter.Add(1,
		observability.L("use_case", c.useCase),
		observability.L("outcome", c.outcome),
	)
	c.in.durHistogram.Observe(lat,
		observability.L("use_case", c.useCase),
	)

	fields := append([]observability.Field{
		observability.F("outcome", c.outcome),
		observability.F("status", c.status),
		observability.F("latency_seconds", lat),
	}, c.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	c.log.Info("use_case_done", fields...)
}

// External runs fn as a call to an outside system and records
// external_requests_total and external_request_duration_seconds for it.
func (in *Instrumentation) External(ctx context.Context, target, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	outcome := OutcomeSuccess
	switch {
	case err != nil && ctx.Err() != nil:
		outcome = "canceled"
	case err != nil:
		outcome = OutcomeError
	}
	in.extCounter.Add(1,
		observability.L("target", target),
		observability.L("operation", operation),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("target", target),
		observability.L("operation", operation),
	)
	return err
}
