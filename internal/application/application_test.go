package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability/logctx"
)

type recordedLine struct {
	msg    string
	fields map[string]any
}

type recordingLogger struct {
	mu    *sync.Mutex
	lines *[]recordedLine
	bound []observability.Field
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, lines: &[]recordedLine{}}
}

func (l *recordingLogger) With(fields ...observability.Field) observability.Logger {
	return &recordingLogger{mu: l.mu, lines: l.lines, bound: append(append([]observability.Field(nil), l.bound...), fields...)}
}

func (l *recordingLogger) Debug(msg string, fields ...observability.Field) { l.add(msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...observability.Field)  { l.add(msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...observability.Field)  { l.add(msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...observability.Field) { l.add(msg, fields) }

func (l *recordingLogger) add(msg string, fields []observability.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := map[string]any{}
	for _, f := range append(append([]observability.Field(nil), l.bound...), fields...) {
		m[f.Key] = f.Value
	}
	*l.lines = append(*l.lines, recordedLine{msg: msg, fields: m})
}

type countingCounter struct {
	mu     sync.Mutex
	counts map[string]float64
}

func (c *countingCounter) Add(d float64, labels ...observability.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := ""
	for _, l := range labels {
		key += l.Key + "=" + l.Value + ","
	}
	c.counts[key] += d
}
func (c *countingCounter) Bind(labels ...observability.Label) observability.BoundCounter { return nil }

type fakeObservability struct {
	log     observability.Logger
	counter *countingCounter
}

func (f fakeObservability) Tracer() observability.Tracer { return observability.NopTracer() }
func (f fakeObservability) Logger() observability.Logger { return f.log }
func (f fakeObservability) Metrics() observability.Metrics {
	return fakeMetrics{counter: f.counter}
}

type fakeMetrics struct{ counter *countingCounter }

func (m fakeMetrics) Counter(key observability.MetricKey) observability.Counter {
	if key == observability.MUsecaseRequests {
		return m.counter
	}
	return observability.NopCounter()
}
func (m fakeMetrics) Histogram(observability.MetricKey) observability.Histogram {
	return observability.NopHistogram()
}

func TestCallRecordsOutcomeAndLogsDone(t *testing.T) {
	log := newRecordingLogger()
	counter := &countingCounter{counts: map[string]float64{}}
	in := NewInstrumentation(fakeObservability{log: log, counter: counter}, "order-service")

	ctx, call := in.Begin(context.Background(), "order.dispatch", "Dispatch")
	assert.NotNil(t, logctx.From(ctx))
	call.Fail("PAYMENT_NOT_CONFIRMED")
	call.With(observability.F("order_id", "o-1"))
	call.End(errors.New("payment not confirmed"))

	require.Len(t, *log.lines, 1)
	line := (*log.lines)[0]
	assert.Equal(t, "use_case_done", line.msg)
	assert.Equal(t, "order-service", line.fields["service"])
	assert.Equal(t, "order.dispatch", line.fields["use_case"])
	assert.Equal(t, "error", line.fields["outcome"])
	assert.Equal(t, "PAYMENT_NOT_CONFIRMED", line.fields["status"])
	assert.Equal(t, "o-1", line.fields["order_id"])
	assert.Equal(t, float64(1), counter.counts["use_case=order.dispatch,outcome=error,"])
}

func TestExternalClassifiesCancellation(t *testing.T) {
	in := NewInstrumentation(nil, "order-service")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := in.External(ctx, "gateway", "create_link", func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
}
