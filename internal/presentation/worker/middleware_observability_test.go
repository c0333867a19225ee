package workerpresentation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domoutbox "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/outbox"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability/logctx"
)

type fieldLogger struct {
	mu     *sync.Mutex
	fields []observability.Field
	lines  *[]string
}

func (l fieldLogger) With(fields ...observability.Field) observability.Logger {
	return fieldLogger{mu: l.mu, fields: append(append([]observability.Field(nil), l.fields...), fields...), lines: l.lines}
}
func (l fieldLogger) Debug(msg string, _ ...observability.Field) { l.add(msg) }
func (l fieldLogger) Info(msg string, _ ...observability.Field)  { l.add(msg) }
func (l fieldLogger) Warn(msg string, _ ...observability.Field)  { l.add(msg) }
func (l fieldLogger) Error(msg string, _ ...observability.Field) { l.add(msg) }

func (l fieldLogger) add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.lines = append(*l.lines, msg)
}

func (l fieldLogger) value(key string) (any, bool) {
	for _, f := range l.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

type captureSubscriber struct {
	handlers map[string]domoutbox.Handler
}

func (c *captureSubscriber) Subscribe(name string, h domoutbox.Handler) {
	c.handlers[name] = h
}

type testEvent struct{}

func (testEvent) EventName() string { return "order.paid" }

func TestWithEventContextBindsFields(t *testing.T) {
	base := fieldLogger{mu: &sync.Mutex{}, lines: &[]string{}}
	ctx := WithEventContext(context.Background(), base, [16]byte{}, [8]byte{}, map[string]string{
		"event_id": "evt-1",
		"worker":   "order-worker",
		"empty":    "",
	})

	logger, ok := logctx.From(ctx).(fieldLogger)
	require.True(t, ok)
	id, _ := logger.value("event_id")
	assert.Equal(t, "evt-1", id)
	worker, _ := logger.value("worker")
	assert.Equal(t, "order-worker", worker)
	_, hasEmpty := logger.value("empty")
	assert.False(t, hasEmpty)
	_, hasTrace := logger.value("trace_id")
	assert.False(t, hasTrace)
}

func TestSubscriberDecoratesHandlers(t *testing.T) {
	inner := &captureSubscriber{handlers: map[string]domoutbox.Handler{}}
	base := fieldLogger{mu: &sync.Mutex{}, lines: &[]string{}}
	sub := NewSubscriber(inner, base, "order-worker")

	var got fieldLogger
	sub.Subscribe("order.paid", func(ctx context.Context, _ domoutbox.Event) error {
		got = logctx.From(ctx).(fieldLogger)
		return nil
	})

	h, ok := inner.handlers["order.paid"]
	require.True(t, ok)
	require.NoError(t, h(context.Background(), testEvent{}))

	event, _ := got.value("event")
	assert.Equal(t, "order.paid", event)
	id, ok := got.value("event_id")
	require.True(t, ok)
	assert.NotEmpty(t, id)
}
