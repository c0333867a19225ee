package payment

import (
	"context"
	"sync"

	domoutbox "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/outbox"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) all() []domoutbox.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domoutbox.Event(nil), p.events...)
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
func (c *countingCounter) Bind(...observability.Label) observability.BoundCounter { return nil }

func (c *countingCounter) get(key string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

type warnLogger struct {
	mu    *sync.Mutex
	warns *[]string
}

func (l warnLogger) With(...observability.Field) observability.Logger { return l }
func (l warnLogger) Debug(string, ...observability.Field)             {}
func (l warnLogger) Info(string, ...observability.Field)              {}
func (l warnLogger) Error(string, ...observability.Field)             {}

func (l warnLogger) Warn(msg string, _ ...observability.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.warns = append(*l.warns, msg)
}

// testTel counts payment notifications and keeps warn lines; everything else is a no-op.
type testTel struct {
	notifications *countingCounter
	log           warnLogger
}

func newTestTel() *testTel {
	return &testTel{
		notifications: &countingCounter{counts: map[string]float64{}},
		log:           warnLogger{mu: &sync.Mutex{}, warns: &[]string{}},
	}
}

func (t *testTel) Tracer() observability.Tracer   { return observability.NopTracer() }
func (t *testTel) Logger() observability.Logger   { return t.log }
func (t *testTel) Metrics() observability.Metrics { return t }

func (t *testTel) Counter(key observability.MetricKey) observability.Counter {
	if key == observability.MPaymentNotifications {
		return t.notifications
	}
	return observability.NopCounter()
}

func (t *testTel) Histogram(observability.MetricKey) observability.Histogram {
	return observability.NopHistogram()
}

func (t *testTel) count(outcome string) float64 {
	return t.notifications.get("outcome=" + outcome + ",")
}

func (t *testTel) warned(msg string) bool {
	t.log.mu.Lock()
	defer t.log.mu.Unlock()
	for _, w := range *t.log.warns {
		if w == msg {
			return true
		}
	}
	return false
}
