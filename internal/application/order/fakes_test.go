package order

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/dispense"
	domoutbox "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/outbox"
	dompay "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/payment"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
)

type sequentialIDs struct{ n atomic.Int64 }

func (s *sequentialIDs) NewID() string { return fmt.Sprintf("ord-%d", s.n.Add(1)) }

type stubGateway struct {
	mu    sync.Mutex
	calls []dompay.LinkRequest
	fn    func(ctx context.Context, req dompay.LinkRequest) (dompay.Link, error)
}

func (g *stubGateway) CreateLink(ctx context.Context, req dompay.LinkRequest) (dompay.Link, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if g.fn != nil {
		return g.fn(ctx, req)
	}
	return dompay.Link{
		ID:               "plink_" + req.ReferenceID,
		URL:              "https://rzp.io/i/" + req.ReferenceID,
		PayableReference: "data:image/png;base64,AAAA",
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type recordingDispenser struct {
	mu   sync.Mutex
	cmds []dispense.Command
	err  error
}

func (d *recordingDispenser) Dispense(_ context.Context, cmd dispense.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmds = append(d.cmds, cmd)
	return d.err
}

type scheduledJob struct {
	key   string
	delay time.Duration
	run   func()
}

type capturingScheduler struct {
	mu   sync.Mutex
	jobs []scheduledJob
}

func (s *capturingScheduler) Schedule(ctx context.Context, key string, delay time.Duration, fn func(ctx context.Context)) {
	runCtx := context.WithoutCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, scheduledJob{key: key, delay: delay, run: func() { fn(runCtx) }})
}

func (s *capturingScheduler) snapshot() []scheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scheduledJob(nil), s.jobs...)
}

type recordedLine struct {
	level  string
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

func (l *recordingLogger) Debug(msg string, fields ...observability.Field) { l.add("debug", msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...observability.Field)  { l.add("info", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...observability.Field)  { l.add("warn", msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...observability.Field) { l.add("error", msg, fields) }

func (l *recordingLogger) add(level, msg string, fields []observability.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := map[string]any{}
	for _, f := range append(append([]observability.Field(nil), l.bound...), fields...) {
		m[f.Key] = f.Value
	}
	*l.lines = append(*l.lines, recordedLine{level: level, msg: msg, fields: m})
}

func (l *recordingLogger) find(msg string) (recordedLine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range *l.lines {
		if line.msg == msg {
			return line, true
		}
	}
	return recordedLine{}, false
}

type countingCounter struct {
	mu     sync.Mutex
	counts map[string]float64
}

func newCountingCounter() *countingCounter {
	return &countingCounter{counts: map[string]float64{}}
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

// testTel records logs and the counters the order use cases touch.
type testTel struct {
	log      *recordingLogger
	counters map[observability.MetricKey]*countingCounter
}

func newTestTel() *testTel {
	return &testTel{
		log: newRecordingLogger(),
		counters: map[observability.MetricKey]*countingCounter{
			observability.MUsecaseRequests:  newCountingCounter(),
			observability.MOrderTransitions: newCountingCounter(),
			observability.MExternalRequests: newCountingCounter(),
		},
	}
}

func (t *testTel) Tracer() observability.Tracer   { return observability.NopTracer() }
func (t *testTel) Logger() observability.Logger   { return t.log }
func (t *testTel) Metrics() observability.Metrics { return t }

func (t *testTel) Counter(key observability.MetricKey) observability.Counter {
	if c, ok := t.counters[key]; ok {
		return c
	}
	return observability.NopCounter()
}

func (t *testTel) Histogram(observability.MetricKey) observability.Histogram {
	return observability.NopHistogram()
}
