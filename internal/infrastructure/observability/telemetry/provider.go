// Package telemetry assembles the kiosk's tracer, logger and Prometheus
// instruments into the observability.Observability handed to use cases.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/observability/oteltrace"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/observability/prometrics"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/observability/zaplogger"
	obs "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
)

// Options selects where the kiosk's signals go.
type Options struct {
	Service    string
	Namespace  string
	Logger     *zap.Logger
	Registerer prometheus.Registerer
}

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

type instrument struct {
	key       obs.MetricKey
	help      string
	labels    []string
	histogram bool
}

// instruments is every metric the kiosk reports.
var instruments = []instrument{
	{key: obs.MUsecaseRequests, help: "Total number of use case invocations.", labels: []string{"use_case", "outcome"}},
	{key: obs.MHTTPRequests, help: "Total number of HTTP requests.", labels: []string{"route", "method", "status"}},
	{key: obs.MExternalRequests, help: "Total number of calls to external systems.", labels: []string{"target", "operation", "outcome"}},
	{key: obs.MOrderTransitions, help: "Order status transitions applied.", labels: []string{"from", "to"}},
	{key: obs.MPaymentNotifications, help: "Payment notifications received by outcome.", labels: []string{"outcome"}},
	{key: obs.MUsecaseDuration, help: "Duration of use case execution in seconds.", labels: []string{"use_case"}, histogram: true},
	{key: obs.MHTTPRequestDuration, help: "Duration of HTTP requests in seconds.", labels: []string{"route", "method"}, histogram: true},
	{key: obs.MExternalRequestDuration, help: "Duration of calls to external systems in seconds.", labels: []string{"target", "operation"}, histogram: true},
}

type provider struct {
	tracer     obs.Tracer
	logger     obs.Logger
	counters   map[obs.MetricKey]obs.Counter
	histograms map[obs.MetricKey]obs.Histogram
}

// New registers every instrument the kiosk reports and returns the assembled provider.
func New(opts Options) obs.Observability {
	reg := prometrics.New(opts.Registerer, opts.Namespace, "")
	p := &provider{
		tracer:     oteltrace.New(opts.Service),
		logger:     zaplogger.New(opts.Logger),
		counters:   make(map[obs.MetricKey]obs.Counter),
		histograms: make(map[obs.MetricKey]obs.Histogram),
	}
	for _, in := range instruments {
		if in.histogram {
			p.histograms[in.key] = reg.Histogram(string(in.key), in.help, latencyBuckets, in.labels...)
			continue
		}
		p.counters[in.key] = reg.Counter(string(in.key), in.help, in.labels...)
	}
	return p
}

func (p *provider) Tracer() obs.Tracer   { return p.tracer }
func (p *provider) Logger() obs.Logger   { return p.logger }
func (p *provider) Metrics() obs.Metrics { return p }

// Counter returns a no-op for keys outside the instrument table.
func (p *provider) Counter(name obs.MetricKey) obs.Counter {
	if c, ok := p.counters[name]; ok {
		return c
	}
	return obs.NopCounter()
}

func (p *provider) Histogram(name obs.MetricKey) obs.Histogram {
	if h, ok := p.histograms[name]; ok {
		return h
	}
	return obs.NopHistogram()
}
