// Package prometrics backs the observability metric ports with Prometheus vectors.
package prometrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
)

// MissingLabel is recorded for a declared label the caller did not supply.
const MissingLabel = "unknown"

// Registry creates counter and histogram vectors under one namespace.
type Registry interface {
	Counter(name string, help string, labelKeys ...string) observability.Counter
	Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram
}

type registry struct {
	reg       prometheus.Registerer
	namespace string
	subsystem string
}

// New creates a registry that registers vectors on reg (the default registerer when nil).
func New(reg prometheus.Registerer, namespace, subsystem string) Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &registry{reg: reg, namespace: namespace, subsystem: subsystem}
}

func (r *registry) Counter(name string, help string, labelKeys ...string) observability.Counter {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: name, Help: help,
	}, labelKeys)
	return &counter{v: register(r.reg, cv), keys: labelKeys}
}

func (r *registry) Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram {
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labelKeys)
	return &histogram{v: register(r.reg, hv), keys: labelKeys}
}

// register returns the collector already registered under the same
// descriptor, so two registries over one registerer share vectors.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// values orders labels by the declared keys. Undeclared keys are dropped.
func values(keys []string, labels []observability.Label) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = MissingLabel
		for _, l := range labels {
			if l.Key == k {
				out[i] = l.Value
				break
			}
		}
	}
	return out
}

type counter struct {
	v    *prometheus.CounterVec
	keys []string
}

func (c *counter) Add(d float64, labels ...observability.Label) {
	c.v.WithLabelValues(values(c.keys, labels)...).Add(d)
}

func (c *counter) Bind(labels ...observability.Label) observability.BoundCounter {
	return boundCounter{c: c.v.WithLabelValues(values(c.keys, labels)...)}
}

type boundCounter struct{ c prometheus.Counter }

func (b boundCounter) Add(d float64) { b.c.Add(d) }

type histogram struct {
	v    *prometheus.HistogramVec
	keys []string
}

func (h *histogram) Observe(v float64, labels ...observability.Label) {
	h.v.WithLabelValues(values(h.keys, labels)...).Observe(v)
}

func (h *histogram) Bind(labels ...observability.Label) observability.BoundHistogram {
	return boundHistogram{o: h.v.WithLabelValues(values(h.keys, labels)...)}
}

type boundHistogram struct{ o prometheus.Observer }

func (b boundHistogram) Observe(v float64) { b.o.Observe(v) }
