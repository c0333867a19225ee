package observability

// Observability bundles the three signals handed to use cases, workers and handlers.
type Observability interface {
	Tracer() Tracer
	Logger() Logger
	Metrics() Metrics
}

// Metrics resolves pre-registered instruments by key. Unknown keys resolve to no-ops.
type Metrics interface {
	Counter(name MetricKey) Counter
	Histogram(name MetricKey) Histogram
}

type MetricKey string

// Or returns tel when set, otherwise a provider made of no-op signals.
func Or(tel Observability) Observability {
	if tel != nil {
		return tel
	}
	return nopObservability{}
}

type nopObservability struct{}

func (nopObservability) Tracer() Tracer   { return NopTracer() }
func (nopObservability) Logger() Logger   { return NopLogger() }
func (nopObservability) Metrics() Metrics { return NopMetrics() }
