package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	obs "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
)

func TestNewRegistersKioskInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := New(Options{Service: "kiosk", Namespace: "kiosk", Logger: zap.NewNop(), Registerer: reg})

	tel.Metrics().Counter(obs.MPaymentNotifications).Add(1, obs.L("outcome", "unknown_order"))
	tel.Metrics().Counter(obs.MOrderTransitions).Add(1, obs.L("from", "PAID"), obs.L("to", "DISPENSING"))
	tel.Metrics().Histogram(obs.MUsecaseDuration).Observe(0.1, obs.L("use_case", "order.dispatch"))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "kiosk_payment_notifications_total")
	assert.Contains(t, names, "kiosk_order_transitions_total")
	assert.Contains(t, names, "kiosk_usecase_duration_seconds")
}

func TestUnknownMetricKeyIsNoop(t *testing.T) {
	tel := New(Options{Registerer: prometheus.NewRegistry()})
	assert.NotPanics(t, func() {
		tel.Metrics().Counter("not_registered").Add(1)
	})
}
