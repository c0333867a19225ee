package order

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/application"
	domorder "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
	domoutbox "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/outbox"
	dompay "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/payment"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability/logctx"
)

const workerService = "order-worker"

// Worker follows lifecycle events off the bus. It writes the audit trail of
// every transition and raises the operator alert for payments that matched no order.
type Worker struct {
	subscriber domoutbox.Subscriber
	inst       *application.Instrumentation
}

func NewWorker(subscriber domoutbox.Subscriber, tel observability.Observability) *Worker {
	return &Worker{
		subscriber: subscriber,
		inst:       application.NewInstrumentation(tel, workerService),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	for _, name := range []string{
		domorder.EventCreated,
		domorder.EventPaid,
		domorder.EventDispensing,
		domorder.EventDispatched,
	} {
		w.subscriber.Subscribe(name, w.handleLifecycle)
	}
	w.subscriber.Subscribe(dompay.EventNotificationUnmatched, w.handleUnmatchedPayment)
}

func (w *Worker) handleLifecycle(ctx context.Context, e domoutbox.Event) (err error) {
	const useCase = "order.worker.lifecycle"
	ctx, call := w.inst.Begin(ctx, useCase, "Lifecycle",
		attribute.String("event", e.EventName()),
	)
	defer func() { call.End(err) }()

	logger := logctx.FromOr(ctx, w.inst.Logger())
	switch evt := e.(type) {
	case domorder.OrderCreatedEvent:
		call.With(observability.F("order_id", evt.OrderID))
		logger.Info("order_lifecycle",
			observability.F("order_id", evt.OrderID),
			observability.F("to", string(domorder.StatusCreated)),
			observability.F("product_id", evt.ProductID),
			observability.F("quantity", evt.Quantity),
			observability.F("amount_minor", evt.AmountMinor),
			observability.F("payment_link_id", evt.PaymentLinkID),
		)
	case domorder.StatusChangedEvent:
		call.With(observability.F("order_id", evt.OrderID))
		logger.Info("order_lifecycle",
			observability.F("order_id", evt.OrderID),
			observability.F("from", string(evt.From)),
			observability.F("to", string(evt.To)),
			observability.F("quantity", evt.Quantity),
		)
	default:
		call.Outcome("ignored", "UNEXPECTED_EVENT_TYPE")
	}
	return nil
}

func (w *Worker) handleUnmatchedPayment(ctx context.Context, e domoutbox.Event) (err error) {
	const useCase = "order.worker.payment_unmatched"
	ctx, call := w.inst.Begin(ctx, useCase, "PaymentUnmatched",
		attribute.String("event", e.EventName()),
	)
	defer func() { call.End(err) }()

	evt, ok := e.(dompay.NotificationUnmatchedEvent)
	if !ok {
		call.Outcome("ignored", "UNEXPECTED_EVENT_TYPE")
		return nil
	}

	logctx.FromOr(ctx, w.inst.Logger()).Error("payment_unmatched_alert",
		observability.F("payment_link_id", evt.PaymentLinkID),
		observability.F("reference_id", evt.ReferenceID),
		observability.F("occurred_at", evt.OccurredAt),
	)
	return nil
}
