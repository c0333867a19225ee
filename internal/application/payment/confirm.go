package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/application"
	domorder "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
	domoutbox "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/outbox"
	dompay "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/payment"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
)

const (
	paymentService        = "payment-service"
	useCasePaymentConfirm = "payment.confirm"
	publishTimeout        = 300 * time.Millisecond
)

var ErrRepository = errors.New("payment: order repository failure")

type ConfirmPaymentInput struct {
	ReferenceID   string
	PaymentLinkID string
}

type ConfirmPaymentResult struct {
	OrderID string
	// Outcome is one of applied, duplicate, unknown_order.
	Outcome string
}

// ConfirmPaymentUseCase applies an authenticated payment confirmation. It is
// idempotent: only a CREATED order moves to PAID, later deliveries are no-ops.
type ConfirmPaymentUseCase struct {
	repo          domorder.Repository
	publisher     domoutbox.Publisher
	inst          *application.Instrumentation
	notifications observability.Counter // payment_notifications_total{outcome}
	transitions   observability.Counter // order_transitions_total{from,to}
}

func NewConfirmPaymentUseCase(repo domorder.Repository, publisher domoutbox.Publisher, tel observability.Observability) *ConfirmPaymentUseCase {
	inst := application.NewInstrumentation(tel, paymentService)
	return &ConfirmPaymentUseCase{
		repo:          repo,
		publisher:     publisher,
		inst:          inst,
		notifications: inst.Metrics().Counter(observability.MPaymentNotifications),
		transitions:   inst.Metrics().Counter(observability.MOrderTransitions),
	}
}

func (uc *ConfirmPaymentUseCase) Execute(ctx context.Context, cmd ConfirmPaymentInput) (_ *ConfirmPaymentResult, err error) {
	ctx, call := uc.inst.Begin(ctx, useCasePaymentConfirm, "ConfirmPayment",
		attribute.String("payment.reference_id", cmd.ReferenceID),
		attribute.String("payment.link_id", cmd.PaymentLinkID),
	)
	defer func() { call.End(err) }()
	call.With(
		observability.F("reference_id", cmd.ReferenceID),
		observability.F("payment_link_id", cmd.PaymentLinkID),
	)

	o, err := uc.lookup(ctx, cmd)
	switch {
	case errors.Is(err, domorder.ErrNotFound):
		call.Outcome(dompay.OutcomeUnknownOrder, "UNKNOWN_ORDER")
		uc.countNotification(dompay.OutcomeUnknownOrder)
		call.Logger().Warn("payment_notification_unmatched",
			observability.F("reference_id", cmd.ReferenceID),
			observability.F("payment_link_id", cmd.PaymentLinkID),
		)
		uc.publish(ctx, call, dompay.NewNotificationUnmatchedEvent(dompay.Notification{
			Event:         dompay.EventLinkPaid,
			ReferenceID:   cmd.ReferenceID,
			PaymentLinkID: cmd.PaymentLinkID,
		}))
		return &ConfirmPaymentResult{Outcome: dompay.OutcomeUnknownOrder}, nil
	case err != nil:
		call.Fail("ORDER_LOOKUP_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	call.With(observability.F("order_id", o.ID))

	if o.Status != domorder.StatusCreated {
		call.Outcome(dompay.OutcomeDuplicate, "ALREADY_"+string(o.Status))
		uc.countNotification(dompay.OutcomeDuplicate)
		return &ConfirmPaymentResult{OrderID: o.ID, Outcome: dompay.OutcomeDuplicate}, nil
	}

	paid, err := uc.repo.CompareAndSetStatus(ctx, o.ID, domorder.StatusCreated, domorder.StatusPaid)
	if err != nil {
		if errors.Is(err, domorder.ErrStatusConflict) {
			// a concurrent redelivery won
			call.Outcome(dompay.OutcomeDuplicate, "CONCURRENT_CONFIRMATION")
			uc.countNotification(dompay.OutcomeDuplicate)
			return &ConfirmPaymentResult{OrderID: o.ID, Outcome: dompay.OutcomeDuplicate}, nil
		}
		call.Fail("ORDER_UPDATE_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	uc.transitions.Add(1,
		observability.L("from", string(domorder.StatusCreated)),
		observability.L("to", string(domorder.StatusPaid)),
	)
	uc.countNotification(dompay.OutcomeApplied)
	uc.publish(ctx, call, domorder.NewStatusChangedEvent(paid, domorder.StatusCreated))

	call.Span().SetAttributes(attribute.String("order.id", paid.ID))
	return &ConfirmPaymentResult{OrderID: paid.ID, Outcome: dompay.OutcomeApplied}, nil
}

// lookup resolves the order by reference id, falling back to the payment link id.
func (uc *ConfirmPaymentUseCase) lookup(ctx context.Context, cmd ConfirmPaymentInput) (*domorder.Order, error) {
	if cmd.ReferenceID != "" {
		o, err := uc.repo.Get(ctx, cmd.ReferenceID)
		if err == nil || !errors.Is(err, domorder.ErrNotFound) {
			return o, err
		}
	}
	if cmd.PaymentLinkID != "" {
		return uc.repo.FindByPaymentLinkID(ctx, cmd.PaymentLinkID)
	}
	return nil, domorder.ErrNotFound
}

func (uc *ConfirmPaymentUseCase) countNotification(outcome string) {
	uc.notifications.Add(1, observability.L("outcome", outcome))
}

func (uc *ConfirmPaymentUseCase) publish(ctx context.Context, call *application.Call, e domoutbox.Event) {
	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := uc.publisher.Publish(pubCtx, e); err != nil {
		call.Span().RecordError(err)
		call.With(observability.F("event_publish_error", err.Error()))
	}
}
