package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/application"
	dompay "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/payment"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
)

const useCasePaymentNotification = "payment.notification"

type NotificationInput struct {
	Body      []byte
	Signature string
}

type NotificationResult struct {
	Event   string
	OrderID string
	Outcome string
}

// envelope is the subset of the provider's webhook payload the kiosk reads.
type envelope struct {
	Event   string `json:"event"`
	Payload struct {
		PaymentLink struct {
			Entity struct {
				ID          string `json:"id"`
				ReferenceID string `json:"reference_id"`
				Status      string `json:"status"`
			} `json:"entity"`
		} `json:"payment_link"`
	} `json:"payload"`
}

// HandleNotificationUseCase authenticates a raw webhook delivery before reading
// any of it, then hands confirmed payments to ConfirmPaymentUseCase.
type HandleNotificationUseCase struct {
	auth          *Authenticator
	confirm       *ConfirmPaymentUseCase
	inst          *application.Instrumentation
	notifications observability.Counter // payment_notifications_total{outcome}
}

func NewHandleNotificationUseCase(auth *Authenticator, confirm *ConfirmPaymentUseCase, tel observability.Observability) *HandleNotificationUseCase {
	inst := application.NewInstrumentation(tel, paymentService)
	return &HandleNotificationUseCase{
		auth:          auth,
		confirm:       confirm,
		inst:          inst,
		notifications: inst.Metrics().Counter(observability.MPaymentNotifications),
	}
}

func (uc *HandleNotificationUseCase) Execute(ctx context.Context, cmd NotificationInput) (_ *NotificationResult, err error) {
	ctx, call := uc.inst.Begin(ctx, useCasePaymentNotification, "PaymentNotification",
		attribute.Int("webhook.body_bytes", len(cmd.Body)),
	)
	defer func() { call.End(err) }()

	if err := uc.auth.Verify(cmd.Body, cmd.Signature); err != nil {
		call.Outcome("rejected", "SIGNATURE_MISMATCH")
		uc.count(dompay.OutcomeAuthenticationFailed)
		call.Logger().Warn("payment_notification_rejected",
			observability.F("reason", "signature_mismatch"),
		)
		return nil, err
	}

	n, err := parseNotification(cmd.Body)
	if err != nil {
		call.Fail("MALFORMED_PAYLOAD")
		uc.count(dompay.OutcomeMalformed)
		return nil, err
	}
	call.With(observability.F("event", n.Event))
	call.Span().SetAttributes(attribute.String("webhook.event", n.Event))

	if !n.Confirmed() {
		call.Outcome(dompay.OutcomeIgnored, "EVENT_IGNORED")
		uc.count(dompay.OutcomeIgnored)
		return &NotificationResult{Event: n.Event, Outcome: dompay.OutcomeIgnored}, nil
	}

	res, err := uc.confirm.Execute(ctx, ConfirmPaymentInput{
		ReferenceID:   n.ReferenceID,
		PaymentLinkID: n.PaymentLinkID,
	})
	if err != nil {
		call.Fail("CONFIRM_FAILED")
		return nil, err
	}
	call.Status(res.Outcome)
	return &NotificationResult{Event: n.Event, OrderID: res.OrderID, Outcome: res.Outcome}, nil
}

func (uc *HandleNotificationUseCase) count(outcome string) {
	uc.notifications.Add(1, observability.L("outcome", outcome))
}

func parseNotification(body []byte) (dompay.Notification, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return dompay.Notification{}, fmt.Errorf("%w: %w", dompay.ErrMalformed, err)
	}
	if env.Event == "" {
		return dompay.Notification{}, fmt.Errorf("%w: missing event", dompay.ErrMalformed)
	}
	entity := env.Payload.PaymentLink.Entity
	return dompay.Notification{
		Event:         env.Event,
		PaymentLinkID: entity.ID,
		ReferenceID:   entity.ReferenceID,
		Status:        entity.Status,
	}, nil
}

// PaidNotificationBody builds a payment_link.paid delivery in the provider's
// format. The sandbox gateway uses it to confirm its own links.
func PaidNotificationBody(paymentLinkID, referenceID string) ([]byte, error) {
	var env envelope
	env.Event = dompay.EventLinkPaid
	env.Payload.PaymentLink.Entity.ID = paymentLinkID
	env.Payload.PaymentLink.Entity.ReferenceID = referenceID
	env.Payload.PaymentLink.Entity.Status = "paid"
	return json.Marshal(env)
}
