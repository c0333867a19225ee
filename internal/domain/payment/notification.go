package payment

import "time"

const (
	EventLinkPaid               = "payment_link.paid"
	EventNotificationUnmatched  = "payment.notification_unmatched"
	OutcomeApplied              = "applied"
	OutcomeDuplicate            = "duplicate"
	OutcomeUnknownOrder         = "unknown_order"
	OutcomeIgnored              = "ignored"
	OutcomeAuthenticationFailed = "authentication_failed"
	OutcomeMalformed            = "malformed"
)

// Notification is the authenticated, parsed content of a provider webhook.
type Notification struct {
	Event         string
	PaymentLinkID string
	ReferenceID   string
	Status        string
}

// Confirmed reports whether the notification confirms payment.
func (n Notification) Confirmed() bool {
	return n.Event == EventLinkPaid
}

// NotificationUnmatchedEvent flags an authenticated payment the kiosk could
// not attribute to an order. Money was taken, so an operator must look.
type NotificationUnmatchedEvent struct {
	PaymentLinkID string    `json:"paymentLinkId"`
	ReferenceID   string    `json:"referenceId"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func (NotificationUnmatchedEvent) EventName() string { return EventNotificationUnmatched }

func NewNotificationUnmatchedEvent(n Notification) NotificationUnmatchedEvent {
	return NotificationUnmatchedEvent{
		PaymentLinkID: n.PaymentLinkID,
		ReferenceID:   n.ReferenceID,
		OccurredAt:    time.Now().UTC(),
	}
}
