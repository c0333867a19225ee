package order

import "time"

const (
	EventCreated    = "order.created"
	EventPaid       = "order.paid"
	EventDispensing = "order.dispensing"
	EventDispatched = "order.dispatched"
)

// OrderCreatedEvent is emitted once the order has been persisted with its payment link.
type OrderCreatedEvent struct {
	OrderID       string    `json:"orderId"`
	ProductID     string    `json:"productId"`
	Quantity      int       `json:"quantity"`
	AmountMinor   int64     `json:"amountMinor"`
	Currency      string    `json:"currency"`
	PaymentLinkID string    `json:"paymentLinkId"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func (OrderCreatedEvent) EventName() string { return EventCreated }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:       o.ID,
		ProductID:     o.ProductID,
		Quantity:      o.Quantity,
		AmountMinor:   o.AmountMinor,
		Currency:      o.Currency,
		PaymentLinkID: o.PaymentLinkID,
		OccurredAt:    time.Now().UTC(),
	}
}

// StatusChangedEvent is emitted after every applied transition. Its name is
// derived from the new status (order.paid, order.dispensing, order.dispatched).
type StatusChangedEvent struct {
	OrderID     string    `json:"orderId"`
	ProductName string    `json:"productName"`
	Quantity    int       `json:"quantity"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func (e StatusChangedEvent) EventName() string { return EventNameFor(e.To) }

func NewStatusChangedEvent(o *Order, from Status) StatusChangedEvent {
	return StatusChangedEvent{
		OrderID:     o.ID,
		ProductName: o.ProductName,
		Quantity:    o.Quantity,
		From:        from,
		To:          o.Status,
		OccurredAt:  time.Now().UTC(),
	}
}

func EventNameFor(s Status) string {
	switch s {
	case StatusCreated:
		return EventCreated
	case StatusPaid:
		return EventPaid
	case StatusDispensing:
		return EventDispensing
	case StatusDispatched:
		return EventDispatched
	}
	return "order.unknown"
}
