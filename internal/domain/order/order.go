package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("order: not found")
	ErrConflict            = errors.New("order: already exists")
	ErrInvalidRequest      = errors.New("order: invalid request")
	ErrPaymentNotConfirmed = errors.New("order: payment not confirmed")
	ErrAlreadyDispatched   = errors.New("order: already dispatched")
	ErrStatusConflict      = errors.New("order: status changed concurrently")
	ErrUnknownOrder        = errors.New("order: no order matches payment notification")
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusPaid       Status = "PAID"
	StatusDispensing Status = "DISPENSING"
	StatusDispatched Status = "DISPATCHED"
)

// Order is a single-product purchase at the kiosk. AmountMinor is fixed at
// creation and only Status (with UpdatedAt) changes afterwards.
type Order struct {
	ID               string
	ProductID        string
	ProductName      string
	Quantity         int
	AmountMinor      int64
	Currency         string
	Status           Status
	PaymentLinkID    string
	PaymentLinkURL   string
	PayableReference string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PaymentLink carries what the gateway returned for the order.
type PaymentLink struct {
	ID               string
	URL              string
	PayableReference string
}

func New(id, productID, productName string, quantity int, amountMinor int64, currency string, link PaymentLink, now time.Time) (*Order, error) {
	if id == "" {
		return nil, errors.Join(ErrInvalidRequest, errors.New("order id is required"))
	}
	if quantity <= 0 {
		return nil, errors.Join(ErrInvalidRequest, errors.New("quantity must be greater than zero"))
	}
	if amountMinor < 0 {
		return nil, errors.Join(ErrInvalidRequest, errors.New("amount must be zero or greater"))
	}

	now = now.UTC()
	return &Order{
		ID:               id,
		ProductID:        productID,
		ProductName:      productName,
		Quantity:         quantity,
		AmountMinor:      amountMinor,
		Currency:         currency,
		Status:           StatusCreated,
		PaymentLinkID:    link.ID,
		PaymentLinkURL:   link.URL,
		PayableReference: link.PayableReference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Clone returns a copy that callers may mutate without touching stored state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
