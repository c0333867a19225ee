package payment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrGatewayFailure = errors.New("payment: gateway failure")
	ErrAuthentication = errors.New("payment: notification signature mismatch")
	ErrMalformed      = errors.New("payment: malformed notification")
)

// LinkRequest asks the provider for a hosted payment link.
type LinkRequest struct {
	AmountMinor           int64
	Currency              string
	ReferenceID           string
	Description           string
	ExpiresAt             time.Time
	SuppressNotifications bool
}

// Link is the provider's answer. PayableReference is what the kiosk renders
// for the customer to scan.
type Link struct {
	ID               string
	URL              string
	PayableReference string
}

// Gateway creates payment links. Implementations must honour ctx cancellation.
type Gateway interface {
	CreateLink(ctx context.Context, req LinkRequest) (Link, error)
}
