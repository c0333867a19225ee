package order

import "context"

// Repository persists orders. Implementations must make CompareAndSetStatus
// atomic per order: the status check and the write happen as one step, so two
// concurrent callers with the same from status cannot both succeed.
type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByPaymentLinkID(ctx context.Context, linkID string) (*Order, error)
	// CompareAndSetStatus moves the order from -> to and returns the updated
	// order. ErrNotFound when the id is unknown, ErrStatusConflict when the
	// stored status is not from.
	CompareAndSetStatus(ctx context.Context, id string, from, to Status) (*Order, error)
}
