package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	domain "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
)

const defaultStripes = 64

type stripe struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

// OrderRepository keeps orders in process memory. Orders are spread over
// lock stripes by hash of id, so status changes on different orders do not
// contend on one global lock.
type OrderRepository struct {
	stripes []*stripe

	linksMu sync.RWMutex
	links   map[string]string // payment link id -> order id
}

func NewOrderRepository() *OrderRepository {
	return NewOrderRepositoryWithStripes(defaultStripes)
}

func NewOrderRepositoryWithStripes(n int) *OrderRepository {
	if n <= 0 {
		n = defaultStripes
	}
	r := &OrderRepository{
		stripes: make([]*stripe, n),
		links:   make(map[string]string),
	}
	for i := range r.stripes {
		r.stripes[i] = &stripe{orders: make(map[string]*domain.Order)}
	}
	return r
}

func (r *OrderRepository) stripeFor(id string) *stripe {
	return r.stripes[xxhash.Sum64String(id)%uint64(len(r.stripes))]
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	s := r.stripeFor(order.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	s.orders[order.ID] = order.Clone()

	if order.PaymentLinkID != "" {
		r.linksMu.Lock()
		r.links[order.PaymentLinkID] = order.ID
		r.linksMu.Unlock()
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := r.stripeFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) FindByPaymentLinkID(ctx context.Context, linkID string) (*domain.Order, error) {
	if linkID == "" {
		return nil, domain.ErrNotFound
	}
	r.linksMu.RLock()
	id, ok := r.links[linkID]
	r.linksMu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *OrderRepository) CompareAndSetStatus(ctx context.Context, id string, from, to domain.Status) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !domain.CanTransition(from, to) {
		return nil, fmt.Errorf("order repository: illegal transition %s -> %s", from, to)
	}

	s := r.stripeFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if order.Status != from {
		return nil, fmt.Errorf("%w: %s is %s, want %s", domain.ErrStatusConflict, id, order.Status, from)
	}

	order.Status = to
	order.UpdatedAt = time.Now().UTC()
	return order.Clone(), nil
}

// Len reports how many orders are stored.
func (r *OrderRepository) Len() int {
	n := 0
	for _, s := range r.stripes {
		s.mu.RLock()
		n += len(s.orders)
		s.mu.RUnlock()
	}
	return n
}
