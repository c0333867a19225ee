package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
)

const (
	defaultPrefix = "kiosk"
	casAttempts   = 3
)

// record is the hash layout of one order. Times are unix nanoseconds.
type record struct {
	ID               string `redis:"id"`
	ProductID        string `redis:"product_id"`
	ProductName      string `redis:"product_name"`
	Quantity         int    `redis:"quantity"`
	AmountMinor      int64  `redis:"amount_minor"`
	Currency         string `redis:"currency"`
	Status           string `redis:"status"`
	PaymentLinkID    string `redis:"payment_link_id"`
	PaymentLinkURL   string `redis:"payment_link_url"`
	PayableReference string `redis:"payable_reference"`
	CreatedAt        int64  `redis:"created_at"`
	UpdatedAt        int64  `redis:"updated_at"`
}

func toRecord(o *domain.Order) record {
	return record{
		ID:               o.ID,
		ProductID:        o.ProductID,
		ProductName:      o.ProductName,
		Quantity:         o.Quantity,
		AmountMinor:      o.AmountMinor,
		Currency:         o.Currency,
		Status:           string(o.Status),
		PaymentLinkID:    o.PaymentLinkID,
		PaymentLinkURL:   o.PaymentLinkURL,
		PayableReference: o.PayableReference,
		CreatedAt:        o.CreatedAt.UnixNano(),
		UpdatedAt:        o.UpdatedAt.UnixNano(),
	}
}

func (r record) order() *domain.Order {
	return &domain.Order{
		ID:               r.ID,
		ProductID:        r.ProductID,
		ProductName:      r.ProductName,
		Quantity:         r.Quantity,
		AmountMinor:      r.AmountMinor,
		Currency:         r.Currency,
		Status:           domain.Status(r.Status),
		PaymentLinkID:    r.PaymentLinkID,
		PaymentLinkURL:   r.PaymentLinkURL,
		PayableReference: r.PayableReference,
		CreatedAt:        time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt:        time.Unix(0, r.UpdatedAt).UTC(),
	}
}

// OrderRepository stores each order as a hash and guards status changes
// with WATCH/MULTI on the order key.
type OrderRepository struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type Options struct {
	Prefix string
	// TTL expires orders after the given retention; zero keeps them forever.
	TTL time.Duration
}

func NewOrderRepository(rdb redis.UniversalClient, opts Options) *OrderRepository {
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	return &OrderRepository{rdb: rdb, prefix: opts.Prefix, ttl: opts.TTL}
}

func (r *OrderRepository) orderKey(id string) string { return r.prefix + ":order:" + id }
func (r *OrderRepository) linkKey(id string) string  { return r.prefix + ":order-link:" + id }

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	key := r.orderKey(order.ID)
	rec := toRecord(order)

	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, rec)
			if order.PaymentLinkID != "" {
				pipe.Set(ctx, r.linkKey(order.PaymentLinkID), order.ID, r.ttl)
			}
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrConflict
	}
	return err
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.get(ctx, r.rdb, id)
}

type hgetter interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (r *OrderRepository) get(ctx context.Context, c hgetter, id string) (*domain.Order, error) {
	cmd := c.HGetAll(ctx, r.orderKey(id))
	fields, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("order repository: get %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	var rec record
	if err := cmd.Scan(&rec); err != nil {
		return nil, fmt.Errorf("order repository: decode %s: %w", id, err)
	}
	return rec.order(), nil
}

func (r *OrderRepository) FindByPaymentLinkID(ctx context.Context, linkID string) (*domain.Order, error) {
	if linkID == "" {
		return nil, domain.ErrNotFound
	}
	id, err := r.rdb.Get(ctx, r.linkKey(linkID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order repository: link lookup %s: %w", linkID, err)
	}
	return r.Get(ctx, id)
}

func (r *OrderRepository) CompareAndSetStatus(ctx context.Context, id string, from, to domain.Status) (*domain.Order, error) {
	if !domain.CanTransition(from, to) {
		return nil, fmt.Errorf("order repository: illegal transition %s -> %s", from, to)
	}
	key := r.orderKey(id)

	var updated *domain.Order
	txf := func(tx *redis.Tx) error {
		current, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != from {
			return fmt.Errorf("%w: %s is %s, want %s", domain.ErrStatusConflict, id, current.Status, from)
		}
		current.Status = to
		current.UpdatedAt = time.Now().UTC()
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"status", string(to),
				"updated_at", current.UpdatedAt.UnixNano(),
			)
			return nil
		})
		if err == nil {
			updated = current
		}
		return err
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			// key changed under us; re-read and re-check
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("%w: %s contended", domain.ErrStatusConflict, id)
}
