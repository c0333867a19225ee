package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	domain "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
)

const mysqlDuplicateEntry = 1062

type row struct {
	ID               string `db:"id"`
	ProductID        string `db:"product_id"`
	ProductName      string `db:"product_name"`
	Quantity         int    `db:"quantity"`
	AmountMinor      int64  `db:"amount_minor"`
	Currency         string `db:"currency"`
	Status           string `db:"status"`
	PaymentLinkID    string `db:"payment_link_id"`
	PaymentLinkURL   string `db:"payment_link_url"`
	PayableReference string `db:"payable_reference"`
	CreatedAt        int64  `db:"created_at"`
	UpdatedAt        int64  `db:"updated_at"`
}

func (r row) order() *domain.Order {
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

const selectOrder = `
SELECT id, product_id, product_name, quantity, amount_minor, currency, status,
       payment_link_id, payment_link_url, payable_reference, created_at, updated_at
FROM orders`

// OrderRepository persists orders in MySQL or SQLite. Status changes are a
// conditional UPDATE on (id, status), so the database decides races.
type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	_, err := r.db.NamedExecContext(ctx, `
INSERT INTO orders (id, product_id, product_name, quantity, amount_minor, currency, status,
                    payment_link_id, payment_link_url, payable_reference, created_at, updated_at)
VALUES (:id, :product_id, :product_name, :quantity, :amount_minor, :currency, :status,
        :payment_link_id, :payment_link_url, :payable_reference, :created_at, :updated_at)`,
		row{
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
		})
	if isDuplicate(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("order repository: insert %s: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.getBy(ctx, "id", id)
}

func (r *OrderRepository) FindByPaymentLinkID(ctx context.Context, linkID string) (*domain.Order, error) {
	if linkID == "" {
		return nil, domain.ErrNotFound
	}
	return r.getBy(ctx, "payment_link_id", linkID)
}

func (r *OrderRepository) getBy(ctx context.Context, column, value string) (*domain.Order, error) {
	var rec row
	err := r.db.GetContext(ctx, &rec, r.db.Rebind(selectOrder+" WHERE "+column+" = ? LIMIT 1"), value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order repository: get by %s: %w", column, err)
	}
	return rec.order(), nil
}

func (r *OrderRepository) CompareAndSetStatus(ctx context.Context, id string, from, to domain.Status) (*domain.Order, error) {
	if !domain.CanTransition(from, to) {
		return nil, fmt.Errorf("order repository: illegal transition %s -> %s", from, to)
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
UPDATE orders
SET status = ?, updated_at = ?
WHERE id = ? AND status = ?`),
		string(to), now.UnixNano(), id, string(from),
	)
	if err != nil {
		return nil, fmt.Errorf("order repository: update status %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("order repository: rows affected: %w", err)
	}

	// rows == 0: either not found or the status moved on
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s is %s, want %s", domain.ErrStatusConflict, id, current.Status, from)
	}
	return current, nil
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
