// Package storetest holds the behaviour every order repository backend must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
)

// NewOrder builds a CREATED order with a payment link derived from id.
func NewOrder(t testing.TB, id string) *domain.Order {
	t.Helper()
	o, err := domain.New(id, "rose_mist", "Rose Mist", 5, 1600, "INR", domain.PaymentLink{
		ID:               "plink_" + id,
		URL:              "https://rzp.io/i/" + id,
		PayableReference: "data:image/png;base64,AAAA",
	}, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return o
}

// Run exercises repo against the repository contract.
func Run(t *testing.T, newRepo func(t *testing.T) domain.Repository) {
	t.Run("insert then get round trips", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		o := NewOrder(t, "o-roundtrip")
		require.NoError(t, repo.Insert(ctx, o))

		got, err := repo.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.ID, got.ID)
		assert.Equal(t, o.ProductID, got.ProductID)
		assert.Equal(t, o.ProductName, got.ProductName)
		assert.Equal(t, o.Quantity, got.Quantity)
		assert.Equal(t, o.AmountMinor, got.AmountMinor)
		assert.Equal(t, o.Currency, got.Currency)
		assert.Equal(t, domain.StatusCreated, got.Status)
		assert.Equal(t, o.PaymentLinkID, got.PaymentLinkID)
		assert.Equal(t, o.PaymentLinkURL, got.PaymentLinkURL)
		assert.Equal(t, o.PayableReference, got.PayableReference)
		assert.True(t, o.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("duplicate insert conflicts", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		o := NewOrder(t, "o-dup")
		require.NoError(t, repo.Insert(ctx, o))
		assert.ErrorIs(t, repo.Insert(ctx, o), domain.ErrConflict)
	})

	t.Run("unknown order is not found", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		_, err := repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.FindByPaymentLinkID(ctx, "plink_missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.CompareAndSetStatus(ctx, "missing", domain.StatusCreated, domain.StatusPaid)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("find by payment link id", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		o := NewOrder(t, "o-link")
		require.NoError(t, repo.Insert(ctx, o))

		got, err := repo.FindByPaymentLinkID(ctx, "plink_o-link")
		require.NoError(t, err)
		assert.Equal(t, o.ID, got.ID)
	})

	t.Run("compare and set walks the lifecycle", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		o := NewOrder(t, "o-cas")
		require.NoError(t, repo.Insert(ctx, o))

		steps := [][2]domain.Status{
			{domain.StatusCreated, domain.StatusPaid},
			{domain.StatusPaid, domain.StatusDispensing},
			{domain.StatusDispensing, domain.StatusDispatched},
		}
		for _, step := range steps {
			updated, err := repo.CompareAndSetStatus(ctx, o.ID, step[0], step[1])
			require.NoError(t, err)
			assert.Equal(t, step[1], updated.Status)
			assert.Equal(t, int64(1600), updated.AmountMinor)
		}

		_, err := repo.CompareAndSetStatus(ctx, o.ID, domain.StatusPaid, domain.StatusDispensing)
		assert.ErrorIs(t, err, domain.ErrStatusConflict)

		got, err := repo.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDispatched, got.Status)
	})

	t.Run("returned orders are copies", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		o := NewOrder(t, "o-copy")
		require.NoError(t, repo.Insert(ctx, o))
		o.Status = domain.StatusDispatched

		got, err := repo.Get(ctx, o.ID)
		require.NoError(t, err)
		got.Status = domain.StatusPaid

		again, err := repo.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCreated, again.Status)
	})

	t.Run("concurrent compare and set has one winner", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		o := NewOrder(t, "o-race")
		require.NoError(t, repo.Insert(ctx, o))
		_, err := repo.CompareAndSetStatus(ctx, o.ID, domain.StatusCreated, domain.StatusPaid)
		require.NoError(t, err)

		const callers = 16
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins, conflicts := 0, 0
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.CompareAndSetStatus(ctx, o.ID, domain.StatusPaid, domain.StatusDispensing)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				default:
					assert.ErrorIs(t, err, domain.ErrStatusConflict)
					conflicts++
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
		assert.Equal(t, callers-1, conflicts)
	})

	t.Run("independent orders", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			id := fmt.Sprintf("o-par-%d", i)
			require.NoError(t, repo.Insert(ctx, NewOrder(t, id)))
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.CompareAndSetStatus(ctx, id, domain.StatusCreated, domain.StatusPaid)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
	})
}
