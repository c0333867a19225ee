package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/storetest"
)

func TestOrderRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Repository {
		return NewOrderRepository()
	})
}

func TestOrderRepositorySingleStripe(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Repository {
		return NewOrderRepositoryWithStripes(1)
	})
}

func TestCompareAndSetRejectsIllegalTransition(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, storetest.NewOrder(t, "o-1")))

	_, err := repo.CompareAndSetStatus(ctx, "o-1", domain.StatusCreated, domain.StatusDispatched)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrStatusConflict)
	assert.Equal(t, 1, repo.Len())
}

func TestCanceledContext(t *testing.T) {
	repo := NewOrderRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, repo.Insert(ctx, storetest.NewOrder(t, "o-1")), context.Canceled)
}
