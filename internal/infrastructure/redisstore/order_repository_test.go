package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/storetest"
)

func newRepo(t *testing.T, opts Options) (*OrderRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewOrderRepository(rdb, opts), mr
}

func TestOrderRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Repository {
		repo, _ := newRepo(t, Options{})
		return repo
	})
}

func TestOrderStoredAsHash(t *testing.T) {
	repo, mr := newRepo(t, Options{Prefix: "test"})
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, storetest.NewOrder(t, "o-1")))

	assert.Equal(t, "CREATED", mr.HGet("test:order:o-1", "status"))
	assert.Equal(t, "1600", mr.HGet("test:order:o-1", "amount_minor"))
	got, err := mr.Get("test:order-link:plink_o-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", got)
}

func TestOrderTTL(t *testing.T) {
	repo, mr := newRepo(t, Options{TTL: time.Hour})
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, storetest.NewOrder(t, "o-ttl")))

	mr.FastForward(2 * time.Hour)
	_, err := repo.Get(ctx, "o-ttl")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.FindByPaymentLinkID(ctx, "plink_o-ttl")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
