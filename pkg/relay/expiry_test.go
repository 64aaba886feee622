package relay_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/txguard/pkg/relay"
	"github.com/code-payments/txguard/pkg/relay/memory"
)

type failingStore struct {
	relay.Store
}

func (failingStore) ClearExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, errors.New("unavailable")
}

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	stale := uuid.New()
	require.NoError(t, store.Init(ctx, stale))

	time.Sleep(60 * time.Millisecond)

	fresh := uuid.New()
	require.NoError(t, store.Init(ctx, fresh))

	sweeper := relay.NewSweeper(store, 30*time.Millisecond)
	cleared, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	_, err = store.Get(ctx, stale)
	assert.Equal(t, relay.ErrSessionNotFound, err)

	_, err = store.Get(ctx, fresh)
	assert.NoError(t, err)
}

func TestSweeper_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Init(ctx, uuid.New()))

	cleared, err := relay.NewSweeper(store, 0).Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, cleared)
}

func TestSweeper_StoreFailure(t *testing.T) {
	sweeper := relay.NewSweeper(failingStore{Store: memory.New()}, time.Minute)

	_, err := sweeper.Sweep(context.Background())
	assert.Error(t, err)

	// Failures are logged, not propagated
	sweeper.Job(time.Second)()
}
