package tests

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/txguard/pkg/relay"
)

const (
	testTx      = `{"accountKeys":["11111111111111111111111111111111"],"instructions":[]}`
	testOtherTx = `{"accountKeys":["11111111111111111111111111111111"],"instructions":[{"programIdIndex":0,"accounts":[],"data":[]}]}`
)

func RunTests(t *testing.T, s relay.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s relay.Store){
		testHappyPath,
		testSessionNotFound,
		testReplaceInvalidTx,
		testSessionsAreIsolated,
		testClearExpired,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s relay.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()

		id := uuid.New()
		start := time.Now().Add(-time.Second)

		_, err := s.Get(ctx, id)
		assert.Equal(t, relay.ErrSessionNotFound, err)

		require.NoError(t, s.Init(ctx, id))
		assert.Equal(t, relay.ErrSessionExists, s.Init(ctx, id))

		actual, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, actual.Id)
		assert.False(t, actual.HasLatestTx())
		assert.False(t, actual.WalletConnected)
		assert.True(t, actual.CreatedAt.After(start))
		assert.True(t, actual.LastUpdatedAt.After(start))

		require.NoError(t, s.Replace(ctx, id, []byte(testTx)))

		actual, err = s.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, actual.HasLatestTx())
		assert.JSONEq(t, testTx, string(actual.LatestTx))

		// Only the latest transaction is kept
		require.NoError(t, s.Replace(ctx, id, []byte(testOtherTx)))

		actual, err = s.Get(ctx, id)
		require.NoError(t, err)
		assert.JSONEq(t, testOtherTx, string(actual.LatestTx))

		require.NoError(t, s.SetWalletConnected(ctx, id, true))
		actual, err = s.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, actual.WalletConnected)
		assert.JSONEq(t, testOtherTx, string(actual.LatestTx))

		require.NoError(t, s.SetWalletConnected(ctx, id, false))
		actual, err = s.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, actual.WalletConnected)

		// Returned sessions are copies
		actual.LatestTx[0] = '['
		actual, err = s.Get(ctx, id)
		require.NoError(t, err)
		assert.JSONEq(t, testOtherTx, string(actual.LatestTx))

		require.NoError(t, s.Clear(ctx, id))
		require.NoError(t, s.Clear(ctx, id))

		_, err = s.Get(ctx, id)
		assert.Equal(t, relay.ErrSessionNotFound, err)
	})
}

func testSessionNotFound(t *testing.T, s relay.Store) {
	t.Run("testSessionNotFound", func(t *testing.T) {
		ctx := context.Background()

		id := uuid.New()

		assert.Equal(t, relay.ErrSessionNotFound, s.Replace(ctx, id, []byte(testTx)))
		assert.Equal(t, relay.ErrSessionNotFound, s.SetWalletConnected(ctx, id, true))
		assert.NoError(t, s.Clear(ctx, id))

		_, err := s.Get(ctx, id)
		assert.Equal(t, relay.ErrSessionNotFound, err)
	})
}

func testReplaceInvalidTx(t *testing.T, s relay.Store) {
	t.Run("testReplaceInvalidTx", func(t *testing.T) {
		ctx := context.Background()

		id := uuid.New()
		require.NoError(t, s.Init(ctx, id))
		require.NoError(t, s.Replace(ctx, id, []byte(testTx)))

		assert.Error(t, s.Replace(ctx, id, []byte("{not json")))

		actual, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.JSONEq(t, testTx, string(actual.LatestTx))

		assert.Error(t, s.Init(ctx, uuid.Nil))
	})
}

func testSessionsAreIsolated(t *testing.T, s relay.Store) {
	t.Run("testSessionsAreIsolated", func(t *testing.T) {
		ctx := context.Background()

		first := uuid.New()
		second := uuid.New()

		require.NoError(t, s.Init(ctx, first))
		require.NoError(t, s.Init(ctx, second))

		require.NoError(t, s.Replace(ctx, first, []byte(testTx)))
		require.NoError(t, s.SetWalletConnected(ctx, second, true))

		actual, err := s.Get(ctx, first)
		require.NoError(t, err)
		assert.True(t, actual.HasLatestTx())
		assert.False(t, actual.WalletConnected)

		actual, err = s.Get(ctx, second)
		require.NoError(t, err)
		assert.False(t, actual.HasLatestTx())
		assert.True(t, actual.WalletConnected)

		require.NoError(t, s.Clear(ctx, first))

		_, err = s.Get(ctx, first)
		assert.Equal(t, relay.ErrSessionNotFound, err)
		_, err = s.Get(ctx, second)
		assert.NoError(t, err)
	})
}

func testClearExpired(t *testing.T, s relay.Store) {
	t.Run("testClearExpired", func(t *testing.T) {
		ctx := context.Background()

		count, err := s.ClearExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		var ids []uuid.UUID
		for i := 0; i < 3; i++ {
			id := uuid.New()
			require.NoError(t, s.Init(ctx, id))
			ids = append(ids, id)
		}

		count, err = s.ClearExpired(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		time.Sleep(10 * time.Millisecond)
		cutoff := time.Now()
		time.Sleep(10 * time.Millisecond)

		// Updating a session keeps it alive
		require.NoError(t, s.Replace(ctx, ids[0], []byte(testTx)))

		count, err = s.ClearExpired(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		_, err = s.Get(ctx, ids[0])
		assert.NoError(t, err)
		for _, id := range ids[1:] {
			_, err = s.Get(ctx, id)
			assert.Equal(t, relay.ErrSessionNotFound, err)
		}
	})
}
