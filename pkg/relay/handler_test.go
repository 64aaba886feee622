package relay_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/txguard/pkg/relay"
	"github.com/code-payments/txguard/pkg/relay/memory"
	"github.com/code-payments/txguard/pkg/solana"
)

const testUnsignedTx = `{
	"message": {
		"staticAccountKeys": ["11111111111111111111111111111111"],
		"compiledInstructions": [{"programIdIndex": 0, "accountKeyIndexes": [], "data": {"0": 2}}]
	}
}`

func TestHandler_UnsignedTxThenGetLatest(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	handler := relay.NewHandler(store)
	session := uuid.New()

	_, err := handler.Handle(ctx, session, relay.Envelope{Type: relay.MessageTypeGetLatestTx})
	assert.Equal(t, relay.ErrNoLatestTransaction, err)

	reply, err := handler.Handle(ctx, session, relay.Envelope{
		Type:    relay.MessageTypeUnsignedTx,
		Payload: json.RawMessage(testUnsignedTx),
	})
	require.NoError(t, err)
	assert.True(t, reply.Acknowledged)
	assert.Equal(t, relay.MessageTypeUnsignedTx, reply.Type)
	assert.Empty(t, reply.Payload)

	reply, err = handler.Handle(ctx, session, relay.Envelope{Type: relay.MessageTypeGetLatestTx})
	require.NoError(t, err)
	assert.JSONEq(t, testUnsignedTx, string(reply.Payload))

	_, err = solana.ParseRelayedMessage(reply.Payload)
	assert.NoError(t, err)
}

func TestHandler_UnsignedTxReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	handler := relay.NewHandler(memory.New())
	session := uuid.New()

	first := `{"accountKeys": ["11111111111111111111111111111111"], "instructions": []}`
	_, err := handler.Handle(ctx, session, relay.Envelope{Type: relay.MessageTypeUnsignedTx, Payload: json.RawMessage(first)})
	require.NoError(t, err)

	_, err = handler.Handle(ctx, session, relay.Envelope{Type: relay.MessageTypeUnsignedTx, Payload: json.RawMessage(testUnsignedTx)})
	require.NoError(t, err)

	reply, err := handler.Handle(ctx, session, relay.Envelope{Type: relay.MessageTypeGetLatestTx})
	require.NoError(t, err)
	assert.JSONEq(t, testUnsignedTx, string(reply.Payload))
}

func TestHandler_MalformedUnsignedTx(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	handler := relay.NewHandler(store)
	session := uuid.New()

	_, err := handler.Handle(ctx, session, relay.Envelope{Type: relay.MessageTypeUnsignedTx, Payload: json.RawMessage(testUnsignedTx)})
	require.NoError(t, err)

	for _, payload := range []string{
		"",
		"null",
		`{"instructions": []}`,
		`{"accountKeys": ["11111111111111111111111111111111"]}`,
		`[1, 2, 3]`,
	} {
		_, err := handler.Handle(ctx, session, relay.Envelope{Type: relay.MessageTypeUnsignedTx, Payload: json.RawMessage(payload)})
		assert.Equal(t, solana.ErrMalformedMessage, errors.Cause(err), payload)
	}

	// Rejected payloads leave the previous transaction in place
	actual, err := store.Get(ctx, session)
	require.NoError(t, err)
	assert.JSONEq(t, testUnsignedTx, string(actual.LatestTx))
}

func TestHandler_WalletConnection(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	handler := relay.NewHandler(store)
	session := uuid.New()

	_, err := handler.Handle(ctx, session, relay.Envelope{Type: relay.MessageTypeWalletConnected})
	require.NoError(t, err)

	actual, err := store.Get(ctx, session)
	require.NoError(t, err)
	assert.True(t, actual.WalletConnected)
	assert.False(t, actual.HasLatestTx())

	_, err = handler.Handle(ctx, session, relay.Envelope{Type: relay.MessageTypeCalledDisconnect})
	require.NoError(t, err)

	actual, err = store.Get(ctx, session)
	require.NoError(t, err)
	assert.False(t, actual.WalletConnected)
}

func TestHandler_AcknowledgedTypes(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	handler := relay.NewHandler(store)
	session := uuid.New()

	for _, messageType := range []relay.MessageType{
		relay.MessageTypeSignedTxRaw,
		relay.MessageTypeCalledConnect,
		relay.MessageTypeCalledSignAllTransactions,
		relay.MessageTypeCalledSignAndSendTransaction,
		relay.MessageTypeCalledSignAndSendAll,
		relay.MessageTypeCalledSignMessage,
		relay.MessageTypeCalledRequest,
	} {
		reply, err := handler.Handle(ctx, session, relay.Envelope{Type: messageType, Payload: json.RawMessage(`{"anything": true}`)})
		require.NoError(t, err)
		assert.True(t, reply.Acknowledged)
		assert.Equal(t, messageType, reply.Type)
		assert.Empty(t, reply.Payload)
	}

	// Acknowledged calls don't touch the session
	_, err := store.Get(ctx, session)
	assert.Equal(t, relay.ErrSessionNotFound, err)
}

func TestHandler_UnknownType(t *testing.T) {
	handler := relay.NewHandler(memory.New())

	for _, messageType := range []relay.MessageType{"", "unsigned_tx", "SOMETHING_ELSE"} {
		_, err := handler.Handle(context.Background(), uuid.New(), relay.Envelope{Type: messageType})
		assert.Equal(t, relay.ErrUnknownMessageType, errors.Cause(err))
	}
}

func TestHandler_ExistingSession(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	handler := relay.NewHandler(store)
	session := uuid.New()

	require.NoError(t, store.Init(ctx, session))

	_, err := handler.Handle(ctx, session, relay.Envelope{Type: relay.MessageTypeUnsignedTx, Payload: json.RawMessage(testUnsignedTx)})
	require.NoError(t, err)

	actual, err := store.Get(ctx, session)
	require.NoError(t, err)
	assert.True(t, actual.HasLatestTx())
}
