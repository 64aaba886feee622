package relay

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/txguard/pkg/metrics"
	"github.com/code-payments/txguard/pkg/solana"
)

const (
	metricsStructName = "relay.handler"
)

var (
	ErrUnknownMessageType  = errors.New("unknown relay message type")
	ErrNoLatestTransaction = errors.New("no transaction has been relayed")
)

// Handler applies relayed messages to the session store.
type Handler struct {
	log   *logrus.Entry
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{
		log:   logrus.StandardLogger().WithField("type", "relay/handler"),
		store: store,
	}
}

// Handle processes one relayed message for a session. Sessions are created on
// the first message that needs one.
//
// UNSIGNED_TX payloads must parse as a transaction message and replace the
// session's latest transaction. GET_LATEST_TX returns it. Wallet connection
// messages update the session, and the remaining known types are only
// acknowledged.
func (h *Handler) Handle(ctx context.Context, sessionId uuid.UUID, envelope Envelope) (*Reply, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Handle")
	defer tracer.End()

	log := h.log.WithFields(logrus.Fields{
		"method":  "Handle",
		"session": sessionId.String(),
		"message": string(envelope.Type),
	})

	if !envelope.Type.IsKnown() {
		log.Debug("ignoring unknown message type")
		return nil, errors.Wrapf(ErrUnknownMessageType, "type %q", envelope.Type)
	}
	metrics.RelayMessagesTotal.WithLabelValues(string(envelope.Type)).Inc()

	reply := &Reply{Type: envelope.Type, Acknowledged: true}

	var err error
	switch envelope.Type {
	case MessageTypeUnsignedTx:
		err = h.handleUnsignedTx(ctx, sessionId, envelope.Payload)
	case MessageTypeGetLatestTx:
		reply.Payload, err = h.getLatestTx(ctx, sessionId)
	case MessageTypeWalletConnected, MessageTypeCalledDisconnect:
		connected := envelope.Type == MessageTypeWalletConnected
		err = h.withSession(ctx, sessionId, func() error {
			return h.store.SetWalletConnected(ctx, sessionId, connected)
		})
	default:
		log.WithField("payload_size", len(envelope.Payload)).Debug("wallet call observed")
	}

	if err != nil {
		log.WithError(err).Info("failure handling relay message")
		tracer.OnError(err)
		return nil, err
	}
	return reply, nil
}

func (h *Handler) handleUnsignedTx(ctx context.Context, sessionId uuid.UUID, payload []byte) error {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return errors.Wrap(solana.ErrMalformedMessage, "missing payload")
	}

	if _, err := solana.ParseRelayedMessage(payload); err != nil {
		return err
	}

	return h.withSession(ctx, sessionId, func() error {
		return h.store.Replace(ctx, sessionId, payload)
	})
}

func (h *Handler) getLatestTx(ctx context.Context, sessionId uuid.UUID) ([]byte, error) {
	session, err := h.store.Get(ctx, sessionId)
	if err == ErrSessionNotFound {
		return nil, ErrNoLatestTransaction
	} else if err != nil {
		return nil, err
	}

	if !session.HasLatestTx() {
		return nil, ErrNoLatestTransaction
	}
	return session.LatestTx, nil
}

// withSession runs fn, creating the session and trying once more if it does
// not exist yet.
func (h *Handler) withSession(ctx context.Context, sessionId uuid.UUID, fn func() error) error {
	err := fn()
	if err != ErrSessionNotFound {
		return err
	}

	if err := h.store.Init(ctx, sessionId); err != nil && err != ErrSessionExists {
		return err
	}
	return fn()
}
