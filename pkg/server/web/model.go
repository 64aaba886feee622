package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/code-payments/txguard/pkg/relay"
	"github.com/code-payments/txguard/pkg/solana"
)

const (
	sessionPathParam  = "session"
	explainQueryParam = "explain"
)

var (
	errMissingTransaction = errors.New("request must include a message or transaction")
	errInvalidSession     = errors.New("session is not a valid id")
)

// newMessageFromHttpContext reads an analyze request. The message is either
// the relay JSON captured by the extension or a wire transaction or message,
// encoded in base64 or base58.
func newMessageFromHttpContext(r *http.Request) (solana.Message, error) {
	httpRequestBody := struct {
		Message     json.RawMessage `json:"message"`
		Transaction string          `json:"transaction"`
	}{}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return solana.Message{}, errors.Wrap(err, "failed to read body")
	}

	if err := json.Unmarshal(body, &httpRequestBody); err != nil {
		return solana.Message{}, errors.Wrap(err, "body is not valid json")
	}

	message := bytes.TrimSpace(httpRequestBody.Message)
	hasMessage := len(message) > 0 && !bytes.Equal(message, []byte("null"))

	switch {
	case hasMessage && len(httpRequestBody.Transaction) > 0:
		return solana.Message{}, errors.New("request must include only one of message or transaction")
	case hasMessage:
		return solana.ParseRelayedMessage(message)
	case len(httpRequestBody.Transaction) > 0:
		return solana.ParseWireMessage(httpRequestBody.Transaction)
	default:
		return solana.Message{}, errMissingTransaction
	}
}

func newEnvelopeFromHttpContext(r *http.Request) (relay.Envelope, error) {
	var envelope relay.Envelope

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return envelope, errors.Wrap(err, "failed to read body")
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return envelope, errors.Wrap(err, "body is not valid json")
	}
	return envelope, nil
}

func sessionIdFromHttpContext(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(sessionPathParam))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errInvalidSession
	}
	return id, nil
}
