package solana

import (
	"encoding/base64"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// ParseWireMessage decodes a serialized transaction, or a bare message, in
// base64 or base58. Some base58 strings are also valid base64, so when the
// base64 bytes hold neither a transaction nor a message the base58 bytes are
// tried next. Transactions are tried first, and only their message is
// returned.
func ParseWireMessage(encoded string) (Message, error) {
	encoded = strings.TrimSpace(encoded)
	if len(encoded) == 0 {
		return Message{}, errors.Wrap(ErrMalformedMessage, "empty wire transaction")
	}

	var candidates [][]byte
	if raw, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		candidates = append(candidates, raw)
	}
	if raw, err := base58.Decode(encoded); err == nil {
		candidates = append(candidates, raw)
	}
	if len(candidates) == 0 {
		return Message{}, errors.Wrap(ErrMalformedMessage, "wire transaction is neither base64 nor base58")
	}

	var firstErr error
	for _, raw := range candidates {
		m, err := unmarshalWireMessage(raw)
		if err == nil {
			return m, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return Message{}, errors.Wrapf(ErrMalformedMessage, "invalid wire transaction: %v", firstErr)
}

func unmarshalWireMessage(raw []byte) (Message, error) {
	var txn Transaction
	txnErr := txn.Unmarshal(raw)
	if txnErr == nil {
		return txn.Message, nil
	}

	var m Message
	if err := m.Unmarshal(raw); err != nil {
		return Message{}, txnErr
	}
	return m, nil
}
