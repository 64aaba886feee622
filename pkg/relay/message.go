package relay

import (
	"encoding/json"
)

// MessageType identifies a message relayed from the page by the browser
// extension.
type MessageType string

const (
	MessageTypeUnsignedTx                   MessageType = "UNSIGNED_TX"
	MessageTypeSignedTxRaw                  MessageType = "SIGNED_TX_RAW"
	MessageTypeWalletConnected              MessageType = "WALLET_CONNECTED"
	MessageTypeCalledConnect                MessageType = "CALLED_CONNECT"
	MessageTypeCalledDisconnect             MessageType = "CALLED_DISCONNECT"
	MessageTypeCalledSignAllTransactions    MessageType = "CALLED_SIGN_ALL_TRANSACTIONS"
	MessageTypeCalledSignAndSendTransaction MessageType = "CALLED_SIGN_AND_SEND_TRANSACTION"
	MessageTypeCalledSignAndSendAll         MessageType = "CALLED_SIGN_AND_SEND_ALL_TRANSACTIONS"
	MessageTypeCalledSignMessage            MessageType = "CALLED_SIGN_MESSAGE"
	MessageTypeCalledRequest                MessageType = "CALLED_REQUEST"
	MessageTypeGetLatestTx                  MessageType = "GET_LATEST_TX"
)

var knownMessageTypes = map[MessageType]struct{}{
	MessageTypeUnsignedTx:                   {},
	MessageTypeSignedTxRaw:                  {},
	MessageTypeWalletConnected:              {},
	MessageTypeCalledConnect:                {},
	MessageTypeCalledDisconnect:             {},
	MessageTypeCalledSignAllTransactions:    {},
	MessageTypeCalledSignAndSendTransaction: {},
	MessageTypeCalledSignAndSendAll:         {},
	MessageTypeCalledSignMessage:            {},
	MessageTypeCalledRequest:                {},
	MessageTypeGetLatestTx:                  {},
}

func (t MessageType) IsKnown() bool {
	_, ok := knownMessageTypes[t]
	return ok
}

// Envelope is a relayed message as posted by the extension.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Reply is the response to an Envelope. Payload is only set for
// GET_LATEST_TX.
type Reply struct {
	Type         MessageType     `json:"type"`
	Acknowledged bool            `json:"acknowledged"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}
