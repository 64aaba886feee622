package solana

import (
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/pkg/errors"
)

var (
	ErrIncorrectProgram     = errors.New("incorrect program")
	ErrIncorrectInstruction = errors.New("incorrect instruction")
	ErrMalformedInstruction = errors.New("malformed instruction")
)

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

type MessageVersion uint8

const (
	MessageVersionLegacy MessageVersion = iota
	MessageVersion0
)

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

// CompiledInstruction represents an instruction that has been compiled into a
// transaction. Indexes refer to the message's static account keys and are not
// guaranteed to be in range.
type CompiledInstruction struct {
	ProgramIndex int
	Accounts     []int
	Data         []byte
}

type MessageAddressTableLookup struct {
	PublicKey       PublicKey
	WritableIndexes []byte
	ReadonlyIndexes []byte
}

// Message is a compiled transaction message. Accounts holds the static account
// keys in wire order. Accounts loaded through address table lookups are not
// materialized.
//
// AccountErrors is keyed by the index of account keys that were present but
// could not be decoded. It is only ever set by UnmarshalJSON.
type Message struct {
	Version             MessageVersion
	Header              Header
	Accounts            []PublicKey
	AccountErrors       map[int]error
	RecentBlockhash     Blockhash
	Instructions        []CompiledInstruction
	AddressTableLookups []MessageAddressTableLookup
}

// AccountError returns the decoding error of the account key at index, if any.
func (m Message) AccountError(index int) error {
	return m.AccountErrors[index]
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

func (v MessageVersion) String() string {
	switch v {
	case MessageVersionLegacy:
		return "legacy"
	case MessageVersion0:
		return "v0"
	}
	return "unknown"
}
