package solana

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var (
	// ErrMalformedMessage indicates the input is not a transaction message at
	// all, for example because a required top-level field is missing.
	ErrMalformedMessage = errors.New("malformed transaction message")
)

type jsonHeader struct {
	NumRequiredSignatures       byte `json:"numRequiredSignatures"`
	NumReadonlySignedAccounts   byte `json:"numReadonlySignedAccounts"`
	NumReadonlyUnsignedAccounts byte `json:"numReadonlyUnsignedAccounts"`
}

type jsonInstruction struct {
	ProgramIDIndex    *int       `json:"programIdIndex"`
	AccountKeyIndexes []int      `json:"accountKeyIndexes"`
	Accounts          []int      `json:"accounts,omitempty"`
	Data              relayBytes `json:"data"`
}

type jsonAddressTableLookup struct {
	AccountKey      relayPublicKey `json:"accountKey"`
	WritableIndexes relayBytes     `json:"writableIndexes"`
	ReadonlyIndexes relayBytes     `json:"readonlyIndexes"`
}

// jsonMessage accepts both the versioned (staticAccountKeys/compiledInstructions)
// and legacy (accountKeys/instructions) web3.js message shapes.
type jsonMessage struct {
	Version              json.RawMessage          `json:"version,omitempty"`
	Header               *jsonHeader              `json:"header,omitempty"`
	StaticAccountKeys    []relayAccountKey        `json:"staticAccountKeys"`
	AccountKeys          []relayAccountKey        `json:"accountKeys,omitempty"`
	RecentBlockhash      string                   `json:"recentBlockhash,omitempty"`
	CompiledInstructions []jsonInstruction        `json:"compiledInstructions"`
	Instructions         []jsonInstruction        `json:"instructions,omitempty"`
	AddressTableLookups  []jsonAddressTableLookup `json:"addressTableLookups,omitempty"`
}

// MarshalJSON renders the message in the versioned web3.js shape, with keys
// as base58 strings and instruction data as an array of byte values.
func (m Message) MarshalJSON() ([]byte, error) {
	out := jsonMessage{
		Version: json.RawMessage(strconv.Quote(m.Version.String())),
		Header: &jsonHeader{
			NumRequiredSignatures:       m.Header.NumSignatures,
			NumReadonlySignedAccounts:   m.Header.NumReadonlySigned,
			NumReadonlyUnsignedAccounts: m.Header.NumReadOnly,
		},
		StaticAccountKeys:    make([]relayAccountKey, len(m.Accounts)),
		RecentBlockhash:      base58.Encode(m.RecentBlockhash[:]),
		CompiledInstructions: make([]jsonInstruction, len(m.Instructions)),
	}

	for i, account := range m.Accounts {
		out.StaticAccountKeys[i] = relayAccountKey{key: account}
	}

	for i, c := range m.Instructions {
		programIndex := c.ProgramIndex
		accounts := c.Accounts
		if accounts == nil {
			accounts = []int{}
		}

		out.CompiledInstructions[i] = jsonInstruction{
			ProgramIDIndex:    &programIndex,
			AccountKeyIndexes: accounts,
			Data:              relayBytes(c.Data),
		}
	}

	for _, lookup := range m.AddressTableLookups {
		out.AddressTableLookups = append(out.AddressTableLookups, jsonAddressTableLookup{
			AccountKey:      relayPublicKey(lookup.PublicKey),
			WritableIndexes: relayBytes(lookup.WritableIndexes),
			ReadonlyIndexes: relayBytes(lookup.ReadonlyIndexes),
		})
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes a message relayed from a browser wallet. Missing
// account keys or instructions fail with ErrMalformedMessage. An account key
// that cannot be decoded keeps a zero slot in Accounts and its error in
// AccountErrors. Instructions without a program index are kept with an index
// of -1. Both fail when resolved rather than here.
func (m *Message) UnmarshalJSON(b []byte) error {
	var in jsonMessage
	if err := json.Unmarshal(b, &in); err != nil {
		return errors.Wrap(ErrMalformedMessage, err.Error())
	}

	keys := in.StaticAccountKeys
	if keys == nil {
		keys = in.AccountKeys
	}
	if keys == nil {
		return errors.Wrap(ErrMalformedMessage, "missing account keys")
	}

	instructions := in.CompiledInstructions
	if instructions == nil {
		instructions = in.Instructions
	}
	if instructions == nil {
		return errors.Wrap(ErrMalformedMessage, "missing instructions")
	}

	var decoded Message

	version, err := parseJSONVersion(in.Version, in.AddressTableLookups != nil)
	if err != nil {
		return err
	}
	decoded.Version = version

	if in.Header != nil {
		decoded.Header = Header{
			NumSignatures:     in.Header.NumRequiredSignatures,
			NumReadonlySigned: in.Header.NumReadonlySignedAccounts,
			NumReadOnly:       in.Header.NumReadonlyUnsignedAccounts,
		}
	}

	if len(in.RecentBlockhash) > 0 {
		blockhash, err := base58.Decode(in.RecentBlockhash)
		if err != nil || len(blockhash) != len(decoded.RecentBlockhash) {
			return errors.Wrapf(ErrMalformedMessage, "invalid recent blockhash %q", in.RecentBlockhash)
		}
		copy(decoded.RecentBlockhash[:], blockhash)
	}

	decoded.Accounts = make([]PublicKey, len(keys))
	for i, key := range keys {
		decoded.Accounts[i] = key.key
		if key.err != nil {
			if decoded.AccountErrors == nil {
				decoded.AccountErrors = make(map[int]error)
			}
			decoded.AccountErrors[i] = key.err
		}
	}

	decoded.Instructions = make([]CompiledInstruction, len(instructions))
	for i, instruction := range instructions {
		c := CompiledInstruction{
			ProgramIndex: -1,
			Accounts:     instruction.AccountKeyIndexes,
			Data:         []byte(instruction.Data),
		}
		if instruction.ProgramIDIndex != nil {
			c.ProgramIndex = *instruction.ProgramIDIndex
		}
		if c.Accounts == nil {
			c.Accounts = instruction.Accounts
		}
		decoded.Instructions[i] = c
	}

	for _, lookup := range in.AddressTableLookups {
		decoded.AddressTableLookups = append(decoded.AddressTableLookups, MessageAddressTableLookup{
			PublicKey:       PublicKey(lookup.AccountKey),
			WritableIndexes: []byte(lookup.WritableIndexes),
			ReadonlyIndexes: []byte(lookup.ReadonlyIndexes),
		})
	}

	*m = decoded
	return nil
}

// ParseRelayedMessage decodes the payload a wallet relay captured from a
// signing request. The payload may be a transaction object carrying a
// "message" field, or the message itself.
func ParseRelayedMessage(b []byte) (Message, error) {
	var envelope struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return Message{}, errors.Wrap(ErrMalformedMessage, err.Error())
	}

	raw := b
	if len(envelope.Message) > 0 && !bytes.Equal(envelope.Message, []byte("null")) {
		raw = envelope.Message
	}

	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		if errors.Cause(err) == ErrMalformedMessage {
			return Message{}, err
		}
		return Message{}, errors.Wrap(ErrMalformedMessage, err.Error())
	}
	return m, nil
}

func parseJSONVersion(raw json.RawMessage, hasLookups bool) (MessageVersion, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if hasLookups {
			return MessageVersion0, nil
		}
		return MessageVersionLegacy, nil
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		switch name {
		case "legacy":
			return MessageVersionLegacy, nil
		case "v0", "0":
			return MessageVersion0, nil
		}
		return 0, errors.Wrapf(ErrMalformedMessage, "unsupported version %q", name)
	}

	var number int
	if err := json.Unmarshal(raw, &number); err == nil && number == 0 {
		return MessageVersion0, nil
	}
	return 0, errors.Wrapf(ErrMalformedMessage, "unsupported version %s", raw)
}

// relayPublicKey decodes the forms a web3.js PublicKey takes once serialized:
// a base58 string, a bn.js wrapper ({"_bn": {...}} or {"_bn": "<hex>"}), or an
// array of 32 byte values.
type relayPublicKey PublicKey

func (k relayPublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(PublicKey(k).ToBase58())
}

func (k *relayPublicKey) UnmarshalJSON(b []byte) error {
	var pub PublicKey
	var err error

	switch {
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		pub, err = PublicKeyFromBase58(s)
	case len(b) > 0 && b[0] == '[':
		var raw relayBytes
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		pub, err = PublicKeyFromBytes(raw)
	case len(b) > 0 && b[0] == '{':
		var wrapper struct {
			BN json.RawMessage `json:"_bn"`
		}
		if err := json.Unmarshal(b, &wrapper); err != nil {
			return err
		}
		pub, err = parseBN(wrapper.BN)
	default:
		err = errors.Wrapf(ErrInvalidPublicKey, "unsupported encoding %s", b)
	}
	if err != nil {
		return err
	}

	*k = relayPublicKey(pub)
	return nil
}

// relayAccountKey is a slot of the account table. Keys that fail to decode
// keep their error instead of failing the whole message.
type relayAccountKey struct {
	key PublicKey
	err error
}

func (k relayAccountKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.key.ToBase58())
}

func (k *relayAccountKey) UnmarshalJSON(b []byte) error {
	var pub relayPublicKey
	if err := pub.UnmarshalJSON(b); err != nil {
		*k = relayAccountKey{err: err}
		return nil
	}

	*k = relayAccountKey{key: PublicKey(pub)}
	return nil
}

func parseBN(raw json.RawMessage) (PublicKey, error) {
	if len(raw) == 0 {
		return PublicKey{}, errors.Wrap(ErrInvalidPublicKey, "missing _bn")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return PublicKey{}, err
		}
		return PublicKeyFromBNHex(s)
	}

	var bn BN
	if err := json.Unmarshal(raw, &bn); err != nil {
		return PublicKey{}, errors.Wrap(ErrInvalidPublicKey, err.Error())
	}
	return PublicKeyFromBN(bn)
}

// relayBytes decodes byte sequences as they appear after a Uint8Array or
// Buffer is serialized: an array of values, an object keyed by position, a
// Node.js {"type":"Buffer","data":[...]} wrapper, or a base58 string.
type relayBytes []byte

func (r relayBytes) MarshalJSON() ([]byte, error) {
	values := make([]int, len(r))
	for i, v := range r {
		values[i] = int(v)
	}
	return json.Marshal(values)
}

func (r *relayBytes) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*r = nil
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if len(s) == 0 {
			*r = []byte{}
			return nil
		}
		decoded, err := base58.Decode(s)
		if err != nil {
			return errors.Wrapf(err, "invalid base58 data %q", s)
		}
		*r = decoded
		return nil
	case '[':
		var values []int
		if err := json.Unmarshal(b, &values); err != nil {
			return err
		}
		return r.fromValues(values)
	case '{':
		var buffer struct {
			Type string `json:"type"`
			Data []int  `json:"data"`
		}
		if err := json.Unmarshal(b, &buffer); err == nil && buffer.Type == "Buffer" {
			return r.fromValues(buffer.Data)
		}

		var indexed map[string]int
		if err := json.Unmarshal(b, &indexed); err != nil {
			return err
		}
		return r.fromIndexed(indexed)
	}

	return errors.Errorf("unsupported byte encoding %s", b)
}

func (r *relayBytes) fromValues(values []int) error {
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 0xff {
			return errors.Errorf("byte value out of range at %d: %d", i, v)
		}
		out[i] = byte(v)
	}
	*r = out
	return nil
}

func (r *relayBytes) fromIndexed(indexed map[string]int) error {
	positions := make([]int, 0, len(indexed))
	for key := range indexed {
		position, err := strconv.Atoi(key)
		if err != nil {
			return errors.Errorf("invalid byte position %q", key)
		}
		positions = append(positions, position)
	}
	sort.Ints(positions)

	values := make([]int, len(positions))
	for i, position := range positions {
		if position != i {
			return errors.Errorf("missing byte at position %d", i)
		}
		values[i] = indexed[strconv.Itoa(position)]
	}
	return r.fromValues(values)
}
