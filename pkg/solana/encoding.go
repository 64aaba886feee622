package solana

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/code-payments/txguard/pkg/solana/shortvec"
)

const (
	versionPrefixMask = 0x80

	// The smallest possible encoding of an instruction is a program index
	// followed by two empty shortvec lengths.
	minInstructionSize = 3
)

var (
	ErrUnsupportedVersion = errors.New("unsupported message version")
)

func (t Transaction) Marshal() ([]byte, error) {
	b := bytes.NewBuffer(nil)

	// Signatures
	if _, err := shortvec.EncodeLen(b, len(t.Signatures)); err != nil {
		return nil, err
	}
	for _, s := range t.Signatures {
		_, _ = b.Write(s[:])
	}

	// Message
	m, err := t.Message.Marshal()
	if err != nil {
		return nil, err
	}
	_, _ = b.Write(m)

	return b.Bytes(), nil
}

func (t *Transaction) Unmarshal(b []byte) error {
	buf := bytes.NewBuffer(b)

	sigLen, err := shortvec.DecodeLen(buf)
	if err != nil {
		return errors.Wrap(err, "failed to read signature length")
	}
	if sigLen*len(Signature{}) > buf.Len() {
		return errors.Errorf("signature length exceeds remaining data: %d", sigLen)
	}

	t.Signatures = make([]Signature, sigLen)
	for i := 0; i < sigLen; i++ {
		if _, err = io.ReadFull(buf, t.Signatures[i][:]); err != nil {
			return errors.Wrapf(err, "failed to read signature at %d", i)
		}
	}

	return (&t.Message).Unmarshal(buf.Bytes())
}

// Marshal encodes the message in its wire format. Indexes that cannot be
// represented as a single byte are rejected.
func (m Message) Marshal() ([]byte, error) {
	b := bytes.NewBuffer(nil)

	switch m.Version {
	case MessageVersionLegacy:
	case MessageVersion0:
		_ = b.WriteByte(byte(versionPrefixMask | (m.Version - 1)))
	default:
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", m.Version)
	}

	// Header
	_ = b.WriteByte(m.Header.NumSignatures)
	_ = b.WriteByte(m.Header.NumReadonlySigned)
	_ = b.WriteByte(m.Header.NumReadOnly)

	// Accounts
	if _, err := shortvec.EncodeLen(b, len(m.Accounts)); err != nil {
		return nil, errors.Wrap(err, "failed to write account len")
	}
	for _, a := range m.Accounts {
		_, _ = b.Write(a[:])
	}

	// Recent Blockhash
	_, _ = b.Write(m.RecentBlockhash[:])

	// Instructions
	if _, err := shortvec.EncodeLen(b, len(m.Instructions)); err != nil {
		return nil, errors.Wrap(err, "failed to write instruction len")
	}
	for i, c := range m.Instructions {
		programIndex, err := toIndexByte(c.ProgramIndex)
		if err != nil {
			return nil, errors.Wrapf(err, "instruction[%d] program index", i)
		}
		_ = b.WriteByte(programIndex)

		// Accounts
		_, _ = shortvec.EncodeLen(b, len(c.Accounts))
		for _, index := range c.Accounts {
			accountIndex, err := toIndexByte(index)
			if err != nil {
				return nil, errors.Wrapf(err, "instruction[%d] account index", i)
			}
			_ = b.WriteByte(accountIndex)
		}

		// Data
		if _, err := shortvec.EncodeLen(b, len(c.Data)); err != nil {
			return nil, errors.Wrapf(err, "instruction[%d] data len", i)
		}
		_, _ = b.Write(c.Data)
	}

	if m.Version == MessageVersionLegacy {
		return b.Bytes(), nil
	}

	_, _ = shortvec.EncodeLen(b, len(m.AddressTableLookups))
	for _, addressTableLookup := range m.AddressTableLookups {
		_, _ = b.Write(addressTableLookup.PublicKey[:])

		_, _ = shortvec.EncodeLen(b, len(addressTableLookup.WritableIndexes))
		_, _ = b.Write(addressTableLookup.WritableIndexes)

		_, _ = shortvec.EncodeLen(b, len(addressTableLookup.ReadonlyIndexes))
		_, _ = b.Write(addressTableLookup.ReadonlyIndexes)
	}

	return b.Bytes(), nil
}

// Unmarshal decodes a legacy or v0 message. Instruction indexes are not checked
// against the account table; they are validated when resolved.
func (m *Message) Unmarshal(b []byte) (err error) {
	if len(b) == 0 {
		return errors.New("empty message")
	}

	buf := bytes.NewBuffer(b)

	m.Version = MessageVersionLegacy
	if b[0]&versionPrefixMask != 0 {
		version := b[0] &^ versionPrefixMask
		if version != 0 {
			return errors.Wrapf(ErrUnsupportedVersion, "version %d", version)
		}

		m.Version = MessageVersion0
		_, _ = buf.ReadByte()
	}

	// Header
	if m.Header.NumSignatures, err = buf.ReadByte(); err != nil {
		return errors.Wrap(err, "failed to read num signatures")
	}
	if m.Header.NumReadonlySigned, err = buf.ReadByte(); err != nil {
		return errors.Wrap(err, "failed to read num readonly signatures")
	}
	if m.Header.NumReadOnly, err = buf.ReadByte(); err != nil {
		return errors.Wrap(err, "failed to read num readonly")
	}

	// Accounts
	accountLen, err := shortvec.DecodeLen(buf)
	if err != nil {
		return errors.Wrap(err, "failed to read account len")
	}
	if accountLen*PublicKeySize > buf.Len() {
		return errors.Errorf("account len exceeds remaining data: %d", accountLen)
	}
	m.Accounts = make([]PublicKey, accountLen)
	m.AccountErrors = nil
	for i := 0; i < accountLen; i++ {
		if _, err = io.ReadFull(buf, m.Accounts[i][:]); err != nil {
			return errors.Wrapf(err, "failed to read account at index %d", i)
		}
	}

	// Recent block hash
	if _, err = io.ReadFull(buf, m.RecentBlockhash[:]); err != nil {
		return errors.Wrap(err, "failed to read recent block hash")
	}

	// Instructions
	instructionLen, err := shortvec.DecodeLen(buf)
	if err != nil {
		return errors.Wrap(err, "failed to read instruction len")
	}
	if instructionLen*minInstructionSize > buf.Len() {
		return errors.Errorf("instruction len exceeds remaining data: %d", instructionLen)
	}
	m.Instructions = make([]CompiledInstruction, instructionLen)
	for i := 0; i < instructionLen; i++ {
		var c CompiledInstruction

		// Program Index
		programIndex, err := buf.ReadByte()
		if err != nil {
			return errors.Wrapf(err, "failed to read instruction[%d] program index", i)
		}
		c.ProgramIndex = int(programIndex)

		// Account Indexes
		indexes, err := readBytes(buf)
		if err != nil {
			return errors.Wrapf(err, "failed to read instruction[%d] accounts", i)
		}
		c.Accounts = make([]int, len(indexes))
		for j, index := range indexes {
			c.Accounts[j] = int(index)
		}

		// Data
		if c.Data, err = readBytes(buf); err != nil {
			return errors.Wrapf(err, "failed to read instruction[%d] data", i)
		}

		m.Instructions[i] = c
	}

	m.AddressTableLookups = nil
	if m.Version == MessageVersionLegacy {
		return checkConsumed(buf)
	}

	lookupLen, err := shortvec.DecodeLen(buf)
	if err != nil {
		return errors.Wrap(err, "failed to read address table lookup len")
	}
	if lookupLen*PublicKeySize > buf.Len() {
		return errors.Errorf("address table lookup len exceeds remaining data: %d", lookupLen)
	}
	for i := 0; i < lookupLen; i++ {
		var lookup MessageAddressTableLookup
		if _, err = io.ReadFull(buf, lookup.PublicKey[:]); err != nil {
			return errors.Wrapf(err, "failed to read address table lookup[%d] key", i)
		}
		if lookup.WritableIndexes, err = readBytes(buf); err != nil {
			return errors.Wrapf(err, "failed to read address table lookup[%d] writable indexes", i)
		}
		if lookup.ReadonlyIndexes, err = readBytes(buf); err != nil {
			return errors.Wrapf(err, "failed to read address table lookup[%d] readonly indexes", i)
		}
		m.AddressTableLookups = append(m.AddressTableLookups, lookup)
	}

	return checkConsumed(buf)
}

func checkConsumed(buf *bytes.Buffer) error {
	if buf.Len() > 0 {
		return errors.Errorf("unexpected trailing data: %d bytes", buf.Len())
	}
	return nil
}

func readBytes(buf *bytes.Buffer) ([]byte, error) {
	n, err := shortvec.DecodeLen(buf)
	if err != nil {
		return nil, err
	}
	if n > buf.Len() {
		return nil, io.ErrUnexpectedEOF
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(buf, b); err != nil {
		return nil, err
	}
	return b, nil
}

func toIndexByte(index int) (byte, error) {
	if index < 0 || index > 0xff {
		return 0, errors.Errorf("index out of range: %d", index)
	}
	return byte(index), nil
}
