package system

import (
	"crypto/ed25519"
	"encoding/binary"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/txguard/pkg/solana"
)

func TestProgramKey(t *testing.T) {
	assert.Equal(t, "11111111111111111111111111111111", ProgramKey.ToBase58())
}

func TestTransfer(t *testing.T) {
	keys := generateKeys(t, 2)

	instruction := Transfer(keys[0], keys[1], 2_500_000_000)

	command := make([]byte, 4)
	binary.LittleEndian.PutUint32(command, commandTransfer)
	assert.Equal(t, command, instruction.Data[0:4])
	assert.Equal(t, []byte{0x00, 0xf9, 0x02, 0x95, 0x00, 0x00, 0x00, 0x00}, instruction.Data[4:12])

	var tx solana.Transaction
	encoded, err := solana.NewLegacyTransaction(keys[0], instruction).Marshal()
	require.NoError(t, err)
	require.NoError(t, tx.Unmarshal(encoded))

	decompiled, err := DecompileTransfer(tx.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Sender)
	assert.Equal(t, keys[1], decompiled.Receiver)
	assert.EqualValues(t, 2_500_000_000, decompiled.Lamports)
}

func TestDecompileTransfer_FullRange(t *testing.T) {
	keys := generateKeys(t, 2)

	instruction := Transfer(keys[0], keys[1], math.MaxUint64)
	instruction.Data = append(instruction.Data, 0xde, 0xad)

	decompiled, err := DecompileTransfer(solana.NewLegacyTransaction(keys[0], instruction).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, uint64(math.MaxUint64), decompiled.Lamports)
}

func TestDecompileTransfer_IgnoresDiscriminator(t *testing.T) {
	keys := generateKeys(t, 2)

	instruction := Transfer(keys[0], keys[1], 42)
	binary.LittleEndian.PutUint32(instruction.Data, commandCreateAccount)

	decompiled, err := DecompileTransfer(solana.NewLegacyTransaction(keys[0], instruction).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 42, decompiled.Lamports)
}

func TestDecompileTransfer_Malformed(t *testing.T) {
	keys := generateKeys(t, 2)

	instruction := Transfer(keys[0], keys[1], 42)
	instruction.Accounts = instruction.Accounts[:1]
	_, err := DecompileTransfer(solana.NewLegacyTransaction(keys[0], instruction).Message, 0)
	assert.Equal(t, solana.ErrMalformedInstruction, errors.Cause(err))

	instruction = Transfer(keys[0], keys[1], 42)
	instruction.Data = instruction.Data[:11]
	_, err = DecompileTransfer(solana.NewLegacyTransaction(keys[0], instruction).Message, 0)
	assert.Equal(t, solana.ErrMalformedInstruction, errors.Cause(err))

	m := solana.NewLegacyTransaction(keys[0], Transfer(keys[0], keys[1], 42)).Message
	m.Instructions[0].Accounts = []int{0, len(m.Accounts)}
	_, err = DecompileTransfer(m, 0)
	assert.Equal(t, solana.ErrMalformedInstruction, errors.Cause(err))

	m.Instructions[0].Accounts = []int{-1, 0}
	_, err = DecompileTransfer(m, 0)
	assert.Equal(t, solana.ErrMalformedInstruction, errors.Cause(err))
}

func TestDecompileTransfer_IncorrectProgram(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := Transfer(keys[0], keys[1], 42)
	instruction.Program = keys[2]
	_, err := DecompileTransfer(solana.NewLegacyTransaction(keys[0], instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectProgram, err)

	m := solana.NewLegacyTransaction(keys[0], Transfer(keys[0], keys[1], 42)).Message
	m.Instructions[0].ProgramIndex = len(m.Accounts)
	_, err = DecompileTransfer(m, 0)
	assert.Equal(t, solana.ErrIncorrectProgram, err)

	_, err = DecompileTransfer(m, 1)
	assert.Error(t, err)
}

func TestDecompileTransfer_UndecodableAccount(t *testing.T) {
	keys := generateKeys(t, 2)

	m := solana.NewLegacyTransaction(keys[0], Transfer(keys[0], keys[1], 42)).Message
	m.AccountErrors = map[int]error{
		m.Instructions[0].Accounts[1]: errors.Wrap(solana.ErrInvalidPublicKey, "negative value"),
	}

	_, err := DecompileTransfer(m, 0)
	assert.Equal(t, solana.ErrInvalidPublicKey, errors.Cause(err))
}

func generateKeys(t *testing.T, amount int) []solana.PublicKey {
	keys := make([]solana.PublicKey, amount)

	for i := 0; i < amount; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		keys[i], err = solana.PublicKeyFromBytes(pub)
		require.NoError(t, err)
	}

	return keys
}
