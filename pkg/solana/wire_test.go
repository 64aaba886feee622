package solana

import (
	"encoding/base64"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWireMessage(t *testing.T) {
	raw, err := base64.StdEncoding.DecodeString(rustGeneratedAdjusted)
	require.NoError(t, err)

	var expected Transaction
	require.NoError(t, expected.Unmarshal(raw))

	for _, encoded := range []string{
		rustGeneratedAdjusted,
		" " + rustGeneratedAdjusted + "\n",
		base58.Encode(raw),
	} {
		actual, err := ParseWireMessage(encoded)
		require.NoError(t, err)
		assert.Equal(t, expected.Message, actual)
	}
}

func TestParseWireMessage_Base58AlsoValidBase64(t *testing.T) {
	var found int
	for dataLen := 0; dataLen < 64; dataLen++ {
		expected := Message{
			Header: Header{NumSignatures: 1},
			Accounts: []PublicKey{
				{1, 2, 3},
				{4, 5, 6},
			},
			RecentBlockhash: Blockhash{7, 8, 9},
			Instructions: []CompiledInstruction{
				{ProgramIndex: 1, Accounts: []int{0}, Data: make([]byte, dataLen)},
			},
		}
		for i := range expected.Instructions[0].Data {
			expected.Instructions[0].Data[i] = byte(i + 1)
		}

		raw, err := expected.Marshal()
		require.NoError(t, err)

		encoded := base58.Encode(raw)
		if len(encoded)%4 != 0 {
			continue
		}
		found++

		_, err = base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err, encoded)

		actual, err := ParseWireMessage(encoded)
		require.NoError(t, err, encoded)
		assert.Equal(t, expected, actual)
	}
	require.NotZero(t, found)
}

func TestParseWireMessage_Invalid(t *testing.T) {
	for _, encoded := range []string{
		"",
		"   ",
		"not-base64-or-base58!",
		base64.StdEncoding.EncodeToString([]byte{5}),
	} {
		_, err := ParseWireMessage(encoded)
		assert.Equal(t, ErrMalformedMessage, errors.Cause(err), encoded)
	}
}
