package solana

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tokenProgram = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	jupiter      = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
	system       = "11111111111111111111111111111111"
)

func TestParseRelayedMessage_StructuredClone(t *testing.T) {
	token := MustPublicKeyFromBase58(tokenProgram)
	bn, err := json.Marshal(toBN(token[:]))
	require.NoError(t, err)

	payload := fmt.Sprintf(`{
		"signatures": [],
		"message": {
			"header": {"numRequiredSignatures": 1, "numReadonlySignedAccounts": 0, "numReadonlyUnsignedAccounts": 1},
			"staticAccountKeys": [
				{"_bn": %s},
				"%s",
				{"_bn": "%x"}
			],
			"recentBlockhash": "%s",
			"compiledInstructions": [
				{"programIdIndex": 0, "accountKeyIndexes": [1, 2], "data": {"0": 2, "1": 0, "2": 0, "3": 0}},
				{"programIdIndex": 2, "accountKeyIndexes": [], "data": [3, 4]},
				{"programIdIndex": 1, "accountKeyIndexes": [0], "data": {"type": "Buffer", "data": [5]}}
			],
			"addressTableLookups": []
		}
	}`, bn, jupiter, token[:], jupiter)

	m, err := ParseRelayedMessage([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, MessageVersion0, m.Version)
	assert.EqualValues(t, 1, m.Header.NumSignatures)
	assert.EqualValues(t, 1, m.Header.NumReadOnly)

	require.Len(t, m.Accounts, 3)
	assert.Equal(t, tokenProgram, m.Accounts[0].ToBase58())
	assert.Equal(t, jupiter, m.Accounts[1].ToBase58())
	assert.Equal(t, tokenProgram, m.Accounts[2].ToBase58())

	require.Len(t, m.Instructions, 3)
	assert.Equal(t, 0, m.Instructions[0].ProgramIndex)
	assert.Equal(t, []int{1, 2}, m.Instructions[0].Accounts)
	assert.Equal(t, []byte{2, 0, 0, 0}, m.Instructions[0].Data)
	assert.Equal(t, []byte{3, 4}, m.Instructions[1].Data)
	assert.Equal(t, []byte{5}, m.Instructions[2].Data)
}

func TestParseRelayedMessage_Legacy(t *testing.T) {
	data := []byte{2, 0, 0, 0, 0, 202, 154, 59, 0, 0, 0, 0}
	payload := fmt.Sprintf(`{
		"accountKeys": ["%s", "%s"],
		"instructions": [
			{"programIdIndex": 1, "accounts": [0], "data": "%s"}
		]
	}`, jupiter, system, base58.Encode(data))

	m, err := ParseRelayedMessage([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, MessageVersionLegacy, m.Version)
	require.Len(t, m.Instructions, 1)
	assert.Equal(t, []int{0}, m.Instructions[0].Accounts)
	assert.Equal(t, data, m.Instructions[0].Data)
}

func TestParseRelayedMessage_MissingProgramIndex(t *testing.T) {
	payload := fmt.Sprintf(`{
		"staticAccountKeys": ["%s"],
		"compiledInstructions": [{"accountKeyIndexes": [0], "data": []}]
	}`, system)

	m, err := ParseRelayedMessage([]byte(payload))
	require.NoError(t, err)
	require.Len(t, m.Instructions, 1)
	assert.Equal(t, -1, m.Instructions[0].ProgramIndex)
}

func TestParseRelayedMessage_Malformed(t *testing.T) {
	for _, payload := range []string{
		``,
		`[]`,
		`"message"`,
		`{}`,
		`{"message": {}}`,
		`{"staticAccountKeys": []}`,
		`{"compiledInstructions": []}`,
		`{"staticAccountKeys": null, "compiledInstructions": []}`,
		`{"staticAccountKeys": [], "compiledInstructions": [{"programIdIndex": 0, "data": [256]}]}`,
		`{"staticAccountKeys": [], "compiledInstructions": [{"programIdIndex": 0, "data": {"1": 2}}]}`,
		`{"staticAccountKeys": [], "compiledInstructions": [], "recentBlockhash": "abc"}`,
		`{"staticAccountKeys": [], "compiledInstructions": [], "version": "v1"}`,
	} {
		_, err := ParseRelayedMessage([]byte(payload))
		assert.Equal(t, ErrMalformedMessage, errors.Cause(err), payload)
	}
}

func TestParseRelayedMessage_UndecodableAccountKeys(t *testing.T) {
	payload := fmt.Sprintf(`{
		"staticAccountKeys": [
			"%s",
			"abc",
			{"_bn": {"words": [1], "length": 1, "negative": 1}},
			[1, 2, 3]
		],
		"compiledInstructions": [{"programIdIndex": 0, "accountKeyIndexes": [1, 2], "data": []}]
	}`, system)

	m, err := ParseRelayedMessage([]byte(payload))
	require.NoError(t, err)
	require.Len(t, m.Accounts, 4)
	require.Len(t, m.Instructions, 1)

	assert.NoError(t, m.AccountError(0))
	assert.Equal(t, system, m.Accounts[0].ToBase58())
	for i := 1; i < len(m.Accounts); i++ {
		assert.Equal(t, ErrInvalidPublicKey, errors.Cause(m.AccountError(i)), i)
		assert.True(t, m.Accounts[i].IsZero(), i)
	}
	assert.NoError(t, m.AccountError(len(m.Accounts)))
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	keys := generateKeys(t, 3)

	tx := NewLegacyTransaction(
		public(t, keys[0]),
		NewInstruction(
			public(t, keys[1]),
			[]byte{1, 2, 3},
			NewAccountMeta(public(t, keys[0]), true),
			NewReadonlyAccountMeta(public(t, keys[2]), false),
		),
	)
	tx.SetBlockhash(Blockhash{7, 7, 7})

	encoded, err := json.Marshal(tx.Message)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &raw))
	assert.Equal(t, "legacy", raw["version"])
	assert.Len(t, raw["staticAccountKeys"], 3)

	decoded, err := ParseRelayedMessage(encoded)
	require.NoError(t, err)
	assert.Equal(t, tx.Message, decoded)
}
