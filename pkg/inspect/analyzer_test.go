package inspect

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/txguard/pkg/metrics"
	"github.com/code-payments/txguard/pkg/solana"
)

func TestAnalyze(t *testing.T) {
	badProgram := programInstruction(10)

	m := newTestMessage(
		programInstruction(3),
		transferInstruction(2_500_000_000),
		badProgram,
		programInstruction(4),
	)

	analysis, err := NewAnalyzer(NewDecoder(0)).Analyze(context.Background(), m, newTestLists())
	require.NoError(t, err)
	require.Len(t, analysis.Records, 4)

	assert.Equal(t, &ProgramReference{ProgramIndex: 3, Program: programA}, analysis.Records[0])
	assert.IsType(t, &TransferRecord{}, analysis.Records[1])
	assert.IsType(t, &DecodeError{}, analysis.Records[2])
	assert.Equal(t, &ProgramReference{ProgramIndex: 4, Program: programB}, analysis.Records[3])

	assert.Equal(t, []Finding{{programA, "Program A"}}, analysis.Findings.TrustedPrograms)
	assert.Equal(t, []Finding{{programB, UnverifiedProgramDescription}}, analysis.Findings.UntrustedPrograms)
	assert.Equal(t, []Finding{{receiver, "Exchange deposit"}}, analysis.Findings.TrustedAddresses)
	assert.Equal(t, []Finding{{sender, "Drainer"}, {receiver, "Compromised deposit"}}, analysis.Findings.FlaggedAddresses)
}

func TestAnalyze_WithNewRelic(t *testing.T) {
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName("txguard-test"),
		newrelic.ConfigEnabled(false),
	)
	require.NoError(t, err)
	defer app.Shutdown(time.Second)

	m := newTestMessage(transferInstruction(1), programInstruction(10))
	analyzer := NewAnalyzer(NewDecoder(0))

	expected, err := analyzer.Analyze(context.Background(), m, newTestLists())
	require.NoError(t, err)

	actual, err := analyzer.Analyze(metrics.WithNewRelic(context.Background(), app), m, newTestLists())
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
	assert.Len(t, actual.Findings.FlaggedAddresses, 2)
}

func TestAnalyze_TooManyInstructions(t *testing.T) {
	m := newTestMessage(transferInstruction(1), transferInstruction(2))

	analysis, err := NewAnalyzer(NewDecoder(1)).Analyze(context.Background(), m, nil)
	assert.Equal(t, ErrTooManyInstructions, errors.Cause(err))
	assert.Nil(t, analysis)
}

func TestAnalyze_RelayedMessage(t *testing.T) {
	payload := `{
		"staticAccountKeys": [
			"11111111111111111111111111111111",
			"` + sender.ToBase58() + `",
			"` + receiver.ToBase58() + `",
			"` + programA.ToBase58() + `"
		],
		"compiledInstructions": [
			{"programIdIndex": 0, "accountKeyIndexes": [1, 2], "data": {"0": 2, "1": 0, "2": 0, "3": 0, "4": 0, "5": 249, "6": 2, "7": 149, "8": 0, "9": 0, "10": 0, "11": 0}},
			{"programIdIndex": 3, "accountKeyIndexes": [1], "data": {"type": "Buffer", "data": [1]}}
		]
	}`

	m, err := solana.ParseRelayedMessage([]byte(payload))
	require.NoError(t, err)

	analyzer := NewAnalyzer(NewDecoder(0))

	first, err := analyzer.Analyze(context.Background(), m, newTestLists())
	require.NoError(t, err)
	second, err := analyzer.Analyze(context.Background(), m, newTestLists())
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))

	require.Len(t, first.Records, 2)
	transfer := first.Records[0].(*TransferRecord)
	assert.EqualValues(t, 2_500_000_000, transfer.Lamports)
	assert.Equal(t, json.Number("2.5"), transfer.Sol)
	assert.Equal(t, &ProgramReference{ProgramIndex: 3, Program: programA}, first.Records[1])
}

func TestAnalyze_RelayedMessageWithUndecodableReceiver(t *testing.T) {
	payload := `{
		"staticAccountKeys": [
			"11111111111111111111111111111111",
			"` + sender.ToBase58() + `",
			{"_bn": {"words": [1], "length": 1, "negative": 1}},
			"` + programA.ToBase58() + `"
		],
		"compiledInstructions": [
			{"programIdIndex": 0, "accountKeyIndexes": [1, 2], "data": [2, 0, 0, 0, 0, 249, 2, 149, 0, 0, 0, 0]},
			{"programIdIndex": 3, "accountKeyIndexes": [1], "data": [1]}
		]
	}`

	m, err := solana.ParseRelayedMessage([]byte(payload))
	require.NoError(t, err)

	analysis, err := NewAnalyzer(NewDecoder(0)).Analyze(context.Background(), m, newTestLists())
	require.NoError(t, err)
	require.Len(t, analysis.Records, 2)

	decodeErr, ok := analysis.Records[0].(*DecodeError)
	require.True(t, ok)
	assert.Equal(t, solana.ErrInvalidPublicKey, errors.Cause(decodeErr))
	assert.Equal(t, &ProgramReference{ProgramIndex: 3, Program: programA}, analysis.Records[1])

	assert.Equal(t, []Finding{{programA, "Program A"}}, analysis.Findings.TrustedPrograms)
	assert.Empty(t, analysis.Findings.TrustedAddresses)
	assert.Empty(t, analysis.Findings.FlaggedAddresses)
}
