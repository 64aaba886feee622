package inspect

import (
	"encoding/json"

	"github.com/code-payments/txguard/pkg/solana"
)

// Record is a single entry of an analysis. It is one of *ProgramReference,
// *TransferRecord or *DecodeError.
type Record interface {
	isRecord()
}

// ProgramReference is emitted once for every distinct program, other than the
// system program, that a transaction invokes.
type ProgramReference struct {
	ProgramIndex int              `json:"programIdIndex"`
	Program      solana.PublicKey `json:"programPublicKey"`
}

// TransferRecord is a decoded native transfer.
type TransferRecord struct {
	ProgramIndex int              `json:"programIdIndex"`
	Program      solana.PublicKey `json:"programPublicKey"`
	Instruction  string           `json:"instruction"`
	Sender       solana.PublicKey `json:"sender"`
	Receiver     solana.PublicKey `json:"receiver"`
	Lamports     uint64           `json:"lamports"`
	Sol          json.Number      `json:"sol"`
}

// DecodeError records an instruction that could not be resolved or decoded.
type DecodeError struct {
	InstructionIndex int    `json:"-"`
	Message          string `json:"error"`

	cause error
}

func newDecodeError(instructionIndex int, err error) *DecodeError {
	return &DecodeError{
		InstructionIndex: instructionIndex,
		Message:          err.Error(),
		cause:            err,
	}
}

func (e *DecodeError) Error() string {
	return e.Message
}

// Cause returns the underlying error, for use with errors.Cause.
func (e *DecodeError) Cause() error {
	return e.cause
}

func (*ProgramReference) isRecord() {}
func (*TransferRecord) isRecord()   {}
func (*DecodeError) isRecord()      {}
