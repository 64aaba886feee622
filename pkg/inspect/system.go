package inspect

import (
	"encoding/json"

	"github.com/code-payments/txguard/pkg/solana"
	"github.com/code-payments/txguard/pkg/solana/system"
)

const (
	SystemProgramInstruction = "System Program"
)

func registerSystemHandlers(handlers map[solana.PublicKey]InstructionHandler) {
	handlers[system.ProgramKey] = decodeSystemInstruction
}

// decodeSystemInstruction reads every system program instruction as a native
// transfer.
func decodeSystemInstruction(m solana.Message, index int) (Record, error) {
	transfer, err := system.DecompileTransfer(m, index)
	if err != nil {
		return nil, err
	}

	return &TransferRecord{
		ProgramIndex: m.Instructions[index].ProgramIndex,
		Program:      system.ProgramKey,
		Instruction:  SystemProgramInstruction,
		Sender:       transfer.Sender,
		Receiver:     transfer.Receiver,
		Lamports:     transfer.Lamports,
		Sol:          json.Number(solana.FormatSol(transfer.Lamports)),
	}, nil
}
