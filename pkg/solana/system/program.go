package system

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/txguard/pkg/solana"
)

// ProgramKey is the address of the native system program.
//
// https://explorer.solana.com/address/11111111111111111111111111111111
var ProgramKey solana.PublicKey

const (
	// nolint:varcheck,deadcode,unused
	commandCreateAccount uint32 = iota
	// nolint:varcheck,deadcode,unused
	commandAssign
	commandTransfer
)

const (
	// transferDataSize is the discriminator followed by the u64 amount.
	transferDataSize = 4 + 8
)

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L92-L97
func Transfer(sender, receiver solana.PublicKey, lamports uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE] Recipient account
	//
	// Transfer {
	//   lamports: u64,
	// }
	data := make([]byte, transferDataSize)
	binary.LittleEndian.PutUint32(data, commandTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(sender, true),
		solana.NewAccountMeta(receiver, false),
	)
}

type DecompiledTransfer struct {
	Sender   solana.PublicKey
	Receiver solana.PublicKey
	Lamports uint64
}

// DecompileTransfer decodes the instruction at index as a native transfer.
//
// The discriminator is not inspected: every system program instruction is read
// with the transfer layout, where the first two account indexes are the sender
// and receiver and bytes 4 through 11 hold the amount. Trailing data is
// ignored.
func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	if index < 0 || index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !isAccountIndexValid(m, i.ProgramIndex) || m.AccountError(i.ProgramIndex) != nil || m.Accounts[i.ProgramIndex] != ProgramKey {
		return nil, solana.ErrIncorrectProgram
	}

	if len(i.Accounts) < 2 {
		return nil, errors.Wrapf(solana.ErrMalformedInstruction, "invalid number of accounts: %d", len(i.Accounts))
	}
	for _, accountIndex := range i.Accounts[:2] {
		if !isAccountIndexValid(m, accountIndex) {
			return nil, errors.Wrapf(solana.ErrMalformedInstruction, "account index out of range: %d", accountIndex)
		}
		if err := m.AccountError(accountIndex); err != nil {
			return nil, errors.Wrapf(err, "account %d", accountIndex)
		}
	}
	if len(i.Data) < transferDataSize {
		return nil, errors.Wrapf(solana.ErrMalformedInstruction, "invalid instruction data size: %d", len(i.Data))
	}

	return &DecompiledTransfer{
		Sender:   m.Accounts[i.Accounts[0]],
		Receiver: m.Accounts[i.Accounts[1]],
		Lamports: binary.LittleEndian.Uint64(i.Data[4:transferDataSize]),
	}, nil
}

func isAccountIndexValid(m solana.Message, index int) bool {
	return index >= 0 && index < len(m.Accounts)
}

func init() {
	ProgramKey = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
}
