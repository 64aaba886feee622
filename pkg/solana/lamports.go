package solana

import (
	"fmt"
	"strings"
)

// LamportsPerSol is the number of lamports, the chain's minor unit, in one SOL.
const LamportsPerSol = 1_000_000_000

// FormatSol renders a lamport amount as an exact decimal SOL amount, without
// trailing zeros (2500000000 -> "2.5").
func FormatSol(lamports uint64) string {
	whole := lamports / LamportsPerSol
	frac := lamports % LamportsPerSol
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}

	return strings.TrimRight(fmt.Sprintf("%d.%09d", whole, frac), "0")
}
