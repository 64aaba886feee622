package inspect

import (
	"github.com/pkg/errors"

	"github.com/code-payments/txguard/pkg/solana"
)

var (
	ErrIndexOutOfRange = errors.New("account index out of range")
)

// ResolveAccount returns the static account key at index. A slot whose key
// could not be decoded fails with that key's error.
func ResolveAccount(m solana.Message, index int) (solana.PublicKey, error) {
	if index < 0 || index >= len(m.Accounts) {
		return solana.PublicKey{}, errors.Wrapf(ErrIndexOutOfRange, "index %d, table size %d", index, len(m.Accounts))
	}
	if err := m.AccountError(index); err != nil {
		return solana.PublicKey{}, errors.Wrapf(err, "account %d", index)
	}
	return m.Accounts[index], nil
}
