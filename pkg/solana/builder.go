package solana

import (
	"bytes"
	"crypto/ed25519"
	"sort"

	"github.com/pkg/errors"
)

// AccountMeta is an account referenced by an Instruction.
type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

// NewAccountMeta returns a writable AccountMeta.
func NewAccountMeta(pub PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: true,
	}
}

// NewReadonlyAccountMeta returns a read-only AccountMeta.
func NewReadonlyAccountMeta(pub PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey: pub,
		IsSigner:  isSigner,
	}
}

// Instruction is an instruction before it is compiled into a message.
type Instruction struct {
	Program  PublicKey
	Accounts []AccountMeta
	Data     []byte
}

func NewInstruction(program PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// compiledAccount is an account table entry while a message is compiled.
type compiledAccount struct {
	AccountMeta

	payer   bool
	program bool
}

// rank orders the account table: the payer first, then signers before
// non-signers and writable before read-only, with invoked programs after every
// other account.
//
// Reference: https://docs.solana.com/transaction#account-addresses-format
func (a *compiledAccount) rank() int {
	if a.payer {
		return -1
	}

	var r int
	if a.program {
		r += 4
	}
	if !a.IsSigner {
		r += 2
	}
	if !a.IsWritable {
		r++
	}
	return r
}

// NewLegacyTransaction compiles instructions into an unsigned legacy
// transaction paid for by payer.
func NewLegacyTransaction(payer PublicKey, instructions ...Instruction) Transaction {
	m := compileLegacyMessage(payer, instructions)
	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

func compileLegacyMessage(payer PublicKey, instructions []Instruction) Message {
	var table []*compiledAccount
	byKey := make(map[PublicKey]*compiledAccount)

	// Repeated accounts keep their first position and role, and are promoted
	// to the strongest permissions they are referenced with.
	add := func(account compiledAccount) {
		if existing, ok := byKey[account.PublicKey]; ok {
			existing.IsSigner = existing.IsSigner || account.IsSigner
			existing.IsWritable = existing.IsWritable || account.IsWritable
			existing.payer = existing.payer || account.payer
			return
		}

		entry := &account
		table = append(table, entry)
		byKey[account.PublicKey] = entry
	}

	add(compiledAccount{AccountMeta: NewAccountMeta(payer, true), payer: true})
	for _, instruction := range instructions {
		add(compiledAccount{AccountMeta: AccountMeta{PublicKey: instruction.Program}, program: true})
		for _, meta := range instruction.Accounts {
			add(compiledAccount{AccountMeta: meta})
		}
	}

	sort.SliceStable(table, func(i, j int) bool {
		if ri, rj := table[i].rank(), table[j].rank(); ri != rj {
			return ri < rj
		}
		return bytes.Compare(table[i].PublicKey[:], table[j].PublicKey[:]) < 0
	})

	var m Message
	indexes := make(map[PublicKey]int, len(table))
	for i, account := range table {
		m.Accounts = append(m.Accounts, account.PublicKey)
		indexes[account.PublicKey] = i

		switch {
		case account.IsSigner:
			m.Header.NumSignatures++
			if !account.IsWritable {
				m.Header.NumReadonlySigned++
			}
		case !account.IsWritable:
			m.Header.NumReadOnly++
		}
	}

	for _, instruction := range instructions {
		compiled := CompiledInstruction{
			ProgramIndex: indexes[instruction.Program],
			Data:         instruction.Data,
		}
		for _, meta := range instruction.Accounts {
			compiled.Accounts = append(compiled.Accounts, indexes[meta.PublicKey])
		}
		m.Instructions = append(m.Instructions, compiled)
	}

	return m
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

// Sign signs the message with each signer, placing every signature at its
// signer's position in the account table.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	messageBytes, err := t.Message.Marshal()
	if err != nil {
		return err
	}

	for _, signer := range signers {
		pub, err := PublicKeyFromBytes(signer.Public().(ed25519.PublicKey))
		if err != nil {
			return err
		}

		index := -1
		for i, account := range t.Message.Accounts {
			if account == pub {
				index = i
				break
			}
		}

		switch {
		case index < 0:
			return errors.Errorf("signing account %s is not in the account list", pub)
		case index >= len(t.Signatures):
			return errors.Errorf("signing account %s is not in the list of signers", pub)
		}

		copy(t.Signatures[index][:], ed25519.Sign(signer, messageBytes))
	}

	return nil
}
