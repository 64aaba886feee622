package inspect

import (
	"github.com/emirpasic/gods/sets/linkedhashset"
	"github.com/pkg/errors"

	"github.com/code-payments/txguard/pkg/solana"
	"github.com/code-payments/txguard/pkg/solana/system"
)

const (
	DefaultMaxInstructions = 1024
)

var (
	ErrTooManyInstructions = errors.New("too many instructions")
)

// InstructionHandler decodes the instruction at index into a record. Handlers
// are registered per program.
type InstructionHandler func(m solana.Message, index int) (Record, error)

// Decoder turns the compiled instructions of a message into records. It is
// immutable once created and safe for concurrent use.
type Decoder struct {
	maxInstructions int
	handlers        map[solana.PublicKey]InstructionHandler
}

// NewDecoder returns a Decoder that rejects messages with more than
// maxInstructions instructions. A non-positive value uses
// DefaultMaxInstructions.
func NewDecoder(maxInstructions int) *Decoder {
	if maxInstructions <= 0 {
		maxInstructions = DefaultMaxInstructions
	}

	handlers := make(map[solana.PublicKey]InstructionHandler)
	registerSystemHandlers(handlers)

	return &Decoder{
		maxInstructions: maxInstructions,
		handlers:        handlers,
	}
}

type resolvedProgram struct {
	key solana.PublicKey
	err error
}

// Decode returns the records for m in instruction order.
//
// The first instruction of each distinct program index produces a
// ProgramReference, except for the system program, whose instructions are only
// reported through their decoded records. Instructions of programs with a
// registered handler are decoded, and a failure produces a DecodeError in place
// without affecting the rest of the message.
func (d *Decoder) Decode(m solana.Message) ([]Record, error) {
	if len(m.Instructions) > d.maxInstructions {
		return nil, errors.Wrapf(ErrTooManyInstructions, "%d instructions exceeds limit of %d", len(m.Instructions), d.maxInstructions)
	}

	// Program indexes in first-encounter order, each resolved once.
	programIndexes := linkedhashset.New()
	for _, instruction := range m.Instructions {
		programIndexes.Add(instruction.ProgramIndex)
	}

	programs := make(map[int]resolvedProgram, programIndexes.Size())
	for _, value := range programIndexes.Values() {
		index := value.(int)
		key, err := ResolveAccount(m, index)
		programs[index] = resolvedProgram{key: key, err: err}
	}

	records := make([]Record, 0, len(m.Instructions))
	reported := make(map[int]struct{}, len(programs))
	for i, instruction := range m.Instructions {
		program := programs[instruction.ProgramIndex]
		if program.err != nil {
			records = append(records, newDecodeError(i, errors.Wrapf(program.err, "instruction %d program", i)))
			continue
		}

		if _, ok := reported[instruction.ProgramIndex]; !ok {
			reported[instruction.ProgramIndex] = struct{}{}

			if program.key != system.ProgramKey {
				records = append(records, &ProgramReference{
					ProgramIndex: instruction.ProgramIndex,
					Program:      program.key,
				})
			}
		}

		handler, ok := d.handlers[program.key]
		if !ok {
			continue
		}

		record, err := handler(m, i)
		if err != nil {
			records = append(records, newDecodeError(i, errors.Wrapf(err, "instruction %d", i)))
			continue
		}
		records = append(records, record)
	}

	return records, nil
}
