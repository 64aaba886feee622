// Package shortvec implements the compact-u16 length prefix used by the
// transaction wire format.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

const (
	maxEncodedLen = 3
)

var (
	ErrOverflow     = errors.New("shortvec length exceeds u16")
	ErrNonCanonical = errors.New("shortvec length is not minimally encoded")
)

// EncodeLen writes n as a compact-u16, returning the number of bytes written.
func EncodeLen(w io.Writer, n int) (int, error) {
	if n < 0 || n > math.MaxUint16 {
		return 0, errors.Wrapf(ErrOverflow, "len %d", n)
	}

	var encoded [maxEncodedLen]byte
	size := 0
	for {
		encoded[size] = byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			size++
			break
		}
		encoded[size] |= 0x80
		size++
	}

	return w.Write(encoded[:size])
}

// DecodeLen reads a compact-u16. Encodings longer than needed, or that don't
// fit in a u16, are rejected.
func DecodeLen(r io.ByteReader) (int, error) {
	var n int
	for i := 0; i < maxEncodedLen; i++ {
		b, err := r.ReadByte()
		if err == io.EOF && i > 0 {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			return 0, err
		}

		if i > 0 && b == 0 {
			return 0, ErrNonCanonical
		}

		n |= int(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			if n > math.MaxUint16 {
				return 0, ErrOverflow
			}
			return n, nil
		}
	}
	return 0, ErrOverflow
}
