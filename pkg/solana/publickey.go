package solana

import (
	"bytes"
	"math/big"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const (
	PublicKeySize = 32

	// bnWordBits is the limb width used by the bn.js big number library, which
	// web3.js uses as the internal representation of a PublicKey.
	bnWordBits = 26
)

var (
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// PublicKey is a fixed-width account address.
type PublicKey [PublicKeySize]byte

// BN is the serialized form of a bn.js big number as it appears when a web3.js
// PublicKey crosses a structured clone boundary. Words are little-endian 26-bit
// limbs, of which only the first Length are significant.
type BN struct {
	Words    []int64 `json:"words"`
	Length   int     `json:"length"`
	Negative int     `json:"negative"`
}

// PublicKeyFromBytes returns the PublicKey for a 32 byte slice.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pub PublicKey
	if len(b) != PublicKeySize {
		return pub, errors.Wrapf(ErrInvalidPublicKey, "invalid length: %d", len(b))
	}
	copy(pub[:], b)
	return pub, nil
}

// PublicKeyFromBase58 decodes a base58 address.
func PublicKeyFromBase58(s string) (PublicKey, error) {
	decoded, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, errors.Wrapf(ErrInvalidPublicKey, "invalid base58 %q", s)
	}
	return PublicKeyFromBytes(decoded)
}

// MustPublicKeyFromBase58 is like PublicKeyFromBase58, but panics on error. It
// is intended for well-known program addresses.
func MustPublicKeyFromBase58(s string) PublicKey {
	pub, err := PublicKeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return pub
}

// PublicKeyFromBigInt normalizes an unsigned integer into its 32 byte big-endian
// form. Negative values and values wider than 256 bits are rejected.
func PublicKeyFromBigInt(v *big.Int) (PublicKey, error) {
	var pub PublicKey
	if v == nil {
		return pub, errors.Wrap(ErrInvalidPublicKey, "nil value")
	}
	if v.Sign() < 0 {
		return pub, errors.Wrap(ErrInvalidPublicKey, "negative value")
	}
	if v.BitLen() > PublicKeySize*8 {
		return pub, errors.Wrapf(ErrInvalidPublicKey, "value is %d bits wide", v.BitLen())
	}
	v.FillBytes(pub[:])
	return pub, nil
}

// PublicKeyFromBN reconstructs a PublicKey from its bn.js limbs.
func PublicKeyFromBN(bn BN) (PublicKey, error) {
	if bn.Negative != 0 {
		return PublicKey{}, errors.Wrap(ErrInvalidPublicKey, "negative value")
	}
	if bn.Length < 0 || bn.Length > len(bn.Words) {
		return PublicKey{}, errors.Wrapf(ErrInvalidPublicKey, "invalid word length: %d", bn.Length)
	}

	v := new(big.Int)
	for i := bn.Length - 1; i >= 0; i-- {
		word := bn.Words[i]
		if word < 0 || word >= 1<<bnWordBits {
			return PublicKey{}, errors.Wrapf(ErrInvalidPublicKey, "word %d out of range", i)
		}

		v.Lsh(v, bnWordBits)
		v.Or(v, big.NewInt(word))
	}
	return PublicKeyFromBigInt(v)
}

// PublicKeyFromBNHex reconstructs a PublicKey from the hex string bn.js emits
// from its toJSON method.
func PublicKeyFromBNHex(s string) (PublicKey, error) {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return PublicKey{}, errors.Wrapf(ErrInvalidPublicKey, "invalid hex %q", s)
	}
	return PublicKeyFromBigInt(v)
}

// ToBase58 returns the canonical string form of the key.
func (k PublicKey) ToBase58() string {
	return base58.Encode(k[:])
}

func (k PublicKey) String() string {
	return k.ToBase58()
}

func (k PublicKey) Bytes() []byte {
	return k[:]
}

func (k PublicKey) Equals(other PublicKey) bool {
	return bytes.Equal(k[:], other[:])
}

func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.ToBase58()), nil
}

func (k *PublicKey) UnmarshalText(text []byte) error {
	pub, err := PublicKeyFromBase58(string(text))
	if err != nil {
		return err
	}
	*k = pub
	return nil
}
