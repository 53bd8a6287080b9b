// Package codec implements the positional wire format shared by the host and
// the guest: private hints and committed public IO are both written as
// sequences of little-endian words.
package codec

import (
	"encoding/binary"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
)

// Version1 is the only layout version currently defined
const Version1 uint16 = 1

// Encoding describes the stream layout. WordSize is the number of bytes each
// scalar is widened to; every value occupies a whole number of words.
type Encoding struct {
	Version  uint16 `yaml:"version" cbor:"v"`
	WordSize uint32 `yaml:"wordSize" cbor:"w"`
}

// DefaultEncoding widens every element to one 32-bit word
var DefaultEncoding = Encoding{Version: Version1, WordSize: 4}

// Validate checks that the encoding is supported
func (e Encoding) Validate() error {
	if e.Version != Version1 {
		return core.NewError(core.CodeSerialize, "unsupported encoding version %d", e.Version)
	}
	if e.WordSize < 4 || e.WordSize%4 != 0 {
		return core.NewError(core.CodeSerialize, "word size must be a positive multiple of 4, got %d", e.WordSize)
	}
	return nil
}

// MarshalBinary returns the canonical six-byte form used in key derivation
func (e Encoding) MarshalBinary() ([]byte, error) {
	out := make([]byte, 6)
	binary.LittleEndian.PutUint16(out[0:], e.Version)
	binary.LittleEndian.PutUint32(out[2:], e.WordSize)
	return out, nil
}

// U64Words is the number of words a uint64 occupies
func (e Encoding) U64Words() int {
	return int((8 + e.WordSize - 1) / e.WordSize)
}

// SizeOfU32s returns the encoded length of a uint32 sequence of n elements
func (e Encoding) SizeOfU32s(n int) int {
	return (n + 1) * int(e.WordSize)
}
