package core

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
	"golang.org/x/crypto/sha3"
)

// DigestSize is the byte length of a Digest
const DigestSize = 32

// Digest is a 256-bit commitment
type Digest [DigestSize]byte

// HashBytes returns the sha3-256 digest of domain followed by each part
func HashBytes(domain string, parts ...[]byte) Digest {
	h := sha3.New256()
	h.Write([]byte(domain))
	for _, p := range parts {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// HashElements commits to a sequence of field elements. The elements are
// first absorbed by the field-native variable-length hash, and the resulting
// field digest is widened to 256 bits under domain.
func HashElements(domain string, elems []field.Element) Digest {
	fd := hash.HashVarlen(elems)
	buf := make([]byte, 0, 8*len(fd))
	for _, e := range fd {
		buf = binary.LittleEndian.AppendUint64(buf, e.Value())
	}
	return HashBytes(domain, buf, ElementsToBytes(elems))
}

// ElementsToBytes serializes field elements as little-endian uint64 words
func ElementsToBytes(elems []field.Element) []byte {
	buf := make([]byte, 0, 8*len(elems))
	for _, e := range elems {
		buf = binary.LittleEndian.AppendUint64(buf, e.Value())
	}
	return buf
}

// Bytes returns a copy of the digest bytes
func (d Digest) Bytes() []byte {
	return append([]byte(nil), d[:]...)
}

// IsZero reports whether every byte of the digest is zero
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// String returns the hex encoding of the digest
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first eight hex characters, for logs
func (d Digest) Short() string {
	return hex.EncodeToString(d[:4])
}

// DigestFromBytes copies b into a Digest
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, NewError(CodeInvalidInput, "digest must be %d bytes, got %d", DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}
