package codec

import (
	"encoding/binary"
	"math"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
)

// Value is the set of types a Stream can encode
type Value interface {
	bool | uint8 | uint16 | uint32 | uint64 | []uint32 | []byte
}

// Stream is an append-only, positional byte buffer. A zero capacity means
// the stream is unbounded.
type Stream struct {
	enc      Encoding
	buf      []byte
	capacity int
	sealed   bool
}

// NewStream creates an empty stream
func NewStream(enc Encoding, capacity int) (*Stream, error) {
	if err := enc.Validate(); err != nil {
		return nil, err
	}
	if capacity < 0 {
		return nil, core.NewError(core.CodeSerialize, "negative stream capacity %d", capacity)
	}
	return &Stream{enc: enc, capacity: capacity}, nil
}

// Write appends v to s in the stream's encoding
func Write[T Value](s *Stream, v T) error {
	switch x := any(v).(type) {
	case bool:
		return s.WriteBool(x)
	case uint8:
		return s.WriteU32(uint32(x))
	case uint16:
		return s.WriteU32(uint32(x))
	case uint32:
		return s.WriteU32(x)
	case uint64:
		return s.WriteU64(x)
	case []uint32:
		return s.WriteU32s(x)
	case []byte:
		return s.WriteBytes(x)
	}
	return core.NewError(core.CodeSerialize, "unsupported value type %T", v)
}

// WriteBool writes b as a single word holding 0 or 1
func (s *Stream) WriteBool(b bool) error {
	var v uint32
	if b {
		v = 1
	}
	return s.WriteU32(v)
}

// WriteU32 writes v as a single word
func (s *Stream) WriteU32(v uint32) error {
	if err := s.reserve(1); err != nil {
		return err
	}
	s.appendWord(v)
	return nil
}

// WriteU64 writes v little-endian, padded up to a whole number of words
func (s *Stream) WriteU64(v uint64) error {
	n := s.enc.U64Words()
	if err := s.reserve(n); err != nil {
		return err
	}
	start := len(s.buf)
	s.buf = append(s.buf, make([]byte, n*int(s.enc.WordSize))...)
	binary.LittleEndian.PutUint64(s.buf[start:], v)
	return nil
}

// WriteU32s writes a length word followed by one word per element
func (s *Stream) WriteU32s(vs []uint32) error {
	if uint64(len(vs)) > math.MaxUint32 {
		return core.NewError(core.CodeSerialize, "sequence of %d elements is too long", len(vs))
	}
	if err := s.reserve(len(vs) + 1); err != nil {
		return err
	}
	s.appendWord(uint32(len(vs)))
	for _, v := range vs {
		s.appendWord(v)
	}
	return nil
}

// WriteBytes writes a length word followed by each byte widened to one word
func (s *Stream) WriteBytes(bs []byte) error {
	if uint64(len(bs)) > math.MaxUint32 {
		return core.NewError(core.CodeSerialize, "byte string of %d bytes is too long", len(bs))
	}
	if err := s.reserve(len(bs) + 1); err != nil {
		return err
	}
	s.appendWord(uint32(len(bs)))
	for _, b := range bs {
		s.appendWord(uint32(b))
	}
	return nil
}

// Finalize seals the stream and returns its bytes. Later writes fail.
func (s *Stream) Finalize() []byte {
	s.sealed = true
	return append([]byte{}, s.buf...)
}

// Bytes returns a copy of the bytes written so far without sealing the stream
func (s *Stream) Bytes() []byte {
	return append([]byte{}, s.buf...)
}

// Len returns the number of bytes written so far
func (s *Stream) Len() int {
	return len(s.buf)
}

// Sealed reports whether Finalize has been called
func (s *Stream) Sealed() bool {
	return s.sealed
}

// Encoding returns the stream's layout
func (s *Stream) Encoding() Encoding {
	return s.enc
}

func (s *Stream) reserve(words int) error {
	if s.sealed {
		return core.NewError(core.CodeSerialize, "write after finalize")
	}
	need := words * int(s.enc.WordSize)
	if s.capacity > 0 && len(s.buf)+need > s.capacity {
		return core.NewError(core.CodeSerialize,
			"stream capacity %d exceeded: have %d bytes, need %d more", s.capacity, len(s.buf), need)
	}
	return nil
}

func (s *Stream) appendWord(v uint32) {
	start := len(s.buf)
	s.buf = append(s.buf, make([]byte, s.enc.WordSize)...)
	binary.LittleEndian.PutUint32(s.buf[start:], v)
}
