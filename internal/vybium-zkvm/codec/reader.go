package codec

import (
	"encoding/binary"
	"math"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
)

// Reader consumes a stream in the order it was written
type Reader struct {
	enc  Encoding
	data []byte
	pos  int
}

// NewReader creates a reader over data
func NewReader(enc Encoding, data []byte) (*Reader, error) {
	if err := enc.Validate(); err != nil {
		return nil, err
	}
	if len(data)%int(enc.WordSize) != 0 {
		return nil, core.NewError(core.CodeSerialize,
			"stream length %d is not a multiple of word size %d", len(data), enc.WordSize)
	}
	return &Reader{enc: enc, data: data}, nil
}

// ReadU32 reads one word
func (r *Reader) ReadU32() (uint32, error) {
	w, err := r.word()
	if err != nil {
		return 0, err
	}
	for _, b := range w[4:] {
		if b != 0 {
			return 0, core.NewError(core.CodeSerialize, "non-zero padding in word at offset %d", r.pos-len(w))
		}
	}
	return binary.LittleEndian.Uint32(w), nil
}

// ReadBool reads a word holding 0 or 1
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU32()
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, core.NewError(core.CodeSerialize, "invalid bool word %d", v)
	}
	return v == 1, nil
}

// ReadU8 reads a word that must fit in a byte
func (r *Reader) ReadU8() (uint8, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint8 {
		return 0, core.NewError(core.CodeSerialize, "word %d does not fit in uint8", v)
	}
	return uint8(v), nil
}

// ReadU16 reads a word that must fit in 16 bits
func (r *Reader) ReadU16() (uint16, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint16 {
		return 0, core.NewError(core.CodeSerialize, "word %d does not fit in uint16", v)
	}
	return uint16(v), nil
}

// ReadU64 reads a padded uint64
func (r *Reader) ReadU64() (uint64, error) {
	n := r.enc.U64Words() * int(r.enc.WordSize)
	if r.pos+n > len(r.data) {
		return 0, r.eof(n)
	}
	chunk := r.data[r.pos : r.pos+n]
	for _, b := range chunk[8:] {
		if b != 0 {
			return 0, core.NewError(core.CodeSerialize, "non-zero padding in uint64 at offset %d", r.pos)
		}
	}
	r.pos += n
	return binary.LittleEndian.Uint64(chunk), nil
}

// ReadU32s reads a length-prefixed uint32 sequence
func (r *Reader) ReadU32s() ([]uint32, error) {
	n, err := r.length()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		if out[i], err = r.ReadU32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadBytes reads a length-prefixed, widened byte string
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.length()
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for i := range out {
		if out[i], err = r.ReadU8(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Offset returns the number of bytes consumed
func (r *Reader) Offset() int {
	return r.pos
}

func (r *Reader) length() (int, error) {
	n, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(r.enc.WordSize) > uint64(r.Remaining()) {
		return 0, r.eof(int(n) * int(r.enc.WordSize))
	}
	return int(n), nil
}

func (r *Reader) word() ([]byte, error) {
	n := int(r.enc.WordSize)
	if r.pos+n > len(r.data) {
		return nil, r.eof(n)
	}
	w := r.data[r.pos : r.pos+n]
	r.pos += n
	return w, nil
}

func (r *Reader) eof(need int) error {
	return core.NewError(core.CodeSerialize,
		"read past end of stream: need %d bytes at offset %d, have %d", need, r.pos, r.Remaining())
}
