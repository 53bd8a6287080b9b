package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
)

// WordBytes is the size of one program word in guest memory
const WordBytes = 8

// Default placement of assembled programs.
const (
	DefaultCodeBase  uint32 = 0x0001_0000
	DefaultMaxOffset uint32 = 0xFFFF_FFFF
)

// Program image header.
const (
	imageMagic      = "VZKP"
	imageVersion    = 1
	imageHeaderSize = 4 + 2 + 2 + 4 + 4 + 4
)

// Program is an immutable, decoded guest program mapped at a fixed base
type Program struct {
	base      uint32
	entry     uint32 // word index of the first instruction executed
	maxOffset uint32
	words     []field.Element
	decoded   []*EncodedInstruction // indexed by word; nil for argument words
}

// NewProgram decodes words into a program and checks that it fits in the
// address space
func NewProgram(base, entry, maxOffset uint32, words []field.Element) (*Program, error) {
	if len(words) == 0 {
		return nil, core.NewError(core.CodeLoad, "empty program")
	}
	if base%WordBytes != 0 {
		return nil, core.NewError(core.CodeLoad, "code base %#x is not %d-byte aligned", base, WordBytes)
	}
	if end := uint64(base) + WordBytes*uint64(len(words)); end > uint64(maxOffset) {
		return nil, core.NewError(core.CodeLoad,
			"program of %d words at %#x ends at %#x, beyond max offset %#x", len(words), base, end, maxOffset)
	}

	p := &Program{
		base:      base,
		entry:     entry,
		maxOffset: maxOffset,
		words:     append([]field.Element(nil), words...),
		decoded:   make([]*EncodedInstruction, len(words)),
	}

	for offset := 0; offset < len(p.words); {
		inst, err := DecodeInstruction(p.words, offset)
		if err != nil {
			return nil, core.WrapError(core.CodeLoad, err, "decode word %d", offset)
		}
		p.decoded[offset] = inst
		offset += inst.Instruction.Size()
	}

	if int(entry) >= len(p.words) || p.decoded[entry] == nil {
		return nil, core.NewError(core.CodeLoad, "entry %d is not an instruction boundary", entry)
	}

	for offset, inst := range p.decoded {
		if inst == nil || inst.Instruction != Call {
			continue
		}
		target := inst.Arg()
		if target >= uint64(len(p.words)) || p.decoded[target] == nil {
			return nil, core.NewError(core.CodeLoad, "call at word %d targets %d, not an instruction boundary", offset, target)
		}
	}

	return p, nil
}

// CodeBase returns the byte address the program is mapped at
func (p *Program) CodeBase() uint32 {
	return p.base
}

// CodeSize returns the size of the program in bytes
func (p *Program) CodeSize() uint32 {
	return uint32(len(p.words) * WordBytes)
}

// EntryPoint returns the byte address of the first instruction
func (p *Program) EntryPoint() uint32 {
	return p.base + p.entry*WordBytes
}

// Entry returns the word index of the first instruction
func (p *Program) Entry() uint32 {
	return p.entry
}

// MaxOffset returns the address-space bound the program was loaded against
func (p *Program) MaxOffset() uint32 {
	return p.maxOffset
}

// Len returns the number of words
func (p *Program) Len() int {
	return len(p.words)
}

// Words returns a copy of the program words
func (p *Program) Words() []field.Element {
	return append([]field.Element(nil), p.words...)
}

// InstructionAt returns the instruction starting at word ip
func (p *Program) InstructionAt(ip int) (*EncodedInstruction, error) {
	if ip < 0 || ip >= len(p.decoded) {
		return nil, fmt.Errorf("instruction pointer out of bounds: %d", ip)
	}
	inst := p.decoded[ip]
	if inst == nil {
		return nil, fmt.Errorf("instruction pointer %d is inside an argument", ip)
	}
	return inst, nil
}

// Instructions returns the decoded instructions in program order
func (p *Program) Instructions() []*EncodedInstruction {
	out := make([]*EncodedInstruction, 0, len(p.decoded))
	for _, inst := range p.decoded {
		if inst != nil {
			out = append(out, inst)
		}
	}
	return out
}

// Digest commits to the base, the entry and every program word
func (p *Program) Digest() core.Digest {
	elems := make([]field.Element, 0, len(p.words)+2)
	elems = append(elems, field.New(uint64(p.base)), field.New(uint64(p.entry)))
	elems = append(elems, p.words...)
	return core.HashElements("vybium-zkvm/program", elems)
}

// LoadProgram parses a program image and checks it against maxOffset.
//
// Image layout (little-endian):
//
//	magic "VZKP" | version u16 | reserved u16 | base u32 | entry u32 | count u32 | count × word u64
func LoadProgram(image []byte, maxOffset uint32) (*Program, error) {
	if len(image) < imageHeaderSize {
		return nil, core.NewError(core.CodeLoad, "image of %d bytes is shorter than its header", len(image))
	}
	if string(image[0:4]) != imageMagic {
		return nil, core.NewError(core.CodeLoad, "bad image magic %q", image[0:4])
	}
	if v := binary.LittleEndian.Uint16(image[4:6]); v != imageVersion {
		return nil, core.NewError(core.CodeLoad, "unsupported image version %d", v)
	}
	base := binary.LittleEndian.Uint32(image[8:12])
	entry := binary.LittleEndian.Uint32(image[12:16])
	count := binary.LittleEndian.Uint32(image[16:20])

	payload := image[imageHeaderSize:]
	if uint64(len(payload)) != uint64(count)*WordBytes {
		return nil, core.NewError(core.CodeLoad,
			"image declares %d words but carries %d payload bytes", count, len(payload))
	}

	words := make([]field.Element, count)
	for i := range words {
		v := binary.LittleEndian.Uint64(payload[i*WordBytes:])
		if v >= field.P {
			return nil, core.NewError(core.CodeLoad, "word %d is not a canonical field element", i)
		}
		words[i] = field.New(v)
	}

	return NewProgram(base, entry, maxOffset, words)
}

// EncodeImage serializes a program into the image format read by LoadProgram
func EncodeImage(p *Program) []byte {
	out := make([]byte, imageHeaderSize, imageHeaderSize+len(p.words)*WordBytes)
	copy(out[0:4], imageMagic)
	binary.LittleEndian.PutUint16(out[4:6], imageVersion)
	binary.LittleEndian.PutUint32(out[8:12], p.base)
	binary.LittleEndian.PutUint32(out[12:16], p.entry)
	binary.LittleEndian.PutUint32(out[16:20], uint32(len(p.words)))
	out = append(out, core.ElementsToBytes(p.words)...)
	return out
}
