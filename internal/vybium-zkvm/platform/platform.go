// Package platform lays out the guest machine's address space: where the
// loaded code, the stack, the heap and the public IO window live.
package platform

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/utils"
)

// PageSize is the alignment of every region base
const PageSize = 4096

// CellSize is the granularity of guest memory; region sizes must be multiples of it
const CellSize = 8

// AddressSpace is the part of a loaded program the layout depends on
type AddressSpace interface {
	CodeBase() uint32
	CodeSize() uint32
	EntryPoint() uint32
	MaxOffset() uint32
}

// Preset names a layout strategy
type Preset uint8

const (
	// PresetStandard places public IO, stack and heap upward after the code
	PresetStandard Preset = iota

	// PresetHighStack places the heap and public IO after the code and pins
	// the stack to the top of the address space
	PresetHighStack
)

var presetNames = map[Preset]string{
	PresetStandard:  "standard",
	PresetHighStack: "high-stack",
}

// String returns the configuration name of the preset
func (p Preset) String() string {
	if name, ok := presetNames[p]; ok {
		return name
	}
	return fmt.Sprintf("preset(%d)", uint8(p))
}

// ParsePreset maps a configuration name to a Preset
func ParsePreset(name string) (Preset, error) {
	for p, n := range presetNames {
		if strings.EqualFold(n, name) {
			return p, nil
		}
	}
	return 0, core.NewError(core.CodeConfig, "unknown platform preset %q", name)
}

// Region is a half-open byte range [Base, Base+Size)
type Region struct {
	Base uint32
	Size uint32
}

// End returns the first address past the region
func (r Region) End() uint64 {
	return uint64(r.Base) + uint64(r.Size)
}

// Contains reports whether [addr, addr+n) lies inside the region
func (r Region) Contains(addr, n uint64) bool {
	return addr >= uint64(r.Base) && addr+n <= r.End() && addr+n >= addr
}

// Overlaps reports whether two non-empty regions share an address
func (r Region) Overlaps(o Region) bool {
	if r.Size == 0 || o.Size == 0 {
		return false
	}
	return uint64(r.Base) < o.End() && uint64(o.Base) < r.End()
}

// String formats the region in hex
func (r Region) String() string {
	return fmt.Sprintf("[%#x, %#x)", r.Base, r.End())
}

// Platform is an immutable memory-layout descriptor
type Platform struct {
	Preset    Preset
	Entry     uint32
	MaxOffset uint32
	Code      Region
	PublicIO  Region
	Stack     Region
	Heap      Region
}

// Configure derives a platform from a preset, the program's address space
// and the requested region sizes. It never clips a region to fit.
func Configure(preset Preset, space AddressSpace, stackSize, heapSize, publicIOSize uint32) (*Platform, error) {
	if space == nil {
		return nil, core.NewError(core.CodeConfig, "nil address space")
	}
	for _, s := range []struct {
		name string
		size uint32
	}{{"stack", stackSize}, {"heap", heapSize}, {"public io", publicIOSize}} {
		if s.size == 0 || s.size%CellSize != 0 {
			return nil, core.NewError(core.CodeConfig,
				"%s size %#x must be a positive multiple of %d", s.name, s.size, CellSize)
		}
	}

	p := &Platform{
		Preset:    preset,
		Entry:     space.EntryPoint(),
		MaxOffset: space.MaxOffset(),
		Code:      Region{Base: space.CodeBase(), Size: space.CodeSize()},
	}
	if p.Code.End() > uint64(p.MaxOffset) {
		return nil, core.NewError(core.CodeConfig, "code %s exceeds max offset %#x", p.Code, p.MaxOffset)
	}

	var err error
	switch preset {
	case PresetStandard:
		err = p.layoutStandard(stackSize, heapSize, publicIOSize)
	case PresetHighStack:
		err = p.layoutHighStack(stackSize, heapSize, publicIOSize)
	default:
		err = core.NewError(core.CodeConfig, "unknown platform preset %d", preset)
	}
	if err != nil {
		return nil, err
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Platform) layoutStandard(stackSize, heapSize, publicIOSize uint32) error {
	cursor := p.Code.End()
	var err error
	if p.PublicIO, cursor, err = p.place(cursor, publicIOSize, "public io"); err != nil {
		return err
	}
	if p.Stack, cursor, err = p.place(cursor, stackSize, "stack"); err != nil {
		return err
	}
	p.Heap, _, err = p.place(cursor, heapSize, "heap")
	return err
}

func (p *Platform) layoutHighStack(stackSize, heapSize, publicIOSize uint32) error {
	cursor := p.Code.End()
	var err error
	if p.Heap, cursor, err = p.place(cursor, heapSize, "heap"); err != nil {
		return err
	}
	if p.PublicIO, _, err = p.place(cursor, publicIOSize, "public io"); err != nil {
		return err
	}

	if uint64(stackSize) > uint64(p.MaxOffset) {
		return core.NewError(core.CodeConfig, "stack size %#x exceeds max offset %#x", stackSize, p.MaxOffset)
	}
	base := utils.AlignDown(uint64(p.MaxOffset)-uint64(stackSize), PageSize)
	p.Stack = Region{Base: uint32(base), Size: stackSize}
	if p.Stack.Overlaps(p.PublicIO) || p.Stack.Overlaps(p.Heap) || p.Stack.Overlaps(p.Code) {
		return core.NewError(core.CodeConfig,
			"stack %s collides with lower regions; address space %#x is too small", p.Stack, p.MaxOffset)
	}
	return nil
}

// place puts a region of size bytes at the first page boundary at or after
// cursor and returns the cursor past it.
func (p *Platform) place(cursor uint64, size uint32, name string) (Region, uint64, error) {
	base, ok := utils.AlignUp(cursor, PageSize)
	if !ok || base+uint64(size) > uint64(p.MaxOffset) {
		return Region{}, 0, core.NewError(core.CodeConfig,
			"%s of size %#x does not fit below max offset %#x", name, size, p.MaxOffset)
	}
	r := Region{Base: uint32(base), Size: size}
	return r, r.End(), nil
}

// Validate checks containment and pairwise disjointness of the regions
func (p *Platform) Validate() error {
	regions := p.Regions()
	for i, a := range regions {
		if a.Region.End() > uint64(p.MaxOffset) {
			return core.NewError(core.CodeConfig, "%s %s exceeds max offset %#x", a.Name, a.Region, p.MaxOffset)
		}
		for _, b := range regions[i+1:] {
			if a.Region.Overlaps(b.Region) {
				return core.NewError(core.CodeConfig, "%s %s overlaps %s %s", a.Name, a.Region, b.Name, b.Region)
			}
		}
	}
	return nil
}

// NamedRegion pairs a region with its role
type NamedRegion struct {
	Name   string
	Region Region
}

// Regions returns the four regions in canonical order
func (p *Platform) Regions() []NamedRegion {
	return []NamedRegion{
		{"code", p.Code},
		{"public io", p.PublicIO},
		{"stack", p.Stack},
		{"heap", p.Heap},
	}
}

// platformEncodingVersion tags MarshalBinary output
const platformEncodingVersion = 1

// MarshalBinary returns the canonical byte form of the platform
func (p *Platform) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 2+8+4*8)
	out = append(out, platformEncodingVersion, byte(p.Preset))
	out = binary.LittleEndian.AppendUint32(out, p.Entry)
	out = binary.LittleEndian.AppendUint32(out, p.MaxOffset)
	for _, r := range p.Regions() {
		out = binary.LittleEndian.AppendUint32(out, r.Region.Base)
		out = binary.LittleEndian.AppendUint32(out, r.Region.Size)
	}
	return out, nil
}

// Digest commits to the platform's canonical form
func (p *Platform) Digest() core.Digest {
	b, _ := p.MarshalBinary()
	return core.HashBytes("vybium-zkvm/platform", b)
}

// String summarizes the layout
func (p *Platform) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s entry=%#x", p.Preset, p.Entry)
	for _, r := range p.Regions() {
		fmt.Fprintf(&sb, " %s=%s", strings.ReplaceAll(r.Name, " ", ""), r.Region)
	}
	return sb.String()
}
