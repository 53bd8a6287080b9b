package vm

import (
	"encoding/binary"
	"fmt"
	"maps"
	"slices"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/codec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/platform"
)

// OnChipRegisters is the number of stack elements held outside guest memory.
// Deeper elements spill into the platform's stack region, one cell each.
const OnChipRegisters = 16

// JumpStackEntry records an active call
type JumpStackEntry struct {
	Origin      int // Return address (instruction after the call)
	Destination int // Entry of the called function
}

// VMState is the complete state of the guest machine
type VMState struct {
	Program  *Program
	Platform *platform.Platform

	// Private hints, consumed positionally
	Hints *codec.Reader

	// Committed public IO, bounded by the platform's public IO region
	PublicIO *codec.Stream

	// Heap cells keyed by byte address
	RAM map[uint64]field.Element

	// Operational stack (last element is st0)
	Stack []field.Element

	// Jump stack (for call/return)
	JumpStack []JumpStackEntry

	CycleCount         uint64
	InstructionPointer int

	Halting bool
}

// NewVMState creates a machine positioned at the program entry with an empty
// stack, empty memory and nothing committed
func NewVMState(program *Program, plat *platform.Platform, hints []byte, enc codec.Encoding) (*VMState, error) {
	if program == nil || plat == nil {
		return nil, core.NewError(core.CodeInvalidInput, "program and platform are required")
	}

	reader, err := codec.NewReader(enc, hints)
	if err != nil {
		return nil, err
	}
	public, err := codec.NewStream(enc, int(plat.PublicIO.Size))
	if err != nil {
		return nil, err
	}

	return &VMState{
		Program:            program,
		Platform:           plat,
		Hints:              reader,
		PublicIO:           public,
		RAM:                make(map[uint64]field.Element),
		Stack:              make([]field.Element, 0, OnChipRegisters),
		JumpStack:          make([]JumpStackEntry, 0),
		InstructionPointer: int(program.Entry()),
	}, nil
}

// Step executes one instruction
func (vm *VMState) Step() error {
	if vm.Halting {
		return fmt.Errorf("machine already halted")
	}

	inst, err := vm.CurrentInstruction()
	if err != nil {
		return fmt.Errorf("failed to fetch instruction: %w", err)
	}

	if err := vm.ExecuteInstruction(inst); err != nil {
		return fmt.Errorf("failed to execute %s: %w", inst.Instruction, err)
	}

	if inst.Instruction != Halt {
		vm.CycleCount++
	}
	return nil
}

// CurrentInstruction fetches the current instruction
func (vm *VMState) CurrentInstruction() (*EncodedInstruction, error) {
	return vm.Program.InstructionAt(vm.InstructionPointer)
}

// ExecuteInstruction dispatches to the appropriate instruction handler
func (vm *VMState) ExecuteInstruction(inst *EncodedInstruction) error {
	switch inst.Instruction {
	// Stack Manipulation
	case Pop:
		return vm.execPop(inst)
	case Push:
		return vm.execPush(inst)
	case Hint:
		return vm.execHint(inst)
	case Pick:
		return vm.execPick(inst)
	case Place:
		return vm.execPlace(inst)
	case Dup:
		return vm.execDup(inst)
	case Swap:
		return vm.execSwap(inst)

	// Control Flow
	case Halt:
		return vm.execHalt()
	case Nop:
		return vm.execNop()
	case Skiz:
		return vm.execSkiz()
	case Call:
		return vm.execCall(inst)
	case Return:
		return vm.execReturn()
	case Recurse:
		return vm.execRecurse()
	case Assert:
		return vm.execAssert()

	// Memory Access
	case ReadMem:
		return vm.execReadMem(inst)
	case WriteMem:
		return vm.execWriteMem(inst)

	// Base Field Arithmetic
	case Add:
		return vm.execAdd()
	case AddI:
		return vm.execAddI(inst)
	case Mul:
		return vm.execMul()
	case Eq:
		return vm.execEq()

	// U32 Arithmetic
	case Split:
		return vm.execSplit()
	case Lt:
		return vm.execLt()
	case And:
		return vm.execAnd()
	case Xor:
		return vm.execXor()
	case DivMod:
		return vm.execDivMod()

	// I/O
	case Commit:
		return vm.execCommit(inst)

	default:
		return fmt.Errorf("unknown instruction: %d", inst.Instruction)
	}
}

// Stack access helpers

// StackPush pushes a value, spilling into the stack region past the on-chip registers
func (vm *VMState) StackPush(value field.Element) error {
	if spilled := len(vm.Stack) + 1 - OnChipRegisters; spilled > 0 {
		if uint64(spilled)*platform.CellSize > uint64(vm.Platform.Stack.Size) {
			return fmt.Errorf("stack overflow: %d elements exceed stack region of %#x bytes",
				len(vm.Stack)+1, vm.Platform.Stack.Size)
		}
	}
	vm.Stack = append(vm.Stack, value)
	return nil
}

// StackPop removes and returns the top element
func (vm *VMState) StackPop() (field.Element, error) {
	if len(vm.Stack) == 0 {
		return field.Zero, fmt.Errorf("stack underflow")
	}
	top := vm.Stack[len(vm.Stack)-1]
	vm.Stack = vm.Stack[:len(vm.Stack)-1]
	return top, nil
}

// StackPeek returns the element at depth (0 = top)
func (vm *VMState) StackPeek(depth int) (field.Element, error) {
	if depth < 0 || depth >= len(vm.Stack) {
		return field.Zero, fmt.Errorf("stack peek out of bounds: depth %d, size %d", depth, len(vm.Stack))
	}
	return vm.Stack[len(vm.Stack)-1-depth], nil
}

// StackSet overwrites the element at depth (0 = top)
func (vm *VMState) StackSet(depth int, value field.Element) error {
	if depth < 0 || depth >= len(vm.Stack) {
		return fmt.Errorf("stack set out of bounds: depth %d, size %d", depth, len(vm.Stack))
	}
	vm.Stack[len(vm.Stack)-1-depth] = value
	return nil
}

// RAM access helpers

func (vm *VMState) checkHeapAddress(addr uint64) error {
	if addr%platform.CellSize != 0 {
		return fmt.Errorf("unaligned heap address %#x", addr)
	}
	if !vm.Platform.Heap.Contains(addr, platform.CellSize) {
		return fmt.Errorf("address %#x outside heap %s", addr, vm.Platform.Heap)
	}
	return nil
}

// RAMRead reads the heap cell at addr. Unwritten cells read as zero.
func (vm *VMState) RAMRead(addr uint64) (field.Element, error) {
	if err := vm.checkHeapAddress(addr); err != nil {
		return field.Zero, err
	}
	if value, ok := vm.RAM[addr]; ok {
		return value, nil
	}
	return field.Zero, nil
}

// RAMWrite writes the heap cell at addr
func (vm *VMState) RAMWrite(addr uint64, value field.Element) error {
	if err := vm.checkHeapAddress(addr); err != nil {
		return err
	}
	vm.RAM[addr] = value
	return nil
}

// IncrementIP advances the instruction pointer past the current instruction
func (vm *VMState) IncrementIP() error {
	inst, err := vm.CurrentInstruction()
	if err != nil {
		return err
	}
	vm.InstructionPointer += inst.Instruction.Size()
	return nil
}

// Digest commits to everything that determines the machine's future given
// the remaining hints: the instruction pointer, both stacks, the hint
// position, the heap and the public IO committed so far. The cycle count and
// the hint contents are not part of the state.
func (vm *VMState) Digest() core.Digest {
	elems := make([]field.Element, 0, 8+len(vm.Stack)+2*len(vm.JumpStack)+2*len(vm.RAM))

	elems = append(elems, field.New(uint64(vm.InstructionPointer)))

	elems = append(elems, field.New(uint64(len(vm.Stack))))
	elems = append(elems, vm.Stack...)

	elems = append(elems, field.New(uint64(len(vm.JumpStack))))
	for _, e := range vm.JumpStack {
		elems = append(elems, field.New(uint64(e.Origin)), field.New(uint64(e.Destination)))
	}

	elems = append(elems, field.New(uint64(vm.Hints.Offset())))

	elems = append(elems, field.New(uint64(len(vm.RAM))))
	for _, addr := range slices.Sorted(maps.Keys(vm.RAM)) {
		elems = append(elems, field.New(addr), vm.RAM[addr])
	}

	io := vm.PublicIO.Bytes()
	elems = append(elems, field.New(uint64(len(io))))
	for i := 0; i+4 <= len(io); i += 4 {
		elems = append(elems, field.New(uint64(binary.LittleEndian.Uint32(io[i:]))))
	}

	return core.HashElements("vybium-zkvm/state", elems)
}

// InitialStateDigest returns the digest of a fresh machine for program on
// plat. It does not depend on the hint contents.
func InitialStateDigest(program *Program, plat *platform.Platform, enc codec.Encoding) (core.Digest, error) {
	vm, err := NewVMState(program, plat, nil, enc)
	if err != nil {
		return core.Digest{}, err
	}
	return vm.Digest(), nil
}
