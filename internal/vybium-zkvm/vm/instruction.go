// Package vm provides the guest machine of the Vybium zkVM: a stack machine
// over the Goldilocks field with a private hint stream and a committed
// public IO stream.
package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Instruction is a guest opcode
type Instruction uint32

const (
	// ========== Stack Manipulation ==========

	// Pop removes n elements from the stack
	Pop Instruction = 3

	// Push pushes a value onto the stack
	Push Instruction = 1

	// Hint pushes n u32 values read from the private hint stream
	Hint Instruction = 9

	// Pick moves the element at stack[i] to the top
	Pick Instruction = 17

	// Place moves the top element down to stack[i]
	Place Instruction = 25

	// Dup duplicates the element at stack[i] to the top
	Dup Instruction = 33

	// Swap swaps the top element with stack[i]
	Swap Instruction = 41

	// ========== Control Flow ==========

	// Halt terminates program execution
	Halt Instruction = 0

	// Nop does nothing (no operation)
	Nop Instruction = 8

	// Skiz skips next instruction if top of stack is zero
	Skiz Instruction = 2

	// Call calls a function at the given word address
	Call Instruction = 49

	// Return returns from a function call
	Return Instruction = 16

	// Recurse jumps back to the entry of the current function
	Recurse Instruction = 24

	// Assert asserts that the top of stack is 1
	Assert Instruction = 10

	// ========== Memory Access ==========

	// ReadMem reads n heap cells starting at the address on top of stack
	ReadMem Instruction = 57

	// WriteMem writes n heap cells starting at the address below the values
	WriteMem Instruction = 11

	// ========== Base Field Arithmetic ==========

	// Add adds top two stack elements
	Add Instruction = 42

	// AddI adds immediate value to top of stack
	AddI Instruction = 65

	// Mul multiplies top two stack elements
	Mul Instruction = 50

	// Eq checks equality of top two stack elements (1 if equal, 0 otherwise)
	Eq Instruction = 58

	// ========== U32 Arithmetic ==========

	// Split splits top element into high and low 32-bit parts
	Split Instruction = 4

	// Lt checks if second element < top element (unsigned 32-bit)
	Lt Instruction = 6

	// And computes bitwise AND of top two elements
	And Instruction = 14

	// Xor computes bitwise XOR of top two elements
	Xor Instruction = 22

	// DivMod computes quotient and remainder (remainder on top)
	DivMod Instruction = 20

	// ========== I/O ==========

	// Commit pops n u32 values and appends them to public IO as one sequence
	Commit Instruction = 19
)

// InstructionInfo provides metadata about an instruction
type InstructionInfo struct {
	Opcode      Instruction
	Name        string
	Description string
	Size        int  // Number of words (1 or 2)
	HasArg      bool // Whether instruction takes an argument
	ArgMin      uint64
	ArgMax      uint64
}

// AllInstructions maps every opcode to its metadata
var AllInstructions = map[Instruction]InstructionInfo{
	// Stack Manipulation
	Pop:   {Pop, "pop", "Remove n elements from stack", 2, true, 1, 5},
	Push:  {Push, "push", "Push value onto stack", 2, true, 0, field.P - 1},
	Hint:  {Hint, "hint", "Push n values from the hint stream", 2, true, 1, 5},
	Pick:  {Pick, "pick", "Move stack[i] to top", 2, true, 0, 15},
	Place: {Place, "place", "Move top to stack[i]", 2, true, 0, 15},
	Dup:   {Dup, "dup", "Duplicate stack[i] to top", 2, true, 0, 15},
	Swap:  {Swap, "swap", "Swap top with stack[i]", 2, true, 1, 15},

	// Control Flow
	Halt:    {Halt, "halt", "Terminate execution", 1, false, 0, 0},
	Nop:     {Nop, "nop", "No operation", 1, false, 0, 0},
	Skiz:    {Skiz, "skiz", "Skip if zero", 1, false, 0, 0},
	Call:    {Call, "call", "Call function", 2, true, 0, field.P - 1},
	Return:  {Return, "return", "Return from function", 1, false, 0, 0},
	Recurse: {Recurse, "recurse", "Jump to current function entry", 1, false, 0, 0},
	Assert:  {Assert, "assert", "Assert top is 1", 1, false, 0, 0},

	// Memory Access
	ReadMem:  {ReadMem, "read_mem", "Read n heap cells", 2, true, 1, 5},
	WriteMem: {WriteMem, "write_mem", "Write n heap cells", 2, true, 1, 5},

	// Base Field Arithmetic
	Add:  {Add, "add", "Add top two elements", 1, false, 0, 0},
	AddI: {AddI, "addi", "Add immediate", 2, true, 0, field.P - 1},
	Mul:  {Mul, "mul", "Multiply top two elements", 1, false, 0, 0},
	Eq:   {Eq, "eq", "Check equality", 1, false, 0, 0},

	// U32 Arithmetic
	Split:  {Split, "split", "Split into high/low 32-bit", 1, false, 0, 0},
	Lt:     {Lt, "lt", "Less than (unsigned)", 1, false, 0, 0},
	And:    {And, "and", "Bitwise AND", 1, false, 0, 0},
	Xor:    {Xor, "xor", "Bitwise XOR", 1, false, 0, 0},
	DivMod: {DivMod, "div_mod", "Division with remainder", 1, false, 0, 0},

	// I/O
	Commit: {Commit, "commit", "Commit n values to public IO", 2, true, 1, 5},
}

// instructionsByName is the reverse index used by the assembler
var instructionsByName = func() map[string]Instruction {
	m := make(map[string]Instruction, len(AllInstructions))
	for op, info := range AllInstructions {
		m[info.Name] = op
	}
	return m
}()

// String returns the name of the instruction
func (i Instruction) String() string {
	if info, ok := AllInstructions[i]; ok {
		return info.Name
	}
	return fmt.Sprintf("unknown(%d)", i)
}

// Info returns metadata about the instruction
func (i Instruction) Info() (InstructionInfo, error) {
	info, ok := AllInstructions[i]
	if !ok {
		return InstructionInfo{}, fmt.Errorf("unknown instruction: %d", i)
	}
	return info, nil
}

// Size returns the number of words the instruction occupies
func (i Instruction) Size() int {
	info, err := i.Info()
	if err != nil {
		return 1
	}
	return info.Size
}

// HasArgument returns whether the instruction takes an argument
func (i Instruction) HasArgument() bool {
	info, err := i.Info()
	if err != nil {
		return false
	}
	return info.HasArg
}

// EncodedInstruction represents a fully-encoded instruction with its argument
type EncodedInstruction struct {
	Instruction Instruction
	Argument    *field.Element // nil if no argument
}

// NewEncodedInstruction creates a new encoded instruction, checking the
// argument against the instruction's range
func NewEncodedInstruction(inst Instruction, arg *field.Element) (*EncodedInstruction, error) {
	info, err := inst.Info()
	if err != nil {
		return nil, err
	}

	if info.HasArg && arg == nil {
		return nil, fmt.Errorf("instruction %s requires an argument", inst)
	}

	if !info.HasArg && arg != nil {
		return nil, fmt.Errorf("instruction %s does not take an argument", inst)
	}

	if info.HasArg {
		v := arg.Value()
		if v < info.ArgMin || v > info.ArgMax {
			return nil, fmt.Errorf("argument %d of %s out of range [%d, %d]", v, inst, info.ArgMin, info.ArgMax)
		}
	}

	return &EncodedInstruction{
		Instruction: inst,
		Argument:    arg,
	}, nil
}

// Arg returns the argument as an integer, or zero when there is none
func (ei *EncodedInstruction) Arg() uint64 {
	if ei.Argument == nil {
		return 0
	}
	return ei.Argument.Value()
}

// Words returns the instruction as field elements for program memory
func (ei *EncodedInstruction) Words() []field.Element {
	if !ei.Instruction.HasArgument() {
		return []field.Element{field.New(uint64(ei.Instruction))}
	}
	arg := field.Zero
	if ei.Argument != nil {
		arg = *ei.Argument
	}
	return []field.Element{field.New(uint64(ei.Instruction)), arg}
}

// String formats the instruction in assembler syntax
func (ei *EncodedInstruction) String() string {
	if ei.Argument == nil {
		return ei.Instruction.String()
	}
	return fmt.Sprintf("%s %d", ei.Instruction, ei.Argument.Value())
}

// DecodeInstruction decodes an instruction from field elements
func DecodeInstruction(words []field.Element, offset int) (*EncodedInstruction, error) {
	if offset < 0 || offset >= len(words) {
		return nil, fmt.Errorf("offset %d out of bounds", offset)
	}

	opcodeValue := words[offset].Value()
	if opcodeValue > uint64(^uint32(0)) {
		return nil, fmt.Errorf("unknown opcode: %d", opcodeValue)
	}
	opcode := Instruction(opcodeValue)

	info, err := opcode.Info()
	if err != nil {
		return nil, fmt.Errorf("unknown opcode: %d", opcode)
	}

	var arg *field.Element
	if info.HasArg {
		if offset+1 >= len(words) {
			return nil, fmt.Errorf("instruction %s requires argument but none found", opcode)
		}
		a := words[offset+1]
		arg = &a
	}

	return NewEncodedInstruction(opcode, arg)
}
