package vm

import (
	"fmt"
	"math"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/platform"
)

// ============================================================================
// Stack Manipulation Instructions
// ============================================================================

// execPop removes n elements from the stack
func (vm *VMState) execPop(inst *EncodedInstruction) error {
	n := int(inst.Arg())

	if n < 1 || n > 5 {
		return fmt.Errorf("invalid pop count: %d (must be 1-5)", n)
	}

	if len(vm.Stack) < n {
		return fmt.Errorf("stack underflow: cannot pop %d elements from stack of size %d", n, len(vm.Stack))
	}

	vm.Stack = vm.Stack[:len(vm.Stack)-n]

	return vm.IncrementIP()
}

// execPush pushes a value onto the stack
func (vm *VMState) execPush(inst *EncodedInstruction) error {
	if err := vm.StackPush(*inst.Argument); err != nil {
		return err
	}
	return vm.IncrementIP()
}

// execHint pushes n u32 values from the hint stream, in stream order
func (vm *VMState) execHint(inst *EncodedInstruction) error {
	n := int(inst.Arg())

	if n < 1 || n > 5 {
		return fmt.Errorf("invalid hint count: %d (must be 1-5)", n)
	}

	for i := 0; i < n; i++ {
		v, err := vm.Hints.ReadU32()
		if err != nil {
			return fmt.Errorf("hint stream: %w", err)
		}
		if err := vm.StackPush(field.New(uint64(v))); err != nil {
			return err
		}
	}

	return vm.IncrementIP()
}

// execPick moves stack[i] to the top
func (vm *VMState) execPick(inst *EncodedInstruction) error {
	index := int(inst.Arg())

	if index < 0 || index >= OnChipRegisters {
		return fmt.Errorf("invalid pick index: %d (must be 0-15)", index)
	}
	if index >= len(vm.Stack) {
		return fmt.Errorf("stack underflow: pick %d from stack of size %d", index, len(vm.Stack))
	}

	pos := len(vm.Stack) - 1 - index
	value := vm.Stack[pos]
	copy(vm.Stack[pos:], vm.Stack[pos+1:])
	vm.Stack[len(vm.Stack)-1] = value

	return vm.IncrementIP()
}

// execPlace moves the top element down so that it ends up at stack[i]
func (vm *VMState) execPlace(inst *EncodedInstruction) error {
	index := int(inst.Arg())

	if index < 0 || index >= OnChipRegisters {
		return fmt.Errorf("invalid place index: %d (must be 0-15)", index)
	}
	if index >= len(vm.Stack) {
		return fmt.Errorf("stack underflow: place %d into stack of size %d", index, len(vm.Stack))
	}

	top := len(vm.Stack) - 1
	value := vm.Stack[top]
	pos := top - index
	copy(vm.Stack[pos+1:], vm.Stack[pos:top])
	vm.Stack[pos] = value

	return vm.IncrementIP()
}

// execDup duplicates stack[i] to top
func (vm *VMState) execDup(inst *EncodedInstruction) error {
	index := int(inst.Arg())

	if index < 0 || index >= OnChipRegisters {
		return fmt.Errorf("invalid dup index: %d (must be 0-15)", index)
	}

	value, err := vm.StackPeek(index)
	if err != nil {
		return err
	}

	if err := vm.StackPush(value); err != nil {
		return err
	}

	return vm.IncrementIP()
}

// execSwap swaps top with stack[i]
func (vm *VMState) execSwap(inst *EncodedInstruction) error {
	index := int(inst.Arg())

	if index < 1 || index >= OnChipRegisters {
		return fmt.Errorf("invalid swap index: %d (must be 1-15)", index)
	}

	st0, err := vm.StackPeek(0)
	if err != nil {
		return err
	}
	sti, err := vm.StackPeek(index)
	if err != nil {
		return err
	}

	_ = vm.StackSet(0, sti)
	_ = vm.StackSet(index, st0)

	return vm.IncrementIP()
}

// ============================================================================
// Control Flow Instructions
// ============================================================================

// execHalt terminates execution
func (vm *VMState) execHalt() error {
	vm.Halting = true
	// Don't increment IP - we're done
	return nil
}

// execNop does nothing
func (vm *VMState) execNop() error {
	return vm.IncrementIP()
}

// execSkiz skips next instruction if top of stack is zero
func (vm *VMState) execSkiz() error {
	st0, err := vm.StackPop()
	if err != nil {
		return err
	}

	if err := vm.IncrementIP(); err != nil {
		return err
	}

	if st0.IsZero() {
		return vm.IncrementIP()
	}

	return nil
}

// execCall calls a function
func (vm *VMState) execCall(inst *EncodedInstruction) error {
	target := int(inst.Arg())

	vm.JumpStack = append(vm.JumpStack, JumpStackEntry{
		Origin:      vm.InstructionPointer + inst.Instruction.Size(),
		Destination: target,
	})

	vm.InstructionPointer = target

	return nil
}

// execReturn returns from a function call
func (vm *VMState) execReturn() error {
	if len(vm.JumpStack) == 0 {
		return fmt.Errorf("jump stack underflow: cannot return without call")
	}

	entry := vm.JumpStack[len(vm.JumpStack)-1]
	vm.JumpStack = vm.JumpStack[:len(vm.JumpStack)-1]

	vm.InstructionPointer = entry.Origin

	return nil
}

// execRecurse jumps to the entry of the current function without pushing a
// new frame
func (vm *VMState) execRecurse() error {
	if len(vm.JumpStack) == 0 {
		return fmt.Errorf("recurse requires at least one call on jump stack")
	}

	vm.InstructionPointer = vm.JumpStack[len(vm.JumpStack)-1].Destination

	return nil
}

// execAssert asserts that top of stack is 1
func (vm *VMState) execAssert() error {
	st0, err := vm.StackPop()
	if err != nil {
		return err
	}

	if !st0.Equal(field.One) {
		return fmt.Errorf("assertion failed: expected 1, got %s", st0.String())
	}

	return vm.IncrementIP()
}

// ============================================================================
// Memory Access Instructions
// ============================================================================

// execReadMem pops an address and pushes n consecutive heap cells starting there
func (vm *VMState) execReadMem(inst *EncodedInstruction) error {
	n := int(inst.Arg())

	if n < 1 || n > 5 {
		return fmt.Errorf("invalid read_mem count: %d (must be 1-5)", n)
	}

	addrElement, err := vm.StackPop()
	if err != nil {
		return err
	}
	addr := addrElement.Value()

	for i := 0; i < n; i++ {
		value, err := vm.RAMRead(addr + uint64(i)*platform.CellSize)
		if err != nil {
			return err
		}
		if err := vm.StackPush(value); err != nil {
			return err
		}
	}

	return vm.IncrementIP()
}

// execWriteMem writes n heap cells.
// Stack layout: [..., address, value_0, ..., value_n-1]
func (vm *VMState) execWriteMem(inst *EncodedInstruction) error {
	n := int(inst.Arg())

	if n < 1 || n > 5 {
		return fmt.Errorf("invalid write_mem count: %d (must be 1-5)", n)
	}

	values := make([]field.Element, n)
	for i := n - 1; i >= 0; i-- {
		val, err := vm.StackPop()
		if err != nil {
			return err
		}
		values[i] = val
	}

	addrElement, err := vm.StackPop()
	if err != nil {
		return err
	}
	addr := addrElement.Value()

	for i := 0; i < n; i++ {
		if err := vm.RAMWrite(addr+uint64(i)*platform.CellSize, values[i]); err != nil {
			return err
		}
	}

	return vm.IncrementIP()
}

// ============================================================================
// Base Field Arithmetic Instructions
// ============================================================================

func (vm *VMState) popTwo() (a, b field.Element, err error) {
	if b, err = vm.StackPop(); err != nil {
		return
	}
	a, err = vm.StackPop()
	return
}

// execAdd adds top two stack elements
func (vm *VMState) execAdd() error {
	a, b, err := vm.popTwo()
	if err != nil {
		return err
	}
	if err := vm.StackPush(a.Add(b)); err != nil {
		return err
	}
	return vm.IncrementIP()
}

// execAddI adds the immediate to the top element
func (vm *VMState) execAddI(inst *EncodedInstruction) error {
	a, err := vm.StackPeek(0)
	if err != nil {
		return err
	}
	_ = vm.StackSet(0, a.Add(*inst.Argument))
	return vm.IncrementIP()
}

// execMul multiplies top two stack elements
func (vm *VMState) execMul() error {
	a, b, err := vm.popTwo()
	if err != nil {
		return err
	}
	if err := vm.StackPush(a.Mul(b)); err != nil {
		return err
	}
	return vm.IncrementIP()
}

// execEq checks equality of top two stack elements
func (vm *VMState) execEq() error {
	a, b, err := vm.popTwo()
	if err != nil {
		return err
	}

	result := field.Zero
	if a.Equal(b) {
		result = field.One
	}

	if err := vm.StackPush(result); err != nil {
		return err
	}
	return vm.IncrementIP()
}

// ============================================================================
// U32 Instructions
// ============================================================================

func asU32(e field.Element) (uint32, error) {
	v := e.Value()
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("operand %d is not a u32", v)
	}
	return uint32(v), nil
}

func (vm *VMState) popTwoU32() (a, b uint32, err error) {
	ea, eb, err := vm.popTwo()
	if err != nil {
		return 0, 0, err
	}
	if a, err = asU32(ea); err != nil {
		return 0, 0, err
	}
	if b, err = asU32(eb); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// execSplit splits top into high and low 32-bit parts (low on top)
func (vm *VMState) execSplit() error {
	a, err := vm.StackPop()
	if err != nil {
		return err
	}

	v := a.Value()
	if err := vm.StackPush(field.New(v >> 32)); err != nil {
		return err
	}
	if err := vm.StackPush(field.New(v & math.MaxUint32)); err != nil {
		return err
	}

	return vm.IncrementIP()
}

// execLt pushes 1 if second < top (unsigned 32-bit)
func (vm *VMState) execLt() error {
	a, b, err := vm.popTwoU32()
	if err != nil {
		return err
	}

	result := field.Zero
	if a < b {
		result = field.One
	}

	if err := vm.StackPush(result); err != nil {
		return err
	}
	return vm.IncrementIP()
}

// execAnd performs bitwise AND
func (vm *VMState) execAnd() error {
	a, b, err := vm.popTwoU32()
	if err != nil {
		return err
	}
	if err := vm.StackPush(field.New(uint64(a & b))); err != nil {
		return err
	}
	return vm.IncrementIP()
}

// execXor performs bitwise XOR
func (vm *VMState) execXor() error {
	a, b, err := vm.popTwoU32()
	if err != nil {
		return err
	}
	if err := vm.StackPush(field.New(uint64(a ^ b))); err != nil {
		return err
	}
	return vm.IncrementIP()
}

// execDivMod computes quotient and remainder
func (vm *VMState) execDivMod() error {
	dividend, divisor, err := vm.popTwoU32()
	if err != nil {
		return err
	}

	if divisor == 0 {
		return fmt.Errorf("division by zero")
	}

	// Push quotient, then remainder (so remainder is on top)
	if err := vm.StackPush(field.New(uint64(dividend / divisor))); err != nil {
		return err
	}
	if err := vm.StackPush(field.New(uint64(dividend % divisor))); err != nil {
		return err
	}

	return vm.IncrementIP()
}

// ============================================================================
// I/O Instructions
// ============================================================================

// execCommit pops n u32 values and appends them to public IO as one sequence,
// deepest element first
func (vm *VMState) execCommit(inst *EncodedInstruction) error {
	n := int(inst.Arg())

	if n < 1 || n > 5 {
		return fmt.Errorf("invalid commit count: %d (must be 1-5)", n)
	}

	values := make([]uint32, n)
	for i := n - 1; i >= 0; i-- {
		e, err := vm.StackPop()
		if err != nil {
			return err
		}
		if values[i], err = asU32(e); err != nil {
			return err
		}
	}

	if err := vm.PublicIO.WriteU32s(values); err != nil {
		return fmt.Errorf("public io: %w", err)
	}

	return vm.IncrementIP()
}
