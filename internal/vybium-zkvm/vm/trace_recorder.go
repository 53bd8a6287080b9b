package vm

import (
	"encoding/binary"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
)

// TraceRowSize is the byte length of an encoded TraceRow
const TraceRowSize = 8 + 4 + 4 + 8 + 4 + 4 + 3*8

// TraceRow is the processor state recorded before one instruction executes
type TraceRow struct {
	Clock  uint64 `cbor:"c"`
	IP     uint32 `cbor:"i"`
	Opcode uint32 `cbor:"o"`
	Arg    uint64 `cbor:"a"`
	SP     uint32 `cbor:"s"` // stack depth
	JSP    uint32 `cbor:"j"` // jump stack depth
	ST0    uint64 `cbor:"0"`
	ST1    uint64 `cbor:"1"`
	ST2    uint64 `cbor:"2"`
}

// Bytes returns the fixed-width little-endian encoding of the row
func (r TraceRow) Bytes() []byte {
	out := make([]byte, 0, TraceRowSize)
	out = binary.LittleEndian.AppendUint64(out, r.Clock)
	out = binary.LittleEndian.AppendUint32(out, r.IP)
	out = binary.LittleEndian.AppendUint32(out, r.Opcode)
	out = binary.LittleEndian.AppendUint64(out, r.Arg)
	out = binary.LittleEndian.AppendUint32(out, r.SP)
	out = binary.LittleEndian.AppendUint32(out, r.JSP)
	out = binary.LittleEndian.AppendUint64(out, r.ST0)
	out = binary.LittleEndian.AppendUint64(out, r.ST1)
	out = binary.LittleEndian.AppendUint64(out, r.ST2)
	return out
}

// TraceRecorder collects processor rows and state checkpoints at a fixed
// cycle interval
type TraceRecorder struct {
	interval    uint64
	rows        []TraceRow
	checkpoints []core.Digest
}

// NewTraceRecorder creates a recorder that checkpoints every interval cycles
func NewTraceRecorder(interval uint64) (*TraceRecorder, error) {
	if interval == 0 {
		return nil, core.NewError(core.CodeInvalidInput, "checkpoint interval must be positive")
	}
	return &TraceRecorder{interval: interval}, nil
}

// RecordState records the VM state before instruction execution, taking a
// checkpoint first when the clock sits on a shard boundary
func (tr *TraceRecorder) RecordState(vm *VMState, inst *EncodedInstruction) {
	if vm.CycleCount%tr.interval == 0 {
		tr.checkpoints = append(tr.checkpoints, vm.Digest())
	}

	row := TraceRow{
		Clock:  vm.CycleCount,
		IP:     uint32(vm.InstructionPointer),
		Opcode: uint32(inst.Instruction),
		Arg:    inst.Arg(),
		SP:     uint32(len(vm.Stack)),
		JSP:    uint32(len(vm.JumpStack)),
	}
	for depth, dst := range []*uint64{&row.ST0, &row.ST1, &row.ST2} {
		if v, err := vm.StackPeek(depth); err == nil {
			*dst = v.Value()
		}
	}
	tr.rows = append(tr.rows, row)
}

// Finish records the final state. A run of zero cycles still yields the
// boundary pair of one shard.
func (tr *TraceRecorder) Finish(vm *VMState) {
	final := vm.Digest()
	if len(tr.checkpoints) == 0 {
		tr.checkpoints = append(tr.checkpoints, final)
	}
	tr.checkpoints = append(tr.checkpoints, final)
}

// Rows returns the recorded rows
func (tr *TraceRecorder) Rows() []TraceRow {
	return tr.rows
}

// Checkpoints returns the recorded boundary digests
func (tr *TraceRecorder) Checkpoints() []core.Digest {
	return tr.checkpoints
}
