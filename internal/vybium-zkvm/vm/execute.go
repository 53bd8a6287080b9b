package vm

import (
	"context"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/codec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/platform"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/utils"
)

// contextCheckInterval is how many cycles run between cancellation checks
const contextCheckInterval = 1 << 12

// ExecutionConfig bounds and instruments a run
type ExecutionConfig struct {
	// CycleLimit is the maximum number of cycles the guest may run before halting
	CycleLimit uint64

	// CheckpointInterval is the shard bound; a state digest is taken every
	// CheckpointInterval cycles
	CheckpointInterval uint64

	// Encoding is the layout of the hint and public IO streams
	Encoding codec.Encoding
}

// DefaultExecutionConfig returns the reference cycle limit and shard bound.
// Execute keeps TraceRowSize bytes per cycle, so the limit also bounds memory.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		CycleLimit:         utils.DefaultCycleLimit,
		CheckpointInterval: utils.DefaultMaxCyclesPerShard,
		Encoding:           codec.DefaultEncoding,
	}
}

// Execution is the outcome of a halted run
type Execution struct {
	// Cycles is the number of instructions executed; halt is not counted
	Cycles uint64

	// Rows holds one processor row per cycle
	Rows []TraceRow

	// Checkpoints holds the state digest at every multiple of the checkpoint
	// interval below Cycles, followed by the final state
	Checkpoints []core.Digest

	// PublicIO is the committed output stream
	PublicIO []byte

	// HintsConsumed is the number of hint bytes read
	HintsConsumed int

	Halted bool
}

// Execute runs program on plat until it halts. A guest still running once
// CycleLimit cycles have executed fails with ErrCycleLimitExceeded; a guest
// fault fails with ErrExecution.
func Execute(ctx context.Context, program *Program, plat *platform.Platform, hints []byte, cfg ExecutionConfig) (*Execution, error) {
	vm, err := NewVMState(program, plat, hints, cfg.Encoding)
	if err != nil {
		return nil, err
	}

	recorder, err := NewTraceRecorder(cfg.CheckpointInterval)
	if err != nil {
		return nil, err
	}

	for !vm.Halting {
		if vm.CycleCount%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		inst, err := vm.CurrentInstruction()
		if err != nil {
			return nil, core.WrapError(core.CodeExecution, err, "fetch at cycle %d", vm.CycleCount)
		}

		if inst.Instruction != Halt {
			if vm.CycleCount >= cfg.CycleLimit {
				return nil, core.NewError(core.CodeCycleLimitExceeded,
					"guest still running after %d cycles (ip %d)", vm.CycleCount, vm.InstructionPointer)
			}
			recorder.RecordState(vm, inst)
		}

		ip := vm.InstructionPointer
		if err := vm.Step(); err != nil {
			return nil, core.WrapError(core.CodeExecution, err, "cycle %d, ip %d", vm.CycleCount, ip)
		}
	}

	recorder.Finish(vm)

	return &Execution{
		Cycles:        vm.CycleCount,
		Rows:          recorder.Rows(),
		Checkpoints:   recorder.Checkpoints(),
		PublicIO:      vm.PublicIO.Finalize(),
		HintsConsumed: vm.Hints.Offset(),
		Halted:        vm.Halting,
	}, nil
}
