package pipeline

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/platform"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/protocols"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/vm"
)

// ShardedProver executes a guest once and proves its trace shard by shard
type ShardedProver struct {
	backend protocols.Backend
	keys    *protocols.KeyCache
	opts    options
}

// NewShardedProver creates a prover on top of backend
func NewShardedProver(backend protocols.Backend, opts ...Option) (*ShardedProver, error) {
	if backend == nil {
		return nil, core.NewError(core.CodeInvalidInput, "backend is required")
	}
	o, keys, err := buildOptions(backend, opts)
	if err != nil {
		return nil, err
	}
	return &ShardedProver{backend: backend, keys: keys, opts: o}, nil
}

// GenerateProofs runs program on plat with the given hint stream until it
// halts and returns one proof per shard of at most maxCyclesPerShard cycles,
// in shard order. The guest's committed public IO must equal publicIO.
//
// Either the complete proof set is returned or an error; never a prefix.
func (sp *ShardedProver) GenerateProofs(
	ctx context.Context,
	program *vm.Program,
	plat *platform.Platform,
	hints []byte,
	publicIO []byte,
	maxCyclesPerShard uint64,
	cycleLimit uint64,
) ([]*protocols.ShardProof, error) {
	if maxCyclesPerShard == 0 {
		return nil, core.NewError(core.CodeInvalidInput, "max cycles per shard must be positive")
	}
	if program == nil || plat == nil {
		return nil, core.NewError(core.CodeInvalidInput, "program and platform are required")
	}

	start := time.Now()
	logger := sp.opts.logger.With(zap.String("program", program.Digest().Short()))

	vk, err := sp.keys.Key(program, plat, sp.opts.encoding)
	if err != nil {
		return nil, errors.Wrap(err, "setup")
	}

	exec, err := vm.Execute(ctx, program, plat, hints, vm.ExecutionConfig{
		CycleLimit:         cycleLimit,
		CheckpointInterval: maxCyclesPerShard,
		Encoding:           sp.opts.encoding,
	})
	if err != nil {
		return nil, errors.Wrap(err, "execute guest")
	}
	executionDuration.Observe(time.Since(start).Seconds())
	executionCycles.Observe(float64(exec.Cycles))

	if !bytes.Equal(exec.PublicIO, publicIO) {
		return nil, core.NewError(core.CodePublicIOMismatch,
			"guest committed %x, host declared %x", exec.PublicIO, publicIO)
	}

	ranges, err := Plan(exec.Cycles, maxCyclesPerShard)
	if err != nil {
		return nil, err
	}
	if len(exec.Checkpoints) != len(ranges)+1 {
		return nil, core.NewError(core.CodeExecution,
			"execution recorded %d checkpoints for %d shards", len(exec.Checkpoints), len(ranges))
	}

	logger.Info("guest executed",
		zap.Uint64("cycles", exec.Cycles),
		zap.Int("shards", len(ranges)),
		zap.Uint64("max_cycles_per_shard", maxCyclesPerShard),
	)

	proofs := make([]*protocols.ShardProof, len(ranges))
	last := len(ranges) - 1

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sp.opts.workers)
	for i, r := range ranges {
		shard := &protocols.Shard{
			Index:      i,
			Count:      len(ranges),
			StartCycle: r.Start,
			Rows:       exec.Rows[r.Start:r.End],
			StartState: exec.Checkpoints[i],
			EndState:   exec.Checkpoints[i+1],
			Halted:     i == last,
		}
		if i == last {
			shard.PublicIO = exec.PublicIO
		}

		g.Go(func() error {
			proof, err := sp.backend.ProveShard(gctx, vk, shard)
			if err != nil {
				shardsProvedTotal.WithLabelValues("error").Inc()
				return errors.Wrapf(err, "prove shard %d", i)
			}
			shardsProvedTotal.WithLabelValues("success").Inc()
			proofs[i] = proof
			logger.Debug("shard proved",
				zap.Int("shard", i),
				zap.Uint64("start", r.Start),
				zap.Uint64("cycles", r.Cycles()),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	provingDuration.Observe(time.Since(start).Seconds())
	logger.Info("proof set generated",
		zap.Int("shards", len(proofs)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return proofs, nil
}

// Key returns the verifying key the prover uses for program on plat
func (sp *ShardedProver) Key(program *vm.Program, plat *platform.Platform) (*protocols.VerifyingKey, error) {
	return sp.keys.Key(program, plat, sp.opts.encoding)
}
