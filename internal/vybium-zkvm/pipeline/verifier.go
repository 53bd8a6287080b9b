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

// Verifier checks proof sets produced by a ShardedProver
type Verifier struct {
	backend protocols.Backend
	keys    *protocols.KeyCache
	opts    options
}

// NewVerifier creates a verifier on top of backend
func NewVerifier(backend protocols.Backend, opts ...Option) (*Verifier, error) {
	if backend == nil {
		return nil, core.NewError(core.CodeInvalidInput, "backend is required")
	}
	o, keys, err := buildOptions(backend, opts)
	if err != nil {
		return nil, err
	}
	return &Verifier{backend: backend, keys: keys, opts: o}, nil
}

// Verify checks proofs against program and plat. It reports, in order:
// ErrProofGap when the set is empty, out of order, incomplete or does not
// chain; ErrInvalidProof when the backend rejects a shard;
// ErrPublicIOMismatch when the committed public IO differs from
// expectedPublicIO; ErrCycleOverrun when the total cycle count exceeds
// cycleLimit.
func (v *Verifier) Verify(
	ctx context.Context,
	program *vm.Program,
	plat *platform.Platform,
	proofs []*protocols.ShardProof,
	expectedPublicIO []byte,
	cycleLimit uint64,
) (err error) {
	start := time.Now()
	defer func() {
		result := "accept"
		if err != nil {
			result = core.CodeOf(err).String()
		}
		verificationTotal.WithLabelValues(result).Inc()
		verificationDuration.Observe(time.Since(start).Seconds())
	}()

	if program == nil || plat == nil {
		return core.NewError(core.CodeInvalidInput, "program and platform are required")
	}

	vk, err := v.keys.Key(program, plat, v.opts.encoding)
	if err != nil {
		return errors.Wrap(err, "setup")
	}

	if err := checkChain(vk, proofs); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.workers)
	for i, p := range proofs {
		g.Go(func() error {
			err := v.backend.VerifyShard(gctx, vk, p)
			switch {
			case err == nil:
				return nil
			case core.CodeOf(err) == core.CodeUnknown && gctx.Err() == nil:
				return core.WrapError(core.CodeInvalidProof, err, "shard %d", i)
			default:
				return errors.Wrapf(err, "shard %d", i)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	claim := protocols.ClaimOf(vk, proofs)
	if !bytes.Equal(claim.PublicIO, expectedPublicIO) {
		return core.NewError(core.CodePublicIOMismatch,
			"proofs commit %x, expected %x", claim.PublicIO, expectedPublicIO)
	}
	if claim.Cycles > cycleLimit {
		return core.NewError(core.CodeCycleOverrun,
			"proofs cover %d cycles, limit is %d", claim.Cycles, cycleLimit)
	}

	v.opts.logger.Info("proof set verified",
		zap.Int("shards", len(proofs)),
		zap.Uint64("cycles", claim.Cycles),
	)
	return nil
}

// checkChain verifies that proofs form one complete, ordered run starting
// from the key's initial state
func checkChain(vk *protocols.VerifyingKey, proofs []*protocols.ShardProof) error {
	if len(proofs) == 0 {
		return core.NewError(core.CodeProofGap, "empty proof set")
	}

	k := len(proofs)
	var cycle uint64
	state := vk.InitialState
	for i, p := range proofs {
		switch {
		case p == nil:
			return core.NewError(core.CodeProofGap, "proof %d is missing", i)
		case int(p.ShardIndex) != i:
			return core.NewError(core.CodeProofGap, "position %d holds shard %d", i, p.ShardIndex)
		case int(p.ShardCount) != k:
			return core.NewError(core.CodeProofGap, "shard %d belongs to a set of %d, got %d", i, p.ShardCount, k)
		case p.StartCycle != cycle:
			return core.NewError(core.CodeProofGap, "shard %d starts at cycle %d, expected %d", i, p.StartCycle, cycle)
		case p.EndCycle() < p.StartCycle:
			return core.NewError(core.CodeProofGap, "shard %d cycle range overflows", i)
		case p.StartState != state:
			return core.NewError(core.CodeProofGap, "shard %d starts in state %s, expected %s",
				i, p.StartState.Short(), state.Short())
		case p.Halted != (i == k-1):
			return core.NewError(core.CodeProofGap, "shard %d of %d has halted=%t", i, k, p.Halted)
		}
		cycle = p.EndCycle()
		state = p.EndState
	}
	return nil
}
