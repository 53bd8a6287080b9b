package pipeline

import (
	"context"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/codec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/guest"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/platform"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/protocols"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/protocols/protocolstest"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/vm"
)

type run struct {
	program  *vm.Program
	plat     *platform.Platform
	hints    []byte
	publicIO []byte
}

func newRun(t *testing.T, n uint32) *run {
	t.Helper()

	image, err := guest.Image()
	require.NoError(t, err)
	program, err := vm.LoadProgram(image, vm.DefaultMaxOffset)
	require.NoError(t, err)

	plat, err := platform.Configure(platform.PresetStandard, program, 128<<20, 128<<20, 512)
	require.NoError(t, err)

	return &run{
		program:  program,
		plat:     plat,
		hints:    encodeU32s(t, false, n),
		publicIO: encodeU32s(t, true, guest.Statement(n)...),
	}
}

func encodeU32s(t *testing.T, sequence bool, vs ...uint32) []byte {
	t.Helper()
	s, err := codec.NewStream(codec.DefaultEncoding, 512)
	require.NoError(t, err)
	if sequence {
		require.NoError(t, codec.Write(s, vs))
	} else {
		for _, v := range vs {
			require.NoError(t, codec.Write(s, v))
		}
	}
	return s.Finalize()
}

func newPair(t *testing.T, backend protocols.Backend, opts ...Option) (*ShardedProver, *Verifier) {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	prover, err := NewShardedProver(backend, opts...)
	require.NoError(t, err)
	verifier, err := NewVerifier(backend, opts...)
	require.NoError(t, err)
	return prover, verifier
}

func commitmentBackend(t *testing.T) *protocols.CommitmentBackend {
	t.Helper()
	b, err := protocols.NewCommitmentBackend(protocols.DefaultParams())
	require.NoError(t, err)
	return b
}

func TestPlan(t *testing.T) {
	tests := []struct {
		cycles, bound uint64
		want          []ShardRange
	}{
		{0, 8, []ShardRange{{0, 0}}},
		{1, 8, []ShardRange{{0, 1}}},
		{8, 8, []ShardRange{{0, 8}}},
		{9, 8, []ShardRange{{0, 8}, {8, 9}}},
		{24, 8, []ShardRange{{0, 8}, {8, 16}, {16, 24}}},
		{194, 1 << 29, []ShardRange{{0, 194}}},
	}
	for _, tt := range tests {
		got, err := Plan(tt.cycles, tt.bound)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "plan(%d, %d)", tt.cycles, tt.bound)
	}

	_, err := Plan(10, 0)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestPlanCoversEveryCycleOnce(t *testing.T) {
	for _, bound := range []uint64{1, 2, 3, 7, 64, 1000} {
		for _, cycles := range []uint64{0, 1, 5, 63, 64, 65, 999, 1000, 1001} {
			ranges, err := Plan(cycles, bound)
			require.NoError(t, err)

			want := max(1, (cycles+bound-1)/bound)
			require.Equal(t, want, uint64(len(ranges)), "C=%d B=%d", cycles, bound)

			var next uint64
			for _, r := range ranges {
				assert.Equal(t, next, r.Start)
				assert.LessOrEqual(t, r.Cycles(), bound)
				next = r.End
			}
			assert.Equal(t, cycles, next)
		}
	}
}

func TestScenarioA(t *testing.T) {
	ctx := context.Background()
	r := newRun(t, 10)
	prover, verifier := newPair(t, commitmentBackend(t))

	assert.Equal(t, uint32(55), guest.Fib(10))

	proofs, err := prover.GenerateProofs(ctx, r.program, r.plat, r.hints, r.publicIO, DefaultMaxCyclesPerShard, math.MaxUint64)
	require.NoError(t, err)
	require.Len(t, proofs, 1)
	assert.Equal(t, guest.Cycles(10), proofs[0].Cycles)

	require.NoError(t, verifier.Verify(ctx, r.program, r.plat, proofs, r.publicIO, math.MaxUint64))
}

func TestScenarioB(t *testing.T) {
	ctx := context.Background()
	r := newRun(t, 10000)
	prover, verifier := newPair(t, commitmentBackend(t))

	assert.Equal(t, uint32(5721), guest.Fib(10000))

	proofs, err := prover.GenerateProofs(ctx, r.program, r.plat, r.hints, r.publicIO, DefaultMaxCyclesPerShard, math.MaxUint64)
	require.NoError(t, err)
	require.Len(t, proofs, 1)

	require.NoError(t, verifier.Verify(ctx, r.program, r.plat, proofs, r.publicIO, math.MaxUint64))
}

func TestScenarioC(t *testing.T) {
	ctx := context.Background()
	r := newRun(t, 10)
	prover, verifier := newPair(t, commitmentBackend(t))

	proofs, err := prover.GenerateProofs(ctx, r.program, r.plat, r.hints, r.publicIO, DefaultMaxCyclesPerShard, math.MaxUint64)
	require.NoError(t, err)

	corrupted := encodeU32s(t, true, 10, guest.Fib(10)+1)
	err = verifier.Verify(ctx, r.program, r.plat, proofs, corrupted, math.MaxUint64)
	assert.True(t, errors.Is(err, core.ErrPublicIOMismatch), "got %v", err)
}

func TestScenarioD(t *testing.T) {
	ctx := context.Background()
	r := newRun(t, 10)
	prover, _ := newPair(t, commitmentBackend(t))

	proofs, err := prover.GenerateProofs(ctx, r.program, r.plat, r.hints, r.publicIO, DefaultMaxCyclesPerShard, guest.Cycles(10)-1)
	assert.True(t, errors.Is(err, core.ErrCycleLimitExceeded), "got %v", err)
	assert.Nil(t, proofs)

	proofs, err = prover.GenerateProofs(ctx, r.program, r.plat, r.hints, r.publicIO, DefaultMaxCyclesPerShard, guest.Cycles(10))
	require.NoError(t, err)
	assert.Len(t, proofs, 1)
}

func TestMultiShard(t *testing.T) {
	ctx := context.Background()
	r := newRun(t, 100) // 1814 cycles
	prover, verifier := newPair(t, commitmentBackend(t), WithWorkers(4))

	for _, bound := range []uint64{1, 7, 64, 1000, 1814, 1815} {
		proofs, err := prover.GenerateProofs(ctx, r.program, r.plat, r.hints, r.publicIO, bound, math.MaxUint64)
		require.NoError(t, err, "bound %d", bound)
		require.Len(t, proofs, int((guest.Cycles(100)+bound-1)/bound), "bound %d", bound)

		for i, p := range proofs {
			assert.Equal(t, uint32(i), p.ShardIndex)
			assert.LessOrEqual(t, p.Cycles, bound)
		}
		require.NoError(t, verifier.Verify(ctx, r.program, r.plat, proofs, r.publicIO, math.MaxUint64), "bound %d", bound)
	}
}

func TestShardBoundariesDeterministic(t *testing.T) {
	ctx := context.Background()
	r := newRun(t, 20)
	prover, _ := newPair(t, commitmentBackend(t), WithWorkers(3))

	first, err := prover.GenerateProofs(ctx, r.program, r.plat, r.hints, r.publicIO, 50, math.MaxUint64)
	require.NoError(t, err)
	second, err := prover.GenerateProofs(ctx, r.program, r.plat, r.hints, r.publicIO, 50, math.MaxUint64)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].StartCycle, second[i].StartCycle)
		assert.Equal(t, first[i].Cycles, second[i].Cycles)
		assert.Equal(t, first[i].EndState, second[i].EndState)
		assert.Equal(t, first[i].Binding, second[i].Binding)
	}
}

func TestProofOrderUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	r := newRun(t, 10)

	stub := protocolstest.NewStubBackend()
	stub.BeforeProve = func(ctx context.Context, index int) error {
		// Earlier shards finish last.
		select {
		case <-time.After(time.Duration(8-index) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	prover, verifier := newPair(t, stub, WithWorkers(8))

	proofs, err := prover.GenerateProofs(ctx, r.program, r.plat, r.hints, r.publicIO, 25, math.MaxUint64)
	require.NoError(t, err)
	require.Len(t, proofs, 8) // 194 cycles

	for i, p := range proofs {
		assert.Equal(t, uint32(i), p.ShardIndex)
		assert.Equal(t, uint64(i)*25, p.StartCycle)
	}
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, stub.Proved())
	require.NoError(t, verifier.Verify(ctx, r.program, r.plat, proofs, r.publicIO, math.MaxUint64))
}

func TestZeroCycleGuest(t *testing.T) {
	ctx := context.Background()
	program, err := vm.Assemble("halt")
	require.NoError(t, err)
	plat, err := platform.Configure(platform.PresetStandard, program, 4096, 4096, 512)
	require.NoError(t, err)

	prover, verifier := newPair(t, commitmentBackend(t))
	proofs, err := prover.GenerateProofs(ctx, program, plat, nil, nil, 8, math.MaxUint64)
	require.NoError(t, err)
	require.Len(t, proofs, 1)
	assert.Zero(t, proofs[0].Cycles)
	assert.True(t, proofs[0].Halted)

	require.NoError(t, verifier.Verify(ctx, program, plat, proofs, nil, 0))
}

func TestGenerateProofsErrors(t *testing.T) {
	ctx := context.Background()
	r := newRun(t, 10)
	prover, _ := newPair(t, commitmentBackend(t))

	t.Run("zero bound", func(t *testing.T) {
		proofs, err := prover.GenerateProofs(ctx, r.program, r.plat, r.hints, r.publicIO, 0, math.MaxUint64)
		assert.True(t, errors.Is(err, core.ErrInvalidInput))
		assert.Nil(t, proofs)
	})

	t.Run("declared output differs", func(t *testing.T) {
		wrong := encodeU32s(t, true, 10, 56)
		proofs, err := prover.GenerateProofs(ctx, r.program, r.plat, r.hints, wrong, DefaultMaxCyclesPerShard, math.MaxUint64)
		assert.True(t, errors.Is(err, core.ErrPublicIOMismatch))
		assert.Nil(t, proofs)
	})

	t.Run("missing hint", func(t *testing.T) {
		proofs, err := prover.GenerateProofs(ctx, r.program, r.plat, nil, r.publicIO, DefaultMaxCyclesPerShard, math.MaxUint64)
		assert.True(t, errors.Is(err, core.ErrExecution))
		assert.Nil(t, proofs)
	})

	t.Run("public io region too small", func(t *testing.T) {
		plat, err := platform.Configure(platform.PresetStandard, r.program, 4096, 4096, 8)
		require.NoError(t, err)
		proofs, err := prover.GenerateProofs(ctx, r.program, plat, r.hints, r.publicIO, DefaultMaxCyclesPerShard, math.MaxUint64)
		assert.True(t, errors.Is(err, core.ErrExecution))
		assert.True(t, errors.Is(err, core.ErrSerialize))
		assert.Nil(t, proofs)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		proofs, err := prover.GenerateProofs(cctx, r.program, r.plat, r.hints, r.publicIO, DefaultMaxCyclesPerShard, math.MaxUint64)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, proofs)
	})

	t.Run("nil program", func(t *testing.T) {
		_, err := prover.GenerateProofs(ctx, nil, r.plat, r.hints, r.publicIO, DefaultMaxCyclesPerShard, math.MaxUint64)
		assert.True(t, errors.Is(err, core.ErrInvalidInput))
	})
}

func TestBackendFailureDiscardsProofs(t *testing.T) {
	ctx := context.Background()
	r := newRun(t, 10)

	boom := core.NewError(core.CodeInvalidProof, "backend failure")
	stub := protocolstest.NewStubBackend()
	stub.BeforeProve = func(_ context.Context, index int) error {
		if index == 2 {
			return boom
		}
		return nil
	}
	prover, _ := newPair(t, stub, WithWorkers(2))

	proofs, err := prover.GenerateProofs(ctx, r.program, r.plat, r.hints, r.publicIO, 50, math.MaxUint64)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, proofs)
}

func TestVerifyRejects(t *testing.T) {
	ctx := context.Background()
	r := newRun(t, 10)
	prover, verifier := newPair(t, commitmentBackend(t))

	proofs, err := prover.GenerateProofs(ctx, r.program, r.plat, r.hints, r.publicIO, 40, math.MaxUint64)
	require.NoError(t, err)
	require.Len(t, proofs, 5) // 194 cycles

	clone := func() []*protocols.ShardProof {
		out := make([]*protocols.ShardProof, len(proofs))
		for i, p := range proofs {
			out[i] = p.Clone()
		}
		return out
	}

	tests := []struct {
		name   string
		proofs func() []*protocols.ShardProof
		want   error
	}{
		{"empty", func() []*protocols.ShardProof { return nil }, core.ErrProofGap},
		{"drop first", func() []*protocols.ShardProof { return clone()[1:] }, core.ErrProofGap},
		{"drop middle", func() []*protocols.ShardProof {
			ps := clone()
			return slices.Delete(ps, 2, 3)
		}, core.ErrProofGap},
		{"drop last", func() []*protocols.ShardProof { return clone()[:4] }, core.ErrProofGap},
		{"swap", func() []*protocols.ShardProof {
			ps := clone()
			ps[1], ps[2] = ps[2], ps[1]
			return ps
		}, core.ErrProofGap},
		{"duplicate", func() []*protocols.ShardProof {
			ps := clone()
			ps[2] = ps[1]
			return ps
		}, core.ErrProofGap},
		{"nil entry", func() []*protocols.ShardProof {
			ps := clone()
			ps[3] = nil
			return ps
		}, core.ErrProofGap},
		{"broken chain", func() []*protocols.ShardProof {
			ps := clone()
			ps[1].EndState[0] ^= 1
			return ps
		}, core.ErrProofGap},
		{"forged end state", func() []*protocols.ShardProof {
			ps := clone()
			ps[1].EndState[0] ^= 1
			ps[2].StartState[0] ^= 1
			return ps
		}, core.ErrInvalidProof},
		{"flipped output", func() []*protocols.ShardProof {
			ps := clone()
			ps[4].PublicIO[8]++
			return ps
		}, core.ErrInvalidProof},
		{"early halt", func() []*protocols.ShardProof {
			ps := clone()
			ps[0].Halted = true
			return ps
		}, core.ErrProofGap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifier.Verify(ctx, r.program, r.plat, tt.proofs(), r.publicIO, math.MaxUint64)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	t.Run("cycle overrun", func(t *testing.T) {
		err := verifier.Verify(ctx, r.program, r.plat, proofs, r.publicIO, guest.Cycles(10)-1)
		assert.True(t, errors.Is(err, core.ErrCycleOverrun), "got %v", err)
		assert.NoError(t, verifier.Verify(ctx, r.program, r.plat, proofs, r.publicIO, guest.Cycles(10)))
	})

	t.Run("other platform", func(t *testing.T) {
		other, err := platform.Configure(platform.PresetHighStack, r.program, 128<<20, 128<<20, 512)
		require.NoError(t, err)
		err = verifier.Verify(ctx, r.program, other, proofs, r.publicIO, math.MaxUint64)
		assert.True(t, errors.Is(err, core.ErrInvalidProof), "platform is bound into the key: %v", err)
	})

	t.Run("original still verifies", func(t *testing.T) {
		assert.NoError(t, verifier.Verify(ctx, r.program, r.plat, proofs, r.publicIO, math.MaxUint64))
	})
}

func TestVerifierReusesKeys(t *testing.T) {
	ctx := context.Background()
	r := newRun(t, 10)
	stub := protocolstest.NewStubBackend()
	prover, verifier := newPair(t, stub)

	proofs, err := prover.GenerateProofs(ctx, r.program, r.plat, r.hints, r.publicIO, 64, math.MaxUint64)
	require.NoError(t, err)
	for range 3 {
		require.NoError(t, verifier.Verify(ctx, r.program, r.plat, proofs, r.publicIO, math.MaxUint64))
	}
	assert.Equal(t, 2, stub.Setups(), "one setup each for prover and verifier")
}

func TestOptionsValidate(t *testing.T) {
	stub := protocolstest.NewStubBackend()

	_, err := NewShardedProver(stub, WithWorkers(0))
	assert.True(t, errors.Is(err, core.ErrConfig))

	_, err = NewVerifier(stub, WithEncoding(codec.Encoding{Version: 9, WordSize: 4}))
	assert.True(t, errors.Is(err, core.ErrSerialize))

	_, err = NewShardedProver(nil)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestWideEncoding(t *testing.T) {
	ctx := context.Background()
	enc := codec.Encoding{Version: codec.Version1, WordSize: 8}
	r := newRun(t, 10)

	hints, err := codec.NewStream(enc, 0)
	require.NoError(t, err)
	require.NoError(t, hints.WriteU32(10))
	publicIO, err := codec.NewStream(enc, 512)
	require.NoError(t, err)
	require.NoError(t, publicIO.WriteU32s(guest.Statement(10)))

	prover, verifier := newPair(t, commitmentBackend(t), WithEncoding(enc))
	proofs, err := prover.GenerateProofs(ctx, r.program, r.plat, hints.Finalize(), publicIO.Finalize(), DefaultMaxCyclesPerShard, math.MaxUint64)
	require.NoError(t, err)
	require.NoError(t, verifier.Verify(ctx, r.program, r.plat, proofs, publicIO.Finalize(), math.MaxUint64))
}
