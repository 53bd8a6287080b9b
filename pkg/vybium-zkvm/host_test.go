package vybiumzkvm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/guest"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/protocols/protocolstest"
)

// newWorkspace writes the compiled guest where Setup expects it and returns
// a configuration pinned to that workspace
func newWorkspace(t *testing.T) *Config {
	t.Helper()
	root := t.TempDir()
	cfg := DefaultConfig().WithWorkspaceRoot(root)

	image, err := guest.Image()
	require.NoError(t, err)

	dir := filepath.Join(root, cfg.Guest.Dir, "target", cfg.Guest.Target, "release")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, cfg.Guest.Name), image, 0o644))
	return cfg
}

func statement(t *testing.T, host *Host, env *Environment, n uint32) (hints, publicIO []byte) {
	t.Helper()
	h, err := host.NewHintStream()
	require.NoError(t, err)
	require.NoError(t, h.WriteU32(n))

	p, err := host.NewPublicIOStream(env.Platform)
	require.NoError(t, err)
	require.NoError(t, p.WriteU32s(guest.Statement(n)))

	return h.Finalize(), p.Finalize()
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := newWorkspace(t)

	env, err := Setup(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.Workspace.Root, env.Root.Path)
	assert.Equal(t, uint32(512), env.Platform.PublicIO.Size)

	host, err := NewHostFromConfig(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	hints, publicIO := statement(t, host, env, 10)
	proofs, err := host.GenerateProofs(ctx, env.Program, env.Platform, hints, publicIO,
		cfg.Prover.MaxCyclesPerShard, cfg.Prover.CycleLimit)
	require.NoError(t, err)
	require.Len(t, proofs, 1)
	require.NoError(t, host.Verify(ctx, env.Program, env.Platform, proofs, publicIO, cfg.Prover.CycleLimit))

	bundle, err := host.Bundle(env.Program, env.Platform, proofs)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "fib.proof")
	require.NoError(t, WriteBundle(path, bundle))

	// A fresh host in a fresh process shape verifies the stored proofs.
	loaded, err := ReadBundle(path)
	require.NoError(t, err)
	require.NoError(t, loaded.Check(env.Program, env.Platform))

	other, err := NewHostFromConfig(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, other.Verify(ctx, env.Program, env.Platform, loaded.Proofs, publicIO, cfg.Prover.CycleLimit))

	_, corrupted := statement(t, host, env, 11)
	err = other.Verify(ctx, env.Program, env.Platform, loaded.Proofs, corrupted, cfg.Prover.CycleLimit)
	assert.True(t, errors.Is(err, ErrPublicIOMismatch))
	assert.Equal(t, "public io mismatch", CodeOf(err).String())
}

func TestSetupErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing artifact", func(t *testing.T) {
		cfg := DefaultConfig().WithWorkspaceRoot(t.TempDir())
		_, err := Setup(ctx, cfg, nil)
		assert.True(t, errors.Is(err, ErrLoad), "got %v", err)
	})

	t.Run("corrupt artifact", func(t *testing.T) {
		cfg := newWorkspace(t)
		path := filepath.Join(cfg.Workspace.Root, cfg.Guest.Dir, "target", cfg.Guest.Target, "release", cfg.Guest.Name)
		require.NoError(t, os.WriteFile(path, []byte("ELF?"), 0o644))
		_, err := Setup(ctx, cfg, nil)
		assert.True(t, errors.Is(err, ErrLoad), "got %v", err)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := newWorkspace(t).WithPreset("sideways")
		_, err := Setup(ctx, cfg, nil)
		assert.True(t, errors.Is(err, ErrConfig), "got %v", err)
	})

	t.Run("platform does not fit", func(t *testing.T) {
		cfg := newWorkspace(t)
		cfg.Platform.StackSize = 0xF000_0000
		cfg.Platform.HeapSize = 0xF000_0000
		_, err := Setup(ctx, cfg, nil)
		assert.True(t, errors.Is(err, ErrConfig), "got %v", err)
	})
}

func TestSetupDiscoversRoot(t *testing.T) {
	cfg := newWorkspace(t)
	root := cfg.Workspace.Root
	cfg.Workspace.Root = ""

	resolver := &Resolver{
		Getenv: func(k string) string {
			if k == "WORKSPACE_ROOT" {
				return root
			}
			return ""
		},
	}
	env, err := Setup(context.Background(), cfg, resolver)
	require.NoError(t, err)
	assert.Equal(t, root, env.Root.Path)
	assert.Equal(t, "env", string(env.Root.Source))
}

func TestHostWithStubBackend(t *testing.T) {
	ctx := context.Background()
	cfg := newWorkspace(t)
	env, err := Setup(ctx, cfg, nil)
	require.NoError(t, err)

	stub := protocolstest.NewStubBackend()
	host, err := NewHost(WithBackend(stub), WithWorkers(2), WithKeyCacheSize(4))
	require.NoError(t, err)
	assert.Equal(t, DefaultEncoding, host.Encoding())

	hints, publicIO := statement(t, host, env, 50)
	proofs, err := host.GenerateProofs(ctx, env.Program, env.Platform, hints, publicIO, 100, cfg.Prover.CycleLimit)
	require.NoError(t, err)
	assert.Len(t, proofs, int((guest.Cycles(50)+99)/100))
	require.NoError(t, host.Verify(ctx, env.Program, env.Platform, proofs, publicIO, cfg.Prover.CycleLimit))

	err = host.Verify(ctx, env.Program, env.Platform, proofs[1:], publicIO, cfg.Prover.CycleLimit)
	assert.True(t, errors.Is(err, ErrProofGap))
}

func TestPublicIOStreamBound(t *testing.T) {
	cfg := newWorkspace(t)
	cfg.Platform.PublicIOSize = 8
	env, err := Setup(context.Background(), cfg, nil)
	require.NoError(t, err)

	host, err := NewHost()
	require.NoError(t, err)
	s, err := host.NewPublicIOStream(env.Platform)
	require.NoError(t, err)
	err = s.WriteU32s([]uint32{10, 55})
	assert.True(t, errors.Is(err, ErrSerialize))

	_, err = host.NewPublicIOStream(nil)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrLoad, ErrConfig, ErrSerialize, ErrCycleLimitExceeded, ErrProofGap,
		ErrPublicIOMismatch, ErrCycleOverrun, ErrInvalidProof, ErrExecution, ErrInvalidInput,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			assert.Equal(t, i == j, errors.Is(a, b), "%v vs %v", a, b)
		}
	}
}
