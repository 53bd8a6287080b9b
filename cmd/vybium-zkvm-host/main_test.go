package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vybiumzkvm "github.com/vybium/vybium-zkvm/pkg/vybium-zkvm"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	fConfigPath, fDebug, fMetricsAddr, fRoot = "", false, "", ""
	fN, fProofIn, fProofOut, fExpectedProofs, fSource = 10000, "fib.proof", "fib.proof", 0, ""
	rootCmd.SetArgs(args)
	return executeRoot()
}

func TestBuildProveVerify(t *testing.T) {
	root := t.TempDir()
	proof := filepath.Join(t.TempDir(), "fib.proof")

	require.NoError(t, execute(t, "build-guest", "--root", root))
	_, err := os.Stat(filepath.Join(root, "program", "target", "vybium-zkvm-guest", "release", "fib-guest"))
	require.NoError(t, err)

	require.NoError(t, execute(t, "run", "--root", root, "--n", "10"))
	require.NoError(t, execute(t, "prove", "--root", root, "--n", "10", "--out", proof))
	require.NoError(t, execute(t, "verify", "--root", root, "--n", "10", "--in", proof))

	assert.Error(t, execute(t, "verify", "--root", root, "--n", "11", "--in", proof))
}

func TestRunWithConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, execute(t, "build-guest", "--root", root))

	config := filepath.Join(t.TempDir(), "host.yaml")
	require.NoError(t, os.WriteFile(config, []byte(`
workspace:
  root: `+root+`
prover:
  maxCyclesPerShard: 64
  workers: 2
`), 0o644))

	require.NoError(t, execute(t, "run", "--config", config, "--n", "10", "--expect-proofs", "4"))
	assert.Error(t, execute(t, "run", "--config", config, "--n", "10", "--expect-proofs", "1"))
}

func TestVerifyRejectsForgedBundleClaim(t *testing.T) {
	root := t.TempDir()
	proof := filepath.Join(t.TempDir(), "fib.proof")

	require.NoError(t, execute(t, "build-guest", "--root", root))
	require.NoError(t, execute(t, "prove", "--root", root, "--n", "10", "--out", proof))

	bundle, err := vybiumzkvm.ReadBundle(proof)
	require.NoError(t, err)
	bundle.Claim.Cycles++
	require.NoError(t, vybiumzkvm.WriteBundle(proof, bundle))

	err = execute(t, "verify", "--root", root, "--n", "10", "--in", proof)
	assert.True(t, errors.Is(err, vybiumzkvm.ErrInvalidProof), "got %v", err)
}

func TestCleanupRunsWhenCommandFails(t *testing.T) {
	root := t.TempDir()
	missing := filepath.Join(t.TempDir(), "missing.proof")

	err := execute(t, "verify", "--root", root, "--in", missing, "--metrics-addr", "127.0.0.1:0")
	require.Error(t, err)
	assert.Nil(t, metricsServer)
}
