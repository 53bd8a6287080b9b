package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func hermetic(t *testing.T) *Resolver {
	return &Resolver{
		Getenv:     func(string) string { return "" },
		Query:      func(context.Context) (string, error) { return "", errors.New("no toolchain") },
		Executable: func() (string, error) { return "", errors.New("no executable") },
		Getwd:      func() (string, error) { return "/work", nil },
		Stat:       os.Stat,
		Logger:     zaptest.NewLogger(t),
	}
}

func TestDiscoverTiers(t *testing.T) {
	ctx := context.Background()

	tree := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tree, Marker), []byte("module x\n"), 0o644))
	bin := filepath.Join(tree, "bin", "nested")
	require.NoError(t, os.MkdirAll(bin, 0o755))

	withEnv := func(r *Resolver) { r.Getenv = func(k string) string { return map[string]string{RootEnv: "/from/env/"}[k] } }
	withQuery := func(r *Resolver) {
		r.Query = func(context.Context) (string, error) { return "/from/toolchain/go.mod", nil }
	}
	withExe := func(r *Resolver) {
		r.Executable = func() (string, error) { return filepath.Join(bin, "host"), nil }
	}

	tests := []struct {
		name  string
		setup []func(*Resolver)
		want  Root
	}{
		{"env wins", []func(*Resolver){withEnv, withQuery, withExe}, Root{"/from/env", SourceEnv}},
		{"toolchain next", []func(*Resolver){withQuery, withExe}, Root{"/from/toolchain", SourceToolchain}},
		{"executable walk", []func(*Resolver){withExe}, Root{tree, SourceExecutable}},
		{"working directory", nil, Root{"/work", SourceWorkingDir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := hermetic(t)
			for _, f := range tt.setup {
				f(r)
			}
			root, err := r.Discover(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, root)
		})
	}
}

func TestDiscoverSkipsEmptyTiers(t *testing.T) {
	r := hermetic(t)
	r.Getenv = func(string) string { return "   " }
	r.Query = func(context.Context) (string, error) { return os.DevNull, nil }
	r.Executable = func() (string, error) { return filepath.Join(t.TempDir(), "host"), nil }

	root, err := r.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceWorkingDir, root.Source)
}

func TestDiscoverWorkingDirFailure(t *testing.T) {
	r := hermetic(t)
	r.Getwd = func() (string, error) { return "", errors.New("gone") }
	_, err := r.Discover(context.Background())
	assert.Error(t, err)

	_, err = (&Resolver{}).Discover(context.Background())
	assert.Error(t, err)
}

func TestArtifactPath(t *testing.T) {
	got := ArtifactPath(Root{Path: "/ws"}, GuestArtifact{Dir: "program", Target: "vybium-zkvm-guest", Name: "fib-guest"})
	assert.Equal(t, filepath.Join("/ws", "program", "target", "vybium-zkvm-guest", "release", "fib-guest"), got)
}

func TestNewResolverUsesProcess(t *testing.T) {
	t.Setenv(RootEnv, t.TempDir())
	root, err := NewResolver(nil).Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceEnv, root.Source)
	assert.Equal(t, os.Getenv(RootEnv), root.Path)
}
