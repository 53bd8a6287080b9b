// Package workspace locates the workspace root that compiled guest
// artifacts live under.
package workspace

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RootEnv overrides discovery when set
const RootEnv = "WORKSPACE_ROOT"

// Marker is the file that identifies a workspace root
const Marker = "go.mod"

// Source names the tier a root was resolved from
type Source string

const (
	SourceConfig     Source = "config"
	SourceEnv        Source = "env"
	SourceToolchain  Source = "toolchain"
	SourceExecutable Source = "executable"
	SourceWorkingDir Source = "cwd"
)

// Root is a resolved workspace root
type Root struct {
	Path   string
	Source Source
}

// GuestArtifact locates a compiled guest beneath the root
type GuestArtifact struct {
	Dir    string
	Target string
	Name   string
}

// ArtifactPath returns <root>/<dir>/target/<target>/release/<name>
func ArtifactPath(root Root, g GuestArtifact) string {
	return filepath.Join(root.Path, g.Dir, "target", g.Target, "release", g.Name)
}

// Resolver discovers the workspace root. Each field can be replaced to make
// discovery hermetic; nil fields use the process environment.
type Resolver struct {
	Getenv     func(string) string
	Query      func(ctx context.Context) (string, error) // returns the path of the module's go.mod
	Executable func() (string, error)
	Getwd      func() (string, error)
	Stat       func(string) (os.FileInfo, error)

	Logger *zap.Logger
}

// NewResolver returns a resolver backed by the running process
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		Getenv:     os.Getenv,
		Query:      goEnvGOMOD,
		Executable: os.Executable,
		Getwd:      os.Getwd,
		Stat:       os.Stat,
		Logger:     logger,
	}
}

// Discover tries, in order, the RootEnv variable, the Go toolchain's module
// query, a walk up from the executable looking for Marker, and the working
// directory. The first tier that yields a root wins.
func (r *Resolver) Discover(ctx context.Context) (Root, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if r.Getenv != nil {
		if p := strings.TrimSpace(r.Getenv(RootEnv)); p != "" {
			return r.found(logger, Root{Path: filepath.Clean(p), Source: SourceEnv}), nil
		}
	}

	if r.Query != nil {
		gomod, err := r.Query(ctx)
		switch {
		case err != nil:
			logger.Debug("toolchain query failed", zap.Error(err))
		case gomod != "" && gomod != os.DevNull:
			return r.found(logger, Root{Path: filepath.Dir(gomod), Source: SourceToolchain}), nil
		}
	}

	if r.Executable != nil && r.Stat != nil {
		exe, err := r.Executable()
		if err != nil {
			logger.Debug("executable path unavailable", zap.Error(err))
		} else if dir, ok := r.walkUp(filepath.Dir(exe)); ok {
			return r.found(logger, Root{Path: dir, Source: SourceExecutable}), nil
		}
	}

	if r.Getwd != nil {
		wd, err := r.Getwd()
		if err != nil {
			return Root{}, errors.Wrap(err, "resolve workspace root")
		}
		return r.found(logger, Root{Path: wd, Source: SourceWorkingDir}), nil
	}

	return Root{}, errors.New("resolve workspace root: no discovery tier available")
}

func (r *Resolver) walkUp(dir string) (string, bool) {
	for {
		if info, err := r.Stat(filepath.Join(dir, Marker)); err == nil && !info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func (r *Resolver) found(logger *zap.Logger, root Root) Root {
	logger.Debug("workspace root resolved",
		zap.String("root", root.Path),
		zap.String("source", string(root.Source)),
	)
	return root
}

// goEnvGOMOD asks the Go toolchain for the active module's go.mod
func goEnvGOMOD(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "go", "env", "GOMOD").Output()
	if err != nil {
		return "", errors.Wrap(err, "go env GOMOD")
	}
	return strings.TrimSpace(string(out)), nil
}
