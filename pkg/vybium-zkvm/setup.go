package vybiumzkvm

import (
	"context"
	"os"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/platform"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/vm"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/workspace"
)

// Environment is a loaded guest together with the platform it runs under
type Environment struct {
	Root         Root
	ArtifactPath string
	Program      *Program
	Platform     *Platform
}

// Setup resolves the workspace root, loads the compiled guest from its
// artifact path and configures its platform. A root pinned in cfg wins over
// discovery; a nil resolver discovers through the running process.
func Setup(ctx context.Context, cfg *Config, resolver *Resolver) (*Environment, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, core.WrapError(core.CodeConfig, err, "setup")
	}

	root, err := ResolveRoot(ctx, cfg, resolver)
	if err != nil {
		return nil, err
	}

	path := workspace.ArtifactPath(root, workspace.GuestArtifact{
		Dir:    cfg.Guest.Dir,
		Target: cfg.Guest.Target,
		Name:   cfg.Guest.Name,
	})
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, core.WrapError(core.CodeLoad, err, "read guest artifact")
	}

	program, err := vm.LoadProgram(image, cfg.Platform.MaxOffset)
	if err != nil {
		return nil, err
	}

	plat, err := ConfigurePlatform(cfg, program)
	if err != nil {
		return nil, err
	}

	return &Environment{Root: root, ArtifactPath: path, Program: program, Platform: plat}, nil
}

// ResolveRoot returns the workspace root pinned in cfg, or discovers one
func ResolveRoot(ctx context.Context, cfg *Config, resolver *Resolver) (Root, error) {
	if cfg != nil && cfg.Workspace.Root != "" {
		return Root{Path: cfg.Workspace.Root, Source: workspace.SourceConfig}, nil
	}
	if resolver == nil {
		resolver = workspace.NewResolver(nil)
	}
	return resolver.Discover(ctx)
}

// ConfigurePlatform lays out the platform cfg describes for program
func ConfigurePlatform(cfg *Config, program *Program) (*Platform, error) {
	preset, err := platform.ParsePreset(cfg.Platform.Preset)
	if err != nil {
		return nil, err
	}
	return platform.Configure(preset, program,
		cfg.Platform.StackSize, cfg.Platform.HeapSize, cfg.Platform.PublicIOSize)
}
