package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/guest"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/vm"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/workspace"
	vybiumzkvm "github.com/vybium/vybium-zkvm/pkg/vybium-zkvm"
)

var fSource string

var buildGuestCmd = &cobra.Command{
	Use:   "build-guest",
	Short: "assemble the guest and write its image to the artifact path",
	RunE:  buildGuest,
}

func init() {
	buildGuestCmd.Flags().StringVar(&fSource, "source", "", "assembly source to build instead of the bundled Fibonacci guest")
}

func buildGuest(cmd *cobra.Command, args []string) error {
	src := guest.Source()
	if fSource != "" {
		data, err := os.ReadFile(fSource)
		if err != nil {
			return errors.Wrap(err, "read guest source")
		}
		src = string(data)
	}

	program, err := vm.Assemble(src)
	if err != nil {
		return err
	}

	root, err := vybiumzkvm.ResolveRoot(cmd.Context(), cfg, vybiumzkvm.NewResolver(logger))
	if err != nil {
		return err
	}
	path := workspace.ArtifactPath(root, workspace.GuestArtifact{
		Dir:    cfg.Guest.Dir,
		Target: cfg.Guest.Target,
		Name:   cfg.Guest.Name,
	})

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create artifact directory")
	}
	if err := os.WriteFile(path, vm.EncodeImage(program), 0o644); err != nil {
		return errors.Wrap(err, "write guest artifact")
	}

	logger.Info("guest built",
		zap.String("path", path),
		zap.Int("words", program.Len()),
		zap.String("digest", program.Digest().String()),
	)
	return nil
}
