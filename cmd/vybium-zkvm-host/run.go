package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/guest"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/pipeline"
	vybiumzkvm "github.com/vybium/vybium-zkvm/pkg/vybium-zkvm"
)

var (
	fN              uint32
	fExpectedProofs int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "prove that fib(n) is what the guest commits, then verify the proofs",
	RunE:  run,
}

func init() {
	runCmd.Flags().Uint32Var(&fN, "n", 10000, "Fibonacci index")
	runCmd.Flags().IntVar(&fExpectedProofs, "expect-proofs", 0, "fail unless exactly this many shard proofs are produced (0 disables)")
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, host, err := setupHost(cmd)
	if err != nil {
		return err
	}

	hints, publicIO, err := fibInputs(host, env, fN)
	if err != nil {
		return err
	}

	proofs, err := host.GenerateProofs(ctx, env.Program, env.Platform, hints, publicIO,
		cfg.Prover.MaxCyclesPerShard, cfg.Prover.CycleLimit)
	if err != nil {
		return err
	}
	logger.Info("proofs generated",
		zap.Uint32("n", fN),
		zap.Uint32("fib", guest.Fib(fN)),
		zap.Int("shards", len(proofs)),
	)

	want := fExpectedProofs
	if want == 0 && cfg.Prover.MaxCyclesPerShard == pipeline.DefaultMaxCyclesPerShard {
		want = 1
	}
	if want != 0 && len(proofs) != want {
		return core.NewError(core.CodeProofGap, "expected %d proofs, got %d", want, len(proofs))
	}

	if err := host.Verify(ctx, env.Program, env.Platform, proofs, publicIO, cfg.Prover.CycleLimit); err != nil {
		return err
	}
	logger.Info("proofs verified")
	return nil
}

// setupHost logs the platform sizes, resolves the workspace, loads the guest
// and builds a host from the configuration
func setupHost(cmd *cobra.Command) (*vybiumzkvm.Environment, *vybiumzkvm.Host, error) {
	logger.Info("platform sizes",
		zap.String("stack_size", hex(cfg.Platform.StackSize)),
		zap.String("heap_size", hex(cfg.Platform.HeapSize)),
		zap.String("pub_io_size", hex(cfg.Platform.PublicIOSize)),
	)

	env, err := vybiumzkvm.Setup(cmd.Context(), cfg, vybiumzkvm.NewResolver(logger))
	if err != nil {
		return nil, nil, err
	}
	logger.Info("guest loaded",
		zap.String("root", env.Root.Path),
		zap.String("source", string(env.Root.Source)),
		zap.String("artifact", env.ArtifactPath),
		zap.Stringer("platform", env.Platform),
	)

	host, err := vybiumzkvm.NewHostFromConfig(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return env, host, nil
}

// fibInputs serializes the hint n and the expected statement [n, fib(n)]
func fibInputs(host *vybiumzkvm.Host, env *vybiumzkvm.Environment, n uint32) (hints, publicIO []byte, err error) {
	h, err := host.NewHintStream()
	if err != nil {
		return nil, nil, err
	}
	if err := h.WriteU32(n); err != nil {
		return nil, nil, err
	}

	p, err := host.NewPublicIOStream(env.Platform)
	if err != nil {
		return nil, nil, err
	}
	if err := p.WriteU32s(guest.Statement(n)); err != nil {
		return nil, nil, err
	}

	return h.Finalize(), p.Finalize(), nil
}

func hex(v uint32) string {
	return fmt.Sprintf("%#x", v)
}
