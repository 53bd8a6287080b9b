package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	vybiumzkvm "github.com/vybium/vybium-zkvm/pkg/vybium-zkvm"
)

var fProofOut string

var proveCmd = &cobra.Command{
	Use:   "prove",
	Short: "prove fib(n) and write the proof bundle",
	RunE:  prove,
}

func init() {
	proveCmd.Flags().Uint32Var(&fN, "n", 10000, "Fibonacci index")
	proveCmd.Flags().StringVar(&fProofOut, "out", "fib.proof", "proof bundle output path")
}

func prove(cmd *cobra.Command, args []string) error {
	env, host, err := setupHost(cmd)
	if err != nil {
		return err
	}

	hints, publicIO, err := fibInputs(host, env, fN)
	if err != nil {
		return err
	}

	proofs, err := host.GenerateProofs(cmd.Context(), env.Program, env.Platform, hints, publicIO,
		cfg.Prover.MaxCyclesPerShard, cfg.Prover.CycleLimit)
	if err != nil {
		return err
	}

	bundle, err := host.Bundle(env.Program, env.Platform, proofs)
	if err != nil {
		return err
	}
	if err := vybiumzkvm.WriteBundle(fProofOut, bundle); err != nil {
		return err
	}

	logger.Info("proof bundle written",
		zap.String("path", fProofOut),
		zap.Int("shards", len(proofs)),
		zap.Uint64("cycles", bundle.Claim.Cycles),
	)
	return nil
}
