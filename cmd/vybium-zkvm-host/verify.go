package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	vybiumzkvm "github.com/vybium/vybium-zkvm/pkg/vybium-zkvm"
)

var fProofIn string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "verify a proof bundle against the statement [n, fib(n)]",
	RunE:  verify,
}

func init() {
	verifyCmd.Flags().Uint32Var(&fN, "n", 10000, "Fibonacci index")
	verifyCmd.Flags().StringVar(&fProofIn, "in", "fib.proof", "proof bundle path")
}

func verify(cmd *cobra.Command, args []string) error {
	env, host, err := setupHost(cmd)
	if err != nil {
		return err
	}

	bundle, err := vybiumzkvm.ReadBundle(fProofIn)
	if err != nil {
		return err
	}
	if err := bundle.Check(env.Program, env.Platform); err != nil {
		return err
	}

	_, expected, err := fibInputs(host, env, fN)
	if err != nil {
		return err
	}

	if err := host.Verify(cmd.Context(), env.Program, env.Platform, bundle.Proofs, expected, cfg.Prover.CycleLimit); err != nil {
		return err
	}

	logger.Info("proof bundle verified",
		zap.String("path", fProofIn),
		zap.Int("shards", len(bundle.Proofs)),
	)
	return nil
}
