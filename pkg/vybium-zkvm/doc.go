// Package vybiumzkvm proves and verifies guest programs on the Vybium zkVM.
//
// A host loads a compiled guest, lays out its memory, serializes private
// hints and the public statement it expects the guest to commit, and runs
// the guest in shards of bounded cycle count. Each shard yields one proof;
// the ordered proof set is later verified against the same program, platform
// and statement.
//
// # Quick Start
//
// Resolving the workspace and loading the guest:
//
//	cfg := vybiumzkvm.DefaultConfig()
//	env, err := vybiumzkvm.Setup(ctx, cfg, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Serializing inputs and proving:
//
//	host, err := vybiumzkvm.NewHostFromConfig(cfg, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	hints, _ := host.NewHintStream()
//	_ = hints.WriteU32(10)
//
//	publicIO, _ := host.NewPublicIOStream(env.Platform)
//	_ = publicIO.WriteU32s([]uint32{10, 55})
//
//	proofs, err := host.GenerateProofs(ctx, env.Program, env.Platform,
//		hints.Finalize(), publicIO.Finalize(), cfg.Prover.MaxCyclesPerShard, cfg.Prover.CycleLimit)
//
// Verifying:
//
//	err = host.Verify(ctx, env.Program, env.Platform, proofs, expected, cfg.Prover.CycleLimit)
//	if errors.Is(err, vybiumzkvm.ErrPublicIOMismatch) {
//		// the proofs attest to a different statement
//	}
//
// # Architecture
//
// - pkg/vybium-zkvm/: Public API (this package)
// - internal/vybium-zkvm/: Private implementation (not importable)
//
// Every failure is classified by one of the exported sentinel errors and can
// be tested with errors.Is.
package vybiumzkvm
