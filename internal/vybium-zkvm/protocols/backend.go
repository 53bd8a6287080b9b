package protocols

import (
	"context"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/codec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/platform"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/vm"
)

// Backend is a proving system for single shards.
//
// Setup must be deterministic in its inputs so that a verifier can rebuild
// the key the prover used. ProveShard and VerifyShard may be called
// concurrently for different shards under the same key.
type Backend interface {
	Setup(program *vm.Program, plat *platform.Platform, enc codec.Encoding) (*VerifyingKey, error)
	ProveShard(ctx context.Context, vk *VerifyingKey, shard *Shard) (*ShardProof, error)
	VerifyShard(ctx context.Context, vk *VerifyingKey, proof *ShardProof) error
}
