package protocols

import (
	"bytes"
	"context"
	"math"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/codec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/platform"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/utils"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/vm"
)

const transcriptDomain = "vybium-zkvm/shard"

// CommitmentBackend proves a shard by committing to its trace rows in a
// Merkle tree and opening rows sampled from a Fiat-Shamir transcript. The
// binding is the final transcript state, so changing any committed value
// changes the sampled rows and the binding.
//
// It is transparent: it attests to the committed trace and its chaining,
// not to the correctness of each transition.
type CommitmentBackend struct {
	params Params
}

// NewCommitmentBackend creates a backend with the given parameters
func NewCommitmentBackend(params Params) (*CommitmentBackend, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &CommitmentBackend{params: params}, nil
}

// Setup derives the verifying key
func (b *CommitmentBackend) Setup(program *vm.Program, plat *platform.Platform, enc codec.Encoding) (*VerifyingKey, error) {
	return DeriveKey(program, plat, enc, b.params)
}

// ProveShard commits to the shard's rows and opens the sampled ones
func (b *CommitmentBackend) ProveShard(ctx context.Context, vk *VerifyingKey, shard *Shard) (*ShardProof, error) {
	if vk == nil || shard == nil {
		return nil, core.NewError(core.CodeInvalidInput, "key and shard are required")
	}
	if shard.Index < 0 || shard.Index >= shard.Count {
		return nil, core.NewError(core.CodeInvalidInput, "shard index %d outside [0, %d)", shard.Index, shard.Count)
	}

	leaves := make([][]byte, len(shard.Rows))
	for i, row := range shard.Rows {
		if row.Clock != shard.StartCycle+uint64(i) {
			return nil, core.NewError(core.CodeInvalidInput,
				"shard %d row %d has clock %d, expected %d", shard.Index, i, row.Clock, shard.StartCycle+uint64(i))
		}
		leaves[i] = row.Bytes()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tree, err := core.NewMerkleTree(leaves)
	if err != nil {
		return nil, err
	}

	proof := &ShardProof{
		Version:    CurrentVersion,
		ShardIndex: uint32(shard.Index),
		ShardCount: uint32(shard.Count),
		StartCycle: shard.StartCycle,
		Cycles:     shard.Cycles(),
		StartState: shard.StartState,
		EndState:   shard.EndState,
		TraceRoot:  tree.Root(),
		Halted:     shard.Halted,
		PublicIO:   append([]byte(nil), shard.PublicIO...),
	}

	ch := absorb(vk, proof)
	if len(leaves) > 0 {
		proof.Openings = make([]Opening, 0, vk.Queries)
		for q := 0; q < vk.Queries; q++ {
			idx := ch.ReceiveIndex(len(leaves))
			path, err := tree.Proof(idx)
			if err != nil {
				return nil, err
			}
			proof.Openings = append(proof.Openings, Opening{Index: idx, Row: shard.Rows[idx], Path: path})
			ch.Send(leaves[idx])
		}
	}
	proof.Binding = ch.State()

	return proof, nil
}

// VerifyShard replays the transcript and checks every opening
func (b *CommitmentBackend) VerifyShard(ctx context.Context, vk *VerifyingKey, proof *ShardProof) error {
	if vk == nil || proof == nil {
		return core.NewError(core.CodeInvalidInput, "key and proof are required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if proof.Version != CurrentVersion {
		return core.NewError(core.CodeInvalidProof, "shard %d: version %d, expected %d",
			proof.ShardIndex, proof.Version, CurrentVersion)
	}
	if proof.ShardIndex >= proof.ShardCount {
		return core.NewError(core.CodeInvalidProof, "shard index %d outside count %d", proof.ShardIndex, proof.ShardCount)
	}

	if proof.Cycles > math.MaxInt32 {
		return core.NewError(core.CodeInvalidProof, "shard %d: %d cycles exceeds the shard size limit", proof.ShardIndex, proof.Cycles)
	}

	want := vk.Queries
	if proof.Cycles == 0 {
		want = 0
	}
	if len(proof.Openings) != want {
		return core.NewError(core.CodeInvalidProof, "shard %d: %d openings, expected %d",
			proof.ShardIndex, len(proof.Openings), want)
	}
	if proof.Cycles == 0 {
		empty, _ := core.MerkleRoot(nil)
		if !bytes.Equal(proof.TraceRoot, empty) {
			return core.NewError(core.CodeInvalidProof, "shard %d: empty shard with a non-empty trace root", proof.ShardIndex)
		}
	}

	ch := absorb(vk, proof)
	for q, o := range proof.Openings {
		idx := ch.ReceiveIndex(int(proof.Cycles))
		if o.Index != idx {
			return core.NewError(core.CodeInvalidProof, "shard %d: opening %d is row %d, transcript samples %d",
				proof.ShardIndex, q, o.Index, idx)
		}
		if o.Row.Clock != proof.StartCycle+uint64(idx) {
			return core.NewError(core.CodeInvalidProof, "shard %d: row %d has clock %d, expected %d",
				proof.ShardIndex, idx, o.Row.Clock, proof.StartCycle+uint64(idx))
		}
		leaf := o.Row.Bytes()
		if !core.VerifyProof(proof.TraceRoot, leaf, o.Path, idx) {
			return core.NewError(core.CodeInvalidProof, "shard %d: authentication path for row %d does not match the trace root",
				proof.ShardIndex, idx)
		}
		ch.Send(leaf)
	}

	if !bytes.Equal(ch.State(), proof.Binding) {
		return core.NewError(core.CodeInvalidProof, "shard %d: binding does not match the transcript", proof.ShardIndex)
	}
	return nil
}

// absorb seeds a transcript with the key and every committed field of proof
func absorb(vk *VerifyingKey, proof *ShardProof) *utils.Channel {
	ch := utils.NewChannel(transcriptDomain)
	ch.Send(vk.Digest().Bytes())
	ch.SendUint64(uint64(proof.Version))
	ch.SendUint64(uint64(proof.ShardIndex))
	ch.SendUint64(uint64(proof.ShardCount))
	ch.SendUint64(proof.StartCycle)
	ch.SendUint64(proof.Cycles)
	ch.Send(proof.StartState.Bytes())
	ch.Send(proof.EndState.Bytes())
	ch.Send(proof.TraceRoot)
	if proof.Halted {
		ch.Send([]byte{1})
	} else {
		ch.Send([]byte{0})
	}
	ch.SendUint64(uint64(len(proof.PublicIO)))
	ch.Send(proof.PublicIO)
	return ch
}
