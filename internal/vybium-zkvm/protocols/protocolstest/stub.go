// Package protocolstest provides a deterministic backend for exercising
// proof orchestration without a real proving system.
package protocolstest

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/codec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/platform"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/protocols"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/vm"
)

// StubBackend produces fake proofs whose binding is a hash of the proof
// header. Hooks let tests delay or fail individual shards.
type StubBackend struct {
	// BeforeProve runs before each shard is proved; an error aborts it
	BeforeProve func(ctx context.Context, index int) error

	setups atomic.Int64

	mu     sync.Mutex
	proved []int
}

// NewStubBackend creates a stub backend
func NewStubBackend() *StubBackend {
	return &StubBackend{}
}

// Setup derives a real key with fixed parameters
func (s *StubBackend) Setup(program *vm.Program, plat *platform.Platform, enc codec.Encoding) (*protocols.VerifyingKey, error) {
	s.setups.Add(1)
	return protocols.DeriveKey(program, plat, enc, protocols.Params{Queries: 1, Seed: []byte("stub")})
}

// ProveShard returns a proof carrying the shard header and a fake binding
func (s *StubBackend) ProveShard(ctx context.Context, vk *protocols.VerifyingKey, shard *protocols.Shard) (*protocols.ShardProof, error) {
	if s.BeforeProve != nil {
		if err := s.BeforeProve(ctx, shard.Index); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.proved = append(s.proved, shard.Index)
	s.mu.Unlock()

	p := &protocols.ShardProof{
		Version:    protocols.CurrentVersion,
		ShardIndex: uint32(shard.Index),
		ShardCount: uint32(shard.Count),
		StartCycle: shard.StartCycle,
		Cycles:     shard.Cycles(),
		StartState: shard.StartState,
		EndState:   shard.EndState,
		Halted:     shard.Halted,
		PublicIO:   append([]byte(nil), shard.PublicIO...),
	}
	p.Binding = binding(vk, p)
	return p, nil
}

// VerifyShard recomputes the binding
func (s *StubBackend) VerifyShard(_ context.Context, vk *protocols.VerifyingKey, proof *protocols.ShardProof) error {
	if !bytes.Equal(binding(vk, proof), proof.Binding) {
		return core.NewError(core.CodeInvalidProof, "stub binding mismatch on shard %d", proof.ShardIndex)
	}
	return nil
}

// Setups returns how many times Setup ran
func (s *StubBackend) Setups() int {
	return int(s.setups.Load())
}

// Proved returns the shard indices proved so far, in completion order
func (s *StubBackend) Proved() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.proved...)
}

func binding(vk *protocols.VerifyingKey, p *protocols.ShardProof) []byte {
	var header [4 + 4 + 8 + 8 + 1]byte
	binary.LittleEndian.PutUint32(header[0:], p.ShardIndex)
	binary.LittleEndian.PutUint32(header[4:], p.ShardCount)
	binary.LittleEndian.PutUint64(header[8:], p.StartCycle)
	binary.LittleEndian.PutUint64(header[16:], p.Cycles)
	if p.Halted {
		header[24] = 1
	}
	d := core.HashBytes("vybium-zkvm/stub",
		vk.Digest().Bytes(), header[:], p.StartState.Bytes(), p.EndState.Bytes(), p.PublicIO)
	return d.Bytes()
}
