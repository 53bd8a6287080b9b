package protocols

import (
	"encoding/binary"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/codec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/platform"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/vm"
)

// Params tunes a backend
type Params struct {
	// Queries is the number of trace rows opened per shard
	Queries int

	// Seed is mixed into every key; provers and verifiers must agree on it
	Seed []byte
}

// DefaultParams returns the reference parameters
func DefaultParams() Params {
	return Params{Queries: 8, Seed: []byte("vybium-zkvm")}
}

// Validate checks the parameters
func (p Params) Validate() error {
	if p.Queries <= 0 {
		return core.NewError(core.CodeConfig, "queries must be positive, got %d", p.Queries)
	}
	if len(p.Seed) == 0 {
		return core.NewError(core.CodeConfig, "seed must not be empty")
	}
	return nil
}

// VerifyingKey binds proofs to one (program, platform, encoding) triple. It
// is derived deterministically, so the prover and the verifier reconstruct
// the same key independently.
type VerifyingKey struct {
	ProgramDigest  core.Digest
	PlatformDigest core.Digest
	Encoding       codec.Encoding

	// InitialState is the digest of the machine before the first cycle
	InitialState core.Digest

	Queries int
	Seed    []byte
}

// DeriveKey computes the verifying key for program on plat
func DeriveKey(program *vm.Program, plat *platform.Platform, enc codec.Encoding, params Params) (*VerifyingKey, error) {
	if program == nil || plat == nil {
		return nil, core.NewError(core.CodeInvalidInput, "program and platform are required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	initial, err := vm.InitialStateDigest(program, plat, enc)
	if err != nil {
		return nil, err
	}
	return &VerifyingKey{
		ProgramDigest:  program.Digest(),
		PlatformDigest: plat.Digest(),
		Encoding:       enc,
		InitialState:   initial,
		Queries:        params.Queries,
		Seed:           append([]byte(nil), params.Seed...),
	}, nil
}

// Digest commits to every field of the key
func (vk *VerifyingKey) Digest() core.Digest {
	encoding, _ := vk.Encoding.MarshalBinary()
	var queries [8]byte
	binary.LittleEndian.PutUint64(queries[:], uint64(vk.Queries))
	return core.HashBytes("vybium-zkvm/verifying-key",
		vk.ProgramDigest.Bytes(),
		vk.PlatformDigest.Bytes(),
		encoding,
		vk.InitialState.Bytes(),
		queries[:],
		vk.Seed,
	)
}

// KeyID identifies the key slot of a (program, platform, encoding) triple
func KeyID(program *vm.Program, plat *platform.Platform, enc codec.Encoding) core.Digest {
	encoding, _ := enc.MarshalBinary()
	return core.HashBytes("vybium-zkvm/key-id",
		program.Digest().Bytes(), plat.Digest().Bytes(), encoding)
}

// KeyCache memoizes backend setup per (program, platform, encoding)
type KeyCache struct {
	backend Backend
	cache   *lru.Cache[core.Digest, *VerifyingKey]
}

// NewKeyCache creates a cache of at most size keys in front of backend
func NewKeyCache(backend Backend, size int) (*KeyCache, error) {
	if backend == nil {
		return nil, core.NewError(core.CodeInvalidInput, "backend is required")
	}
	cache, err := lru.New[core.Digest, *VerifyingKey](size)
	if err != nil {
		return nil, core.WrapError(core.CodeConfig, err, "key cache")
	}
	return &KeyCache{backend: backend, cache: cache}, nil
}

// Key returns the cached key for the triple, running backend setup on a miss
func (kc *KeyCache) Key(program *vm.Program, plat *platform.Platform, enc codec.Encoding) (*VerifyingKey, error) {
	if program == nil || plat == nil {
		return nil, core.NewError(core.CodeInvalidInput, "program and platform are required")
	}
	id := KeyID(program, plat, enc)
	if vk, ok := kc.cache.Get(id); ok {
		return vk, nil
	}
	vk, err := kc.backend.Setup(program, plat, enc)
	if err != nil {
		return nil, err
	}
	kc.cache.Add(id, vk)
	return vk, nil
}

// Len returns the number of cached keys
func (kc *KeyCache) Len() int {
	return kc.cache.Len()
}
