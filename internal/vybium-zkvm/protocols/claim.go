package protocols

import (
	"encoding/binary"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
)

// CurrentVersion is the version of the guest ISA and the shard proof format.
// It changes whenever either changes.
const CurrentVersion uint32 = 1

// Claim is the public statement a complete proof set attests to: the guest
// identified by ProgramDigest ran on the platform identified by
// PlatformDigest for Cycles cycles and committed PublicIO.
type Claim struct {
	ProgramDigest  core.Digest `cbor:"p"`
	PlatformDigest core.Digest `cbor:"f"`
	Version        uint32      `cbor:"v"`
	PublicIO       []byte      `cbor:"io"`
	Cycles         uint64      `cbor:"c"`
}

// NewClaim creates an empty claim for the key
func NewClaim(vk *VerifyingKey) *Claim {
	return &Claim{
		ProgramDigest:  vk.ProgramDigest,
		PlatformDigest: vk.PlatformDigest,
		Version:        CurrentVersion,
	}
}

// WithOutput sets the committed public IO
func (c *Claim) WithOutput(publicIO []byte) *Claim {
	c.PublicIO = append([]byte(nil), publicIO...)
	return c
}

// WithCycles sets the total cycle count
func (c *Claim) WithCycles(cycles uint64) *Claim {
	c.Cycles = cycles
	return c
}

// ClaimOf summarizes an ordered, complete proof set
func ClaimOf(vk *VerifyingKey, proofs []*ShardProof) *Claim {
	var cycles uint64
	for _, p := range proofs {
		if p != nil {
			cycles += p.Cycles
		}
	}
	c := NewClaim(vk).WithCycles(cycles)
	if n := len(proofs); n > 0 && proofs[n-1] != nil {
		c.WithOutput(proofs[n-1].PublicIO)
	}
	return c
}

// Validate checks that the claim is well-formed
func (c *Claim) Validate() error {
	if c.Version != CurrentVersion {
		return core.NewError(core.CodeInvalidProof, "claim version %d, expected %d", c.Version, CurrentVersion)
	}
	if c.ProgramDigest.IsZero() || c.PlatformDigest.IsZero() {
		return core.NewError(core.CodeInvalidProof, "claim is missing its program or platform digest")
	}
	return nil
}

// Hash computes a digest of the claim
func (c *Claim) Hash() core.Digest {
	var meta [12]byte
	binary.LittleEndian.PutUint32(meta[0:], c.Version)
	binary.LittleEndian.PutUint64(meta[4:], c.Cycles)
	return core.HashBytes("vybium-zkvm/claim",
		c.ProgramDigest.Bytes(), c.PlatformDigest.Bytes(), meta[:], c.PublicIO)
}
