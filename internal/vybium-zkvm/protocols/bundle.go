package protocols

import (
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/codec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/platform"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/vm"
)

// BundleVersion is the on-disk format version of a Bundle
const BundleVersion uint32 = 1

// Bundle is a complete proof set together with the identities of the
// program and platform it was produced for
type Bundle struct {
	Version        uint32         `cbor:"v"`
	ProgramDigest  core.Digest    `cbor:"p"`
	PlatformDigest core.Digest    `cbor:"f"`
	Encoding       codec.Encoding `cbor:"e"`
	Claim          *Claim         `cbor:"c"`
	Proofs         []*ShardProof  `cbor:"s"`
}

var bundleEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// NewBundle packages proofs produced under vk
func NewBundle(vk *VerifyingKey, proofs []*ShardProof) *Bundle {
	return &Bundle{
		Version:        BundleVersion,
		ProgramDigest:  vk.ProgramDigest,
		PlatformDigest: vk.PlatformDigest,
		Encoding:       vk.Encoding,
		Claim:          ClaimOf(vk, proofs),
		Proofs:         proofs,
	}
}

// Encode serializes the bundle as deterministic CBOR
func (b *Bundle) Encode() ([]byte, error) {
	data, err := bundleEncMode.Marshal(b)
	if err != nil {
		return nil, errors.Wrap(err, "encode proof bundle")
	}
	return data, nil
}

// DecodeBundle parses a bundle produced by Encode
func DecodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, core.WrapError(core.CodeInvalidProof, err, "decode proof bundle")
	}
	if b.Version != BundleVersion {
		return nil, core.NewError(core.CodeInvalidProof, "unsupported bundle version %d", b.Version)
	}
	return &b, nil
}

// Check reports whether the bundle was produced for program on plat and
// whether its claim summarizes the proofs it carries
func (b *Bundle) Check(program *vm.Program, plat *platform.Platform) error {
	if got := program.Digest(); got != b.ProgramDigest {
		return core.NewError(core.CodeInvalidProof, "bundle is for program %s, not %s", b.ProgramDigest.Short(), got.Short())
	}
	if got := plat.Digest(); got != b.PlatformDigest {
		return core.NewError(core.CodeInvalidProof, "bundle is for platform %s, not %s", b.PlatformDigest.Short(), got.Short())
	}

	if b.Claim == nil {
		return core.NewError(core.CodeInvalidProof, "bundle carries no claim")
	}
	if err := b.Claim.Validate(); err != nil {
		return err
	}
	if b.Claim.ProgramDigest != b.ProgramDigest || b.Claim.PlatformDigest != b.PlatformDigest {
		return core.NewError(core.CodeInvalidProof, "bundle claim names another program or platform")
	}
	want := ClaimOf(&VerifyingKey{ProgramDigest: b.ProgramDigest, PlatformDigest: b.PlatformDigest}, b.Proofs)
	if b.Claim.Hash() != want.Hash() {
		return core.NewError(core.CodeInvalidProof,
			"bundle claim (%d cycles) does not match its proofs (%d cycles)", b.Claim.Cycles, want.Cycles)
	}
	return nil
}

// WriteBundle encodes b to path
func WriteBundle(path string, b *Bundle) error {
	data, err := b.Encode()
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}

// ReadBundle decodes the bundle stored at path
func ReadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return DecodeBundle(data)
}
