package vybiumzkvm

import (
	"go.uber.org/zap"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/codec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/platform"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/protocols"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/utils"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/vm"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/workspace"
)

// Program is a loaded guest program
type Program = vm.Program

// Platform is the memory layout a guest runs under
type Platform = platform.Platform

// Preset selects a platform layout policy
type Preset = platform.Preset

// Platform presets.
const (
	PresetStandard  = platform.PresetStandard
	PresetHighStack = platform.PresetHighStack
)

// Stream is a positional input or output stream
type Stream = codec.Stream

// Encoding is the stream layout policy
type Encoding = codec.Encoding

// DefaultEncoding widens every element to one 32-bit word
var DefaultEncoding = codec.DefaultEncoding

// ShardProof attests to one shard of an execution
type ShardProof = protocols.ShardProof

// Bundle is a proof set persisted with the identity of its program and platform
type Bundle = protocols.Bundle

// Backend is a shard proving system
type Backend = protocols.Backend

// Config is the host configuration
type Config = utils.Config

// Resolver discovers the workspace root
type Resolver = workspace.Resolver

// Root is a resolved workspace root
type Root = workspace.Root

// NewResolver returns a resolver backed by the running process
func NewResolver(logger *zap.Logger) *Resolver {
	return workspace.NewResolver(logger)
}

// DefaultConfig returns the reference configuration
func DefaultConfig() *Config {
	return utils.DefaultConfig()
}

// LoadConfig reads a YAML configuration file
func LoadConfig(path string) (*Config, error) {
	return utils.LoadConfig(path)
}

// LoadProgram parses a program image
func LoadProgram(image []byte, maxOffset uint32) (*Program, error) {
	return vm.LoadProgram(image, maxOffset)
}

// Configure lays out a platform for program
func Configure(preset Preset, program *Program, stackSize, heapSize, publicIOSize uint32) (*Platform, error) {
	return platform.Configure(preset, program, stackSize, heapSize, publicIOSize)
}

// ReadBundle decodes a proof bundle file
func ReadBundle(path string) (*Bundle, error) {
	return protocols.ReadBundle(path)
}

// WriteBundle encodes a proof bundle to a file
func WriteBundle(path string, b *Bundle) error {
	return protocols.WriteBundle(path, b)
}
