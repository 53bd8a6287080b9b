package vybiumzkvm

import (
	"context"

	"go.uber.org/zap"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/codec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/pipeline"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/protocols"
)

// Host proves and verifies guest runs
type Host struct {
	encoding codec.Encoding
	prover   *pipeline.ShardedProver
	verifier *pipeline.Verifier
}

type hostOptions struct {
	logger       *zap.Logger
	backend      Backend
	workers      int
	encoding     codec.Encoding
	keyCacheSize int
}

// HostOption configures a Host
type HostOption func(*hostOptions)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) HostOption {
	return func(o *hostOptions) {
		o.logger = logger
	}
}

// WithBackend replaces the default commitment backend
func WithBackend(backend Backend) HostOption {
	return func(o *hostOptions) {
		o.backend = backend
	}
}

// WithWorkers bounds proving and verification concurrency. Zero keeps the
// default of one worker per CPU.
func WithWorkers(workers int) HostOption {
	return func(o *hostOptions) {
		o.workers = workers
	}
}

// WithEncoding sets the stream encoding
func WithEncoding(enc Encoding) HostOption {
	return func(o *hostOptions) {
		o.encoding = enc
	}
}

// WithKeyCacheSize sets how many verifying keys are kept
func WithKeyCacheSize(size int) HostOption {
	return func(o *hostOptions) {
		o.keyCacheSize = size
	}
}

// NewHost creates a host. Without WithBackend it proves with the commitment
// backend and its default parameters.
func NewHost(opts ...HostOption) (*Host, error) {
	o := hostOptions{
		logger:   zap.NewNop(),
		encoding: codec.DefaultEncoding,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.backend == nil {
		backend, err := protocols.NewCommitmentBackend(protocols.DefaultParams())
		if err != nil {
			return nil, err
		}
		o.backend = backend
	}

	popts := []pipeline.Option{
		pipeline.WithLogger(o.logger),
		pipeline.WithEncoding(o.encoding),
	}
	if o.workers != 0 {
		popts = append(popts, pipeline.WithWorkers(o.workers))
	}
	if o.keyCacheSize != 0 {
		popts = append(popts, pipeline.WithKeyCacheSize(o.keyCacheSize))
	}

	prover, err := pipeline.NewShardedProver(o.backend, popts...)
	if err != nil {
		return nil, err
	}
	verifier, err := pipeline.NewVerifier(o.backend, popts...)
	if err != nil {
		return nil, err
	}

	return &Host{encoding: o.encoding, prover: prover, verifier: verifier}, nil
}

// NewHostFromConfig creates a host with a commitment backend tuned by cfg
func NewHostFromConfig(cfg *Config, logger *zap.Logger) (*Host, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	backend, err := protocols.NewCommitmentBackend(protocols.Params{
		Queries: cfg.Prover.Queries,
		Seed:    []byte(cfg.Prover.Seed),
	})
	if err != nil {
		return nil, err
	}
	return NewHost(
		WithLogger(logger),
		WithBackend(backend),
		WithWorkers(cfg.Prover.Workers),
		WithEncoding(codec.Encoding{Version: cfg.Encoding.Version, WordSize: cfg.Encoding.WordSize}),
		WithKeyCacheSize(cfg.Prover.KeyCacheSize),
	)
}

// Encoding returns the stream encoding of the host
func (h *Host) Encoding() Encoding {
	return h.encoding
}

// NewHintStream returns an unbounded stream for private hints
func (h *Host) NewHintStream() (*Stream, error) {
	return codec.NewStream(h.encoding, 0)
}

// NewPublicIOStream returns a stream bounded by the platform's public IO
// region, for serializing the expected statement
func (h *Host) NewPublicIOStream(plat *Platform) (*Stream, error) {
	if plat == nil {
		return nil, core.NewError(core.CodeInvalidInput, "platform is required")
	}
	return codec.NewStream(h.encoding, int(plat.PublicIO.Size))
}

// GenerateProofs runs program and proves it in shards of at most
// maxCyclesPerShard cycles. See pipeline.ShardedProver.
func (h *Host) GenerateProofs(
	ctx context.Context,
	program *Program,
	plat *Platform,
	hints, publicIO []byte,
	maxCyclesPerShard, cycleLimit uint64,
) ([]*ShardProof, error) {
	return h.prover.GenerateProofs(ctx, program, plat, hints, publicIO, maxCyclesPerShard, cycleLimit)
}

// Verify checks an ordered proof set. See pipeline.Verifier.
func (h *Host) Verify(
	ctx context.Context,
	program *Program,
	plat *Platform,
	proofs []*ShardProof,
	expectedPublicIO []byte,
	cycleLimit uint64,
) error {
	return h.verifier.Verify(ctx, program, plat, proofs, expectedPublicIO, cycleLimit)
}

// Bundle packages proofs with the identity of program and plat
func (h *Host) Bundle(program *Program, plat *Platform, proofs []*ShardProof) (*Bundle, error) {
	vk, err := h.prover.Key(program, plat)
	if err != nil {
		return nil, err
	}
	return protocols.NewBundle(vk, proofs), nil
}
