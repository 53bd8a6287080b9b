package pipeline

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/codec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/protocols"
)

const defaultKeyCacheSize = 16

type options struct {
	logger       *zap.Logger
	workers      int
	encoding     codec.Encoding
	keyCacheSize int
}

// Option configures a ShardedProver or a Verifier
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWorkers bounds how many shards are proved or verified at once
func WithWorkers(workers int) Option {
	return func(o *options) {
		o.workers = workers
	}
}

// WithEncoding sets the stream encoding the guest reads hints and writes
// public IO in
func WithEncoding(enc codec.Encoding) Option {
	return func(o *options) {
		o.encoding = enc
	}
}

// WithKeyCacheSize sets how many verifying keys are kept
func WithKeyCacheSize(size int) Option {
	return func(o *options) {
		o.keyCacheSize = size
	}
}

func buildOptions(backend protocols.Backend, opts []Option) (options, *protocols.KeyCache, error) {
	o := options{
		logger:       zap.NewNop(),
		workers:      runtime.GOMAXPROCS(0),
		encoding:     codec.DefaultEncoding,
		keyCacheSize: defaultKeyCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.workers <= 0 {
		return o, nil, core.NewError(core.CodeConfig, "workers must be positive, got %d", o.workers)
	}
	if err := o.encoding.Validate(); err != nil {
		return o, nil, err
	}

	keys, err := protocols.NewKeyCache(backend, o.keyCacheSize)
	if err != nil {
		return o, nil, err
	}
	return o, keys, nil
}
