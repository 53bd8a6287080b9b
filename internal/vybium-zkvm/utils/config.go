package utils

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
)

// Reference sizes of the host program.
const (
	DefaultStackSize         uint32 = 128 * 1024 * 1024
	DefaultHeapSize          uint32 = 128 * 1024 * 1024
	DefaultPublicIOSize      uint32 = 512
	DefaultMaxOffset         uint32 = math.MaxUint32
	DefaultMaxCyclesPerShard uint64 = 1 << 29
	DefaultQueries                  = 8
	DefaultKeyCacheSize             = 16
	DefaultSeed                     = "vybium-zkvm"
)

// DefaultCycleLimit bounds a run when nothing else does. Every executed cycle
// keeps one trace row in memory until proving finishes, so the default caps a
// runaway guest at about 3.5 GiB of rows. Raise it explicitly for longer runs.
const DefaultCycleLimit uint64 = 1 << 26

// Config is the host configuration, loaded from YAML
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Guest     GuestConfig     `yaml:"guest"`
	Platform  PlatformConfig  `yaml:"platform"`
	Encoding  EncodingConfig  `yaml:"encoding"`
	Prover    ProverConfig    `yaml:"prover"`
	Log       LogConfig       `yaml:"log"`
}

// WorkspaceConfig pins the workspace root. Empty means discover it.
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// GuestConfig locates the compiled guest artifact relative to the workspace root
type GuestConfig struct {
	Dir    string `yaml:"dir"`
	Target string `yaml:"target"`
	Name   string `yaml:"name"`
}

// PlatformConfig selects the memory layout of the guest machine
type PlatformConfig struct {
	Preset       string `yaml:"preset"`
	StackSize    uint32 `yaml:"stackSize"`
	HeapSize     uint32 `yaml:"heapSize"`
	PublicIOSize uint32 `yaml:"publicIOSize"`
	MaxOffset    uint32 `yaml:"maxOffset"`
}

// EncodingConfig selects the stream wire format
type EncodingConfig struct {
	Version  uint16 `yaml:"version"`
	WordSize uint32 `yaml:"wordSize"`
}

// ProverConfig bounds execution and tunes proving
type ProverConfig struct {
	MaxCyclesPerShard uint64 `yaml:"maxCyclesPerShard"`
	CycleLimit        uint64 `yaml:"cycleLimit"`
	Workers           int    `yaml:"workers"`
	Queries           int    `yaml:"queries"`
	Seed              string `yaml:"seed"`
	KeyCacheSize      int    `yaml:"keyCacheSize"`
}

// LogConfig selects the logger flavour and level
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the reference configuration
func DefaultConfig() *Config {
	return (&Config{}).WithDefaults()
}

// WithDefaults fills every zero-valued field with its reference value. It is
// meant for configs assembled in code; files go through ParseConfig.
func (c *Config) WithDefaults() *Config {
	if c.Guest.Dir == "" {
		c.Guest.Dir = "program"
	}
	if c.Guest.Target == "" {
		c.Guest.Target = "vybium-zkvm-guest"
	}
	if c.Guest.Name == "" {
		c.Guest.Name = "fib-guest"
	}
	if c.Platform.Preset == "" {
		c.Platform.Preset = "standard"
	}
	if c.Platform.StackSize == 0 {
		c.Platform.StackSize = DefaultStackSize
	}
	if c.Platform.HeapSize == 0 {
		c.Platform.HeapSize = DefaultHeapSize
	}
	if c.Platform.PublicIOSize == 0 {
		c.Platform.PublicIOSize = DefaultPublicIOSize
	}
	if c.Platform.MaxOffset == 0 {
		c.Platform.MaxOffset = DefaultMaxOffset
	}
	if c.Encoding.Version == 0 {
		c.Encoding.Version = 1
	}
	if c.Encoding.WordSize == 0 {
		c.Encoding.WordSize = 4
	}
	if c.Prover.MaxCyclesPerShard == 0 {
		c.Prover.MaxCyclesPerShard = DefaultMaxCyclesPerShard
	}
	if c.Prover.CycleLimit == 0 {
		c.Prover.CycleLimit = DefaultCycleLimit
	}
	if c.Prover.Queries == 0 {
		c.Prover.Queries = DefaultQueries
	}
	if c.Prover.Seed == "" {
		c.Prover.Seed = DefaultSeed
	}
	if c.Prover.KeyCacheSize == 0 {
		c.Prover.KeyCacheSize = DefaultKeyCacheSize
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	return c
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Guest.Name == "" {
		return core.NewError(core.CodeConfig, "guest name must not be empty")
	}

	if c.Platform.Preset != "standard" && c.Platform.Preset != "high-stack" {
		return core.NewError(core.CodeConfig, "platform preset must be 'standard' or 'high-stack', got '%s'", c.Platform.Preset)
	}

	if c.Encoding.WordSize < 4 || c.Encoding.WordSize%4 != 0 {
		return core.NewError(core.CodeConfig, "encoding word size must be a positive multiple of 4, got %d", c.Encoding.WordSize)
	}

	if c.Prover.MaxCyclesPerShard == 0 {
		return core.NewError(core.CodeConfig, "max cycles per shard must be positive")
	}

	if c.Prover.Workers < 0 {
		return core.NewError(core.CodeConfig, "workers must not be negative, got %d", c.Prover.Workers)
	}

	if c.Prover.Queries <= 0 {
		return core.NewError(core.CodeConfig, "queries must be positive")
	}

	if c.Prover.KeyCacheSize <= 0 {
		return core.NewError(core.CodeConfig, "key cache size must be positive")
	}

	return nil
}

// WithWorkspaceRoot pins the workspace root
func (c *Config) WithWorkspaceRoot(root string) *Config {
	c.Workspace.Root = root
	return c
}

// WithPreset sets the platform preset
func (c *Config) WithPreset(preset string) *Config {
	c.Platform.Preset = preset
	return c
}

// WithMaxCyclesPerShard sets the shard bound
func (c *Config) WithMaxCyclesPerShard(bound uint64) *Config {
	c.Prover.MaxCyclesPerShard = bound
	return c
}

// WithCycleLimit sets the execution cycle limit
func (c *Config) WithCycleLimit(limit uint64) *Config {
	c.Prover.CycleLimit = limit
	return c
}

// WithWorkers sets the proving concurrency
func (c *Config) WithWorkers(workers int) *Config {
	c.Prover.Workers = workers
	return c
}

// WithWordSize sets the stream widening factor
func (c *Config) WithWordSize(size uint32) *Config {
	c.Encoding.WordSize = size
	return c
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// LoadConfig reads a YAML configuration file, filling defaults and validating it
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration bytes over DefaultConfig. Keys
// that are present keep their value, including an explicit zero.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, core.WrapError(core.CodeConfig, err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	return out, errors.Wrap(err, "marshal config")
}
