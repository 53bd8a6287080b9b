// Package pipeline drives a guest through execution and sharded proving, and
// verifies the resulting proof sets.
package pipeline

import (
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/utils"
)

// DefaultMaxCyclesPerShard is the reference shard bound, 2^29 cycles
const DefaultMaxCyclesPerShard uint64 = 1 << 29

// ShardRange is a half-open cycle interval [Start, End)
type ShardRange struct {
	Start uint64
	End   uint64
}

// Cycles returns the number of cycles in the range
func (r ShardRange) Cycles() uint64 {
	return r.End - r.Start
}

// Plan partitions cycles into contiguous ranges of at most bound cycles.
// A run of zero cycles still yields one empty range.
func Plan(cycles, bound uint64) ([]ShardRange, error) {
	if bound == 0 {
		return nil, core.NewError(core.CodeInvalidInput, "max cycles per shard must be positive")
	}
	count := max(1, utils.CeilDiv(cycles, bound))
	ranges := make([]ShardRange, count)
	for i := range ranges {
		start := uint64(i) * bound
		ranges[i] = ShardRange{Start: start, End: min(start+bound, cycles)}
	}
	return ranges, nil
}
