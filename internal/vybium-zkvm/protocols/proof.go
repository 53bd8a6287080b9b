package protocols

import (
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/vm"
)

// Shard is the prover's witness for one contiguous slice of an execution
type Shard struct {
	Index      int
	Count      int
	StartCycle uint64

	// Rows holds one trace row per cycle of the shard, in clock order
	Rows []vm.TraceRow

	StartState core.Digest
	EndState   core.Digest

	// Halted is set on the final shard only
	Halted bool

	// PublicIO is the committed output, carried by the final shard only
	PublicIO []byte
}

// Cycles returns the number of cycles the shard covers
func (s *Shard) Cycles() uint64 {
	return uint64(len(s.Rows))
}

// Opening reveals one committed trace row with its authentication path
type Opening struct {
	Index int              `cbor:"i"`
	Row   vm.TraceRow      `cbor:"r"`
	Path  []core.ProofNode `cbor:"p"`
}

// ShardProof attests to one shard. Consecutive proofs chain through their
// state digests: a shard starts in the state its predecessor ended in.
type ShardProof struct {
	Version    uint32      `cbor:"v"`
	ShardIndex uint32      `cbor:"i"`
	ShardCount uint32      `cbor:"k"`
	StartCycle uint64      `cbor:"s"`
	Cycles     uint64      `cbor:"c"`
	StartState core.Digest `cbor:"ss"`
	EndState   core.Digest `cbor:"es"`
	TraceRoot  []byte      `cbor:"r"`
	Halted     bool        `cbor:"h"`
	PublicIO   []byte      `cbor:"io,omitempty"`
	Openings   []Opening   `cbor:"o,omitempty"`
	Binding    []byte      `cbor:"b"`
}

// EndCycle returns the first cycle after the shard
func (p *ShardProof) EndCycle() uint64 {
	return p.StartCycle + p.Cycles
}

// Clone returns a deep copy of the proof
func (p *ShardProof) Clone() *ShardProof {
	out := *p
	out.TraceRoot = append([]byte(nil), p.TraceRoot...)
	out.PublicIO = append([]byte(nil), p.PublicIO...)
	out.Binding = append([]byte(nil), p.Binding...)
	out.Openings = make([]Opening, len(p.Openings))
	for i, o := range p.Openings {
		out.Openings[i] = Opening{Index: o.Index, Row: o.Row, Path: append([]core.ProofNode(nil), o.Path...)}
	}
	return &out
}
