package utils

import (
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// Channel represents a Fiat-Shamir transcript channel
type Channel struct {
	state []byte
}

// NewChannel creates a new Fiat-Shamir channel seeded with a domain label
func NewChannel(domain string) *Channel {
	c := &Channel{state: []byte{0}}
	c.Send([]byte(domain))
	return c
}

// Send appends data to the channel state
func (c *Channel) Send(data []byte) {
	c.state = hash(append(c.state, data...))
}

// SendUint64 absorbs v as eight little-endian bytes
func (c *Channel) SendUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	c.Send(b[:])
}

// ReceiveRandomInt generates a random integer in the range [min, max]
// Returns nil if min > max (invalid range)
func (c *Channel) ReceiveRandomInt(min, max *big.Int) *big.Int {
	if min.Cmp(max) > 0 {
		return nil
	}

	stateAsInt := new(big.Int).SetBytes(c.state)

	rangeSize := new(big.Int).Sub(max, min)
	rangeSize.Add(rangeSize, big.NewInt(1))

	random := new(big.Int).Mod(stateAsInt, rangeSize)
	random.Add(random, min)

	c.state = hash(c.state)

	return random
}

// ReceiveIndex samples an index in [0, n). n must be positive.
func (c *Channel) ReceiveIndex(n int) int {
	if n <= 0 {
		return 0
	}
	r := c.ReceiveRandomInt(big.NewInt(0), big.NewInt(int64(n-1)))
	return int(r.Int64())
}

// State returns the current channel state
func (c *Channel) State() []byte {
	return append([]byte(nil), c.state...)
}

func hash(data []byte) []byte {
	h := sha3.Sum256(data)
	return h[:]
}
