package vybiumzkvm

import "github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"

// Error is a classified error. Two errors match under errors.Is when their
// codes are equal.
type Error = core.Error

// ErrorCode classifies an Error
type ErrorCode = core.ErrorCode

var (
	// ErrLoad reports a malformed or oversized program image
	ErrLoad = core.ErrLoad

	// ErrConfig reports an invalid configuration or platform layout
	ErrConfig = core.ErrConfig

	// ErrSerialize reports a stream write past capacity or an invalid encoding
	ErrSerialize = core.ErrSerialize

	// ErrCycleLimitExceeded reports a guest still running at the cycle limit
	ErrCycleLimitExceeded = core.ErrCycleLimitExceeded

	// ErrProofGap reports an empty, out-of-order, incomplete or unchained proof set
	ErrProofGap = core.ErrProofGap

	// ErrPublicIOMismatch reports committed public IO that differs from the expected statement
	ErrPublicIOMismatch = core.ErrPublicIOMismatch

	// ErrCycleOverrun reports a proof set covering more cycles than allowed
	ErrCycleOverrun = core.ErrCycleOverrun

	// ErrInvalidProof reports a shard proof the backend rejects
	ErrInvalidProof = core.ErrInvalidProof

	// ErrExecution reports a guest fault
	ErrExecution = core.ErrExecution

	// ErrInvalidInput reports a nil or out-of-range argument
	ErrInvalidInput = core.ErrInvalidInput
)

// CodeOf returns the classification of err, or the unknown code
func CodeOf(err error) ErrorCode {
	return core.CodeOf(err)
}
