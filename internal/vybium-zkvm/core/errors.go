// Package core provides the error taxonomy and commitment primitives shared by
// every stage of the Vybium zkVM host pipeline.
package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode identifies the failure class of a pipeline error
type ErrorCode int

const (
	// CodeUnknown represents an unclassified error
	CodeUnknown ErrorCode = iota

	// CodeLoad represents a malformed or oversized program image
	CodeLoad

	// CodeConfig represents an invalid platform layout
	CodeConfig

	// CodeSerialize represents a stream encoding failure
	CodeSerialize

	// CodeCycleLimitExceeded represents a guest that did not halt within the cycle limit
	CodeCycleLimitExceeded

	// CodeProofGap represents a missing, duplicated or mis-chained shard proof
	CodeProofGap

	// CodePublicIOMismatch represents committed output that differs from the declared statement
	CodePublicIOMismatch

	// CodeCycleOverrun represents a proof set whose total cycles exceed the verifier's limit
	CodeCycleOverrun

	// CodeInvalidProof represents a shard proof rejected by the backend
	CodeInvalidProof

	// CodeExecution represents a guest fault
	CodeExecution

	// CodeInvalidInput represents a bad argument to a pipeline operation
	CodeInvalidInput
)

var codeNames = map[ErrorCode]string{
	CodeUnknown:            "unknown",
	CodeLoad:               "load",
	CodeConfig:             "config",
	CodeSerialize:          "serialize",
	CodeCycleLimitExceeded: "cycle limit exceeded",
	CodeProofGap:           "proof gap",
	CodePublicIOMismatch:   "public io mismatch",
	CodeCycleOverrun:       "cycle overrun",
	CodeInvalidProof:       "invalid proof",
	CodeExecution:          "execution",
	CodeInvalidInput:       "invalid input",
}

// String returns the name of the error code
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is a classified pipeline error
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vybium-zkvm %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("vybium-zkvm %s: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrLoad               = &Error{Code: CodeLoad, Message: "program load failed"}
	ErrConfig             = &Error{Code: CodeConfig, Message: "invalid platform configuration"}
	ErrSerialize          = &Error{Code: CodeSerialize, Message: "serialization failed"}
	ErrCycleLimitExceeded = &Error{Code: CodeCycleLimitExceeded, Message: "guest did not halt within cycle limit"}
	ErrProofGap           = &Error{Code: CodeProofGap, Message: "proof sequence is not contiguous"}
	ErrPublicIOMismatch   = &Error{Code: CodePublicIOMismatch, Message: "public io mismatch"}
	ErrCycleOverrun       = &Error{Code: CodeCycleOverrun, Message: "total cycles exceed limit"}
	ErrInvalidProof       = &Error{Code: CodeInvalidProof, Message: "shard proof rejected"}
	ErrExecution          = &Error{Code: CodeExecution, Message: "guest execution failed"}
	ErrInvalidInput       = &Error{Code: CodeInvalidInput, Message: "invalid input"}
)

// NewError creates a classified error with a formatted message
func NewError(code ErrorCode, format string, args ...interface{}) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies cause under code. A nil cause yields nil.
func WrapError(code ErrorCode, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf returns the code of the first classified error in err's chain
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
