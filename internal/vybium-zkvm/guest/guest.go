// Package guest ships the Fibonacci guest program and its host-side
// reference implementation.
package guest

import (
	_ "embed"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/vm"
)

// Modulus bounds every term of the recurrence
const Modulus = 7919

// Name is the artifact name of the compiled guest
const Name = "fib-guest"

//go:embed fib.vasm
var source string

// Source returns the guest assembly
func Source() string {
	return source
}

// Fib returns the n-th term of the Fibonacci recurrence modulo Modulus,
// with Fib(0) = 0 and Fib(1) = 1.
func Fib(n uint32) uint32 {
	a, b := uint32(0), uint32(1)
	for i := uint32(0); i < n; i++ {
		a, b = b, (a+b)%Modulus
	}
	return a
}

// Statement returns the public statement the guest commits for input n
func Statement(n uint32) []uint32 {
	return []uint32{n, Fib(n)}
}

// Program assembles the guest at the default code base
func Program() (*vm.Program, error) {
	return vm.Assemble(source)
}

// Image assembles the guest and encodes it as a loadable program image
func Image() ([]byte, error) {
	p, err := Program()
	if err != nil {
		return nil, err
	}
	return vm.EncodeImage(p), nil
}

// Cycles returns the number of cycles the guest runs for input n
func Cycles(n uint32) uint64 {
	return 18*uint64(n) + 14
}
