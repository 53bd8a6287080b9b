package utils

// CeilDiv returns ceil(a / b). b must be non-zero.
func CeilDiv(a, b uint64) uint64 {
	if a == 0 {
		return 0
	}
	return 1 + (a-1)/b
}

// AlignUp rounds v up to a multiple of align, reporting overflow.
// align must be a power of two.
func AlignUp(v, align uint64) (uint64, bool) {
	if !IsPowerOfTwo(align) {
		return 0, false
	}
	r := (v + align - 1) &^ (align - 1)
	if r < v {
		return 0, false
	}
	return r, true
}

// AlignDown rounds v down to a multiple of align. align must be a power of two.
func AlignDown(v, align uint64) uint64 {
	return v &^ (align - 1)
}

// IsPowerOfTwo checks if a number is a power of 2
func IsPowerOfTwo(n uint64) bool {
	return n > 0 && (n&(n-1)) == 0
}
