package common

// AlignUp rounds value up to the next multiple of alignment. An alignment of zero returns value unchanged.
//
// Parameters:
//   - value: the value to round
//   - alignment: the required alignment, expected to be a power of two
//
// Returns:
//   - uint64: the aligned value
func AlignUp(value, alignment uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// CeilDiv returns the number of groups of size d needed to cover n items.
//
// Parameters:
//   - n: the item count
//   - d: the group size, must be non-zero
//
// Returns:
//   - uint32: ceil(n / d)
func CeilDiv(n, d uint32) uint32 {
	return (n + d - 1) / d
}
