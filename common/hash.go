package common

// hashGoldenRatio is the 64-bit fractional golden ratio used to spread combined bits.
const hashGoldenRatio uint64 = 0x9e3779b97f4a7c15

// HashCombine folds v into seed. The result depends on the order of successive calls,
// so callers that need order independence must combine their fields in a fixed order.
//
// Parameters:
//   - seed: the running hash value
//   - v: the value to fold in
//
// Returns:
//   - uint64: the combined hash
func HashCombine(seed, v uint64) uint64 {
	v *= 0xff51afd7ed558ccd
	v ^= v >> 33
	return seed ^ (v + hashGoldenRatio + (seed << 6) + (seed >> 2))
}

// HashCombineAll folds every value into seed, left to right.
//
// Parameters:
//   - seed: the initial hash value
//   - values: the values to fold in
//
// Returns:
//   - uint64: the combined hash
func HashCombineAll(seed uint64, values ...uint64) uint64 {
	for _, v := range values {
		seed = HashCombine(seed, v)
	}
	return seed
}
