// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-2 helpers used when sizing FFT
buffers. Every function is O(1), allocation free and safe to call from
the analysis hot path.

	// Size a zero-padded autocorrelation FFT.
	fftSize := bitint.NextPowerOfTwo(2 * windowLength)

	// Validate a configured chunk length.
	ok := bitint.IsPowerOfTwo(framesPerBuffer)

NextPowerOfTwo relies on bits.Len of (size-1). Subtracting one keeps
exact powers of 2 unchanged: for 8, bits.Len(7) = 3 and 1<<3 = 8, where
bits.Len(8) = 4 would double it to 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of 2 has
// exactly one bit set, so clearing its lowest set bit with n&(n-1) yields 0.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
