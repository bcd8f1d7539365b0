package node

import (
	"crypto/aes"
	"crypto/cipher"
)

// testRNG derives the fixed, non-secret stream the dealer uses to sample
// the SRS and the masking coefficients of its polynomial. Reproducible
// by design, as this is a benchmarking harness; see the design notes on
// the fixed test RNG for why this must not be reused in production.
func testRNG() cipher.Stream {
	var key, iv [16]byte
	copy(key[:], []byte("avss-bench-node!"))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	return cipher.NewCTR(block, iv[:])
}
