// Package kzg10 implements the KZG10 polynomial commitment scheme over the
// BLS12-381 pairing, as used by the AVSS dealer: a commitment to a degree-d
// polynomial, opening proofs at arbitrary points, single and batched
// verification, and Lagrange interpolation at zero for secret recovery.
package kzg10

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/drand/kyber"
	bls12381 "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber/pairing"
)

// Suite is the pairing-friendly group this package commits over.
type Suite = pairing.Suite

// NewSuite returns the BLS12-381 pairing suite.
func NewSuite() Suite {
	return bls12381.NewBLS12381Suite()
}

// testRNG is a fixed, non-secret stream cipher this package's tests use
// to derive reference strings, polynomials and batch coefficients. It
// makes those runs reproducible; it must never be reused for
// anything that needs real secrecy (see spec design notes on the fixed
// test RNG).
func testRNG() cipher.Stream {
	var key [16]byte
	var iv [16]byte
	copy(key[:], []byte("avss-bench-seed!"))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	return cipher.NewCTR(block, iv[:])
}

// scalarGroup returns the group whose Scalar() yields the curve's exponent
// field (Fr); G1's scalar field is used throughout.
func scalarGroup(suite Suite) kyber.Group {
	return suite.G1()
}
