package kzg10

import (
	"crypto/cipher"

	"github.com/drand/kyber"
)

// Polynomial is a dense univariate polynomial over the curve's scalar
// field, lowest degree coefficient first.
type Polynomial struct {
	Coeffs []kyber.Scalar
}

// Degree returns the polynomial's degree, or -1 for the zero polynomial.
func (p *Polynomial) Degree() int {
	return len(p.Coeffs) - 1
}

// RandomPolynomial samples a degree-d polynomial whose constant term is
// fixed to secret, drawing the remaining coefficients from rng. This
// mirrors the dealer's use of a single fixed secret with random masking
// coefficients above it.
func RandomPolynomial(suite Suite, degree int, secret kyber.Scalar, rng cipher.Stream) *Polynomial {
	coeffs := make([]kyber.Scalar, degree+1)
	coeffs[0] = suite.G1().Scalar().Set(secret)
	for i := 1; i <= degree; i++ {
		coeffs[i] = suite.G1().Scalar().Pick(rng)
	}
	return &Polynomial{Coeffs: coeffs}
}

// Evaluate computes p(x) via Horner's method.
func (p *Polynomial) Evaluate(suite Suite, x kyber.Scalar) kyber.Scalar {
	g := suite.G1()
	result := g.Scalar().Zero()
	for i := len(p.Coeffs) - 1; i >= 0; i-- {
		result = g.Scalar().Mul(result, x)
		result = g.Scalar().Add(result, p.Coeffs[i])
	}
	return result
}

// dividedByLinear performs synthetic division of p(X) by (X - point),
// returning the quotient q(X) such that p(X) - p(point) = q(X)*(X - point).
// This is the standard construction of a KZG opening proof.
func (p *Polynomial) dividedByLinear(suite Suite, point kyber.Scalar) *Polynomial {
	g := suite.G1()
	n := len(p.Coeffs)
	quotient := make([]kyber.Scalar, n-1)
	remainder := g.Scalar().Zero()
	for i := n - 1; i >= 1; i-- {
		coeff := g.Scalar().Add(p.Coeffs[i], remainder)
		quotient[i-1] = coeff
		remainder = g.Scalar().Mul(coeff, point)
	}
	return &Polynomial{Coeffs: quotient}
}
