package kzg10

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"io"
	"math/big"

	"github.com/drand/kyber"
)

// SRS is the structured reference string produced by the (trusted, but
// here deterministic-for-benchmarking) setup phase: successive powers of
// a secret tau in G1, plus tau*G2 and the G2 generator needed to verify
// openings.
type SRS struct {
	PowersG1 []kyber.Point
	G2Gen    kyber.Point
	TauG2    kyber.Point
}

// MaxDegree is the highest polynomial degree this SRS can commit to.
func (s *SRS) MaxDegree() int {
	return len(s.PowersG1) - 1
}

// Setup samples a fresh SRS able to commit to polynomials up to
// maxDegree. rng is the dealer's deterministic test stream; a production
// deployment would replace it with an MPC ceremony or a secure RNG, as
// noted in the design notes this benchmarking harness inherits.
func Setup(suite Suite, maxDegree int, rng cipher.Stream) *SRS {
	g1 := suite.G1()
	g2 := suite.G2()

	tau := g1.Scalar().Pick(rng)

	powers := make([]kyber.Point, maxDegree+1)
	acc := g1.Scalar().One()
	for i := 0; i <= maxDegree; i++ {
		powers[i] = g1.Point().Mul(acc, nil)
		acc = g1.Scalar().Mul(acc, tau)
	}

	g2Gen := g2.Point().Base()
	tauG2 := g2.Point().Mul(tau, g2Gen)

	return &SRS{PowersG1: powers, G2Gen: g2Gen, TauG2: tauG2}
}

// Commitment is a KZG commitment to a polynomial of a known degree bound,
// together with the verification key needed to check openings against it.
type Commitment struct {
	Point  kyber.Point
	G2Gen  kyber.Point
	TauG2  kyber.Point
	Degree int
}

// Proof is an opening proof: the commitment to the quotient polynomial.
type Proof struct {
	Point kyber.Point
}

// Share is a single party's evaluation of the dealt polynomial.
type Share struct {
	Index int
	Value kyber.Scalar
}

// Commit computes the KZG commitment to poly under srs.
func Commit(suite Suite, srs *SRS, poly *Polynomial) (Commitment, error) {
	if poly.Degree() > srs.MaxDegree() {
		return Commitment{}, errors.New("kzg10: polynomial degree exceeds SRS")
	}
	g1 := suite.G1()
	acc := g1.Point().Null()
	for i, c := range poly.Coeffs {
		acc = g1.Point().Add(acc, g1.Point().Mul(c, srs.PowersG1[i]))
	}
	return Commitment{Point: acc, G2Gen: srs.G2Gen, TauG2: srs.TauG2, Degree: poly.Degree()}, nil
}

// Open produces an opening proof and the claimed evaluation of poly at
// point.
func Open(suite Suite, srs *SRS, poly *Polynomial, point kyber.Scalar) (Proof, kyber.Scalar, error) {
	value := poly.Evaluate(suite, point)
	quotient := poly.dividedByLinear(suite, point)
	qc, err := Commit(suite, srs, quotient)
	if err != nil {
		return Proof{}, nil, err
	}
	return Proof{Point: qc.Point}, value, nil
}

// Verify checks a single opening: that comm commits to a polynomial p
// with p(point) == value, given proof.
func Verify(suite Suite, comm Commitment, point, value kyber.Scalar, proof Proof) bool {
	g1 := suite.G1()
	g2 := suite.G2()

	lhsPoint := g1.Point().Sub(comm.Point, g1.Point().Mul(value, nil))
	lhs := suite.Pair(lhsPoint, comm.G2Gen)

	rhsG2 := g2.Point().Sub(comm.TauG2, g2.Point().Mul(point, comm.G2Gen))
	rhs := suite.Pair(proof.Point, rhsG2)

	return lhs.Equal(rhs)
}

// BatchVerify checks many openings of the same commitment in one pairing
// computation, combining them with random coefficients drawn from rng so
// a cheating prover cannot exploit linearity between the individual
// checks. Each single-opening check is
//
//	e(C - [v_i]G1 + [z_i]W_i, G2) == e(W_i, tauG2)
//
// which is linear in (C, G1-term, W_i) for fixed G2/tauG2, so a random
// linear combination over i collapses to a single pair of pairings:
//
//	e( [sum gamma_i]C - [sum gamma_i v_i]G1 + sum gamma_i z_i W_i, G2 )
//	  == e( sum gamma_i W_i, tauG2 )
func BatchVerify(suite Suite, comm Commitment, points, values []kyber.Scalar, proofs []Proof, rng cipher.Stream) (bool, error) {
	if len(points) != len(values) || len(points) != len(proofs) {
		return false, errors.New("kzg10: mismatched batch lengths")
	}
	if len(points) == 0 {
		return false, errors.New("kzg10: empty batch")
	}
	g1 := suite.G1()
	g2 := suite.G2()

	gammaSum := g1.Scalar().Zero()
	valueSum := g1.Scalar().Zero()
	weightedProofSum := g1.Point().Null()
	proofSum := g1.Point().Null()

	for i := range points {
		gamma := g1.Scalar().Pick(rng)
		gammaSum = g1.Scalar().Add(gammaSum, gamma)
		valueSum = g1.Scalar().Add(valueSum, g1.Scalar().Mul(gamma, values[i]))
		weightedProofSum = g1.Point().Add(weightedProofSum, g1.Point().Mul(g1.Scalar().Mul(gamma, points[i]), proofs[i].Point))
		proofSum = g1.Point().Add(proofSum, g1.Point().Mul(gamma, proofs[i].Point))
	}

	s := g1.Point().Mul(gammaSum, comm.Point)
	s = g1.Point().Sub(s, g1.Point().Mul(valueSum, nil))
	s = g1.Point().Add(s, weightedProofSum)

	lhs := suite.Pair(s, g2.Point().Base())
	rhs := suite.Pair(proofSum, comm.TauG2)
	return lhs.Equal(rhs), nil
}

// ScalarFromU128 embeds a little-endian 128-bit unsigned integer (lo, hi)
// as a field element, via repeated field multiply/add with base 2^32.
// Building the scalar purely through the field's own arithmetic avoids
// any assumption about the byte order MarshalBinary happens to use.
func ScalarFromU128(suite Suite, lo, hi uint64) kyber.Scalar {
	words := [4]uint32{uint32(lo), uint32(lo >> 32), uint32(hi), uint32(hi >> 32)}
	g := suite.G1()
	base32 := g.Scalar().SetInt64(1 << 32)
	acc := g.Scalar().Zero()
	for i := 3; i >= 0; i-- {
		acc = g.Scalar().Mul(acc, base32)
		acc = g.Scalar().Add(acc, g.Scalar().SetInt64(int64(words[i])))
	}
	return acc
}

// ScalarFromIndex embeds a small non-negative party index as a field
// element; indices are always evaluated at index+1 per the protocol.
func ScalarFromIndex(suite Suite, index int) kyber.Scalar {
	return suite.G1().Scalar().SetInt64(int64(index))
}

// DegCheck confirms comm commits to a polynomial of exactly the expected
// degree, guarding against a dealer padding or truncating the secret's
// polynomial.
func DegCheck(comm Commitment, expectedDegree int) bool {
	return comm.Degree == expectedDegree
}

// Interpolate recovers the constant term (the shared secret) from t+1 or
// more shares via Lagrange interpolation at zero, then truncates the
// field element down to its low 128 bits the way the dealt secret is
// represented on the wire, returned as a non-negative integer.
func Interpolate(suite Suite, shares []Share) (*big.Int, error) {
	if len(shares) == 0 {
		return nil, errors.New("kzg10: no shares to interpolate")
	}
	g1 := suite.G1()
	secret := g1.Scalar().Zero()

	for i, si := range shares {
		xi := g1.Scalar().SetInt64(int64(si.Index))
		num := g1.Scalar().One()
		den := g1.Scalar().One()
		for j, sj := range shares {
			if i == j {
				continue
			}
			xj := g1.Scalar().SetInt64(int64(sj.Index))
			num = g1.Scalar().Mul(num, xj)
			diff := g1.Scalar().Sub(xj, xi)
			den = g1.Scalar().Mul(den, diff)
		}
		lambda := g1.Scalar().Div(num, den)
		term := g1.Scalar().Mul(lambda, si.Value)
		secret = g1.Scalar().Add(secret, term)
	}

	buf, err := secret.MarshalBinary()
	if err != nil {
		return nil, err
	}
	// The scalar encoding is big-endian, so its low 128 bits are its last
	// 16 bytes, already in the order big.Int.SetBytes reads.
	if len(buf) < 16 {
		return nil, errors.New("kzg10: scalar encoding shorter than 128 bits")
	}
	low16 := buf[len(buf)-16:]
	return new(big.Int).SetBytes(low16), nil
}

// writeUint32 and readUint32 implement the fixed-width length fields used
// throughout the wire encoding of commitments and proofs.
func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// Write serializes a commitment as vkey (G2 generator || tau*G2) followed
// by the commitment point and a little-endian u32 degree bound, matching
// the dealer's on-the-wire Commitment layout.
func (c Commitment) Write(w io.Writer) error {
	for _, p := range []kyber.Point{c.G2Gen, c.TauG2, c.Point} {
		b, err := p.MarshalBinary()
		if err != nil {
			return err
		}
		if err := writeUint32(w, uint32(len(b))); err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return writeUint32(w, uint32(c.Degree))
}

// ReadCommitment parses the layout written by Commitment.Write.
func ReadCommitment(suite Suite, r io.Reader) (Commitment, error) {
	readPoint := func(g kyber.Group) (kyber.Point, error) {
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		p := g.Point()
		if err := p.UnmarshalBinary(buf); err != nil {
			return nil, err
		}
		return p, nil
	}

	g2Gen, err := readPoint(suite.G2())
	if err != nil {
		return Commitment{}, err
	}
	tauG2, err := readPoint(suite.G2())
	if err != nil {
		return Commitment{}, err
	}
	comm, err := readPoint(suite.G1())
	if err != nil {
		return Commitment{}, err
	}
	degree, err := readUint32(r)
	if err != nil {
		return Commitment{}, err
	}
	return Commitment{Point: comm, G2Gen: g2Gen, TauG2: tauG2, Degree: int(degree)}, nil
}

// Write serializes an opening proof as its point bytes, length-prefixed.
func (p Proof) Write(w io.Writer) error {
	b, err := p.Point.MarshalBinary()
	if err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// ReadProof parses the layout written by Proof.Write.
func ReadProof(suite Suite, r io.Reader) (Proof, error) {
	n, err := readUint32(r)
	if err != nil {
		return Proof{}, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Proof{}, err
	}
	p := suite.G1().Point()
	if err := p.UnmarshalBinary(buf); err != nil {
		return Proof{}, err
	}
	return Proof{Point: p}, nil
}
