package node

import (
	"crypto/ed25519"

	"github.com/drand/kyber"

	"avss-bench/internal/kzg10"
)

// ShareEntry is one party's verified (or claimed) opening of the dealt
// polynomial.
type ShareEntry struct {
	Share kyber.Scalar
	Proof kzg10.Proof
}

// ShareSet holds an optional commitment plus the openings collected so
// far for one phase of one round. A node keeps two: the Sharing set,
// populated while verifying the dealer's broadcast, and the Reconstruct
// set, cloned from it at the start of Reconstruction and then extended
// with peers' NEWSHARE contributions.
type ShareSet struct {
	Comm *kzg10.Commitment
	Set  map[uint16]ShareEntry
}

// NewShareSet returns an empty set.
func NewShareSet() *ShareSet {
	return &ShareSet{Set: make(map[uint16]ShareEntry)}
}

// Clear empties the set, dropping any held commitment. Called at the
// start of every SETUP.
func (s *ShareSet) Clear() {
	s.Comm = nil
	s.Set = make(map[uint16]ShareEntry)
}

// Len reports how many parties' openings are currently held.
func (s *ShareSet) Len() int {
	return len(s.Set)
}

// Get returns party i's entry, if present.
func (s *ShareSet) Get(i uint16) (ShareEntry, bool) {
	e, ok := s.Set[i]
	return e, ok
}

// Has reports whether party i already contributed an entry, the guard
// that makes repeated NEWSHARE delivery a no-op.
func (s *ShareSet) Has(i uint16) bool {
	_, ok := s.Set[i]
	return ok
}

// NewEntry inserts party i's opening iff absent, reporting whether it
// was newly inserted.
func (s *ShareSet) NewEntry(i uint16, e ShareEntry) bool {
	if s.Has(i) {
		return false
	}
	s.Set[i] = e
	return true
}

// SetComm attaches the commitment governing this phase.
func (s *ShareSet) SetComm(c kzg10.Commitment) {
	cc := c
	s.Comm = &cc
}

// Clone deep-copies the set's entries and commitment, the mechanism
// behind the transition into Reconstruction: sharing timings stay
// intact because they reference the original set, while the cloned set
// mutates independently as NEWSHARE messages arrive.
func (s *ShareSet) Clone() *ShareSet {
	out := NewShareSet()
	if s.Comm != nil {
		c := *s.Comm
		out.Comm = &c
	}
	for k, v := range s.Set {
		out.Set[k] = v
	}
	return out
}

// ExternNode is one party's known network address and signing key, as
// recorded in a node's public-key directory.
type ExternNode struct {
	Addr   string
	PubKey ed25519.PublicKey
}
