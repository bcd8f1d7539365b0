// Package ed25519sig wraps stdlib Ed25519 signing with the fixed domain
// tag every acknowledgment in the protocol is signed under.
package ed25519sig

import (
	"crypto/ed25519"
	"errors"
)

// tag is prefixed to every signed message so a signature can never be
// replayed as if it meant something else.
var tag = []byte("SIGNATURE OF A NODE")

// GenerateKey creates a fresh signing keypair.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(nil)
}

// Sign signs msg under the fixed domain tag.
func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, tagged(msg))
}

// VerifySign reports whether sig is a valid signature over msg under the
// fixed domain tag, for the given public key.
func VerifySign(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, tagged(msg), sig)
}

func tagged(msg []byte) []byte {
	out := make([]byte, 0, len(tag)+len(msg))
	out = append(out, tag...)
	out = append(out, msg...)
	return out
}

// ErrBadKey is returned when a public key arrives at the wrong length.
var ErrBadKey = errors.New("ed25519sig: public key has wrong length")

// ParsePublicKey validates and wraps raw key bytes.
func ParsePublicKey(b []byte) (ed25519.PublicKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, ErrBadKey
	}
	pub := make([]byte, ed25519.PublicKeySize)
	copy(pub, b)
	return ed25519.PublicKey(pub), nil
}
