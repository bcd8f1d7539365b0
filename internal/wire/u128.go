package wire

import (
	"math/big"
	"time"
)

// U128 is a little-endian 128-bit unsigned integer, the wire shape used
// for the dealt secret and every duration field in ResultFields. Go has
// no native 128-bit integer, so it is carried as a pair of 64-bit halves.
type U128 struct {
	Lo uint64
	Hi uint64
}

// MaxU128 is 2^128 - 1, the literal secret used by the benchmark's
// canonical scenario.
var MaxU128 = U128{Lo: ^uint64(0), Hi: ^uint64(0)}

// U128FromBigInt truncates b to its low 128 bits.
func U128FromBigInt(b *big.Int) U128 {
	mask := new(big.Int).Lsh(big.NewInt(1), 128)
	mask.Sub(mask, big.NewInt(1))
	v := new(big.Int).And(b, mask)
	lo := new(big.Int).And(v, new(big.Int).SetUint64(^uint64(0)))
	hi := new(big.Int).Rsh(v, 64)
	return U128{Lo: lo.Uint64(), Hi: hi.Uint64()}
}

// BigInt widens u back into an unsigned big.Int.
func (u U128) BigInt() *big.Int {
	hi := new(big.Int).SetUint64(u.Hi)
	hi.Lsh(hi, 64)
	lo := new(big.Int).SetUint64(u.Lo)
	return hi.Or(hi, lo)
}

// U128FromDuration stores d as whole milliseconds.
func U128FromDuration(d time.Duration) U128 {
	return U128{Lo: uint64(d.Milliseconds()), Hi: 0}
}

// Duration reinterprets u as a millisecond count.
func (u U128) Duration() time.Duration {
	return time.Duration(u.Lo) * time.Millisecond
}
