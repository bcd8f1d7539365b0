package orchestrator

import (
	"math/big"

	"avss-bench/internal/wire"
)

// TypeResultField indexes the nine timing slots of ResultFields, in the
// same order a node's OutputMsg carries them.
type TypeResultField int

const (
	Verify TypeResultField = iota
	Dealing
	FirstReceiv
	BroadCasting
	MessagesComputing
	TotalSharing
	Reconstruction
	DebitSharing
	DebitReconstruct
)

var latencyFieldNames = [...]string{
	"verify", "dealing", "first_receiv", "broadcasting",
	"messages_computing", "total_sharing", "total_reconstruct",
}

var debitFieldNames = [...]string{"sharing", "reconstruct"}

// latencyFieldByName maps a config metric name to its ResultFields slot;
// only the seven latency-carrying slots have names here; Debit slots are
// addressed through debitFieldByName instead.
func latencyFieldByName(name string) (TypeResultField, bool) {
	switch name {
	case "verify":
		return Verify, true
	case "dealing":
		return Dealing, true
	case "first_receiv":
		return FirstReceiv, true
	case "broadcasting":
		return BroadCasting, true
	case "messages_computing":
		return MessagesComputing, true
	case "total_sharing":
		return TotalSharing, true
	case "total_reconstruct":
		return Reconstruction, true
	}
	return 0, false
}

func debitFieldByName(name string) (TypeResultField, bool) {
	switch name {
	case "sharing":
		return DebitSharing, true
	case "reconstruct":
		return DebitReconstruct, true
	}
	return 0, false
}

// ResultFields is the orchestrator-side accumulator mirroring the nine
// u128 duration fields a node reports, plus the worst ErrorCode observed
// while accumulating.
type ResultFields struct {
	Values [9]*big.Int
	Code   wire.ErrorCode
}

// NewResultFields returns an all-zero accumulator.
func NewResultFields() *ResultFields {
	r := &ResultFields{}
	for i := range r.Values {
		r.Values[i] = big.NewInt(0)
	}
	return r
}

// IsErr reports whether any accumulated round signalled a non-OK code.
func (r *ResultFields) IsErr() bool { return r.Code != wire.OK }

// AddOutput folds one node's OUTPUT into the accumulator.
func (r *ResultFields) AddOutput(out wire.OutputMsg) {
	for i, f := range out.Fields {
		r.Values[i].Add(r.Values[i], f.BigInt())
	}
	if out.Code != wire.OK {
		r.Code = out.Code
	}
}

// AddAssign folds another accumulator's totals into r.
func (r *ResultFields) AddAssign(other *ResultFields) {
	for i := range r.Values {
		r.Values[i].Add(r.Values[i], other.Values[i])
	}
	if other.Code != wire.OK {
		r.Code = other.Code
	}
}

// DivideFields divides the given fields' accumulated sums by n in
// place — used once per completed round to turn the Verify/FirstReceiv
// sums (reported by every node) into per-round means, while leaving
// single-source fields (Dealing, Reconstruction, ...) untouched.
func (r *ResultFields) DivideFields(n uint16, fields ...TypeResultField) {
	if n == 0 {
		return
	}
	d := big.NewInt(int64(n))
	for _, f := range fields {
		r.Values[f].Div(r.Values[f], d)
	}
}

// DivideHmt returns a new accumulator with every field divided by hmt,
// the per-variation-point average materialized at conclusion time.
func (r *ResultFields) DivideHmt(hmt uint16) *ResultFields {
	out := NewResultFields()
	out.Code = r.Code
	if hmt == 0 {
		return out
	}
	d := big.NewInt(int64(hmt))
	for i := range r.Values {
		out.Values[i].Div(r.Values[i], d)
	}
	return out
}

// Clone deep-copies the accumulator.
func (r *ResultFields) Clone() *ResultFields {
	out := NewResultFields()
	out.Code = r.Code
	for i := range r.Values {
		out.Values[i].Set(r.Values[i])
	}
	return out
}
