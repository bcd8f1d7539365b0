package orchestrator

import "avss-bench/internal/wire"

// TypeField names one of the four parameters a Variation can sweep.
type TypeField int

const (
	FieldN TypeField = iota
	FieldTDenom
	FieldNbByz
	FieldByzComp
)

var fieldNames = [...]string{"n", "t", "nb_byz", "byz_comp"}

func (f TypeField) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return "unknown_field"
}

// FieldFromName looks up a TypeField by its config-file name.
func FieldFromName(name string) (TypeField, bool) {
	for i, n := range fieldNames {
		if n == name {
			return TypeField(i), true
		}
	}
	return 0, false
}

// Fields holds the four round parameters a SubArgs sweeps across. T is
// not stored directly: it is derived from TDenom as a percentage of
// n-1, the behavior carried from the original config_treatment/fields.rs
// rather than guessed (see DESIGN.md).
type Fields struct {
	values [4]uint16
}

// DefaultFields mirrors the upstream default: n=61, t_denom=20 (i.e.
// t ~= (n-1)*0.2), nb_byz=0, byz_comp=Honnest.
func DefaultFields() Fields {
	return Fields{values: [4]uint16{61, 20, 0, uint16(wire.Honnest)}}
}

func (f Fields) Get(field TypeField) uint16 { return f.values[field] }

func (f *Fields) Set(field TypeField, v uint16) { f.values[field] = v }

// N is the population size for the round.
func (f Fields) N() uint16 { return f.values[FieldN] }

// NbByz is how many of the first parties are assigned Sleeper behavior.
func (f Fields) NbByz() uint16 { return f.values[FieldNbByz] }

// ByzCompValue is the raw byz_comp field value (only meaningful when the
// variation dimension itself is ByzComp).
func (f Fields) ByzCompValue() wire.ByzComp { return wire.ByzComp(f.values[FieldByzComp]) }

// T derives the round's threshold as floor((n-1) * TDenom / 100), the
// percentage-of-(n-1) relationship the original config carries instead
// of a raw threshold field.
func (f Fields) T() uint16 {
	n := f.N()
	if n == 0 {
		return 0
	}
	return uint16((uint32(n-1) * uint32(f.values[FieldTDenom])) / 100)
}

// TDenom is the raw percentage denominator backing T().
func (f Fields) TDenom() uint16 { return f.values[FieldTDenom] }

// DisplayValue returns how a raw variation value for this field should
// be reported in the conclusion JSON. TDenom points are shown as
// floor((n-1)/raw) rather than the raw denominator; every other field
// is shown as-is.
func DisplayValue(field TypeField, n, raw uint16) uint16 {
	if field == FieldTDenom {
		if raw == 0 {
			return 0
		}
		return (n - 1) / raw
	}
	return raw
}
