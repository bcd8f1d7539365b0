package orchestrator

import (
	"encoding/json"
	"fmt"
)

// VariationData is one field's sweep: the dimension being varied and the
// ordered list of values it takes.
type VariationData struct {
	Field  TypeField
	Values []uint16
}

// ParseVariation decodes a config entry that is either a single integer
// (a one-point "sweep"), or an array possibly containing the literal
// token ".." which expands inclusively to the run of integers between
// its neighbors: [a, "..", b] => [a, a+1, ..., b-1, b].
func ParseVariation(field TypeField, raw json.RawMessage) (VariationData, error) {
	var single float64
	if err := json.Unmarshal(raw, &single); err == nil {
		return VariationData{Field: field, Values: []uint16{uint16(single)}}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return VariationData{}, fmt.Errorf("orchestrator: invalid variation for %s: %w", field, err)
	}

	values := make([]uint16, 0, len(items))
	pendingExpand := false
	for _, item := range items {
		var tok string
		if err := json.Unmarshal(item, &tok); err == nil {
			if tok != ".." {
				return VariationData{}, fmt.Errorf("orchestrator: unexpected token %q in variation", tok)
			}
			if len(values) == 0 {
				return VariationData{}, fmt.Errorf("orchestrator: %q token with no preceding value", "..")
			}
			pendingExpand = true
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err != nil {
			return VariationData{}, fmt.Errorf("orchestrator: invalid variation element: %w", err)
		}
		to := uint16(n)
		if pendingExpand {
			from := values[len(values)-1] + 1
			for v := from; v < to; v++ {
				values = append(values, v)
			}
			pendingExpand = false
		}
		values = append(values, to)
	}
	return VariationData{Field: field, Values: values}, nil
}

// Variation tracks progress sweeping through VariationData for one
// SubArgs: which position is current, and the in-flight accumulator for
// the hmt rounds run at that position.
type Variation struct {
	Data       VariationData
	Index      int
	roundCount uint16
	Conclusion *ResultFields
}

// NewVariation starts a variation at its first position.
func NewVariation(data VariationData) *Variation {
	return &Variation{Data: data, Conclusion: NewResultFields()}
}

// Current is the field value at the variation's current position.
func (v *Variation) Current() uint16 {
	if v.Index >= len(v.Data.Values) {
		return v.Data.Values[len(v.Data.Values)-1]
	}
	return v.Data.Values[v.Index]
}

// Finished reports whether every position has been visited.
func (v *Variation) Finished() bool {
	return v.Index >= len(v.Data.Values)
}

// ResetRound zeroes the in-flight accumulator without moving Index,
// used when switching into the Reconstruct step at the same parameter
// point.
func (v *Variation) ResetRound() {
	v.roundCount = 0
	v.Conclusion = NewResultFields()
}

// ResetFull rewinds to the first position, used when a SubArg is
// restarted for a fresh Evaluation.
func (v *Variation) ResetFull() {
	v.Index = 0
	v.ResetRound()
}

// EvolveSamePosition folds one round's result into the accumulator like
// Evolve, but never advances Index: used when a position's Sharing pass
// concludes and still owes a Reconstruct pass at the same parameter
// value. Returns nil until hmt rounds have landed.
func (v *Variation) EvolveSamePosition(hmt uint16, result *ResultFields) (conclusion *ResultFields) {
	v.Conclusion.AddAssign(result)
	v.roundCount++
	if v.roundCount < hmt {
		return nil
	}
	concluded := v.Conclusion.DivideHmt(hmt)
	v.ResetRound()
	return concluded
}

// Evolve folds one round's result into the accumulator. Once hmt rounds
// have landed at the current position, it extracts the per-position
// mean, advances to the next position, and reports whether the
// variation is now exhausted.
func (v *Variation) Evolve(hmt uint16, result *ResultFields) (finished bool, conclusion *ResultFields) {
	v.Conclusion.AddAssign(result)
	v.roundCount++
	if v.roundCount < hmt {
		return false, nil
	}
	concluded := v.Conclusion.DivideHmt(hmt)
	v.Index++
	v.ResetRound()
	return v.Finished(), concluded
}
