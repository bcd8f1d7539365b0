package orchestrator

import (
	"encoding/json"
	"math/big"
	"testing"

	"avss-bench/internal/wire"
)

func TestFieldsT(t *testing.T) {
	f := DefaultFields() // n=61, t_denom=20
	// floor((61-1) * 20 / 100) = floor(1200/100) = 12
	if got := f.T(); got != 12 {
		t.Fatalf("T(): got %d want 12", got)
	}
}

func TestDisplayValue(t *testing.T) {
	// floor((n-1)/raw)
	if got := DisplayValue(FieldTDenom, 61, 20); got != 3 {
		t.Fatalf("DisplayValue(TDenom): got %d want 3", got)
	}
	if got := DisplayValue(FieldN, 61, 20); got != 20 {
		t.Fatalf("DisplayValue(N): got %d want 20 (pass-through)", got)
	}
}

func TestParseVariationSinglePoint(t *testing.T) {
	vd, err := ParseVariation(FieldN, json.RawMessage(`16`))
	if err != nil {
		t.Fatalf("ParseVariation: %v", err)
	}
	if len(vd.Values) != 1 || vd.Values[0] != 16 {
		t.Fatalf("got %v want [16]", vd.Values)
	}
}

func TestParseVariationRangeExpansion(t *testing.T) {
	vd, err := ParseVariation(FieldN, json.RawMessage(`[4, "..", 8]`))
	if err != nil {
		t.Fatalf("ParseVariation: %v", err)
	}
	want := []uint16{4, 5, 6, 7, 8}
	if len(vd.Values) != len(want) {
		t.Fatalf("got %v want %v", vd.Values, want)
	}
	for i, v := range want {
		if vd.Values[i] != v {
			t.Fatalf("got %v want %v", vd.Values, want)
		}
	}
}

func TestParseVariationMultiSegmentExpansion(t *testing.T) {
	vd, err := ParseVariation(FieldN, json.RawMessage(`[2, "..", 4, 10, "..", 12]`))
	if err != nil {
		t.Fatalf("ParseVariation: %v", err)
	}
	want := []uint16{2, 3, 4, 10, 11, 12}
	if len(vd.Values) != len(want) {
		t.Fatalf("got %v want %v", vd.Values, want)
	}
	for i, v := range want {
		if vd.Values[i] != v {
			t.Fatalf("got %v want %v", vd.Values, want)
		}
	}
}

func TestParseVariationRejectsLeadingToken(t *testing.T) {
	if _, err := ParseVariation(FieldN, json.RawMessage(`["..", 4]`)); err == nil {
		t.Fatal("expected an error for a leading \"..\" token")
	}
}

func TestVariationEvolve(t *testing.T) {
	v := NewVariation(VariationData{Field: FieldN, Values: []uint16{4, 8}})
	r := NewResultFields()
	r.Values[Verify] = big.NewInt(10)

	finished, concluded := v.Evolve(2, r)
	if finished {
		t.Fatal("expected not finished after only 1 of 2 hmt rounds")
	}
	if concluded != nil {
		t.Fatal("expected no conclusion mid-hmt")
	}

	finished, concluded = v.Evolve(2, r)
	if finished {
		t.Fatal("expected not finished: one more position remains")
	}
	if concluded == nil || concluded.Values[Verify].Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected averaged Verify=10, got %v", concluded)
	}
	if v.Current() != 8 {
		t.Fatalf("expected to have advanced to the second position, got %d", v.Current())
	}
}

func TestResultFieldsDivideFields(t *testing.T) {
	r := NewResultFields()
	r.Values[Verify] = big.NewInt(40)
	r.Values[Dealing] = big.NewInt(40)
	r.DivideFields(4, Verify)
	if r.Values[Verify].Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("Verify: got %v want 10", r.Values[Verify])
	}
	if r.Values[Dealing].Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("Dealing should be untouched by DivideFields(Verify): got %v", r.Values[Dealing])
	}
}

func TestResultFieldsAddOutputTracksWorstCode(t *testing.T) {
	r := NewResultFields()
	r.AddOutput(wire.OutputMsg{Code: wire.OK})
	r.AddOutput(wire.OutputMsg{Code: wire.MissingShare})
	if !r.IsErr() {
		t.Fatal("expected IsErr() once any non-OK output lands")
	}
}

func TestSubArgsOnlyOnce(t *testing.T) {
	sa := NewSubArgs(DefaultFields(), NewVariation(VariationData{Field: FieldN, Values: []uint16{4}}))
	sa.HasLatencyCfg = true
	sa.LatencySteps = []string{"total_reconstruct"}
	eval := Evaluation{Kind: Latency, Step: Sharing}
	if !sa.OnlyOnce(eval) {
		t.Fatal("a reconstruct-only latency SubArg should be OnlyOnce")
	}

	sa.LatencySteps = []string{"verify", "total_reconstruct"}
	if sa.OnlyOnce(eval) {
		t.Fatal("a SubArg requesting a Sharing-phase metric should not be OnlyOnce")
	}
}

func TestLoadConfig(t *testing.T) {
	raw := []byte(`[
		{"output": "run1", "recovering_file": "recover.jsonl"},
		{
			"setup": {"n": [4, "..", 6], "nb_byz": 0},
			"latency": {"hmt": 2, "steps": ["verify", "total_reconstruct"]}
		},
		{
			"setup": {"n": 10},
			"debit": {"hmt": 1, "duration": 5, "sharing": true, "reconstruct": false}
		}
	]`)

	args, err := LoadConfig(raw)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if args.Output != "run1" {
		t.Fatalf("Output: got %q want run1", args.Output)
	}
	if args.RecoveringFile != "recover.jsonl" {
		t.Fatalf("RecoveringFile: got %q want recover.jsonl", args.RecoveringFile)
	}
	if len(args.SubArgsList) != 2 {
		t.Fatalf("expected 2 SubArgs, got %d", len(args.SubArgsList))
	}

	sa0 := args.SubArgsList[0]
	if sa0.Variation.Data.Field != FieldN {
		t.Fatalf("expected Variation over FieldN, got %s", sa0.Variation.Data.Field)
	}
	wantN := []uint16{4, 5, 6}
	if len(sa0.Variation.Data.Values) != len(wantN) {
		t.Fatalf("got %v want %v", sa0.Variation.Data.Values, wantN)
	}
	if !sa0.HasLatencyCfg || sa0.LatencyHmt != 2 {
		t.Fatalf("expected a latency block with hmt=2, got %+v", sa0)
	}

	sa1 := args.SubArgsList[1]
	if !sa1.HasDebitCfg || sa1.DebitHmt != 1 || !sa1.DebitSharing || sa1.DebitReconstruct {
		t.Fatalf("unexpected debit block: %+v", sa1)
	}

	if err := args.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if args.Eval.Kind != Latency {
		t.Fatalf("expected Init to pick the latency SubArg first, got %v", args.Eval.Kind)
	}
}
