package orchestrator

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"
)

type configHeader struct {
	Output         string  `json:"output"`
	RecoveringFile *string `json:"recovering_file,omitempty"`
}

type configDebit struct {
	Hmt         uint16 `json:"hmt"`
	Duration    uint64 `json:"duration"`
	Sharing     bool   `json:"sharing,omitempty"`
	Reconstruct bool   `json:"reconstruct,omitempty"`
}

type configLatency struct {
	Hmt   uint16   `json:"hmt"`
	Steps []string `json:"steps"`
}

type configSubArgs struct {
	Setup   map[string]json.RawMessage `json:"setup,omitempty"`
	Debit   *configDebit               `json:"debit,omitempty"`
	Latency *configLatency             `json:"latency,omitempty"`
}

// Args holds the full benchmarking plan: the ordered SubArgs list, a
// cursor into it, the current Evaluation, and the output/recovery file
// names.
type Args struct {
	Output         string
	RecoveringFile string

	SubArgsList []*SubArgs
	Current     int
	Eval        Evaluation
}

// LoadConfigFile parses the config JSON described in spec.md §6: a JSON
// array whose first element is the run header and whose remaining
// elements are SubArgs entries.
func LoadConfigFile(path string) (*Args, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadConfig(data)
}

// LoadConfig parses config JSON already read into memory.
func LoadConfig(data []byte) (*Args, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("orchestrator: invalid config: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("orchestrator: empty config")
	}
	var header configHeader
	if err := json.Unmarshal(raw[0], &header); err != nil {
		return nil, fmt.Errorf("orchestrator: invalid config header: %w", err)
	}

	args := &Args{Output: header.Output}
	if header.RecoveringFile != nil {
		args.RecoveringFile = *header.RecoveringFile
	}

	for _, entry := range raw[1:] {
		var cfg configSubArgs
		if err := json.Unmarshal(entry, &cfg); err != nil {
			return nil, fmt.Errorf("orchestrator: invalid SubArgs entry: %w", err)
		}
		sa, err := subArgsFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		args.SubArgsList = append(args.SubArgsList, sa)
	}
	return args, nil
}

func subArgsFromConfig(cfg configSubArgs) (*SubArgs, error) {
	fields := DefaultFields()
	var variation *Variation

	for key, raw := range cfg.Setup {
		field, ok := FieldFromName(key)
		if !ok {
			continue
		}
		vd, err := ParseVariation(field, raw)
		if err != nil {
			return nil, err
		}
		if len(vd.Values) > 1 {
			variation = NewVariation(vd)
		} else if len(vd.Values) == 1 {
			fields.Set(field, vd.Values[0])
		}
	}
	if variation == nil {
		variation = NewVariation(VariationData{Field: FieldN, Values: []uint16{fields.N()}})
	}
	fields.Set(variation.Data.Field, variation.Current())

	sa := NewSubArgs(fields, variation)

	if cfg.Latency != nil {
		sa.HasLatencyCfg = true
		sa.LatencyHmt = cfg.Latency.Hmt
		sa.LatencySteps = cfg.Latency.Steps
	}
	if cfg.Debit != nil {
		sa.HasDebitCfg = true
		sa.DebitHmt = cfg.Debit.Hmt
		sa.DebitDuration = time.Duration(cfg.Debit.Duration) * time.Second
		sa.DebitSharing = cfg.Debit.Sharing
		sa.DebitReconstruct = cfg.Debit.Reconstruct
	}
	return sa, nil
}

// Init locates the first SubArg declaring a latency metric, else the
// first declaring a throughput metric, and sets Eval accordingly with
// Step = Sharing.
func (a *Args) Init() error {
	for i, sa := range a.SubArgsList {
		if sa.HasLatency() {
			a.Current = i
			a.Eval = Evaluation{Kind: Latency, Step: Sharing}
			return nil
		}
	}
	for i, sa := range a.SubArgsList {
		if sa.HasDebit() {
			a.Current = i
			a.Eval = Evaluation{Kind: Debit, Step: Sharing}
			return nil
		}
	}
	return fmt.Errorf("orchestrator: config declares no latency or debit SubArgs")
}

// CurrentSubArgs returns the SubArgs the sweep is presently driving.
func (a *Args) CurrentSubArgs() *SubArgs {
	return a.SubArgsList[a.Current]
}

// AdvanceSubArgs moves to the next SubArg declaring the current
// Evaluation's metric kind. When none remains: if we were in Latency,
// jump to the first SubArg declaring Debit; otherwise report the plan
// is concluded.
func (a *Args) AdvanceSubArgs() (concluded bool) {
	for i := a.Current + 1; i < len(a.SubArgsList); i++ {
		sa := a.SubArgsList[i]
		if (a.Eval.Kind == Latency && sa.HasLatency()) || (a.Eval.Kind == Debit && sa.HasDebit()) {
			a.Current = i
			a.Eval.Step = Sharing
			return false
		}
	}
	if a.Eval.Kind == Latency {
		for i, sa := range a.SubArgsList {
			if sa.HasDebit() {
				a.Current = i
				a.Eval = Evaluation{Kind: Debit, Step: Sharing}
				return false
			}
		}
	}
	return true
}

// subArgConclusion is the JSON shape emitted per finished SubArg. Args
// is a plain map rather than a fixed struct because the three
// non-varied fields are inserted under their own names ("n", "t",
// "nb_byz", "byz_comp", whichever aren't "field") directly alongside "field" and
// "variation" — matching the original tool's get_field_and_var, which
// the plotting companion reading this file expects, rather than
// grouping them behind a nested "base_state" key.
type subArgConclusion struct {
	Args    map[string]interface{} `json:"args"`
	Debit   map[string][]*big.Int  `json:"debit,omitempty"`
	Latency map[string][]*big.Int  `json:"latency,omitempty"`
}

func conclude(sa *SubArgs) subArgConclusion {
	var c subArgConclusion
	n := sa.Fields.N()
	variedField := sa.Variation.Data.Field

	variation := make([]uint16, 0, len(sa.Variation.Data.Values))
	for _, raw := range sa.Variation.Data.Values {
		variation = append(variation, DisplayValue(variedField, n, raw))
	}

	args := map[string]interface{}{
		"field":     variedField.String(),
		"variation": variation,
	}
	for _, f := range []TypeField{FieldN, FieldTDenom, FieldNbByz, FieldByzComp} {
		if f == variedField {
			continue
		}
		args[f.String()] = DisplayValue(f, n, sa.Fields.Get(f))
	}
	c.Args = args

	if len(sa.LatencyResult) > 0 {
		c.Latency = sa.LatencyResult
	}
	if len(sa.DebitResult) > 0 {
		c.Debit = sa.DebitResult
	}
	return c
}

// Conclude writes every SubArg's conclusion as a pretty-printed JSON
// array to ../configs/results/<output>.json, the path the original tool
// and its plotting companion both expect.
func (a *Args) Conclude() error {
	conclusions := make([]subArgConclusion, 0, len(a.SubArgsList))
	for _, sa := range a.SubArgsList {
		conclusions = append(conclusions, conclude(sa))
	}
	b, err := json.MarshalIndent(conclusions, "", "  ")
	if err != nil {
		return err
	}
	path := fmt.Sprintf("../configs/results/%s.json", a.Output)
	return os.WriteFile(path, b, 0o644)
}

// RecoverSubArg appends one SubArg's conclusion to the recovering file,
// if configured, the moment that SubArg finishes — crash-tolerant
// checkpointing supplemented from the original tool's behavior (see
// SPEC_FULL.md).
func (a *Args) RecoverSubArg(sa *SubArgs) error {
	if a.RecoveringFile == "" {
		return nil
	}
	b, err := json.Marshal(conclude(sa))
	if err != nil {
		return err
	}
	f, err := os.OpenFile(a.RecoveringFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(b, '\n'))
	return err
}
