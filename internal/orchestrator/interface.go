package orchestrator

import (
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"avss-bench/internal/netutil"
	"avss-bench/internal/wire"
)

// Interface is the orchestrating TCP server: it addresses the already-
// running node pool, drives each SubArg's sweep through SETUP/DEALTHIS/
// RECONSTRUCT/STOP, and accumulates every node's OUTPUT into the running
// ResultFields.
type Interface struct {
	mu sync.Mutex

	addr   string
	logger zerolog.Logger

	args *Args

	// nodes maps registration order to address; node `nbByz` of the
	// current round is always the designated dealer, the first
	// non-Sleeper index.
	nodes map[uint16]string

	round              *ResultFields
	outputs            int
	expectConnections  int
	step               Step
	tPlus1             int
	stopSent           bool
	currentN           uint16
	reconstructStart   time.Time
	reconstructSnapsMs int64
	roundDone          chan struct{}

	interrupt bool
}

// NewInterface constructs an Interface bound to addr, driving the given
// plan.
func NewInterface(addr string, args *Args, logger zerolog.Logger) *Interface {
	return &Interface{
		addr:   addr,
		logger: logger,
		args:   args,
		nodes:  make(map[uint16]string),
	}
}

// Serve starts accepting CONNECT/OUTPUT/INTERRUPT messages.
func (in *Interface) Serve() (net.Listener, error) {
	return netutil.Serve(in.addr, in.logger, in.handleConn)
}

func (in *Interface) handleConn(conn net.Conn) {
	defer conn.Close()
	code, body, err := wire.ReadFrame(conn)
	if err != nil {
		in.logger.Debug().Err(err).Msg("failed to read frame")
		return
	}
	srcIP := netutil.SourceIP(conn)
	switch wire.InterfaceCode(code) {
	case wire.CONNECT:
		msg, err := wire.DecodeConnect(body)
		if err != nil {
			in.logger.Error().Err(err).Msg("bad CONNECT")
			return
		}
		in.onConnect(fmt.Sprintf("%s:%d", srcIP, msg.Port))
	case wire.OUTPUT:
		msg, err := wire.DecodeOutput(body)
		if err != nil {
			in.logger.Error().Err(err).Msg("bad OUTPUT")
			return
		}
		in.onOutput(msg)
	case wire.INTERRUPT:
		in.mu.Lock()
		in.interrupt = true
		in.mu.Unlock()
	default:
		in.logger.Warn().Stringer("code", wire.InterfaceCode(code)).Msg("unexpected interface message")
	}
}

// onConnect records a freshly-registered node's address in registration
// order.
func (in *Interface) onConnect(addr string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	idx := uint16(len(in.nodes))
	in.nodes[idx] = addr
}

// onOutput accumulates one node's result into the in-flight round. When
// driving a Reconstruct-step round and output_count reaches t+1, it
// snapshots the elapsed reconstruction time and sends STOP to every
// node in the round, short-circuiting the honest stragglers — per
// spec.md §4.4 step 4.
func (in *Interface) onOutput(msg wire.OutputMsg) {
	in.mu.Lock()
	if in.round == nil {
		in.mu.Unlock()
		return
	}
	in.round.AddOutput(msg)
	in.outputs++

	if in.step == Reconstruct && !in.stopSent && in.outputs >= in.tPlus1 {
		in.reconstructSnapsMs = time.Since(in.reconstructStart).Milliseconds()
		in.stopSent = true
		n := in.currentN
		in.mu.Unlock()
		in.stop(n)
		in.mu.Lock()
	}

	if in.roundDone != nil && in.outputs >= in.expectConnections {
		close(in.roundDone)
		in.roundDone = nil
	}
	in.mu.Unlock()
}

// waitForConnections blocks until n distinct CONNECT handshakes have
// landed.
func (in *Interface) waitForConnections(n int) {
	for {
		in.mu.Lock()
		have := len(in.nodes)
		in.mu.Unlock()
		if have >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (in *Interface) peerAddrs(n uint16) []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	peers := make([]string, 0, n)
	for i := uint16(0); i < n; i++ {
		peers = append(peers, in.nodes[i])
	}
	return peers
}

// sendSetup distributes SETUP to every node in the round. The first
// NbByz indices (by registration order) are assigned Sleeper behavior;
// node NbByz — the first non-Sleeper index — is always the dealer.
func (in *Interface) sendSetup(fields Fields) {
	n := fields.N()
	t := fields.T()
	nbByz := fields.NbByz()
	peers := in.peerAddrs(n)

	for i := uint16(0); i < n; i++ {
		bc := wire.Honnest
		if i < nbByz {
			bc = wire.Sleeper
		}
		msg := wire.SetupMsg{Dealer: nbByz, ByzComp: bc, T: t, N: n, Peers: peers}
		if err := wire.Send(peers[i], byte(wire.SETUP), msg.Encode()); err != nil {
			in.logger.Error().Err(err).Str("addr", peers[i]).Msg("failed to send SETUP")
		}
	}
}

// dealThis signals the round's dealer (node NbByz) to deal the
// canonical benchmark secret u128::MAX — spec.md §4.4 step 3.
func (in *Interface) dealThis(fields Fields) {
	peers := in.peerAddrs(fields.N())
	dealerAddr := peers[fields.NbByz()]
	msg := wire.DealThisMsg{Secret: wire.MaxU128}
	if err := wire.Send(dealerAddr, byte(wire.DEALTHIS), msg.Encode()); err != nil {
		in.logger.Error().Err(err).Msg("failed to send DEALTHIS")
	}
}

// reconstruct broadcasts RECONSTRUCT to every node in the round.
func (in *Interface) reconstruct(fields Fields) {
	for _, addr := range in.peerAddrs(fields.N()) {
		if err := wire.Send(addr, byte(wire.RECONSTRUCT), nil); err != nil {
			in.logger.Error().Err(err).Str("addr", addr).Msg("failed to send RECONSTRUCT")
		}
	}
}

// stop broadcasts STOP to every node among the first n registered.
func (in *Interface) stop(n uint16) {
	for _, addr := range in.peerAddrs(n) {
		if err := wire.Send(addr, byte(wire.STOP), nil); err != nil {
			in.logger.Error().Err(err).Str("addr", addr).Msg("failed to send STOP")
		}
	}
}

// runPhaseRound drives exactly one round of a single phase (Sharing or
// Reconstruct, never both) and returns that round's ResultFields. Sleeper
// nodes (the first NbByz indices) never emit an OUTPUT in either phase,
// so the round is considered complete once the n-NbByz active nodes have
// all reported.
func (in *Interface) runPhaseRound(fields Fields, step Step) (*ResultFields, error) {
	roundID := uuid.New().String()
	logger := in.logger.With().Str("round_id", roundID).Logger()
	active := int(fields.N()) - int(fields.NbByz())
	in.waitForConnections(int(fields.N()))
	logger.Debug().Int("n", int(fields.N())).Int("active", active).Msg("round starting")

	done := make(chan struct{})
	in.mu.Lock()
	in.round = NewResultFields()
	in.outputs = 0
	in.expectConnections = active
	in.step = step
	in.stopSent = false
	in.tPlus1 = int(fields.T()) + 1
	in.currentN = fields.N()
	in.roundDone = done
	in.mu.Unlock()

	if step == Sharing {
		in.sendSetup(fields)
		in.dealThis(fields)
	} else {
		in.mu.Lock()
		in.reconstructStart = time.Now()
		in.mu.Unlock()
		in.reconstruct(fields)
	}

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("orchestrator: timed out waiting for %v outputs", step)
	}

	in.mu.Lock()
	result := in.round.Clone()
	snapshotMs := in.reconstructSnapsMs
	in.round = nil
	in.mu.Unlock()

	if step == Sharing {
		result.DivideFields(fields.N(), Verify, FirstReceiv)
	} else {
		result.Values[Reconstruction] = big.NewInt(snapshotMs)
	}
	logger.Debug().Msg("round complete")
	return result, nil
}

func (in *Interface) interrupted() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.interrupt
}

// Run drives the whole plan to completion, honoring Latency and Debit
// Evaluations, the OnlyOnce/share-once behavior, and the Reconstruct
// step switch, then writes the concluded JSON.
func (in *Interface) Run() error {
	if err := in.args.Init(); err != nil {
		return err
	}
	for !in.interrupted() {
		sa := in.args.CurrentSubArgs()
		eval := &in.args.Eval

		fields := sa.Fields
		fields.Set(sa.Variation.Data.Field, sa.Variation.Current())

		var err error
		var subArgFinished bool
		if eval.Kind == Debit {
			subArgFinished, err = in.stepDebit(sa, eval, fields)
		} else {
			subArgFinished, err = in.stepLatency(sa, eval, fields)
		}
		if err != nil {
			return err
		}
		if subArgFinished {
			if err := in.args.RecoverSubArg(sa); err != nil {
				in.logger.Error().Err(err).Msg("failed to append recovery entry")
			}
			sa.Variation.ResetFull()
			eval.Step = Sharing
			if in.args.AdvanceSubArgs() {
				break
			}
		}
	}
	return in.args.Conclude()
}

// stepLatency drives one round of Latency evaluation at the current
// Variation position, advancing hmt/position bookkeeping per §4.4.2.
func (in *Interface) stepLatency(sa *SubArgs, eval *Evaluation, fields Fields) (subArgFinished bool, err error) {
	result, err := in.runPhaseRound(fields, eval.Step)
	if err != nil {
		return false, err
	}
	hmt := sa.EffectiveHmt(*eval)

	if eval.Step == Sharing && sa.HasReconstructMetric(*eval) {
		// This position still owes a Reconstruct pass: accumulate without
		// advancing the Variation's index.
		if concluded := sa.Variation.EvolveSamePosition(hmt, result); concluded != nil {
			sa.AddResult(*eval, concluded)
			eval.Step = Reconstruct
		}
		return false, nil
	}

	finished, concluded := sa.Variation.Evolve(hmt, result)
	if concluded != nil {
		sa.AddResult(*eval, concluded)
	}
	if finished {
		return true, nil
	}
	if eval.Step == Reconstruct {
		eval.Step = Sharing
	}
	return false, nil
}

// stepDebit drives the throughput loop of §4.4.1: repeat full rounds
// back to back for DebitDuration, counting completions into
// DebitSharing/DebitReconstruct, then fold the count into the Variation
// accumulator the same way a latency round folds in its timings.
func (in *Interface) stepDebit(sa *SubArgs, eval *Evaluation, fields Fields) (subArgFinished bool, err error) {
	start := time.Now()
	var completed int64
	for time.Since(start) < sa.DebitDuration {
		if eval.Step == Reconstruct {
			// A Reconstruct round needs a populated ShareSet; run one
			// untimed Sharing pass immediately before it.
			if _, err := in.runPhaseRound(fields, Sharing); err != nil {
				return false, err
			}
		}
		if _, err := in.runPhaseRound(fields, eval.Step); err != nil {
			return false, err
		}
		completed++
	}

	result := NewResultFields()
	if eval.Step == Reconstruct {
		result.Values[DebitReconstruct] = big.NewInt(completed)
	} else {
		result.Values[DebitSharing] = big.NewInt(completed)
	}

	hmt := sa.EffectiveHmt(*eval)
	if eval.Step == Sharing && sa.HasReconstructMetric(*eval) {
		if concluded := sa.Variation.EvolveSamePosition(hmt, result); concluded != nil {
			sa.AddResult(*eval, concluded)
			eval.Step = Reconstruct
		}
		return false, nil
	}

	finished, concluded := sa.Variation.Evolve(hmt, result)
	if concluded != nil {
		sa.AddResult(*eval, concluded)
	}
	if finished {
		return true, nil
	}
	if eval.Step == Reconstruct {
		eval.Step = Sharing
	}
	return false, nil
}
