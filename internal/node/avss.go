package node

import (
	"time"

	"github.com/drand/kyber"

	"avss-bench/internal/ed25519sig"
	"avss-bench/internal/kzg10"
	"avss-bench/internal/wire"
)

// buildFields assembles the parts of ResultFields this node already
// knows before a phase-specific timing (Verify or Reconstruction) is
// folded in: its own FirstReceiv timing, and — only if this node is the
// round's dealer — the Dealing/BroadCasting/MessagesComputing timings
// deal() recorded.
func (n *Node) buildFields() [9]wire.U128 {
	n.mu.Lock()
	defer n.mu.Unlock()
	var f [9]wire.U128
	f[fieldFirstReceiv] = wire.U128FromDuration(n.firstReceivDuration)
	if n.dealerTimingsSet && n.index == n.dealer {
		f[fieldDealing] = wire.U128FromDuration(n.dealerDealing)
		f[fieldBroadCasting] = wire.U128FromDuration(n.dealerBroadCasting)
		f[fieldMessagesComputing] = wire.U128FromDuration(n.dealerMessagesComputing)
	}
	return f
}

// firstReceiv is the non-dealer reaction to a privately delivered SHARE:
// accept and sign iff the commitment's degree bound matches and the
// opening verifies. A sleeper drops the message outright.
func (n *Node) firstReceiv(msg wire.ShareMsg) {
	start := time.Now()

	n.mu.Lock()
	n.awaitReady()
	sleeper := n.byzComp == wire.Sleeper
	idx := n.index
	t := n.t
	n.mu.Unlock()
	if sleeper {
		return
	}

	point := kzg10.ScalarFromIndex(n.suite, int(idx)+1)
	if !kzg10.DegCheck(msg.Commitment, int(2*t)) {
		return
	}
	if !kzg10.Verify(n.suite, msg.Commitment, point, msg.Share, msg.Proof) {
		return
	}

	sig := ed25519sig.Sign(n.priv, nil)

	n.mu.Lock()
	n.shareSet.NewEntry(idx, ShareEntry{Share: msg.Share, Proof: msg.Proof})
	dealerAddr := ""
	if e, ok := n.network[n.dealer]; ok {
		dealerAddr = e.Addr
	}
	n.firstReceivDuration = time.Since(start)
	n.mu.Unlock()

	if dealerAddr == "" {
		return
	}
	ack := wire.AckMsg{Index: idx, Sig: sig}
	if err := wire.Send(dealerAddr, byte(wire.ACK), ack.Encode()); err != nil {
		n.logger.Debug().Err(err).Msg("failed to send ACK")
	}
}

// verifyAndOutput runs the REST verification sequence from spec.md
// §4.3 step by step, short-circuiting to the matching ErrorCode the
// first time a check fails.
func (n *Node) verifyAndOutput(msg wire.RestMsg) {
	start := time.Now()

	n.mu.Lock()
	n.awaitReady()
	sleeper := n.byzComp == wire.Sleeper
	count := n.n
	t := n.t
	dealerIdx := n.dealer
	myIdx := n.index
	n.mu.Unlock()
	if sleeper {
		return
	}

	needed := int(2*t) + 1
	if len(msg.Signatures) != needed {
		n.emitSharingError(wire.UnvalidSigns)
		return
	}

	seen := make([]bool, count)
	for _, s := range msg.Signatures {
		if int(s.Index) >= int(count) || seen[s.Index] {
			n.emitSharingError(wire.UnvalidSigns)
			return
		}
		pub := n.peerPubKey(s.Index)
		if pub == nil || !ed25519sig.VerifySign(pub, nil, s.Sig) {
			n.emitSharingError(wire.UnvalidSigns)
			return
		}
		seen[s.Index] = true
	}

	if len(msg.Missing) > 0 {
		points := make([]kyber.Scalar, 0, len(msg.Missing))
		values := make([]kyber.Scalar, 0, len(msg.Missing))
		proofs := make([]kzg10.Proof, 0, len(msg.Missing))
		for _, m := range msg.Missing {
			points = append(points, kzg10.ScalarFromIndex(n.suite, int(m.Index)+1))
			values = append(values, m.Share)
			proofs = append(proofs, m.Proof)
		}
		ok, err := kzg10.BatchVerify(n.suite, msg.Commitment, points, values, proofs, testRNG())
		if err != nil || !ok {
			n.emitSharingError(wire.UnvalidShares)
			return
		}
	}

	for _, m := range msg.Missing {
		if seen[m.Index] {
			n.emitSharingError(wire.IncoherentBatch)
			return
		}
		seen[m.Index] = true
		n.mu.Lock()
		n.shareSet.NewEntry(m.Index, ShareEntry{Share: m.Share, Proof: m.Proof})
		n.mu.Unlock()
	}

	for _, ok := range seen {
		if !ok {
			n.emitSharingError(wire.MissingShare)
			return
		}
	}

	n.mu.Lock()
	n.shareSet.SetComm(msg.Commitment)
	n.mu.Unlock()

	fields := n.buildFields()
	fields[fieldVerify] = wire.U128FromDuration(time.Since(start))
	if myIdx == dealerIdx {
		n.mu.Lock()
		fields[fieldTotalSharing] = wire.U128FromDuration(time.Since(n.setupTimer))
		n.mu.Unlock()
	}
	n.sendOutput(StepSharing, wire.OK, fields)
}

func (n *Node) emitSharingError(code wire.ErrorCode) {
	fields := n.buildFields()
	n.sendOutput(StepSharing, code, fields)
}

// onReconstruct clones the Sharing set into the Reconstruct set, starts
// the reconstruction timer, and broadcasts this node's own opening to
// every peer. A sleeper ignores RECONSTRUCT entirely, per spec.md §4.2.
func (n *Node) onReconstruct() {
	n.mu.Lock()
	if n.byzComp == wire.Sleeper {
		n.mu.Unlock()
		return
	}
	n.reconstructShareSet = n.shareSet.Clone()
	n.reconstructTimer = time.Now()
	n.step = StepReconstruct
	n.imDone = false
	myIdx := n.index
	t := n.t
	set := n.reconstructShareSet
	peers := make(map[uint16]string, len(n.network))
	for i, e := range n.network {
		peers[i] = e.Addr
	}
	n.mu.Unlock()

	if entry, ok := set.Get(myIdx); ok {
		msg := wire.NewShareMsg{Index: myIdx, Share: entry.Share, Proof: entry.Proof}
		if body, err := msg.Encode(); err == nil {
			for i, addr := range peers {
				if i == myIdx {
					continue
				}
				n.mu.Lock()
				stopped := n.stop
				n.mu.Unlock()
				if stopped {
					break
				}
				if err := wire.Send(addr, byte(wire.NEWSHARE), body); err != nil {
					n.logger.Debug().Err(err).Str("addr", addr).Msg("NEWSHARE send failed")
				}
			}
		}
	}

	n.checkReconstructThreshold(set, t)
}

// onNewShare implements the Reconstructing state's NEWSHARE handler:
// idempotent insertion after verifying against the Sharing commitment,
// then a threshold check.
func (n *Node) onNewShare(msg wire.NewShareMsg) {
	n.mu.Lock()
	if n.byzComp == wire.Sleeper || n.step != StepReconstruct {
		n.mu.Unlock()
		return
	}
	set := n.reconstructShareSet
	if set.Has(msg.Index) {
		n.mu.Unlock()
		return
	}
	comm := set.Comm
	t := n.t
	n.mu.Unlock()
	if comm == nil {
		return
	}

	point := kzg10.ScalarFromIndex(n.suite, int(msg.Index)+1)
	if !kzg10.Verify(n.suite, *comm, point, msg.Share, msg.Proof) {
		return
	}

	n.mu.Lock()
	inserted := set.NewEntry(msg.Index, ShareEntry{Share: msg.Share, Proof: msg.Proof})
	ready := inserted && set.Len() > int(2*t) && !n.imDone
	n.mu.Unlock()
	if ready {
		n.outputReconstruct()
	}
}

func (n *Node) checkReconstructThreshold(set *ShareSet, t uint16) {
	n.mu.Lock()
	ready := set.Len() > int(2*t) && !n.imDone
	n.mu.Unlock()
	if ready {
		n.outputReconstruct()
	}
}

func (n *Node) outputReconstruct() {
	n.mu.Lock()
	elapsed := time.Since(n.reconstructTimer)
	n.mu.Unlock()
	var fields [9]wire.U128
	fields[fieldReconstruction] = wire.U128FromDuration(elapsed)
	n.sendOutput(StepReconstruct, wire.OK, fields)
}

// onStop is the cooperative cancel that ends a node's Reconstruction
// emission: it records the elapsed time as-is and emits exactly once,
// guarded the same way outputReconstruct is. A sleeper was never in
// Reconstructing (it dropped RECONSTRUCT outright) and stays silent.
func (n *Node) onStop() {
	n.mu.Lock()
	if n.byzComp == wire.Sleeper {
		n.mu.Unlock()
		return
	}
	n.stop = true
	elapsed := time.Since(n.reconstructTimer)
	n.mu.Unlock()
	var fields [9]wire.U128
	fields[fieldReconstruction] = wire.U128FromDuration(elapsed)
	n.sendOutput(StepReconstruct, wire.OK, fields)
}
