package node

import (
	"time"

	"github.com/drand/kyber"

	"avss-bench/internal/ed25519sig"
	"avss-bench/internal/kzg10"
	"avss-bench/internal/wire"
)

// deal runs the dealer role for this round: build the polynomial and
// commitment, privately deliver each party's opening, collect 2t+1
// signed acknowledgments, and broadcast the REST closing the phase.
func (n *Node) deal(secret wire.U128) {
	start := time.Now()

	n.mu.Lock()
	n.awaitReady()
	t, count := n.t, n.n
	degree := int(2 * t)
	peers := make(map[uint16]string, len(n.network))
	for i, e := range n.network {
		peers[i] = e.Addr
	}
	n.ackCh = make(chan ackReceived, 1000)
	ackCh := n.ackCh
	n.mu.Unlock()

	rng := testRNG()
	srs := kzg10.Setup(n.suite, degree, rng)
	secretScalar := kzg10.ScalarFromU128(n.suite, secret.Lo, secret.Hi)
	poly := kzg10.RandomPolynomial(n.suite, degree, secretScalar, rng)

	comm, err := kzg10.Commit(n.suite, srs, poly)
	if err != nil {
		n.logger.Error().Err(err).Msg("dealer commit failed")
		return
	}

	// Compute every opening before sending anything, so MessagesComputing
	// measures preparation time in isolation from network latency.
	proofByIndex := make(map[uint16]kzg10.Proof, count)
	shareByIndex := make(map[uint16]kyber.Scalar, count)
	for i := uint16(0); i < count; i++ {
		point := kzg10.ScalarFromIndex(n.suite, int(i)+1)
		proof, value, err := kzg10.Open(n.suite, srs, poly, point)
		if err != nil {
			n.logger.Error().Err(err).Msg("dealer open failed")
			return
		}
		proofByIndex[i] = proof
		shareByIndex[i] = value
	}
	messagesComputing := time.Since(start)

	for i := uint16(0); i < count; i++ {
		addr, ok := peers[i]
		if !ok {
			continue
		}
		shareMsg := wire.ShareMsg{Proof: proofByIndex[i], Commitment: comm, Share: shareByIndex[i]}
		body, err := shareMsg.Encode()
		if err != nil {
			n.logger.Error().Err(err).Msg("dealer encode SHARE failed")
			continue
		}
		if err := wire.Send(addr, byte(wire.SHARE), body); err != nil {
			n.logger.Debug().Err(err).Str("addr", addr).Msg("dealer SHARE send failed")
		}
	}

	needed := int(2*t) + 1
	signatures := make([]wire.SigEntry, 0, needed)
	gotSig := make(map[uint16]bool, needed)
	for len(signatures) < needed {
		ack := <-ackCh
		if gotSig[ack.Index] {
			continue
		}
		peerKey := n.peerPubKey(ack.Index)
		if peerKey == nil || !ed25519sig.VerifySign(peerKey, nil, ack.Sig) {
			continue
		}
		gotSig[ack.Index] = true
		signatures = append(signatures, wire.SigEntry{Index: ack.Index, Sig: ack.Sig})
	}

	assembleStart := time.Now()
	missing := make([]wire.MissingEntry, 0, int(count)-needed)
	for i := uint16(0); i < count; i++ {
		if gotSig[i] {
			continue
		}
		missing = append(missing, wire.MissingEntry{Index: i, Proof: proofByIndex[i], Share: shareByIndex[i]})
	}

	rest := wire.RestMsg{Commitment: comm, Signatures: signatures, Missing: missing}
	body, err := rest.Encode()
	if err != nil {
		n.logger.Error().Err(err).Msg("dealer encode REST failed")
		return
	}
	for i := uint16(0); i < count; i++ {
		addr, ok := peers[i]
		if !ok {
			continue
		}
		if err := wire.Send(addr, byte(wire.REST), body); err != nil {
			n.logger.Debug().Err(err).Str("addr", addr).Msg("dealer REST send failed")
		}
	}
	broadCasting := time.Since(assembleStart)
	dealing := time.Since(start)

	n.mu.Lock()
	n.dealerMessagesComputing = messagesComputing
	n.dealerDealing = dealing
	n.dealerBroadCasting = broadCasting
	n.dealerTimingsSet = true
	n.ackCh = nil
	n.mu.Unlock()
}

func (n *Node) peerPubKey(i uint16) []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.network[i]
	if !ok || len(e.PubKey) == 0 {
		return nil
	}
	return []byte(e.PubKey)
}

func (n *Node) onAck(msg wire.AckMsg) {
	n.mu.Lock()
	ch := n.ackCh
	n.mu.Unlock()
	if ch == nil {
		return
	}
	ch <- ackReceived{Index: msg.Index, Sig: msg.Sig}
}
