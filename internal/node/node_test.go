package node

import (
	"fmt"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"avss-bench/internal/kzg10"
	"avss-bench/internal/wire"
)

// fakeInterface is a minimal stand-in for the orchestrator's Interface:
// enough CONNECT/OUTPUT handling to drive a round end to end without
// pulling in the orchestrator package.
type fakeInterface struct {
	mu       sync.Mutex
	addrs    []string
	outputCh chan wire.OutputMsg
}

func newFakeInterface(t *testing.T) (*fakeInterface, string) {
	t.Helper()
	fi := &fakeInterface{outputCh: make(chan wire.OutputMsg, 100)}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go fi.handle(conn)
		}
	}()
	return fi, ln.Addr().String()
}

func (fi *fakeInterface) handle(conn net.Conn) {
	defer conn.Close()
	code, body, err := wire.ReadFrame(conn)
	if err != nil {
		return
	}
	switch wire.InterfaceCode(code) {
	case wire.CONNECT:
		msg, err := wire.DecodeConnect(body)
		if err != nil {
			return
		}
		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		fi.mu.Lock()
		fi.addrs = append(fi.addrs, fmt.Sprintf("%s:%d", host, msg.Port))
		fi.mu.Unlock()
	case wire.OUTPUT:
		msg, err := wire.DecodeOutput(body)
		if err != nil {
			return
		}
		fi.outputCh <- msg
	}
}

func (fi *fakeInterface) waitForAddrs(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		fi.mu.Lock()
		have := len(fi.addrs)
		fi.mu.Unlock()
		if have >= n {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	fi.mu.Lock()
	defer fi.mu.Unlock()
	if len(fi.addrs) < n {
		t.Fatalf("only %d of %d nodes registered", len(fi.addrs), n)
	}
	out := make([]string, n)
	copy(out, fi.addrs[:n])
	return out
}

func (fi *fakeInterface) collectOutputs(t *testing.T, n int) []wire.OutputMsg {
	t.Helper()
	out := make([]wire.OutputMsg, 0, n)
	for i := 0; i < n; i++ {
		select {
		case msg := <-fi.outputCh:
			out = append(out, msg)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for output %d/%d", i+1, n)
		}
	}
	return out
}

// startNodes constructs and serves n nodes against the given interface
// address, returning the nodes themselves (so a test can inspect their
// post-round state); each listener is closed through t.Cleanup.
func startNodes(t *testing.T, n int, interfaceAddr string) []*Node {
	t.Helper()
	suite := kzg10.NewSuite()
	nodes := make([]*Node, n)
	for i := 0; i < n; i++ {
		nd, err := New(":0", interfaceAddr, suite, zerolog.Nop())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		ln, err := nd.Serve()
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
		t.Cleanup(func() { ln.Close() })
		nodes[i] = nd
	}
	return nodes
}

// runRound drives one full round against nbByz Sleeper nodes occupying
// the first nbByz indices; node nbByz — the first non-Sleeper index —
// is always the designated dealer. Returns every OUTPUT observed plus
// the Node instances themselves, so a test can inspect post-round state
// such as the reconstructed ShareSet.
func runRound(t *testing.T, n, tVal, nbByz int) ([]wire.OutputMsg, []*Node) {
	t.Helper()
	fi, ifaceAddr := newFakeInterface(t)
	nodes := startNodes(t, n, ifaceAddr)
	peers := fi.waitForAddrs(t, n)

	for i, addr := range peers {
		bc := wire.Honnest
		if i < nbByz {
			bc = wire.Sleeper
		}
		msg := wire.SetupMsg{Dealer: uint16(nbByz), ByzComp: bc, T: uint16(tVal), N: uint16(n), Peers: peers}
		if err := wire.Send(addr, byte(wire.SETUP), msg.Encode()); err != nil {
			t.Fatalf("SETUP to %s: %v", addr, err)
		}
	}

	dealMsg := wire.DealThisMsg{Secret: wire.MaxU128}
	if err := wire.Send(peers[nbByz], byte(wire.DEALTHIS), dealMsg.Encode()); err != nil {
		t.Fatalf("DEALTHIS: %v", err)
	}

	expect := n - nbByz
	sharing := fi.collectOutputs(t, expect)

	for _, addr := range peers {
		if err := wire.Send(addr, byte(wire.RECONSTRUCT), nil); err != nil {
			t.Fatalf("RECONSTRUCT to %s: %v", addr, err)
		}
	}
	reconstruct := fi.collectOutputs(t, expect)

	for _, addr := range peers {
		wire.Send(addr, byte(wire.STOP), nil)
	}

	return append(sharing, reconstruct...), nodes
}

func TestAVSSRoundHonest(t *testing.T) {
	outputs, _ := runRound(t, 4, 1, 0)
	for _, out := range outputs {
		if out.Code != wire.OK {
			t.Fatalf("expected OK, got %s", out.Code)
		}
	}
}

func TestAVSSRoundWithSleeper(t *testing.T) {
	outputs, _ := runRound(t, 4, 1, 1)
	for _, out := range outputs {
		if out.Code != wire.OK {
			t.Fatalf("expected OK from honest nodes despite a sleeper, got %s", out.Code)
		}
	}
}

// TestReconstructionRecoversSecret drives a real round end to end and
// then interpolates an honest node's reconstructed ShareSet directly,
// proving interpolate(S) reproduces the secret actually dealt via
// DEALTHIS (wire.MaxU128) rather than merely trusting the more-than-2t
// share count check the Reconstruct phase itself performs.
func TestReconstructionRecoversSecret(t *testing.T) {
	const n, tVal, nbByz = 4, 1, 0
	outputs, nodes := runRound(t, n, tVal, nbByz)
	for _, out := range outputs {
		if out.Code != wire.OK {
			t.Fatalf("expected OK, got %s", out.Code)
		}
	}

	want := new(big.Int)
	want.SetString("340282366920938463463374607431768211455", 10) // 2^128 - 1

	for _, nd := range nodes {
		nd.mu.Lock()
		set := nd.reconstructShareSet
		suite := nd.suite
		if set == nil || set.Len() <= tVal {
			nd.mu.Unlock()
			continue
		}
		shares := make([]kzg10.Share, 0, set.Len())
		for idx, entry := range set.Set {
			shares = append(shares, kzg10.Share{Index: int(idx) + 1, Value: entry.Share})
		}
		nd.mu.Unlock()

		got, err := kzg10.Interpolate(suite, shares)
		if err != nil {
			t.Fatalf("Interpolate: %v", err)
		}
		if got.Cmp(want) != 0 {
			t.Fatalf("Interpolate: got %s want %s", got, want)
		}
		return
	}
	t.Fatal("no node reached a reconstructed ShareSet with more than t shares")
}
