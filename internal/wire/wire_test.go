package wire

import (
	"crypto/aes"
	"crypto/cipher"
	"math/big"
	"net"
	"testing"
	"time"

	"avss-bench/internal/kzg10"
)

func testStream() cipher.Stream {
	var key, iv [16]byte
	copy(key[:], []byte("wire-test-seed!!"))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	return cipher.NewCTR(block, iv[:])
}

func TestU128BigIntRoundTrip(t *testing.T) {
	want := new(big.Int)
	want.SetString("340282366920938463463374607431768211455", 10) // 2^128 - 1
	got := U128FromBigInt(want).BigInt()
	if got.Cmp(want) != 0 {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestU128FromDuration(t *testing.T) {
	d := 1500 * time.Millisecond
	u := U128FromDuration(d)
	if u.Duration() != d {
		t.Fatalf("got %s want %s", u.Duration(), d)
	}
}

func TestSetupMsgEncodeDecode(t *testing.T) {
	msg := SetupMsg{Dealer: 0, ByzComp: Sleeper, T: 1, N: 4, Peers: []string{"127.0.0.1:1", "127.0.0.1:2"}}
	got, err := DecodeSetup(msg.Encode())
	if err != nil {
		t.Fatalf("DecodeSetup: %v", err)
	}
	if got.Dealer != msg.Dealer || got.ByzComp != msg.ByzComp || got.T != msg.T || got.N != msg.N {
		t.Fatalf("scalar fields mismatch: got %+v want %+v", got, msg)
	}
	if len(got.Peers) != len(msg.Peers) || got.Peers[0] != msg.Peers[0] || got.Peers[1] != msg.Peers[1] {
		t.Fatalf("peers mismatch: got %v want %v", got.Peers, msg.Peers)
	}
}

func TestShareMsgEncodeDecode(t *testing.T) {
	suite := kzg10.NewSuite()
	srs := kzg10.Setup(suite, 2, testStream())
	poly := kzg10.RandomPolynomial(suite, 2, kzg10.ScalarFromU128(suite, 7, 0), testStream())
	comm, err := kzg10.Commit(suite, srs, poly)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	point := kzg10.ScalarFromIndex(suite, 1)
	proof, value, err := kzg10.Open(suite, srs, poly, point)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	msg := ShareMsg{Proof: proof, Commitment: comm, Share: value}
	body, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeShare(suite, body)
	if err != nil {
		t.Fatalf("DecodeShare: %v", err)
	}
	if !got.Share.Equal(value) {
		t.Fatal("Share round trip mismatch")
	}
	if !kzg10.Verify(suite, got.Commitment, point, got.Share, got.Proof) {
		t.Fatal("decoded ShareMsg failed to verify")
	}
}

func TestOutputMsgEncodeDecode(t *testing.T) {
	var msg OutputMsg
	msg.Code = UnvalidShares
	msg.Fields[0] = U128{Lo: 42}
	msg.Fields[8] = MaxU128

	got, err := DecodeOutput(msg.Encode())
	if err != nil {
		t.Fatalf("DecodeOutput: %v", err)
	}
	if got.Code != msg.Code {
		t.Fatalf("Code: got %v want %v", got.Code, msg.Code)
	}
	if got.Fields[0] != msg.Fields[0] || got.Fields[8] != msg.Fields[8] {
		t.Fatalf("Fields mismatch: got %+v want %+v", got.Fields, msg.Fields)
	}
}

func TestReadFrameCapsAtMaxMessageBytes(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	type result struct {
		bodyLen int
		err     error
	}
	resultCh := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		defer conn.Close()
		_, body, err := ReadFrame(conn)
		resultCh <- result{bodyLen: len(body), err: err}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	body := make([]byte, MaxMessageBytes+10)
	conn.Write(append([]byte{byte(SHARE)}, body...))
	conn.Close()

	select {
	case r := <-resultCh:
		if r.err != nil {
			t.Fatalf("ReadFrame: %v", r.err)
		}
		if r.bodyLen != MaxMessageBytes-1 {
			t.Fatalf("bodyLen: got %d want %d", r.bodyLen, MaxMessageBytes-1)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReadFrame: timed out")
	}
}
