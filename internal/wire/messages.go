package wire

import (
	"bytes"
	"io"

	"github.com/drand/kyber"

	"avss-bench/internal/kzg10"
)

func writeScalar(buf *bytes.Buffer, s kyber.Scalar) error {
	b, err := s.MarshalBinary()
	if err != nil {
		return err
	}
	putU32(buf, uint32(len(b)))
	buf.Write(b)
	return nil
}

func readScalar(suite kzg10.Suite, r *bytes.Reader) (kyber.Scalar, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	s := suite.G1().Scalar()
	if err := s.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return s, nil
}

// SetupMsg configures a node's (t, n, dealer, byz_comp) for the
// upcoming round and optionally appends newly-known peer addresses.
type SetupMsg struct {
	Dealer  uint16
	ByzComp ByzComp
	T       uint16
	N       uint16
	Peers   []string // "ip:port" for every node in the round, sent in full on every SETUP
}

func (m SetupMsg) Encode() []byte {
	var buf bytes.Buffer
	putU16(&buf, m.Dealer)
	buf.WriteByte(byte(m.ByzComp))
	putU16(&buf, m.T)
	putU16(&buf, m.N)
	putU16(&buf, uint16(len(m.Peers)))
	for _, p := range m.Peers {
		buf.WriteByte(byte(len(p)))
		buf.WriteString(p)
	}
	return buf.Bytes()
}

func DecodeSetup(body []byte) (SetupMsg, error) {
	r := bytes.NewReader(body)
	var m SetupMsg
	var err error
	if m.Dealer, err = readU16(r); err != nil {
		return m, err
	}
	bc, err := r.ReadByte()
	if err != nil {
		return m, err
	}
	m.ByzComp = ByzComp(bc)
	if m.T, err = readU16(r); err != nil {
		return m, err
	}
	if m.N, err = readU16(r); err != nil {
		return m, err
	}
	count, err := readU16(r)
	if err != nil {
		return m, err
	}
	for i := 0; i < int(count); i++ {
		l, err := r.ReadByte()
		if err != nil {
			return m, err
		}
		b := make([]byte, l)
		if _, err := io.ReadFull(r, b); err != nil {
			return m, err
		}
		m.Peers = append(m.Peers, string(b))
	}
	return m, nil
}

// DealThisMsg instructs the designated dealer to deal secret this round.
type DealThisMsg struct {
	Secret U128
}

func (m DealThisMsg) Encode() []byte {
	var buf bytes.Buffer
	putU128(&buf, m.Secret.Lo, m.Secret.Hi)
	return buf.Bytes()
}

func DecodeDealThis(body []byte) (DealThisMsg, error) {
	r := bytes.NewReader(body)
	lo, hi, err := readU128(r)
	return DealThisMsg{Secret: U128{Lo: lo, Hi: hi}}, err
}

// ShareMsg is the dealer's private delivery of one party's opening.
type ShareMsg struct {
	Proof      kzg10.Proof
	Commitment kzg10.Commitment
	Share      kyber.Scalar
}

func (m ShareMsg) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Proof.Write(&buf); err != nil {
		return nil, err
	}
	if err := m.Commitment.Write(&buf); err != nil {
		return nil, err
	}
	if err := writeScalar(&buf, m.Share); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeShare(suite kzg10.Suite, body []byte) (ShareMsg, error) {
	br := bytes.NewReader(body)
	proof, err := kzg10.ReadProof(suite, br)
	if err != nil {
		return ShareMsg{}, err
	}
	comm, err := kzg10.ReadCommitment(suite, br)
	if err != nil {
		return ShareMsg{}, err
	}
	share, err := readScalar(suite, br)
	if err != nil {
		return ShareMsg{}, err
	}
	return ShareMsg{Proof: proof, Commitment: comm, Share: share}, nil
}

// AckMsg is a party's signed acknowledgment of a received share.
type AckMsg struct {
	Index uint16
	Sig   []byte
}

func (m AckMsg) Encode() []byte {
	var buf bytes.Buffer
	putU16(&buf, m.Index)
	putU32(&buf, uint32(len(m.Sig)))
	buf.Write(m.Sig)
	return buf.Bytes()
}

func DecodeAck(body []byte) (AckMsg, error) {
	r := bytes.NewReader(body)
	idx, err := readU16(r)
	if err != nil {
		return AckMsg{}, err
	}
	n, err := readU32(r)
	if err != nil {
		return AckMsg{}, err
	}
	sig := make([]byte, n)
	if _, err := io.ReadFull(r, sig); err != nil {
		return AckMsg{}, err
	}
	return AckMsg{Index: idx, Sig: sig}, nil
}

// SigEntry and MissingEntry are the two halves of the REST partition of
// [0, n): every index is covered by exactly one of them.
type SigEntry struct {
	Index uint16
	Sig   []byte
}

type MissingEntry struct {
	Index uint16
	Proof kzg10.Proof
	Share kyber.Scalar
}

// RestMsg is the dealer's broadcast closing out the Sharing phase.
type RestMsg struct {
	Commitment kzg10.Commitment
	Signatures []SigEntry
	Missing    []MissingEntry
}

func (m RestMsg) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Commitment.Write(&buf); err != nil {
		return nil, err
	}
	putU32(&buf, uint32(len(m.Signatures)))
	for _, s := range m.Signatures {
		putU16(&buf, s.Index)
		putU32(&buf, uint32(len(s.Sig)))
		buf.Write(s.Sig)
	}
	putU32(&buf, uint32(len(m.Missing)))
	for _, ms := range m.Missing {
		putU16(&buf, ms.Index)
		if err := ms.Proof.Write(&buf); err != nil {
			return nil, err
		}
		if err := writeScalar(&buf, ms.Share); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func DecodeRest(suite kzg10.Suite, body []byte) (RestMsg, error) {
	br := bytes.NewReader(body)
	comm, err := kzg10.ReadCommitment(suite, br)
	if err != nil {
		return RestMsg{}, err
	}
	sigCount, err := readU32(br)
	if err != nil {
		return RestMsg{}, err
	}
	sigs := make([]SigEntry, 0, sigCount)
	for i := uint32(0); i < sigCount; i++ {
		idx, err := readU16(br)
		if err != nil {
			return RestMsg{}, err
		}
		n, err := readU32(br)
		if err != nil {
			return RestMsg{}, err
		}
		sig := make([]byte, n)
		if _, err := io.ReadFull(br, sig); err != nil {
			return RestMsg{}, err
		}
		sigs = append(sigs, SigEntry{Index: idx, Sig: sig})
	}
	missCount, err := readU32(br)
	if err != nil {
		return RestMsg{}, err
	}
	miss := make([]MissingEntry, 0, missCount)
	for i := uint32(0); i < missCount; i++ {
		idx, err := readU16(br)
		if err != nil {
			return RestMsg{}, err
		}
		proof, err := kzg10.ReadProof(suite, br)
		if err != nil {
			return RestMsg{}, err
		}
		share, err := readScalar(suite, br)
		if err != nil {
			return RestMsg{}, err
		}
		miss = append(miss, MissingEntry{Index: idx, Proof: proof, Share: share})
	}
	return RestMsg{Commitment: comm, Signatures: sigs, Missing: miss}, nil
}

// KeyMsg announces a party's public key to a newly-registered peer. Key
// is the raw 32-byte Ed25519 public key, not DER-encoded: stdlib has no
// DER marshaler for Ed25519 keys outside x509, so this substitutes a raw
// encoding (see DESIGN.md).
type KeyMsg struct {
	Index uint16
	Key   []byte
}

func (m KeyMsg) Encode() []byte {
	var buf bytes.Buffer
	putU16(&buf, m.Index)
	putU32(&buf, uint32(len(m.Key)))
	buf.Write(m.Key)
	return buf.Bytes()
}

func DecodeKey(body []byte) (KeyMsg, error) {
	r := bytes.NewReader(body)
	idx, err := readU16(r)
	if err != nil {
		return KeyMsg{}, err
	}
	n, err := readU32(r)
	if err != nil {
		return KeyMsg{}, err
	}
	key := make([]byte, n)
	if _, err := io.ReadFull(r, key); err != nil {
		return KeyMsg{}, err
	}
	return KeyMsg{Index: idx, Key: key}, nil
}

// NewShareMsg is a peer's contribution during Reconstruction.
type NewShareMsg struct {
	Index uint16
	Share kyber.Scalar
	Proof kzg10.Proof
}

func (m NewShareMsg) Encode() ([]byte, error) {
	var buf bytes.Buffer
	putU16(&buf, m.Index)
	if err := writeScalar(&buf, m.Share); err != nil {
		return nil, err
	}
	if err := m.Proof.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeNewShare(suite kzg10.Suite, body []byte) (NewShareMsg, error) {
	br := bytes.NewReader(body)
	idx, err := readU16(br)
	if err != nil {
		return NewShareMsg{}, err
	}
	share, err := readScalar(suite, br)
	if err != nil {
		return NewShareMsg{}, err
	}
	proof, err := kzg10.ReadProof(suite, br)
	if err != nil {
		return NewShareMsg{}, err
	}
	return NewShareMsg{Index: idx, Share: share, Proof: proof}, nil
}

// ConnectMsg is a node's registration handshake with the interface: it
// carries only the node's listening port, the interface derives the
// node's address from the port plus the source IP of this connection.
type ConnectMsg struct {
	Port uint16
}

func (m ConnectMsg) Encode() []byte {
	var buf bytes.Buffer
	putU16(&buf, m.Port)
	return buf.Bytes()
}

func DecodeConnect(body []byte) (ConnectMsg, error) {
	r := bytes.NewReader(body)
	port, err := readU16(r)
	return ConnectMsg{Port: port}, err
}

// OutputMsg is a node's single result report for the round.
type OutputMsg struct {
	Code   ErrorCode
	Fields [9]U128
}

func (m OutputMsg) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(m.Code))
	for _, f := range m.Fields {
		putU128(&buf, f.Lo, f.Hi)
	}
	return buf.Bytes()
}

func DecodeOutput(body []byte) (OutputMsg, error) {
	r := bytes.NewReader(body)
	code, err := r.ReadByte()
	if err != nil {
		return OutputMsg{}, err
	}
	var m OutputMsg
	m.Code = ErrorCode(code)
	for i := range m.Fields {
		lo, hi, err := readU128(r)
		if err != nil {
			return OutputMsg{}, err
		}
		m.Fields[i] = U128{Lo: lo, Hi: hi}
	}
	return m, nil
}
