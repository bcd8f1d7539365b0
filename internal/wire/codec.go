package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
)

// ErrMessageTooLarge is returned by WriteFrame when a frame would exceed
// MaxMessageBytes. ReadFrame does not return it: it truncates instead.
var ErrMessageTooLarge = errors.New("wire: message exceeds per-connection buffer")

// Send dials addr, writes a single command byte followed by body in one
// contiguous write, and closes the connection. Per the protocol's
// connection model there are no long-lived connections: one message is
// one connect/write/drop.
func Send(addr string, code byte, body []byte) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	return WriteFrame(conn, code, body)
}

// WriteFrame writes code and body as a single contiguous payload.
func WriteFrame(w io.Writer, code byte, body []byte) error {
	if len(body)+1 > MaxMessageBytes {
		return ErrMessageTooLarge
	}
	buf := make([]byte, 0, len(body)+1)
	buf = append(buf, code)
	buf = append(buf, body...)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one message from conn: everything the sender wrote in
// its single contiguous write, up to MaxMessageBytes. It returns the
// leading command/interface code byte and the remaining body.
func ReadFrame(conn net.Conn) (byte, []byte, error) {
	buf := make([]byte, MaxMessageBytes)
	n := 0
	for n < len(buf) {
		read, err := conn.Read(buf[n:])
		n += read
		if err != nil {
			if err == io.EOF {
				break
			}
			if n == 0 {
				return 0, nil, err
			}
			break
		}
		if read == 0 {
			break
		}
	}
	if n == 0 {
		return 0, nil, io.EOF
	}
	return buf[0], buf[1:n], nil
}

// --- little-endian primitive helpers shared by message (de)serializers ---

func putU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func putU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putU128(buf *bytes.Buffer, lo, hi uint64) {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], lo)
	binary.LittleEndian.PutUint64(b[8:16], hi)
	buf.Write(b[:])
}

func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU128(r *bytes.Reader) (lo, hi uint64, err error) {
	var b [16]byte
	if _, err = io.ReadFull(r, b[:]); err != nil {
		return 0, 0, err
	}
	lo = binary.LittleEndian.Uint64(b[0:8])
	hi = binary.LittleEndian.Uint64(b[8:16])
	return lo, hi, nil
}
