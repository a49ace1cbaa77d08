// Package frame implements the outer framing that carries a zehnder
// envelope and its payload over a ComfoConnect LAN C TCP connection.
//
// Frame format:
//
//	0          4              20             36      38          38+cmdLen
//	┌──────────┬──────────────┬──────────────┬───────┬───────────┬──────────────┐
//	│ msgLen   │ src (16B)    │ dst (16B)    │cmdLen │ cmd bytes │ msg bytes    │
//	│ uint32BE │ raw UUID     │ raw UUID     │uint16BE│ envelope  │ payload      │
//	└──────────┴──────────────┴──────────────┴───────┴───────────┴──────────────┘
//
// msgLen counts everything after itself (src + dst + cmdLen + cmd + msg),
// mirroring the teacher's own length-prefixed header in protocol/protocol.go
// but with the vendor's fixed 16-byte addressing fields instead of a
// magic/version/codec byte trio.
package frame

import (
	"encoding/binary"
	"fmt"
	"io"
)

// UUIDSize is the fixed width of the src/dst addressing fields.
const UUIDSize = 16

// DefaultMaxFrameSize bounds how large a single frame is allowed to be,
// guarding against a corrupted length prefix causing an unbounded
// allocation and read.
const DefaultMaxFrameSize = 64 * 1024

// Frame is one decoded outer frame.
type Frame struct {
	Src []byte // 16-byte local UUID
	Dst []byte // 16-byte bridge UUID
	Cmd []byte // encoded zehnder.Envelope
	Msg []byte // encoded operation payload
}

// Encode writes a frame to w. The caller must serialize writes to w itself
// (a shared write mutex, as in transport.Client) so frames from different
// requests never interleave on the wire.
func Encode(w io.Writer, f Frame) error {
	if len(f.Src) != UUIDSize || len(f.Dst) != UUIDSize {
		return fmt.Errorf("frame: src/dst must be %d bytes, got %d/%d", UUIDSize, len(f.Src), len(f.Dst))
	}
	if len(f.Cmd) > 0xFFFF {
		return fmt.Errorf("frame: cmd too large: %d bytes", len(f.Cmd))
	}

	msgLen := UUIDSize + UUIDSize + 2 + len(f.Cmd) + len(f.Msg)
	buf := make([]byte, 4+msgLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(msgLen))
	off := 4
	off += copy(buf[off:], f.Src)
	off += copy(buf[off:], f.Dst)
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(f.Cmd)))
	off += 2
	off += copy(buf[off:], f.Cmd)
	copy(buf[off:], f.Msg)

	_, err := w.Write(buf)
	return err
}

// Decode reads exactly one frame from r, enforcing maxSize on the declared
// body length before allocating a buffer for it.
func Decode(r io.Reader, maxSize int) (Frame, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}

	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return Frame{}, err
	}
	msgLen := binary.BigEndian.Uint32(lenBuf)
	if int(msgLen) > maxSize {
		return Frame{}, fmt.Errorf("frame: declared length %d exceeds max %d", msgLen, maxSize)
	}
	if int(msgLen) < UUIDSize+UUIDSize+2 {
		return Frame{}, fmt.Errorf("frame: declared length %d too short for header", msgLen)
	}

	body := make([]byte, msgLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, err
	}

	f := Frame{
		Src: body[0:UUIDSize],
		Dst: body[UUIDSize : 2*UUIDSize],
	}
	cmdLen := binary.BigEndian.Uint16(body[2*UUIDSize : 2*UUIDSize+2])
	cmdStart := 2*UUIDSize + 2
	cmdEnd := cmdStart + int(cmdLen)
	if cmdEnd > len(body) {
		return Frame{}, fmt.Errorf("frame: cmd length %d overruns frame body", cmdLen)
	}
	f.Cmd = body[cmdStart:cmdEnd]
	f.Msg = body[cmdEnd:]

	return f, nil
}
