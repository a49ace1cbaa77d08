package frame

import (
	"bytes"
	"testing"
)

func uuid(b byte) []byte {
	u := make([]byte, UUIDSize)
	for i := range u {
		u[i] = b
	}
	return u
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{
		Src: uuid(0x11),
		Dst: uuid(0x22),
		Cmd: []byte{0x08, 0x17, 0x10, 0x01},
		Msg: []byte("hello"),
	}

	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(&buf, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if !bytes.Equal(decoded.Src, f.Src) {
		t.Errorf("Src mismatch: got %x, want %x", decoded.Src, f.Src)
	}
	if !bytes.Equal(decoded.Dst, f.Dst) {
		t.Errorf("Dst mismatch: got %x, want %x", decoded.Dst, f.Dst)
	}
	if !bytes.Equal(decoded.Cmd, f.Cmd) {
		t.Errorf("Cmd mismatch: got %x, want %x", decoded.Cmd, f.Cmd)
	}
	if !bytes.Equal(decoded.Msg, f.Msg) {
		t.Errorf("Msg mismatch: got %s, want %s", decoded.Msg, f.Msg)
	}
}

func TestEncodeRejectsBadUUIDSize(t *testing.T) {
	f := Frame{Src: []byte{0x01}, Dst: uuid(0x22)}
	var buf bytes.Buffer
	if err := Encode(&buf, f); err == nil {
		t.Fatal("expected error for undersized Src")
	}
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	f := Frame{Src: uuid(0), Dst: uuid(0), Msg: make([]byte, 100)}
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := Decode(&buf, 50); err == nil {
		t.Fatal("expected error when frame exceeds maxSize")
	}
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00, 0x05}) // declares 5 bytes, too short for src+dst+cmdLen
	buf.Write(make([]byte, 5))
	if _, err := Decode(&buf, 0); err == nil {
		t.Fatal("expected error for undersized declared length")
	}
}

func TestDecodeEmptyMessage(t *testing.T) {
	f := Frame{Src: uuid(1), Dst: uuid(2)}
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(&buf, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Cmd) != 0 || len(decoded.Msg) != 0 {
		t.Errorf("expected empty Cmd/Msg, got %d/%d bytes", len(decoded.Cmd), len(decoded.Msg))
	}
}
