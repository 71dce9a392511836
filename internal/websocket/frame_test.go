package websocket

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestAcceptKey(t *testing.T) {
	got := AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	if want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="; got != want {
		t.Errorf("AcceptKey() = %q, want %q", got, want)
	}
}

func TestAppendFrameLengths(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		headerSize int
	}{
		{"empty", 0, 2},
		{"7-bit", 125, 2},
		{"16-bit lower bound", 126, 4},
		{"16-bit upper bound", 65535, 4},
		{"64-bit", 65536, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := bytes.Repeat([]byte{'x'}, tt.size)
			wire := AppendFrame(nil, true, OpBinary, false, payload)
			if len(wire) != tt.headerSize+tt.size {
				t.Fatalf("frame length = %d, want %d", len(wire), tt.headerSize+tt.size)
			}
			if wire[1]&0x80 != 0 {
				t.Error("server frame must not be masked")
			}

			f, err := ReadFrame(bytes.NewReader(wire), 0)
			if err != nil {
				t.Fatalf("ReadFrame() error = %v", err)
			}
			if !f.Fin || f.Opcode != OpBinary || len(f.Payload) != tt.size {
				t.Errorf("ReadFrame() = %v, want fin binary of %d bytes", f, tt.size)
			}
		})
	}
}

// maskedFrame builds a client frame the way a browser would.
func maskedFrame(fin bool, op Opcode, payload []byte) []byte {
	b0 := byte(op)
	if fin {
		b0 |= 0x80
	}
	out := []byte{b0}
	n := len(payload)
	switch {
	case n < 126:
		out = append(out, 0x80|byte(n))
	case n <= 0xFFFF:
		out = append(out, 0x80|126)
		out = binary.BigEndian.AppendUint16(out, uint16(n))
	default:
		out = append(out, 0x80|127)
		out = binary.BigEndian.AppendUint64(out, uint64(n))
	}
	key := [4]byte{0x37, 0xfa, 0x21, 0x3d}
	out = append(out, key[:]...)
	masked := append([]byte(nil), payload...)
	maskBytes(masked, key)
	return append(out, masked...)
}

func TestReadFrameUnmasks(t *testing.T) {
	// RFC 6455 section 5.7: masked "Hello".
	wire := []byte{0x81, 0x85, 0x37, 0xfa, 0x21, 0x3d, 0x7f, 0x9f, 0x4d, 0x51, 0x58}
	f, err := ReadFrame(bytes.NewReader(wire), 0)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if !f.Masked || string(f.Payload) != "Hello" {
		t.Errorf("payload = %q, masked = %v, want Hello, true", f.Payload, f.Masked)
	}
	if !bytes.Equal(maskedFrame(true, OpText, []byte("Hello")), wire) {
		t.Error("maskedFrame() does not reproduce the RFC example")
	}
}

func TestReadFrameErrors(t *testing.T) {
	longLen := []byte{0x82, 127}
	longLen = binary.BigEndian.AppendUint64(longLen, 1<<63)

	tests := []struct {
		name    string
		wire    []byte
		max     int64
		wantErr error
	}{
		{"fragmented ping", []byte{0x09, 0x80, 0, 0, 0, 0}, 0, ErrProtocol},
		{"oversized control", maskedFrame(true, OpPing, make([]byte, 126)), 0, ErrProtocol},
		{"payload over limit", maskedFrame(true, OpBinary, make([]byte, 20)), 10, ErrMessageTooBig},
		{"length high bit", longLen, 0, ErrProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.wire), tt.max)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadFrame() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadFrameTruncated(t *testing.T) {
	wire := maskedFrame(true, OpText, []byte("truncated"))
	if _, err := ReadFrame(bytes.NewReader(wire[:len(wire)-3]), 0); err == nil {
		t.Error("ReadFrame() on a truncated frame should fail")
	}
}

func TestOpcode(t *testing.T) {
	tests := []struct {
		op      Opcode
		name    string
		control bool
	}{
		{OpContinuation, "continuation", false},
		{OpText, "text", false},
		{OpBinary, "binary", false},
		{OpClose, "close", true},
		{OpPing, "ping", true},
		{OpPong, "pong", true},
		{Opcode(0x3), "unknown(0x3)", false},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.name {
			t.Errorf("Opcode(%d).String() = %q, want %q", tt.op, got, tt.name)
		}
		if got := tt.op.IsControl(); got != tt.control {
			t.Errorf("Opcode(%d).IsControl() = %v, want %v", tt.op, got, tt.control)
		}
	}
}

func TestCloseCodes(t *testing.T) {
	for _, code := range []int{1000, 1001, 1003, 1007, 1011, 3000, 4999} {
		if !validCloseCode(code) {
			t.Errorf("validCloseCode(%d) = false, want true", code)
		}
	}
	for _, code := range []int{0, 999, 1004, 1005, 1006, 1015, 2000, 5000} {
		if validCloseCode(code) {
			t.Errorf("validCloseCode(%d) = true, want false", code)
		}
	}

	tests := []struct {
		err  error
		want int
	}{
		{ErrProtocol, CloseProtocolError},
		{ErrInvalidPayload, CloseInvalidPayload},
		{ErrMessageTooBig, CloseMessageTooBig},
		{errors.New("io"), CloseGoingAway},
	}
	for _, tt := range tests {
		if got := closeCodeFor(tt.err); got != tt.want {
			t.Errorf("closeCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
