package websocket

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Opcode is the frame type.
type Opcode byte

// WebSocket frame opcodes
const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// maxControlPayload is the largest payload a control frame may carry.
const maxControlPayload = 125

// IsControl reports whether op is close, ping or pong.
func (op Opcode) IsControl() bool { return op&0x8 != 0 }

func (op Opcode) String() string {
	switch op {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(0x%X)", byte(op))
	}
}

// Frame is one WebSocket frame. Payload is unmasked.
type Frame struct {
	Fin     bool
	RSV1    bool
	RSV2    bool
	RSV3    bool
	Opcode  Opcode
	Masked  bool
	MaskKey [4]byte
	Payload []byte
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame{FIN=%v, Opcode=%s, Masked=%v, Length=%d}",
		f.Fin, f.Opcode, f.Masked, len(f.Payload))
}

// ReadFrame reads one frame from r. A payload longer than maxPayload (when
// maxPayload > 0) fails with ErrMessageTooBig before it is read; malformed
// control frames and oversized length fields fail with ErrProtocol.
func ReadFrame(r io.Reader, maxPayload int64) (*Frame, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	f := &Frame{
		Fin:    header[0]&0x80 != 0,
		RSV1:   header[0]&0x40 != 0,
		RSV2:   header[0]&0x20 != 0,
		RSV3:   header[0]&0x10 != 0,
		Opcode: Opcode(header[0] & 0x0F),
		Masked: header[1]&0x80 != 0,
	}

	length := uint64(header[1] & 0x7F)
	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, fmt.Errorf("failed to read extended length: %w", err)
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, fmt.Errorf("failed to read extended length: %w", err)
		}
		length = binary.BigEndian.Uint64(ext[:])
		if length>>63 != 0 {
			return nil, fmt.Errorf("%w: payload length has the high bit set", ErrProtocol)
		}
	}

	if f.Opcode.IsControl() {
		if !f.Fin {
			return nil, fmt.Errorf("%w: fragmented %s frame", ErrProtocol, f.Opcode)
		}
		if length > maxControlPayload {
			return nil, fmt.Errorf("%w: %s frame of %d bytes", ErrProtocol, f.Opcode, length)
		}
	}
	if maxPayload > 0 && length > uint64(maxPayload) {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrMessageTooBig, length)
	}

	if f.Masked {
		if _, err := io.ReadFull(r, f.MaskKey[:]); err != nil {
			return nil, fmt.Errorf("failed to read mask key: %w", err)
		}
	}

	if length > 0 {
		f.Payload = make([]byte, length)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
		if f.Masked {
			maskBytes(f.Payload, f.MaskKey)
		}
	}
	return f, nil
}

// maskBytes applies the XOR mask in place. Masking and unmasking are the
// same operation.
func maskBytes(b []byte, key [4]byte) {
	for i := range b {
		b[i] ^= key[i%4]
	}
}

// AppendFrame appends an unmasked server frame to dst.
func AppendFrame(dst []byte, fin bool, op Opcode, rsv1 bool, payload []byte) []byte {
	b0 := byte(op)
	if fin {
		b0 |= 0x80
	}
	if rsv1 {
		b0 |= 0x40
	}
	dst = append(dst, b0)

	n := len(payload)
	switch {
	case n < 126:
		dst = append(dst, byte(n))
	case n <= 0xFFFF:
		dst = append(dst, 126)
		dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	default:
		dst = append(dst, 127)
		dst = binary.BigEndian.AppendUint64(dst, uint64(n))
	}
	return append(dst, payload...)
}

// WriteFrame writes a single unmasked frame.
func WriteFrame(w io.Writer, fin bool, op Opcode, payload []byte) error {
	_, err := w.Write(AppendFrame(nil, fin, op, false, payload))
	return err
}
