// Package compress wraps the gzip, zlib and raw deflate codecs used for HTTP
// content encoding and WebSocket permessage-deflate.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Mode selects a content coding.
type Mode int

const (
	None Mode = iota
	Gzip
	Zlib
)

// String returns the Content-Encoding token of the mode.
func (m Mode) String() string {
	switch m {
	case Gzip:
		return "gzip"
	case Zlib:
		return "deflate"
	default:
		return "identity"
	}
}

// Encode compresses data with the given mode. None returns data unchanged.
func Encode(mode Mode, data []byte) ([]byte, error) {
	switch mode {
	case Gzip:
		return gzipBytes(data)
	case Zlib:
		return zlibBytes(data)
	default:
		return data, nil
	}
}

// Decode reverses Encode.
func Decode(mode Mode, data []byte) ([]byte, error) {
	switch mode {
	case Gzip:
		return Gunzip(data)
	case Zlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zlib reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return data, nil
	}
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func zlibBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("zlib write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib close: %w", err)
	}
	return buf.Bytes(), nil
}

// Gunzip decompresses a gzip stream. Used when a pre-compressed resource is
// sent to a client that does not accept gzip.
func Gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return out, nil
}

// deflateTail is the empty stored block that terminates a sync flush.
var deflateTail = []byte{0x00, 0x00, 0xff, 0xff}

// DeflateMessage compresses one WebSocket message payload (RFC 7692, no
// context takeover). The trailing sync marker is stripped.
func DeflateMessage(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflate write: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("deflate flush: %w", err)
	}
	out := buf.Bytes()
	if bytes.HasSuffix(out, deflateTail) {
		out = out[:len(out)-len(deflateTail)]
	}
	return out, nil
}

// InflateMessage decompresses one permessage-deflate payload. limit bounds
// the output size; a larger result yields ErrTooLarge.
func InflateMessage(data []byte, limit int64) ([]byte, error) {
	src := io.MultiReader(bytes.NewReader(data), bytes.NewReader(deflateTail))
	r := flate.NewReader(src)
	defer r.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	if n > limit {
		return nil, ErrTooLarge
	}
	return buf.Bytes(), nil
}
