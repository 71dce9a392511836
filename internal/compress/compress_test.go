package compress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	payload := []byte(strings.Repeat("navajo ", 200))

	for _, mode := range []Mode{None, Gzip, Zlib} {
		t.Run(mode.String(), func(t *testing.T) {
			enc, err := Encode(mode, payload)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if mode != None && len(enc) >= len(payload) {
				t.Errorf("encoded size = %d, want smaller than %d", len(enc), len(payload))
			}
			dec, err := Decode(mode, enc)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !bytes.Equal(dec, payload) {
				t.Error("Decode(Encode(x)) != x")
			}
		})
	}
}

func TestGzipMagic(t *testing.T) {
	enc, err := Encode(Gzip, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if enc[0] != 0x1f || enc[1] != 0x8b {
		t.Errorf("gzip header = %x %x, want 1f 8b", enc[0], enc[1])
	}
}

func TestGunzipInvalid(t *testing.T) {
	if _, err := Gunzip([]byte("plain text")); err == nil {
		t.Error("Gunzip() on non-gzip data should fail")
	}
}

func TestModeString(t *testing.T) {
	tests := map[Mode]string{None: "identity", Gzip: "gzip", Zlib: "deflate"}
	for m, want := range tests {
		if got := m.String(); got != want {
			t.Errorf("Mode(%d).String() = %q, want %q", m, got, want)
		}
	}
}

func TestDeflateMessage(t *testing.T) {
	msg := []byte("Hello, Hello, Hello, Hello")
	enc, err := DeflateMessage(msg)
	if err != nil {
		t.Fatalf("DeflateMessage() error = %v", err)
	}
	if bytes.HasSuffix(enc, deflateTail) {
		t.Error("sync marker should be stripped")
	}

	dec, err := InflateMessage(enc, 1024)
	if err != nil {
		t.Fatalf("InflateMessage() error = %v", err)
	}
	if !bytes.Equal(dec, msg) {
		t.Errorf("InflateMessage() = %q, want %q", dec, msg)
	}
}

func TestInflateMessageLimit(t *testing.T) {
	enc, err := DeflateMessage(bytes.Repeat([]byte{'a'}, 4096))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := InflateMessage(enc, 100); !errors.Is(err, ErrTooLarge) {
		t.Errorf("InflateMessage() error = %v, want ErrTooLarge", err)
	}
}
