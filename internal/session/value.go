package session

import "strconv"

// Kind identifies the type held by a Value.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindBlob
)

// Value is a session attribute. It holds exactly one of a string, an
// integer or a byte blob. The zero Value is invalid.
type Value struct {
	kind Kind
	s    string
	i    int64
	b    []byte
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Blob returns a byte value. The bytes are copied.
func Blob(b []byte) Value { return Value{kind: KindBlob, b: cloneBytes(b)} }

// Kind returns the kind of the value, or 0 for the zero Value.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds something.
func (v Value) IsValid() bool { return v.kind != 0 }

// Str returns the string held by v.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Int64 returns the integer held by v.
func (v Value) Int64() (int64, bool) { return v.i, v.kind == KindInt }

// Bytes returns a copy of the blob held by v.
func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBlob {
		return nil, false
	}
	return cloneBytes(v.b), true
}

// Text renders any kind as text, for logs and debugging pages.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBlob:
		return "<" + strconv.Itoa(len(v.b)) + " bytes>"
	default:
		return ""
	}
}

func (v Value) clone() Value {
	if v.kind == KindBlob {
		v.b = cloneBytes(v.b)
	}
	return v
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
