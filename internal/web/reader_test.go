package web

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/mingodad/libnavajo/internal/compress"
	"github.com/mingodad/libnavajo/internal/session"
)

func TestReadRequestGet(t *testing.T) {
	raw := "GET /app/page.html?x=1&y=two+words HTTP/1.1\r\n" +
		"Host: example.test\r\n" +
		"Cookie: SID=abc; theme=dark\r\n" +
		"\r\n"

	req, err := NewReader(strings.NewReader(raw), 0, 0).ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest() error = %v", err)
	}
	if req.Method != MethodGet {
		t.Errorf("Method = %v, want GET", req.Method)
	}
	if req.Path != "/app/page.html" {
		t.Errorf("Path = %q, want /app/page.html", req.Path)
	}
	if v, _ := req.Param("y"); v != "two words" {
		t.Errorf("Param(y) = %q, want 'two words'", v)
	}
	if v, _ := req.Cookie("theme"); v != "dark" {
		t.Errorf("Cookie(theme) = %q, want dark", v)
	}
	if !req.KeepAlive {
		t.Error("HTTP/1.1 request should default to keep-alive")
	}
}

func TestReadRequestKeepAlive(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"http/1.1 default", "GET / HTTP/1.1\r\nHost: a\r\n\r\n", true},
		{"http/1.1 close", "GET / HTTP/1.1\r\nHost: a\r\nConnection: close\r\n\r\n", false},
		{"http/1.0 default", "GET / HTTP/1.0\r\n\r\n", false},
		{"http/1.0 keep-alive", "GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewReader(strings.NewReader(tt.raw), 0, 0).ReadRequest()
			if err != nil {
				t.Fatalf("ReadRequest() error = %v", err)
			}
			if req.KeepAlive != tt.want {
				t.Errorf("KeepAlive = %v, want %v", req.KeepAlive, tt.want)
			}
		})
	}
}

func TestReadRequestFormBody(t *testing.T) {
	body := "user=bob&msg=hi%21"
	raw := "POST /submit?src=q HTTP/1.1\r\n" +
		"Host: a\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
		"\r\n" + body

	req, err := NewReader(strings.NewReader(raw), 0, 0).ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest() error = %v", err)
	}
	want := map[string]string{"src": "q", "user": "bob", "msg": "hi!"}
	for k, v := range want {
		if got, _ := req.Param(k); got != v {
			t.Errorf("Param(%s) = %q, want %q", k, got, v)
		}
	}
}

func TestReadRequestChunkedFormBody(t *testing.T) {
	raw := "POST /submit HTTP/1.1\r\n" +
		"Host: a\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"9\r\nuser=bob&\r\n" +
		"9\r\nmsg=hi%21\r\n" +
		"0\r\n\r\n" +
		"GET /next HTTP/1.1\r\nHost: a\r\n\r\n"

	rd := NewReader(strings.NewReader(raw), 0, 0)
	req, err := rd.ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest() error = %v", err)
	}
	if string(req.Body) != "user=bob&msg=hi%21" {
		t.Errorf("Body = %q, want %q", req.Body, "user=bob&msg=hi%21")
	}
	want := map[string]string{"user": "bob", "msg": "hi!"}
	for k, v := range want {
		if got, _ := req.Param(k); got != v {
			t.Errorf("Param(%s) = %q, want %q", k, got, v)
		}
	}

	next, err := rd.ReadRequest()
	if err != nil {
		t.Fatalf("second ReadRequest() error = %v", err)
	}
	if next.Path != "/next" {
		t.Errorf("second Path = %q, want /next", next.Path)
	}
}

func TestReadRequestJSONBodyNotParsed(t *testing.T) {
	body := `{"a":1}`
	raw := "PUT /x HTTP/1.1\r\nHost: a\r\nContent-Type: application/json\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

	req, err := NewReader(strings.NewReader(raw), 0, 0).ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest() error = %v", err)
	}
	if string(req.Body) != body {
		t.Errorf("Body = %q, want %q", req.Body, body)
	}
	if len(req.Params()) != 0 {
		t.Errorf("Params() = %v, want none", req.Params())
	}
}

func TestReadRequestPipelined(t *testing.T) {
	raw := "GET /one HTTP/1.1\r\nHost: a\r\n\r\nGET /two HTTP/1.1\r\nHost: a\r\n\r\n"
	rd := NewReader(strings.NewReader(raw), 0, 0)

	for _, want := range []string{"/one", "/two"} {
		req, err := rd.ReadRequest()
		if err != nil {
			t.Fatalf("ReadRequest() error = %v", err)
		}
		if req.Path != want {
			t.Errorf("Path = %q, want %q", req.Path, want)
		}
	}
	if _, err := rd.ReadRequest(); !errors.Is(err, io.EOF) {
		t.Errorf("third ReadRequest() error = %v, want io.EOF", err)
	}
}

func TestReadRequestUnknownMethod(t *testing.T) {
	req, err := NewReader(strings.NewReader("PATCH /x HTTP/1.1\r\nHost: a\r\n\r\n"), 0, 0).ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest() error = %v", err)
	}
	if req.Method != MethodUnknown || req.MethodName != "PATCH" {
		t.Errorf("Method = %v (%s), want UNKNOWN (PATCH)", req.Method, req.MethodName)
	}
}

func TestReadRequestBadRequest(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"garbage request line", "HELLO\r\n\r\n"},
		{"bad version", "GET / HTTP/9\r\n\r\n"},
		{"chunked body too large", "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n14\r\n" +
			strings.Repeat("a", 20) + "\r\n0\r\n\r\n"},
		{"malformed chunk size", "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\nzz\r\n"},
		{"body too large", "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 100\r\n\r\n"},
		{"header too large", "GET / HTTP/1.1\r\nX-Big: " + strings.Repeat("a", 200) + "\r\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(strings.NewReader(tt.raw), 128, 16).ReadRequest()
			if !errors.Is(err, ErrBadRequest) {
				t.Errorf("ReadRequest() error = %v, want ErrBadRequest", err)
			}
		})
	}
}

func TestReadRequestEOF(t *testing.T) {
	_, err := NewReader(strings.NewReader(""), 0, 0).ReadRequest()
	if !errors.Is(err, io.EOF) {
		t.Errorf("ReadRequest() on empty input error = %v, want io.EOF", err)
	}
}

func TestRequestSessions(t *testing.T) {
	m := session.NewManager()
	existing, _ := m.Create()

	raw := "GET / HTTP/1.1\r\nHost: a\r\nCookie: SID=" + existing + "\r\n\r\n"
	req, err := NewReader(strings.NewReader(raw), 0, 0).ReadRequest()
	if err != nil {
		t.Fatal(err)
	}
	req.AttachSessions(m)
	if req.SessionID() != existing {
		t.Fatalf("SessionID() = %q, want the cookie's session", req.SessionID())
	}

	stale, _ := NewReader(strings.NewReader("GET / HTTP/1.1\r\nHost: a\r\nCookie: SID=unknown\r\n\r\n"), 0, 0).ReadRequest()
	stale.AttachSessions(m)
	if stale.SessionID() != "" {
		t.Errorf("unknown SID resolved to %q", stale.SessionID())
	}
	if _, ok := stale.SessionAttribute("x"); ok {
		t.Error("reading an attribute must not create a session")
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}

	if err := stale.SetSessionAttribute("x", session.String("y")); err != nil {
		t.Fatalf("SetSessionAttribute() error = %v", err)
	}
	if stale.SessionID() == "" || m.Len() != 2 {
		t.Errorf("SetSessionAttribute should create a session, Len() = %d", m.Len())
	}

	stale.RemoveSession()
	if stale.SessionID() != "" || m.Len() != 1 {
		t.Errorf("RemoveSession left id %q, Len() = %d", stale.SessionID(), m.Len())
	}
}

func TestRequestWithoutSessionManager(t *testing.T) {
	req := &Request{}
	if err := req.SetSessionAttribute("a", session.Int(1)); !errors.Is(err, ErrNoSessions) {
		t.Errorf("SetSessionAttribute() error = %v, want ErrNoSessions", err)
	}
}

func TestNegotiateCompression(t *testing.T) {
	tests := []struct {
		header string
		want   compress.Mode
	}{
		{"gzip, deflate, br", compress.Gzip},
		{"deflate", compress.Zlib},
		{"br", compress.None},
		{"", compress.None},
		{"gzip;q=0, deflate", compress.Zlib},
		{"GZIP", compress.Gzip},
		{"identity", compress.None},
	}
	for _, tt := range tests {
		if got := NegotiateCompression(tt.header); got != tt.want {
			t.Errorf("NegotiateCompression(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestIsUpgrade(t *testing.T) {
	raw := "GET /ws HTTP/1.1\r\nHost: a\r\nUpgrade: WebSocket\r\nConnection: keep-alive, Upgrade\r\n\r\n"
	req, err := NewReader(strings.NewReader(raw), 0, 0).ReadRequest()
	if err != nil {
		t.Fatal(err)
	}
	if !req.IsUpgrade() {
		t.Error("IsUpgrade() = false, want true")
	}
}
