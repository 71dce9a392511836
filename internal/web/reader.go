package web

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/mingodad/libnavajo/internal/compress"
)

const (
	// DefaultMaxHeaderBytes bounds the request line plus header block.
	DefaultMaxHeaderBytes = 64 << 10
	// DefaultMaxBodyBytes bounds a request body.
	DefaultMaxBodyBytes = 10 << 20

	maxHeaderFields = 100
)

// Reader reads successive requests from one connection. It keeps its
// buffer across keep-alive requests so pipelined input is not lost.
type Reader struct {
	lr *io.LimitedReader
	br *bufio.Reader

	maxHeader int64
	maxBody   int64
}

// NewReader creates a request reader. Limits <= 0 select the defaults.
func NewReader(r io.Reader, maxHeader, maxBody int64) *Reader {
	if maxHeader <= 0 {
		maxHeader = DefaultMaxHeaderBytes
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	lr := &io.LimitedReader{R: r, N: math.MaxInt64}
	return &Reader{
		lr:        lr,
		br:        bufio.NewReader(lr),
		maxHeader: maxHeader,
		maxBody:   maxBody,
	}
}

// Buffered returns the bytes read from the connection but not yet consumed.
// Used when handing a connection over to the WebSocket engine.
func (r *Reader) Buffered() *bufio.Reader { return r.br }

// ReadRequest parses the next request. Parse failures wrap ErrBadRequest;
// I/O errors (including io.EOF on a closed idle connection and deadline
// expiry) are returned unwrapped.
func (r *Reader) ReadRequest() (*Request, error) {
	r.lr.N = r.maxHeader
	hr, err := http.ReadRequest(r.br)
	headerExhausted := r.lr.N <= 0
	r.lr.N = math.MaxInt64
	if err != nil {
		if headerExhausted {
			return nil, fmt.Errorf("%w: header block exceeds %d bytes", ErrBadRequest, r.maxHeader)
		}
		return nil, classifyReadError(err)
	}
	defer hr.Body.Close()

	if len(hr.Header) > maxHeaderFields {
		return nil, fmt.Errorf("%w: too many header fields", ErrBadRequest)
	}
	if hr.ContentLength > r.maxBody {
		return nil, fmt.Errorf("%w: body of %d bytes exceeds %d", ErrBadRequest, hr.ContentLength, r.maxBody)
	}

	// hr.Body is already de-chunked; the limit also bounds chunked bodies
	// whose length is unknown up front.
	var body []byte
	if hr.ContentLength != 0 {
		body, err = io.ReadAll(io.LimitReader(hr.Body, r.maxBody+1))
		if err != nil {
			return nil, classifyReadError(err)
		}
		if int64(len(body)) > r.maxBody {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrBadRequest, r.maxBody)
		}
		if len(body) == 0 {
			body = nil
		}
	}

	req := &Request{
		Method:     ParseMethod(hr.Method),
		MethodName: hr.Method,
		RawURL:     hr.RequestURI,
		Path:       hr.URL.Path,
		RawQuery:   hr.URL.RawQuery,
		Proto:      hr.Proto,
		ProtoMajor: hr.ProtoMajor,
		ProtoMinor: hr.ProtoMinor,
		Header:     hr.Header,
		Body:       body,
		KeepAlive:  !hr.Close,
		params:     DecodeParams(hr.URL.RawQuery),
		cookies:    make(map[string]string),
	}
	for _, line := range hr.Header.Values("Cookie") {
		for k, v := range DecodeCookies(line) {
			req.cookies[k] = v
		}
	}
	if isFormBody(req) {
		for k, v := range DecodeParams(string(body)) {
			req.params[k] = v
		}
	}
	return req, nil
}

func isFormBody(req *Request) bool {
	if len(req.Body) == 0 {
		return false
	}
	ct := req.Header.Get("Content-Type")
	if ct == "" {
		return req.Method == MethodPost || req.Method == MethodPut
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "application/x-www-form-urlencoded"
}

func classifyReadError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return err
	}
	if errors.Is(err, net.ErrClosed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBadRequest, err)
}

// NegotiateCompression picks the response coding from an Accept-Encoding
// header: gzip first, then deflate, else none. A zero q-value disables a
// coding.
func NegotiateCompression(acceptEncoding string) compress.Mode {
	var gzip, deflate bool
	for _, part := range strings.Split(acceptEncoding, ",") {
		token, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		token = strings.ToLower(strings.TrimSpace(token))
		if name, value, ok := strings.Cut(strings.TrimSpace(params), "="); ok && strings.TrimSpace(name) == "q" {
			if q, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && q == 0 {
				continue
			}
		}
		switch token {
		case "gzip", "x-gzip":
			gzip = true
		case "deflate":
			deflate = true
		}
	}
	switch {
	case gzip:
		return compress.Gzip
	case deflate:
		return compress.Zlib
	default:
		return compress.None
	}
}
