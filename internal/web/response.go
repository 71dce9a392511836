package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Cookie is an outgoing cookie (RFC 6265).
type Cookie struct {
	Name     string
	Value    string
	MaxAge   time.Duration
	Expires  time.Time
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
}

// String renders the Set-Cookie header value.
func (c Cookie) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	if c.MaxAge > 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.FormatInt(int64(c.MaxAge/time.Second), 10))
	}
	if !c.Expires.IsZero() {
		b.WriteString("; expires=")
		b.WriteString(c.Expires.UTC().Format(http.TimeFormat))
	}
	if c.Domain != "" {
		b.WriteString("; domain=")
		b.WriteString(c.Domain)
	}
	if c.Path != "" && c.Path != "/" {
		b.WriteString("; path=")
		b.WriteString(c.Path)
	}
	if c.Secure {
		b.WriteString("; secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	return b.String()
}

// CORS controls the Access-Control-* response headers.
type CORS struct {
	Enabled     bool
	Credentials bool
	// Origin is the allowed origin, "*" when empty.
	Origin string
}

// Response is what a Provider hands back to the server. The body belongs to
// the writer once returned.
type Response struct {
	Body []byte
	// Compressed marks a body that is already gzip encoded.
	Compressed bool
	MimeType   string
	Cookies    []Cookie
	// ForwardTo turns the response into a 302 redirect.
	ForwardTo string
	CORS      CORS
	// Status overrides the status derived from the other fields.
	Status Status
}

// NewResponse builds a response with a body and MIME type.
func NewResponse(body []byte, mimeType string) *Response {
	return &Response{Body: body, MimeType: mimeType}
}

// Redirect builds a 302 response.
func Redirect(url string) *Response {
	return &Response{ForwardTo: url}
}

// ErrorResponse builds a response carrying the canned page of status.
func ErrorResponse(status Status) *Response {
	return &Response{Status: status, Body: status.cannedBody(), MimeType: "text/html"}
}

// AddCookie appends an outgoing cookie.
func (r *Response) AddCookie(c Cookie) {
	r.Cookies = append(r.Cookies, c)
}

// SetCORS enables CORS headers for the response.
func (r *Response) SetCORS(credentials bool, origin string) {
	if origin == "" {
		origin = "*"
	}
	r.CORS = CORS{Enabled: true, Credentials: credentials, Origin: origin}
}

// StatusCode returns the status the writer will send.
func (r *Response) StatusCode() Status {
	switch {
	case r.Status != 0:
		return r.Status
	case r.ForwardTo != "":
		return StatusFound
	case len(r.Body) == 0:
		return StatusNoContent
	default:
		return StatusOK
	}
}
