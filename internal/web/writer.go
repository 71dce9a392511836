package web

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mingodad/libnavajo/internal/compress"
	"github.com/mingodad/libnavajo/internal/logging"
)

// DefaultServerName is sent in the Server header when none is configured.
const DefaultServerName = "libnavajo"

// Writer serializes responses onto a connection.
type Writer struct {
	ServerName   string
	Realm        string
	WriteTimeout time.Duration

	now func() time.Time
}

// NewWriter creates a response writer.
func NewWriter(serverName, realm string, writeTimeout time.Duration) *Writer {
	if serverName == "" {
		serverName = DefaultServerName
	}
	if realm == "" {
		realm = serverName
	}
	return &Writer{ServerName: serverName, Realm: realm, WriteTimeout: writeTimeout, now: time.Now}
}

// Write sends resp on conn. req may be nil (for a request that failed to
// parse); the session cookie and compression are then skipped. When the body
// cannot be encoded a 500 page is sent instead and the returned error wraps
// ErrResponseFailed.
func (w *Writer) Write(conn *Conn, req *Request, resp *Response, keepAlive bool) error {
	status := resp.StatusCode()
	body := resp.Body
	if status.IsError() && len(body) == 0 {
		body = status.cannedBody()
	}

	var encoding string
	if status != StatusNoContent && status != StatusSwitchingProtocols && len(body) > 0 {
		var err error
		body, encoding, err = w.encodeBody(conn, req, resp, body)
		if err != nil {
			if werr := w.Write(conn, nil, ErrorResponse(StatusInternalServerError), false); werr != nil {
				return werr
			}
			return fmt.Errorf("%w: %v", ErrResponseFailed, err)
		}
	}

	var hdr bytes.Buffer
	fmt.Fprintf(&hdr, "HTTP/1.1 %d %s\r\n", int(status), status.Reason())
	hdr.WriteString("Date: " + w.clock().UTC().Format(http.TimeFormat) + "\r\n")
	hdr.WriteString("Server: " + w.ServerName + "\r\n")

	if status == StatusFound {
		hdr.WriteString("Location: " + resp.ForwardTo + "\r\n")
	}
	if status == StatusUnauthorized {
		hdr.WriteString(`WWW-Authenticate: Basic realm="` + w.Realm + `"` + "\r\n")
	}
	if resp.CORS.Enabled {
		origin := resp.CORS.Origin
		if origin == "" {
			origin = "*"
		}
		hdr.WriteString("Access-Control-Allow-Origin: " + origin + "\r\n")
		if resp.CORS.Credentials {
			hdr.WriteString("Access-Control-Allow-Credentials: true\r\n")
		}
	}
	for _, c := range resp.Cookies {
		hdr.WriteString("Set-Cookie: " + c.String() + "\r\n")
	}
	if req != nil && req.SessionID() != "" && req.Sessions() != nil {
		sid := Cookie{Name: SessionCookie, Value: req.SessionID(), MaxAge: req.Sessions().TTL(), HTTPOnly: true}
		hdr.WriteString("Set-Cookie: " + sid.String() + "\r\n")
	}

	if len(body) > 0 {
		mimeType := resp.MimeType
		if mimeType == "" && req != nil {
			mimeType = MimeType(req.Path)
		}
		if mimeType == "" {
			mimeType = defaultMimeType
		}
		hdr.WriteString("Content-Type: " + contentType(mimeType) + "\r\n")
	}
	if encoding != "" {
		hdr.WriteString("Content-Encoding: " + encoding + "\r\n")
	}
	if status != StatusNoContent {
		hdr.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	}
	if keepAlive {
		hdr.WriteString("Connection: keep-alive\r\n")
	} else {
		hdr.WriteString("Connection: close\r\n")
	}
	hdr.WriteString("\r\n")

	if w.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(w.clock().Add(w.WriteTimeout))
		defer conn.SetWriteDeadline(time.Time{})
	}

	bufs := net.Buffers{hdr.Bytes()}
	if len(body) > 0 {
		bufs = append(bufs, body)
	}
	if _, err := bufs.WriteTo(conn.Conn); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}

	logging.LogHTTPResponse(conn.Peer.String(), int(status), len(body), keepAlive)
	return nil
}

func (w *Writer) clock() time.Time {
	if w.now == nil {
		return time.Now()
	}
	return w.now()
}

// encodeBody applies the connection's content coding. A body already
// gzip encoded is sent as is to gzip clients and decoded for the others.
func (w *Writer) encodeBody(conn *Conn, req *Request, resp *Response, body []byte) ([]byte, string, error) {
	mode := compress.None
	if req != nil {
		mode = conn.Compression
	}

	if resp.Compressed {
		if mode == compress.Gzip {
			return body, compress.Gzip.String(), nil
		}
		plain, err := compress.Gunzip(body)
		if err != nil {
			logging.Error("Failed to decompress precompressed body",
				zap.String("conn_id", conn.ID),
				zap.Error(err),
			)
			return nil, "", fmt.Errorf("decompressing body: %w", err)
		}
		body = plain
	}

	if mode == compress.None {
		return body, "", nil
	}
	encoded, err := compress.Encode(mode, body)
	if err != nil {
		return nil, "", fmt.Errorf("compressing body: %w", err)
	}
	return encoded, mode.String(), nil
}
