package websocket

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/mingodad/libnavajo/internal/logging"
	"github.com/mingodad/libnavajo/internal/web"
)

// acceptGUID is the fixed RFC 6455 handshake GUID.
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// deflateResponse is the only permessage-deflate configuration offered:
// no context takeover in either direction.
const deflateResponse = "permessage-deflate; server_no_context_takeover; client_no_context_takeover"

// AcceptKey computes Sec-WebSocket-Accept for a client key.
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(acceptGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// IsUpgradeRequest reports whether req asks to switch to WebSocket.
func IsUpgradeRequest(req *web.Request) bool {
	return req.IsUpgrade()
}

// ValidateUpgrade checks an upgrade request. Errors wrap ErrBadHandshake.
func ValidateUpgrade(req *web.Request) error {
	if req.Method != web.MethodGet {
		return fmt.Errorf("%w: method %s (expected GET)", ErrBadHandshake, req.MethodName)
	}
	if !req.IsUpgrade() {
		return fmt.Errorf("%w: missing Upgrade: websocket or Connection: upgrade", ErrBadHandshake)
	}
	if v := req.Header.Get("Sec-WebSocket-Version"); v != "13" {
		return fmt.Errorf("%w: Sec-WebSocket-Version %q (expected 13)", ErrBadHandshake, v)
	}
	key := req.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return fmt.Errorf("%w: missing Sec-WebSocket-Key", ErrBadHandshake)
	}
	if raw, err := base64.StdEncoding.DecodeString(key); err != nil || len(raw) != 16 {
		return fmt.Errorf("%w: malformed Sec-WebSocket-Key", ErrBadHandshake)
	}
	return nil
}

// OffersDeflate reports whether the client offered permessage-deflate.
func OffersDeflate(req *web.Request) bool {
	for _, v := range req.Header.Values("Sec-WebSocket-Extensions") {
		for _, ext := range strings.Split(v, ",") {
			name, _, _ := strings.Cut(ext, ";")
			if strings.EqualFold(strings.TrimSpace(name), "permessage-deflate") {
				return true
			}
		}
	}
	return false
}

// WriteHandshake writes the 101 Switching Protocols response.
func WriteHandshake(w io.Writer, req *web.Request, deflate bool) error {
	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + AcceptKey(req.Header.Get("Sec-WebSocket-Key")) + "\r\n"
	if deflate {
		response += "Sec-WebSocket-Extensions: " + deflateResponse + "\r\n"
	}
	response += "\r\n"

	if _, err := io.WriteString(w, response); err != nil {
		return fmt.Errorf("failed to write HTTP 101 response: %w", err)
	}

	logging.Debug("Sent HTTP 101 Switching Protocols response",
		zap.String("path", req.Path),
		zap.Bool("deflate", deflate),
	)
	return nil
}
