package web

import (
	"crypto/tls"
	"net"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/mingodad/libnavajo/internal/compress"
	"github.com/mingodad/libnavajo/internal/netaddr"
)

// Conn is the per-connection handle owned by exactly one worker (or, after a
// WebSocket upgrade, by the WebSocket engine).
type Conn struct {
	net.Conn

	// ID identifies the connection in logs.
	ID string
	// Peer is the remote IP address.
	Peer netaddr.Address
	// Compression is the content coding negotiated for responses.
	Compression compress.Mode

	// TLS is nil on plain connections.
	TLS *tls.ConnectionState
	// PeerDN is the subject DN of the client certificate, "" when none.
	PeerDN string
	// Verified reports whether the client certificate chain was verified.
	Verified bool

	releaseOnce sync.Once
	releaseErr  error
}

// NewConn wraps an accepted connection.
func NewConn(c net.Conn) *Conn {
	return &Conn{
		Conn: c,
		ID:   ulid.Make().String(),
		Peer: netaddr.FromNetAddr(c.RemoteAddr()),
	}
}

// SetTLS swaps the transport for the established TLS connection and records
// the peer identity.
func (c *Conn) SetTLS(tc *tls.Conn, peerDN string, verified bool) {
	state := tc.ConnectionState()
	c.Conn = tc
	c.TLS = &state
	c.PeerDN = peerDN
	c.Verified = verified
}

// IsTLS reports whether the connection is encrypted.
func (c *Conn) IsTLS() bool { return c.TLS != nil }

// Release closes the underlying socket. It is safe to call more than once;
// only the first call closes.
func (c *Conn) Release() error {
	c.releaseOnce.Do(func() {
		c.releaseErr = c.Conn.Close()
	})
	return c.releaseErr
}

// Close is Release, so a Conn can be handed to code expecting net.Conn.
func (c *Conn) Close() error { return c.Release() }
