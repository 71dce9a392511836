package tlsconf

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/mingodad/libnavajo/internal/logging"
)

// PeerInfo describes the negotiated session.
type PeerInfo struct {
	// DN is the client certificate subject, "" without a certificate.
	DN string
	// Verified is true when the client chain was verified against the CAs.
	Verified    bool
	Version     uint16
	CipherSuite uint16
	ServerName  string
}

// Handshake runs the server side of a TLS handshake on conn with a deadline.
// On failure the caller owns conn and must close it.
func Handshake(conn net.Conn, config *tls.Config, timeout time.Duration) (*tls.Conn, PeerInfo, error) {
	tc := tls.Server(conn, config)
	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}
	if err := tc.Handshake(); err != nil {
		return nil, PeerInfo{}, fmt.Errorf("TLS handshake failed: %w", err)
	}
	if timeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}

	state := tc.ConnectionState()
	info := PeerInfo{
		Version:     state.Version,
		CipherSuite: state.CipherSuite,
		ServerName:  state.ServerName,
		Verified:    len(state.VerifiedChains) > 0,
	}
	if len(state.PeerCertificates) > 0 {
		info.DN = state.PeerCertificates[0].Subject.String()
	}

	logging.LogTLSHandshake(conn.RemoteAddr().String(), info.Version, info.CipherSuite, info.ServerName, info.DN)
	return tc, info, nil
}
