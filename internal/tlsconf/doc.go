// Package tlsconf loads the server certificate and performs TLS handshakes.
//
// The key may sit in the certificate file or in its own file and may be a
// legacy encrypted PEM block, decrypted with a configured password or a
// password callback. When a CA file is configured, client certificates are
// verified against it; RequireClientCert makes them mandatory.
//
// The active certificate is served through tls.Config.GetCertificate, so
// Watch can swap it on disk changes without restarting listeners.
package tlsconf
