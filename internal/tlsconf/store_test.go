package tlsconf

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type pki struct {
	dir        string
	ca         *Issued
	server     *Issued
	client     *Issued
	caFile     string
	certFile   string
	keyFile    string
	clientPool *x509.CertPool
}

func newPKI(t *testing.T) *pki {
	t.Helper()
	dir := t.TempDir()

	ca, err := Generate(CertParams{CommonName: "Test CA", Usage: UsageCA}, nil)
	if err != nil {
		t.Fatalf("Generate(CA) error = %v", err)
	}
	server, err := Generate(DefaultCertParams(), ca)
	if err != nil {
		t.Fatalf("Generate(server) error = %v", err)
	}
	client, err := Generate(CertParams{CommonName: "client1", Organization: "Example", Usage: UsageClient}, ca)
	if err != nil {
		t.Fatalf("Generate(client) error = %v", err)
	}

	p := &pki{
		dir:      dir,
		ca:       ca,
		server:   server,
		client:   client,
		caFile:   filepath.Join(dir, "ca.pem"),
		certFile: filepath.Join(dir, "server.pem"),
		keyFile:  filepath.Join(dir, "server-key.pem"),
	}
	if err := os.WriteFile(p.caFile, ca.CertPEM, 0644); err != nil {
		t.Fatal(err)
	}
	if err := server.WriteFiles(p.certFile, p.keyFile); err != nil {
		t.Fatal(err)
	}
	p.clientPool = x509.NewCertPool()
	p.clientPool.AddCert(ca.Certificate)
	return p
}

func TestNewErrors(t *testing.T) {
	p := newPKI(t)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no certificate", Config{}},
		{"missing file", Config{CertFile: filepath.Join(p.dir, "nope.pem")}},
		{"key not in cert file", Config{CertFile: p.certFile}},
		{"mutual without CA", Config{CertFile: p.certFile, KeyFile: p.keyFile, RequireClientCert: true}},
		{"bad CA file", Config{CertFile: p.certFile, KeyFile: p.keyFile, CAFile: p.keyFile}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestCombinedCertAndKeyFile(t *testing.T) {
	p := newPKI(t)
	combined := filepath.Join(p.dir, "combined.pem")
	data := append(append([]byte{}, p.server.CertPEM...), p.server.KeyPEM...)
	if err := os.WriteFile(combined, data, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Config{CertFile: combined}); err != nil {
		t.Errorf("New() with combined PEM error = %v", err)
	}
}

func TestEncryptedKey(t *testing.T) {
	p := newPKI(t)

	block, _ := pem.Decode(p.server.KeyPEM)
	//lint:ignore SA1019 legacy PEM encryption
	enc, err := x509.EncryptPEMBlock(rand.Reader, block.Type, block.Bytes, []byte("hunter2"), x509.PEMCipherAES256)
	if err != nil {
		t.Fatal(err)
	}
	encFile := filepath.Join(p.dir, "enc-key.pem")
	if err := os.WriteFile(encFile, pem.EncodeToMemory(enc), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := New(Config{CertFile: p.certFile, KeyFile: encFile}); !errors.Is(err, ErrKeyPassword) {
		t.Errorf("New() without password error = %v, want ErrKeyPassword", err)
	}
	if _, err := New(Config{CertFile: p.certFile, KeyFile: encFile, KeyPassword: "wrong"}); !errors.Is(err, ErrKeyPassword) {
		t.Errorf("New() with wrong password error = %v, want ErrKeyPassword", err)
	}
	if _, err := New(Config{CertFile: p.certFile, KeyFile: encFile, KeyPassword: "hunter2"}); err != nil {
		t.Errorf("New() with password error = %v", err)
	}

	calls := 0
	cfg := Config{CertFile: p.certFile, KeyFile: encFile, PasswordFunc: func() ([]byte, error) {
		calls++
		return []byte("hunter2"), nil
	}}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() with PasswordFunc error = %v", err)
	}
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("PasswordFunc called %d times, want 1", calls)
	}
}

// tcpPair returns both ends of a loopback TCP connection.
func tcpPair(t *testing.T) (server, client net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	server = <-accepted
	if server == nil {
		t.Fatal("accept failed")
	}
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return server, client
}

func TestReloadKeepsCertificateOnFailure(t *testing.T) {
	p := newPKI(t)
	s, err := New(Config{CertFile: p.certFile, KeyFile: p.keyFile})
	if err != nil {
		t.Fatal(err)
	}
	before, _ := s.Certificate(nil)

	if err := os.WriteFile(p.certFile, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err == nil {
		t.Fatal("Reload() with a broken file should fail")
	}
	after, _ := s.Certificate(nil)
	if after != before {
		t.Error("failed reload replaced the active certificate")
	}
}

func TestHandshakeMutual(t *testing.T) {
	p := newPKI(t)
	s, err := New(Config{CertFile: p.certFile, KeyFile: p.keyFile, CAFile: p.caFile, RequireClientCert: true})
	if err != nil {
		t.Fatal(err)
	}

	clientCert, err := tls.X509KeyPair(p.client.CertPEM, p.client.KeyPEM)
	if err != nil {
		t.Fatal(err)
	}

	serverSide, clientSide := tcpPair(t)

	go func() {
		tc := tls.Client(clientSide, &tls.Config{
			RootCAs:      p.clientPool,
			ServerName:   "localhost",
			Certificates: []tls.Certificate{clientCert},
		})
		_ = tc.Handshake()
	}()

	tc, info, err := Handshake(serverSide, s.TLSConfig(), 5*time.Second)
	if err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}
	defer tc.Close()

	if !info.Verified {
		t.Error("client certificate should be verified")
	}
	if info.DN != "CN=client1,O=Example" {
		t.Errorf("DN = %q, want CN=client1,O=Example", info.DN)
	}
	if info.Version < tls.VersionTLS12 {
		t.Errorf("Version = %x, want >= TLS 1.2", info.Version)
	}
}

func TestHandshakeRejectsMissingClientCert(t *testing.T) {
	p := newPKI(t)
	s, err := New(Config{CertFile: p.certFile, KeyFile: p.keyFile, CAFile: p.caFile, RequireClientCert: true})
	if err != nil {
		t.Fatal(err)
	}

	serverSide, clientSide := tcpPair(t)

	go func() {
		defer clientSide.Close()
		tc := tls.Client(clientSide, &tls.Config{RootCAs: p.clientPool, ServerName: "localhost"})
		_ = tc.Handshake()
	}()

	if _, _, err := Handshake(serverSide, s.TLSConfig(), 5*time.Second); err == nil {
		t.Error("Handshake() without client certificate should fail")
	}
}

func TestWatchReloadsCertificate(t *testing.T) {
	p := newPKI(t)
	s, err := New(Config{CertFile: p.certFile, KeyFile: p.keyFile})
	if err != nil {
		t.Fatal(err)
	}
	before, _ := s.Certificate(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register.
	time.Sleep(200 * time.Millisecond)

	next, err := Generate(DefaultCertParams(), p.ca)
	if err != nil {
		t.Fatal(err)
	}
	if err := next.WriteFiles(p.certFile, p.keyFile); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		cur, _ := s.Certificate(nil)
		if cur != before {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Error("certificate was not reloaded after the files changed")
}
