package tlsconf

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mingodad/libnavajo/internal/logging"
)

// ErrKeyPassword is returned when an encrypted key cannot be decrypted.
var ErrKeyPassword = errors.New("tlsconf: cannot decrypt private key")

// Config describes the server certificate and optional client verification.
type Config struct {
	CertFile string
	// KeyFile defaults to CertFile (certificate and key in one PEM file).
	KeyFile string
	// KeyPassword decrypts a legacy encrypted PEM key.
	KeyPassword string
	// PasswordFunc is asked for the key password when KeyPassword is empty.
	PasswordFunc func() ([]byte, error)

	// CAFile holds the roots used to verify client certificates.
	CAFile string
	// RequireClientCert enables mutual TLS.
	RequireClientCert bool
}

// Store holds the active certificate. The certificate can be replaced at
// runtime by Reload or Watch without restarting listeners.
type Store struct {
	cfg Config

	mu        sync.RWMutex
	cert      *tls.Certificate
	clientCAs *x509.CertPool
	password  []byte
}

// New loads the certificate, key and CA file. Any failure is returned so
// the server refuses to start.
func New(cfg Config) (*Store, error) {
	if cfg.CertFile == "" {
		return nil, errors.New("tlsconf: certificate file not set")
	}
	if cfg.KeyFile == "" {
		cfg.KeyFile = cfg.CertFile
	}
	if cfg.RequireClientCert && cfg.CAFile == "" {
		return nil, errors.New("tlsconf: client certificate verification needs a CA file")
	}

	s := &Store{cfg: cfg}
	if cfg.KeyPassword != "" {
		s.password = []byte(cfg.KeyPassword)
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}

	if cfg.CAFile != "" {
		pool, err := loadCAs(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		s.clientCAs = pool
	}

	logging.Info("TLS configuration created from files",
		zap.String("cert", cfg.CertFile),
		zap.String("key", cfg.KeyFile),
		zap.String("ca", cfg.CAFile),
		zap.Bool("mutual", cfg.RequireClientCert),
	)
	return s, nil
}

// Reload reads the key pair again. On failure the current certificate stays
// in use.
func (s *Store) Reload() error {
	cert, err := s.loadKeyPair()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cert = &cert
	s.mu.Unlock()
	return nil
}

// Certificate returns the active certificate. It has the signature of
// tls.Config.GetCertificate.
func (s *Store) Certificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cert, nil
}

// TLSConfig returns the server configuration: TLS 1.2 minimum, certificate
// served from the store, client verification as configured.
func (s *Store) TLSConfig() *tls.Config {
	config := &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: s.Certificate,
		ClientCAs:      s.clientCAs,
		ClientAuth:     tls.NoClientCert,
	}
	switch {
	case s.cfg.RequireClientCert:
		config.ClientAuth = tls.RequireAndVerifyClientCert
	case s.clientCAs != nil:
		config.ClientAuth = tls.VerifyClientCertIfGiven
	}
	return config
}

func (s *Store) loadKeyPair() (tls.Certificate, error) {
	certPEM, err := os.ReadFile(s.cfg.CertFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("reading certificate: %w", err)
	}
	keyPEM := certPEM
	if s.cfg.KeyFile != s.cfg.CertFile {
		keyPEM, err = os.ReadFile(s.cfg.KeyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("reading private key: %w", err)
		}
	}

	keyPEM, err = s.decryptKey(keyPEM)
	if err != nil {
		return tls.Certificate{}, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return cert, nil
}

// decryptKey returns the first private key block of data, decrypted when it
// is a legacy encrypted PEM block.
func (s *Store) decryptKey(data []byte) ([]byte, error) {
	for rest := data; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, errors.New("no private key found in PEM data")
		}
		if block.Type == "ENCRYPTED PRIVATE KEY" {
			return nil, fmt.Errorf("%w: PKCS#8 encrypted keys are not supported", ErrKeyPassword)
		}
		if !strings.HasSuffix(block.Type, "PRIVATE KEY") {
			continue
		}
		//lint:ignore SA1019 legacy PEM encryption
		if !x509.IsEncryptedPEMBlock(block) {
			return pem.EncodeToMemory(block), nil
		}

		password, err := s.keyPassword()
		if err != nil {
			return nil, err
		}
		//lint:ignore SA1019 legacy PEM encryption
		der, err := x509.DecryptPEMBlock(block, password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyPassword, err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
	}
}

// keyPassword returns the configured password, asking PasswordFunc once and
// remembering the answer for later reloads.
func (s *Store) keyPassword() ([]byte, error) {
	if s.password != nil {
		return s.password, nil
	}
	if s.cfg.PasswordFunc == nil {
		return nil, fmt.Errorf("%w: key is encrypted and no password is configured", ErrKeyPassword)
	}
	pw, err := s.cfg.PasswordFunc()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyPassword, err)
	}
	s.password = pw
	return pw, nil
}

func loadCAs(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in CA file %s", path)
	}
	return pool, nil
}
