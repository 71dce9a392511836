package tlsconf

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

// CertificateError reports a failed certificate operation.
type CertificateError struct {
	// Operation describes what certificate operation failed
	Operation string
	// Path is the certificate file path (if applicable)
	Path string
	// Underlying error
	Err error
}

func (e *CertificateError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("certificate error during %s (file: %s): %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("certificate error during %s: %v", e.Operation, e.Err)
}

func (e *CertificateError) Unwrap() error {
	return e.Err
}

// Usage selects what an issued certificate is for.
type Usage int

const (
	UsageServer Usage = iota
	UsageClient
	UsageCA
)

// CertParams holds parameters for generating a certificate.
type CertParams struct {
	CommonName   string
	Organization string
	// Hosts become DNS or IP subject alternative names.
	Hosts     []string
	ValidDays int
	Usage     Usage
}

// DefaultCertParams returns parameters for a local development server.
func DefaultCertParams() CertParams {
	return CertParams{
		CommonName:   "localhost",
		Organization: "libnavajo",
		Hosts:        []string{"localhost", "127.0.0.1", "::1"},
		ValidDays:    365,
		Usage:        UsageServer,
	}
}

// Issued is a generated certificate and its key.
type Issued struct {
	CertPEM     []byte
	KeyPEM      []byte
	Certificate *x509.Certificate
	PrivateKey  *rsa.PrivateKey
}

// Generate creates an RSA 2048 certificate signed by parent, or self-signed
// when parent is nil.
func Generate(params CertParams, parent *Issued) (*Issued, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, &CertificateError{Operation: "generate_key", Err: err}
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, &CertificateError{Operation: "generate_serial", Err: err}
	}

	validDays := params.ValidDays
	if validDays <= 0 {
		validDays = 365
	}
	notBefore := time.Now().Add(-time.Minute)

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: params.CommonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.AddDate(0, 0, validDays),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		BasicConstraintsValid: true,
	}
	if params.Organization != "" {
		template.Subject.Organization = []string{params.Organization}
	}

	switch params.Usage {
	case UsageCA:
		template.IsCA = true
		template.KeyUsage |= x509.KeyUsageCertSign
	case UsageClient:
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	default:
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	}
	for _, h := range params.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	signer, signerKey := &template, privateKey
	if parent != nil {
		signer, signerKey = parent.Certificate, parent.PrivateKey
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, signer, &privateKey.PublicKey, signerKey)
	if err != nil {
		return nil, &CertificateError{Operation: "create_certificate", Err: err}
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, &CertificateError{Operation: "parse_certificate", Err: err}
	}

	return &Issued{
		CertPEM:     pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		KeyPEM:      pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)}),
		Certificate: cert,
		PrivateKey:  privateKey,
	}, nil
}

// WriteFiles stores the certificate and key. The key file is private to the
// owner.
func (i *Issued) WriteFiles(certPath, keyPath string) error {
	if err := os.WriteFile(certPath, i.CertPEM, 0644); err != nil {
		return &CertificateError{Operation: "write", Path: certPath, Err: err}
	}
	if err := os.WriteFile(keyPath, i.KeyPEM, 0600); err != nil {
		return &CertificateError{Operation: "write", Path: keyPath, Err: err}
	}
	return nil
}
