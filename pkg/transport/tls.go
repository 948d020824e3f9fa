// Package transport builds the TLS configurations used by the server and the
// client.
package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/marmos91/dittosh/internal/logger"
)

// MinVersion is the lowest TLS version either side accepts.
const MinVersion = tls.VersionTLS12

// SelfSignedValidity is the lifetime of generated certificates.
const SelfSignedValidity = 365 * 24 * time.Hour

// ServerConfig selects the server certificate.
type ServerConfig struct {
	CertFile   string `mapstructure:"cert_file" yaml:"cert_file" json:"cert_file,omitempty"`
	KeyFile    string `mapstructure:"key_file" yaml:"key_file" json:"key_file,omitempty"`
	SelfSigned bool   `mapstructure:"self_signed" yaml:"self_signed" json:"self_signed"`

	// Hosts are the DNS names and IPs put in a self-signed certificate.
	// Empty means localhost and 127.0.0.1.
	Hosts []string `mapstructure:"hosts" yaml:"hosts,omitempty" json:"hosts,omitempty"`
}

// ClientConfig controls server verification on the client side.
type ClientConfig struct {
	// CAFile adds PEM certificates to trust. Empty uses the system pool.
	CAFile string

	// ServerName overrides the name verified against the certificate.
	ServerName string

	// Insecure skips verification entirely.
	Insecure bool
}

// ServerTLSConfig loads the configured key pair, or generates a self-signed
// one when no files are given and SelfSigned is set.
func ServerTLSConfig(cfg ServerConfig) (*tls.Config, error) {
	var (
		cert tls.Certificate
		err  error
	)

	switch {
	case cfg.CertFile != "" && cfg.KeyFile != "":
		cert, err = tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load key pair: %w", err)
		}
		logger.Debug("Loaded TLS key pair", "cert_file", cfg.CertFile)
	case cfg.CertFile != "" || cfg.KeyFile != "":
		return nil, ErrIncompleteKeyPair
	case cfg.SelfSigned:
		cert, err = SelfSignedCertificate(cfg.Hosts...)
		if err != nil {
			return nil, err
		}
		logger.Warn("Using a generated self-signed TLS certificate; clients must connect with --insecure or trust it explicitly")
	default:
		return nil, ErrNoCertificate
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   MinVersion,
	}, nil
}

// ClientTLSConfig builds the client side configuration.
func ClientTLSConfig(cfg ClientConfig) (*tls.Config, error) {
	tc := &tls.Config{
		MinVersion:         MinVersion,
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.Insecure, //nolint:gosec // opt-in for self-signed servers
	}
	if cfg.CAFile == "" {
		return tc, nil
	}

	data, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%s: %w", cfg.CAFile, ErrNoCACertificates)
	}
	tc.RootCAs = pool
	return tc, nil
}

// GenerateSelfSigned returns a PEM encoded ECDSA P-256 certificate and key
// valid for hosts.
func GenerateSelfSigned(hosts ...string) (certPEM, keyPEM []byte, err error) {
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1"}
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"dittosh"}, CommonName: hosts[0]},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(SelfSignedValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal key: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

// SelfSignedCertificate is GenerateSelfSigned parsed into a tls.Certificate.
func SelfSignedCertificate(hosts ...string) (tls.Certificate, error) {
	certPEM, keyPEM, err := GenerateSelfSigned(hosts...)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}

// WriteSelfSigned generates a certificate and writes it to certFile and
// keyFile. The key file is created with mode 0600.
func WriteSelfSigned(certFile, keyFile string, hosts ...string) error {
	certPEM, keyPEM, err := GenerateSelfSigned(hosts...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	return nil
}
