package transport

import "errors"

var (
	// ErrNoCertificate means neither a key pair nor self-signed mode was configured.
	ErrNoCertificate = errors.New("tls: no certificate configured")

	// ErrIncompleteKeyPair means only one of cert_file and key_file was set.
	ErrIncompleteKeyPair = errors.New("tls: cert_file and key_file must be set together")

	// ErrNoCACertificates means the CA file held no PEM certificates.
	ErrNoCACertificates = errors.New("tls: no certificates found in CA file")
)
