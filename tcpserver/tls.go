package tcpserver

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

// resolveTLSConfig loads the server certificate when any effective listener
// is secure. Certificates come from a PEM pair (FilePath and optional
// KeyFilePath) or a password-protected PKCS#12 file; certificate-store
// thumbprint lookups are rejected.
func resolveTLSConfig(cfg *Config) (*tls.Config, error) {
	if !cfg.RequiresTLS() {
		return nil, nil
	}

	cc := cfg.Certificate
	if cc == nil {
		return nil, fmt.Errorf("server %s: secure listener configured but no certificate", cfg.Name)
	}
	if cc.Thumbprint != "" {
		return nil, fmt.Errorf("server %s: certificate store thumbprint lookup is not supported; use FilePath", cfg.Name)
	}
	if cc.FilePath == "" {
		return nil, fmt.Errorf("server %s: certificate file path is required", cfg.Name)
	}

	cert, err := loadCertificate(cc)
	if err != nil {
		return nil, fmt.Errorf("server %s: load certificate %s: %w", cfg.Name, cc.FilePath, err)
	}

	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

func loadCertificate(cc *CertificateConfig) (tls.Certificate, error) {
	if cc.Password != "" {
		data, err := os.ReadFile(cc.FilePath)
		if err != nil {
			return tls.Certificate{}, err
		}

		key, cert, err := pkcs12.Decode(data, cc.Password)
		if err != nil {
			return tls.Certificate{}, err
		}

		return tls.Certificate{
			Certificate: [][]byte{cert.Raw},
			PrivateKey:  key,
			Leaf:        cert,
		}, nil
	}

	keyFile := cc.KeyFilePath
	if keyFile == "" {
		keyFile = cc.FilePath
	}

	return tls.LoadX509KeyPair(cc.FilePath, keyFile)
}

// tlsVersionFromName parses a listener security name into a minimum TLS
// version. "tls" alone accepts any supported version.
func tlsVersionFromName(name string) (uint16, error) {
	switch strings.ToLower(name) {
	case "tls":
		return tls.VersionTLS10, nil
	case "tls10":
		return tls.VersionTLS10, nil
	case "tls11":
		return tls.VersionTLS11, nil
	case "tls12":
		return tls.VersionTLS12, nil
	case "tls13":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unknown security protocol %q", name)
	}
}
