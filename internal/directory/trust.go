package directory

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// LoadTrustConfig reads a PEM certificate file and returns a TLS
// configuration that trusts exactly the certificates found in it. The
// platform trust store is not consulted: a server certificate that does not
// chain to one of the file's certificates is rejected.
//
// Any read or parse failure is a configuration error. It is surfaced at
// client construction and never retried, since it indicates a broken
// deployment rather than a transient condition.
func LoadTrustConfig(path string) (*tls.Config, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trust certificate %s: %w", path, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, fmt.Errorf("trust certificate %s contains no usable PEM certificates", path)
	}

	// No client identity material and no custom randomness source: the
	// configuration carries only the trust anchors from the file.
	return &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}, nil
}
