// Package identity embeds the server certificate presented by the
// local TLS services. The game client either trusts this certificate
// directly or skips validation, so no CA is involved; the pair ships
// inside the binary exactly like the original client's.
package identity

import (
	"crypto/tls"
	_ "embed"
	"fmt"
)

//go:embed cert.pem
var certPEM []byte

//go:embed key.pem
var keyPEM []byte

// ServerTLSConfig builds the TLS configuration used by every local
// TLS-terminating listener. The material is immutable after load and
// safe to share across services.
func ServerTLSConfig() (*tls.Config, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("load embedded identity: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}
