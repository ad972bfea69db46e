// Package servers implements the local network services that stand in
// for the vendor's infrastructure once the hosts-file redirect is in
// place: service discovery (redirector), the session tunnel, the HTTPS
// proxy and the QoS echo. A Supervisor starts and stops them as one
// generation.
package servers

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
)

// Ports carries the fixed local ports the game expects the services
// on. All four are configurable; the defaults match the hosts-file
// redirect scheme the game client probes.
type Ports struct {
	Redirector uint16 `yaml:"redirector"`
	Tunnel     uint16 `yaml:"tunnel"`
	Proxy      uint16 `yaml:"proxy"`
	Qos        uint16 `yaml:"qos"`
}

// DefaultPorts is the port layout served by default.
var DefaultPorts = Ports{
	Redirector: 42230,
	Tunnel:     42231,
	Qos:        42232,
	Proxy:      42233,
}

// Service is one listener-backed local service. Start binds the
// listening socket synchronously so port conflicts surface to the
// operator, then serves in background goroutines registered on wg.
// Close releases the socket and any in-flight connections so the same
// port can be rebound immediately.
type Service interface {
	Name() string
	Start(ctx context.Context, wg *sync.WaitGroup) error
	Close()
}

// newTLSListener binds a TLS-terminating listener on the local port
// using the embedded server identity. Shared by the redirector and the
// HTTPS proxy.
func newTLSListener(port uint16, cfg *tls.Config) (net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	return tls.NewListener(ln, cfg), nil
}
