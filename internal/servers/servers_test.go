package servers

import (
	"context"
	"net"
	"testing"
)

// freePorts grabs n distinct ephemeral ports for a test generation.
func freePorts(t *testing.T, n int) []uint16 {
	t.Helper()
	ports := make([]uint16, 0, n)
	listeners := make([]net.Listener, 0, n)
	for i := 0; i < n; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("reserve port: %v", err)
		}
		listeners = append(listeners, ln)
		ports = append(ports, uint16(ln.Addr().(*net.TCPAddr).Port))
	}
	for _, ln := range listeners {
		_ = ln.Close()
	}
	return ports
}

func testPorts(t *testing.T) Ports {
	p := freePorts(t, 4)
	return Ports{Redirector: p[0], Tunnel: p[1], Qos: p[2], Proxy: p[3]}
}

// staticCache is an addrcache.Cache that always answers with a fixed
// address, so QoS framing can be asserted byte-for-byte.
type staticCache struct {
	ip net.IP
}

func (s staticCache) PublicAddress(_ context.Context, fallback net.IP) net.IP {
	if s.ip == nil {
		return fallback
	}
	return s.ip
}
