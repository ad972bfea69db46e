package servers

import (
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/PocketRelay/PocketArkClient/internal/session"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *session.Context, Ports) {
	t.Helper()
	ports := testPorts(t)
	sess := session.NewContext()
	sup, err := NewSupervisor(ports, Limits{}, sess, staticCache{ip: net.IPv4(203, 0, 113, 1)})
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	return sup, sess, ports
}

func TestSupervisorRestartRebindsCleanly(t *testing.T) {
	sup, sess, ports := newTestSupervisor(t)
	defer sup.StopAll()

	target := session.Target{Scheme: "http", Host: "127.0.0.1", Port: 80}
	if n := sup.StartAll(target, "token-1"); n != 4 {
		t.Fatalf("first generation started %d services, want 4", n)
	}
	// Second StartAll must tear the first generation down before
	// rebinding, so every port binds again without conflict.
	if n := sup.StartAll(target, "token-2"); n != 4 {
		t.Fatalf("second generation started %d services, want 4", n)
	}

	// The second generation answers: discovery over the redirector...
	res, err := insecureClient().Get(fmt.Sprintf("https://127.0.0.1:%d/anything", ports.Redirector))
	if err != nil {
		t.Fatalf("redirector request: %v", err)
	}
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if !strings.Contains(string(body), fmt.Sprintf("<port>%d</port>", ports.Tunnel)) {
		t.Errorf("redirector body = %s", body)
	}

	// ...and the QoS echo on the UDP port.
	conn, err := net.Dial("udp", fmt.Sprintf("127.0.0.1:%d", ports.Qos))
	if err != nil {
		t.Fatalf("qos dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte{1}); err != nil {
		t.Fatalf("qos send: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Read(make([]byte, 32)); err != nil {
		t.Errorf("qos echo from second generation: %v", err)
	}

	// The restart also replaced the published token.
	if token, _ := sess.Token(); token != "token-2" {
		t.Errorf("token = %q, want token-2", token)
	}
}

func TestSupervisorStopReleasesPortsAndSession(t *testing.T) {
	sup, sess, ports := newTestSupervisor(t)

	target := session.Target{Scheme: "http", Host: "127.0.0.1", Port: 80}
	sup.StartAll(target, "token")
	sup.StopAll()

	if _, ok := sess.Target(); ok {
		t.Error("session target survived StopAll")
	}
	if _, ok := sess.Token(); ok {
		t.Error("session token survived StopAll")
	}

	// All listening sockets must be released for immediate rebinding.
	for _, port := range []uint16{ports.Redirector, ports.Tunnel, ports.Proxy} {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			t.Errorf("port %d still held after StopAll: %v", port, err)
			continue
		}
		_ = ln.Close()
	}
	udp, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(ports.Qos)})
	if err != nil {
		t.Errorf("qos port still held after StopAll: %v", err)
	} else {
		_ = udp.Close()
	}
}

func TestSupervisorStopAllIdempotent(t *testing.T) {
	sup, _, _ := newTestSupervisor(t)
	// Nothing running: both calls are no-ops.
	sup.StopAll()
	sup.StopAll()
}
