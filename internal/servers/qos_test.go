package servers

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestAppendQosSuffix(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	got := appendQosSuffix(payload, net.IPv4(1, 2, 3, 4), 5000)

	want := append([]byte{}, payload...)
	want = append(want, 1, 2, 3, 4)       // ipv4 big-endian
	want = append(want, 0x13, 0x88)       // 5000
	want = append(want, 0, 0, 0, 0)       // reserved
	if !bytes.Equal(got, want) {
		t.Errorf("frame = %x, want %x", got, want)
	}
}

func TestAppendQosSuffixNonIPv4(t *testing.T) {
	got := appendQosSuffix(nil, net.ParseIP("::1"), 80)
	want := []byte{0, 0, 0, 0, 0, 80, 0, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("frame = %x, want %x", got, want)
	}
}

func TestQosRoundTrip(t *testing.T) {
	ports := testPorts(t)
	qos := NewQos(ports, staticCache{ip: net.IPv4(203, 0, 113, 50)}, nil)

	var wg sync.WaitGroup
	if err := qos.Start(context.Background(), &wg); err != nil {
		t.Fatalf("start qos: %v", err)
	}
	defer func() {
		qos.Close()
		wg.Wait()
	}()

	conn, err := net.Dial("udp", net.JoinHostPort("127.0.0.1", itoa(ports.Qos)))
	if err != nil {
		t.Fatalf("dial qos: %v", err)
	}
	defer conn.Close()

	payload := []byte("qos probe")
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("send: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 128)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}

	res := buf[:n]
	if len(res) != len(payload)+10 {
		t.Fatalf("response length = %d, want %d", len(res), len(payload)+10)
	}
	if !bytes.Equal(res[:len(payload)], payload) {
		t.Errorf("payload not echoed: %x", res[:len(payload)])
	}
	if !bytes.Equal(res[len(payload):len(payload)+4], []byte{203, 0, 113, 50}) {
		t.Errorf("address suffix = %x", res[len(payload):len(payload)+4])
	}
	srcPort := conn.LocalAddr().(*net.UDPAddr).Port
	gotPort := int(res[len(payload)+4])<<8 | int(res[len(payload)+5])
	if gotPort != srcPort {
		t.Errorf("port suffix = %d, want %d", gotPort, srcPort)
	}
	if !bytes.Equal(res[len(payload)+6:], []byte{0, 0, 0, 0}) {
		t.Errorf("reserved suffix = %x", res[len(payload)+6:])
	}
}

// A failing send for one datagram must not stop the loop: send one
// oversized-source burst, then verify a normal probe still answers.
func TestQosKeepsServing(t *testing.T) {
	ports := testPorts(t)
	qos := NewQos(ports, staticCache{ip: net.IPv4(198, 51, 100, 1)}, nil)

	var wg sync.WaitGroup
	if err := qos.Start(context.Background(), &wg); err != nil {
		t.Fatalf("start qos: %v", err)
	}
	defer func() {
		qos.Close()
		wg.Wait()
	}()

	addr := net.JoinHostPort("127.0.0.1", itoa(ports.Qos))
	for i := 0; i < 3; i++ {
		conn, err := net.Dial("udp", addr)
		if err != nil {
			t.Fatalf("dial qos: %v", err)
		}
		if _, err := conn.Write([]byte{byte(i)}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		buf := make([]byte, 128)
		if _, err := conn.Read(buf); err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
		_ = conn.Close()
	}
}

func itoa(p uint16) string {
	return strconv.Itoa(int(p))
}
