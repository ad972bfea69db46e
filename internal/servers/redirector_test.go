package servers

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/PocketRelay/PocketArkClient/internal/identity"
)

func insecureClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
	}
}

func TestRedirectorDiscoveryResponse(t *testing.T) {
	ports := testPorts(t)
	tlsConfig, err := identity.ServerTLSConfig()
	if err != nil {
		t.Fatalf("identity: %v", err)
	}

	red := NewRedirector(ports, tlsConfig)
	var wg sync.WaitGroup
	if err := red.Start(context.Background(), &wg); err != nil {
		t.Fatalf("start redirector: %v", err)
	}
	defer func() {
		red.Close()
		wg.Wait()
	}()

	res, err := insecureClient().Get(fmt.Sprintf("https://127.0.0.1:%d/redirector/getServerInstance", ports.Redirector))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d", res.StatusCode)
	}
	for header, want := range map[string]string{
		"X-BLAZE-COMPONENT": "redirector",
		"X-BLAZE-COMMAND":   "getServerInstance",
		"X-BLAZE-SEQNO":     "0",
		"Content-Type":      "application/xml",
	} {
		if got := res.Header.Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	doc := string(body)
	if !strings.Contains(doc, fmt.Sprintf("<port>%d</port>", ports.Tunnel)) {
		t.Errorf("body missing tunnel port %d: %s", ports.Tunnel, doc)
	}
	if !strings.Contains(doc, "<ip>2130706433</ip>") {
		t.Errorf("body missing loopback ip: %s", doc)
	}
	if !strings.Contains(doc, "<hostname>localhost</hostname>") {
		t.Errorf("body missing hostname: %s", doc)
	}
}
