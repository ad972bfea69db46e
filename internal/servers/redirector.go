package servers

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/PocketRelay/PocketArkClient/internal/obs"
	"github.com/PocketRelay/PocketArkClient/internal/proto"
)

// Redirector answers the game's service-discovery request. Every
// request on its TLS port receives the same synthetic document
// pointing the client at the local tunnel port; it never consults the
// remote target.
type Redirector struct {
	port       uint16
	tunnelPort uint16
	tlsConfig  *tls.Config

	srv *http.Server
}

func NewRedirector(ports Ports, tlsConfig *tls.Config) *Redirector {
	return &Redirector{port: ports.Redirector, tunnelPort: ports.Tunnel, tlsConfig: tlsConfig}
}

func (r *Redirector) Name() string { return "redirector" }

func (r *Redirector) Start(ctx context.Context, wg *sync.WaitGroup) error {
	ln, err := newTLSListener(r.port, r.tlsConfig)
	if err != nil {
		return fmt.Errorf("bind redirector on :%d: %w", r.port, err)
	}

	mux := http.NewServeMux()
	// The client is observed probing both the canonical discovery path
	// and bare paths, so every route serves the discovery document.
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		obs.Debug("redirector.hit", obs.Fields{"path": req.URL.Path, "remote": req.RemoteAddr})
		obs.RedirectorHitsTotal.Inc()
		proto.WriteInstanceResponse(w, r.tunnelPort)
	})
	r.srv = &http.Server{Handler: mux}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := r.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			obs.Error("redirector.serve", obs.Fields{"err": err.Error()})
		}
	}()
	obs.Info("redirector.listening", obs.Fields{"port": r.port, "tunnel_port": r.tunnelPort})
	return nil
}

func (r *Redirector) Close() {
	if r.srv != nil {
		_ = r.srv.Close()
	}
}
