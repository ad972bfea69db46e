package servers

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/PocketRelay/PocketArkClient/internal/obs"
	"github.com/PocketRelay/PocketArkClient/internal/proto"
	"github.com/PocketRelay/PocketArkClient/internal/session"
	"github.com/google/uuid"
)

// bodyMethods are the methods whose body and content headers are
// forwarded to the remote target.
var bodyMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// forwardedRequestHeaders are copied verbatim from the game's request
// onto the outbound one for body-bearing methods. Everything else the
// game sends is dropped.
var forwardedRequestHeaders = []string{"Content-Type", "Content-Encoding"}

// HTTPProxy terminates TLS for the game's HTTP traffic and bridges
// each request to the remote target. It is a protocol bridge rather
// than a transparent reverse proxy: only the method, path, body
// headers and the auth token go out, and only the status, content
// type and body come back, which is all the game inspects.
type HTTPProxy struct {
	port       uint16
	tunnelPort uint16
	session    *session.Context
	tlsConfig  *tls.Config
	client     *http.Client

	srv *http.Server
}

func NewHTTPProxy(ports Ports, sess *session.Context, tlsConfig *tls.Config) *HTTPProxy {
	return &HTTPProxy{
		port:       ports.Proxy,
		tunnelPort: ports.Tunnel,
		session:    sess,
		tlsConfig:  tlsConfig,
		// Community servers run self-signed certificates; matching the
		// game's tolerance, upstream certificates are not verified.
		client: &http.Client{
			Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
		},
	}
}

func (p *HTTPProxy) Name() string { return "http-proxy" }

func (p *HTTPProxy) Start(ctx context.Context, wg *sync.WaitGroup) error {
	ln, err := newTLSListener(p.port, p.tlsConfig)
	if err != nil {
		return fmt.Errorf("bind http proxy on :%d: %w", p.port, err)
	}

	p.srv = &http.Server{
		Handler: http.HandlerFunc(p.handle),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			obs.Error("proxy.serve", obs.Fields{"err": err.Error()})
		}
	}()
	obs.Info("proxy.listening", obs.Fields{"port": p.port})
	return nil
}

func (p *HTTPProxy) Close() {
	if p.srv != nil {
		_ = p.srv.Close()
	}
}

func (p *HTTPProxy) handle(w http.ResponseWriter, r *http.Request) {
	// Some game builds probe discovery on the TLS port instead of the
	// dedicated redirector port; answer locally just like it does.
	if r.URL.Path == proto.DiscoveryPath {
		obs.RedirectorHitsTotal.Inc()
		proto.WriteInstanceResponse(w, p.tunnelPort)
		return
	}

	id := uuid.NewString()

	target, ok := p.session.Target()
	if !ok {
		obs.Debug("proxy.not_ready", obs.Fields{"id": id, "path": r.URL.Path})
		obs.ProxyRequestsTotal.WithLabelValues("not_ready").Inc()
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.URL(r.URL.RequestURI()), nil)
	if err != nil {
		obs.Error("proxy.request", obs.Fields{"id": id, "err": err.Error()})
		obs.ProxyRequestsTotal.WithLabelValues("bad_request").Inc()
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if token, ok := p.session.Token(); ok {
		out.Header.Set(proto.HeaderAuth, token)
	}
	if bodyMethods[r.Method] {
		out.Body = r.Body
		out.ContentLength = r.ContentLength
		for _, name := range forwardedRequestHeaders {
			if v := r.Header.Get(name); v != "" {
				out.Header.Set(name, v)
			}
		}
	}

	res, err := p.client.Do(out)
	if err != nil {
		// Foreground proxy, no retry: drop the connection so the game
		// sees the failure immediately.
		obs.Error("proxy.upstream", obs.Fields{"id": id, "path": r.URL.Path, "err": err.Error()})
		obs.ProxyRequestsTotal.WithLabelValues("upstream_error").Inc()
		obs.ErrorsTotal.WithLabelValues("proxy_upstream").Inc()
		panic(http.ErrAbortHandler)
	}
	defer res.Body.Close()

	if ct := res.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(res.StatusCode)
	if _, err := io.Copy(w, res.Body); err != nil {
		obs.Debug("proxy.stream", obs.Fields{"id": id, "err": err.Error()})
	}
	obs.ProxyRequestsTotal.WithLabelValues("ok").Inc()
	obs.Debug("proxy.done", obs.Fields{"id": id, "method": r.Method, "path": r.URL.Path, "status": res.StatusCode})
}
