package servers

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/PocketRelay/PocketArkClient/internal/obs"
	"github.com/PocketRelay/PocketArkClient/internal/proto"
	"github.com/PocketRelay/PocketArkClient/internal/ratelimit"
	"github.com/PocketRelay/PocketArkClient/internal/session"
	"github.com/google/uuid"
)

// dialTimeout bounds the outbound connection + upgrade handshake.
const dialTimeout = 10 * time.Second

// Tunnel accepts the game's session connection on a plaintext TCP
// port, upgrades an HTTP connection against the remote target into a
// raw game-protocol stream and relays bytes both ways until either
// side closes.
type Tunnel struct {
	port    uint16
	session *session.Context
	limiter *ratelimit.SourceLimiter

	ln net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func NewTunnel(ports Ports, sess *session.Context, limiter *ratelimit.SourceLimiter) *Tunnel {
	return &Tunnel{port: ports.Tunnel, session: sess, limiter: limiter, conns: make(map[net.Conn]struct{})}
}

func (t *Tunnel) Name() string { return "tunnel" }

func (t *Tunnel) Start(ctx context.Context, wg *sync.WaitGroup) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("bind tunnel on :%d: %w", t.port, err)
	}
	t.ln = ln

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				return
			}
			if t.limiter != nil && !t.limiter.Allow(remoteIP(conn)) {
				obs.ErrorsTotal.WithLabelValues("tunnel_ratelimited").Inc()
				_ = conn.Close()
				continue
			}
			t.track(conn)
			wg.Add(1)
			go func() {
				defer wg.Done()
				t.handle(ctx, conn)
			}()
		}
	}()
	obs.Info("tunnel.listening", obs.Fields{"port": t.port})
	return nil
}

func (t *Tunnel) Close() {
	if t.ln != nil {
		_ = t.ln.Close()
	}
	t.mu.Lock()
	for conn := range t.conns {
		_ = conn.Close()
	}
	t.mu.Unlock()
}

func (t *Tunnel) track(conn net.Conn) {
	t.mu.Lock()
	t.conns[conn] = struct{}{}
	t.mu.Unlock()
}

func (t *Tunnel) untrack(conn net.Conn) {
	t.mu.Lock()
	delete(t.conns, conn)
	t.mu.Unlock()
}

// handle performs the upgrade handshake against the remote target and
// relays bytes until one side closes. Any failure closes the game
// connection without retry; the accept loop is unaffected.
func (t *Tunnel) handle(ctx context.Context, client net.Conn) {
	id := uuid.NewString()
	defer t.untrack(client)
	defer client.Close()

	target, ok := t.session.Target()
	if !ok {
		obs.Debug("tunnel.no_target", obs.Fields{"id": id})
		return
	}
	token, ok := t.session.Token()
	if !ok {
		obs.Debug("tunnel.no_token", obs.Fields{"id": id})
		return
	}

	upstream, br, err := dialUpgrade(ctx, target, token)
	if err != nil {
		obs.Error("tunnel.upgrade", obs.Fields{"id": id, "err": err.Error()})
		obs.ErrorsTotal.WithLabelValues("tunnel_upgrade").Inc()
		return
	}
	t.track(upstream)
	defer t.untrack(upstream)

	obs.Info("tunnel.established", obs.Fields{"id": id, "target": target.Addr()})
	obs.TunnelEstablishedTotal.Inc()
	obs.TunnelActive.Inc()
	defer obs.TunnelActive.Dec()

	start := time.Now()
	relay(client, upstream, br)
	obs.TunnelDurationSeconds.Observe(time.Since(start).Seconds())
	obs.Debug("tunnel.closed", obs.Fields{"id": id})
}

// dialUpgrade connects to the remote target, sends the upgrade request
// and verifies the protocol switch. The returned reader wraps the
// connection and may hold bytes the server sent after the 101
// response; relaying must drain it, not the bare connection.
//
// Upstream certificates are deliberately not verified: community
// servers run self-signed certificates and the game applies the same
// tolerance.
func dialUpgrade(ctx context.Context, target session.Target, token string) (net.Conn, *bufio.Reader, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}

	var conn net.Conn
	var err error
	if target.Scheme == "https" {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{InsecureSkipVerify: true}}).DialContext(ctx, "tcp", target.Addr())
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", target.Addr())
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", target.Addr(), err)
	}

	req, err := http.NewRequest(http.MethodGet, target.URL(proto.UpgradeEndpoint), nil)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", proto.UpgradeProtocol)
	req.Header.Set(proto.HeaderScheme, target.Scheme)
	req.Header.Set(proto.HeaderHost, target.Host)
	req.Header.Set(proto.HeaderPort, strconv.Itoa(int(target.Port)))
	req.Header.Set(proto.HeaderAuth, token)

	_ = conn.SetDeadline(time.Now().Add(dialTimeout))
	if err := req.Write(conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("write upgrade request: %w", err)
	}

	br := bufio.NewReader(conn)
	res, err := http.ReadResponse(br, req)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("read upgrade response: %w", err)
	}
	if res.StatusCode != http.StatusSwitchingProtocols {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("unexpected upgrade status %d", res.StatusCode)
	}
	_ = conn.SetDeadline(time.Time{})
	return conn, br, nil
}

// relay copies bytes between the game connection and the upgraded
// stream until either side closes, then tears both down.
func relay(client, upstream net.Conn, upstreamReader io.Reader) {
	var wg sync.WaitGroup
	var once sync.Once
	closeBoth := func() {
		_ = client.Close()
		_ = upstream.Close()
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(upstream, client)
		once.Do(closeBoth)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(client, upstreamReader)
		once.Do(closeBoth)
	}()
	wg.Wait()
}

func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
