package servers

import (
	"context"
	"crypto/tls"
	"sync"

	"github.com/PocketRelay/PocketArkClient/internal/addrcache"
	"github.com/PocketRelay/PocketArkClient/internal/identity"
	"github.com/PocketRelay/PocketArkClient/internal/obs"
	"github.com/PocketRelay/PocketArkClient/internal/ratelimit"
	"github.com/PocketRelay/PocketArkClient/internal/session"
)

// Limits configures the per-source rate limits applied by the tunnel
// and QoS services. Zero values disable a limit.
type Limits struct {
	TunnelConnsPerSec int `yaml:"tunnel_conns_per_sec"`
	QosPacketsPerSec  int `yaml:"qos_packets_per_sec"`
	Burst             int `yaml:"burst"`
}

// DefaultLimits keeps a misbehaving peer from monopolizing the
// services without getting in the way of normal gameplay.
var DefaultLimits = Limits{TunnelConnsPerSec: 10, QosPacketsPerSec: 300, Burst: 50}

// Supervisor owns the lifecycle of the four local services. StartAll
// replaces any running generation with a fresh one; StopAll cancels
// and awaits every task of the current generation, so at most one
// generation ever holds the fixed ports.
type Supervisor struct {
	ports     Ports
	limits    Limits
	session   *session.Context
	cache     addrcache.Cache
	tlsConfig *tls.Config

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
	services []Service
}

// NewSupervisor loads the embedded TLS identity and prepares a
// supervisor; no sockets are bound until StartAll.
func NewSupervisor(ports Ports, limits Limits, sess *session.Context, cache addrcache.Cache) (*Supervisor, error) {
	tlsConfig, err := identity.ServerTLSConfig()
	if err != nil {
		return nil, err
	}
	return &Supervisor{
		ports:     ports,
		limits:    limits,
		session:   sess,
		cache:     cache,
		tlsConfig: tlsConfig,
	}, nil
}

// StartAll stops any previous generation, publishes the target and
// token, then starts the redirector, tunnel, HTTP proxy and QoS
// services. A service that fails to bind is reported and skipped; the
// rest still start. The number of running services is returned.
func (s *Supervisor) StartAll(target session.Target, token string) int {
	s.StopAll()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.SetTarget(target)
	s.session.SetToken(token)

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}

	tunnelLimiter := ratelimit.NewSourceLimiter(0, s.limits.TunnelConnsPerSec, s.limits.Burst)
	qosLimiter := ratelimit.NewSourceLimiter(0, s.limits.QosPacketsPerSec, s.limits.Burst)

	candidates := []Service{
		NewRedirector(s.ports, s.tlsConfig),
		NewTunnel(s.ports, s.session, tunnelLimiter),
		NewHTTPProxy(s.ports, s.session, s.tlsConfig),
		NewQos(s.ports, s.cache, qosLimiter),
	}

	var started []Service
	for _, svc := range candidates {
		if err := svc.Start(ctx, wg); err != nil {
			obs.Error("supervisor.start", obs.Fields{"service": svc.Name(), "err": err.Error()})
			obs.ErrorsTotal.WithLabelValues("bind_" + svc.Name()).Inc()
			continue
		}
		started = append(started, svc)
	}

	s.cancel = cancel
	s.wg = wg
	s.services = started
	obs.ServicesRunning.Set(float64(len(started)))
	obs.Info("supervisor.started", obs.Fields{"services": len(started), "target": target.Addr()})
	return len(started)
}

// StopAll cancels the running generation, closes every listening
// socket and in-flight connection, waits for all tasks to exit, then
// clears the shared session. Safe to call when nothing runs.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	for _, svc := range s.services {
		svc.Close()
	}
	s.wg.Wait()
	s.cancel = nil
	s.wg = nil
	s.services = nil
	s.session.Clear()
	obs.ServicesRunning.Set(0)
	obs.Info("supervisor.stopped", nil)
}
