// Package addrcache resolves and caches this machine's public IPv4
// address for the QoS service. Lookups against external IP-echo
// services are expensive and rate-limited upstream, so a resolved
// value is reused for a bounded time and refreshes are coordinated so
// concurrent expirers trigger a single recomputation.
package addrcache

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PocketRelay/PocketArkClient/internal/obs"
)

// TTL is how long a resolved public address stays valid.
const TTL = 30 * time.Minute

// resolverTimeout bounds each external lookup so one unresponsive
// service degrades to the next candidate instead of stalling refresh.
const resolverTimeout = 5 * time.Second

// defaultResolvers are tried in order; the first parseable IPv4 wins.
var defaultResolvers = []string{
	"https://api.ipify.org/",
	"https://ipv4.icanhazip.com/",
}

// Cache returns the machine's public IPv4 address. fallback is used
// when no external service and no local interface yields an address;
// it is typically the source address of the datagram being answered
// and is never stored.
type Cache interface {
	PublicAddress(ctx context.Context, fallback net.IP) net.IP
}

// resolver fetches the public address from the external candidates,
// degrading to a local non-loopback interface address. Returns nil
// when nothing could be determined.
type resolver struct {
	client    *http.Client
	endpoints []string
}

func newResolver(endpoints []string) *resolver {
	if len(endpoints) == 0 {
		endpoints = defaultResolvers
	}
	return &resolver{
		client:    &http.Client{Timeout: resolverTimeout},
		endpoints: endpoints,
	}
}

func (r *resolver) resolve(ctx context.Context) net.IP {
	for _, endpoint := range r.endpoints {
		ip, err := r.fetch(ctx, endpoint)
		if err != nil {
			obs.Debug("addrcache.resolver", obs.Fields{"endpoint": endpoint, "err": err.Error()})
			continue
		}
		if ip != nil {
			return ip
		}
	}
	// No internet reachability; a LAN address is still useful for
	// same-network peers.
	if ip := localIPv4(); ip != nil {
		return ip
	}
	return nil
}

func (r *resolver) fetch(ctx context.Context, endpoint string) (net.IP, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	res, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 64))
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(strings.TrimSpace(string(body)))
	if ip == nil {
		return nil, nil
	}
	return ip.To4(), nil
}

// localIPv4 returns the first non-loopback IPv4 assigned to any
// interface, or nil.
func localIPv4() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}
