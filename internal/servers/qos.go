package servers

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/PocketRelay/PocketArkClient/internal/addrcache"
	"github.com/PocketRelay/PocketArkClient/internal/obs"
	"github.com/PocketRelay/PocketArkClient/internal/ratelimit"
)

// qosPayloadMax is the game-specific payload size; anything beyond it
// in a datagram is ignored.
const qosPayloadMax = 64

// Qos answers the game's NAT-discovery datagrams: the request payload
// echoed back with the caller's public address, source port and a
// reserved field appended.
type Qos struct {
	port    uint16
	cache   addrcache.Cache
	limiter *ratelimit.SourceLimiter

	conn *net.UDPConn
}

func NewQos(ports Ports, cache addrcache.Cache, limiter *ratelimit.SourceLimiter) *Qos {
	return &Qos{port: ports.Qos, cache: cache, limiter: limiter}
}

func (q *Qos) Name() string { return "qos" }

func (q *Qos) Start(ctx context.Context, wg *sync.WaitGroup) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(q.port)})
	if err != nil {
		return fmt.Errorf("bind qos on :%d: %w", q.port, err)
	}
	q.conn = conn

	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, qosPayloadMax)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				obs.Debug("qos.read", obs.Fields{"err": err.Error()})
				continue
			}
			if q.limiter != nil && !q.limiter.Allow(addr.IP.String()) {
				obs.ErrorsTotal.WithLabelValues("qos_ratelimited").Inc()
				continue
			}
			payload := make([]byte, n)
			copy(payload, buf[:n])
			// A cold cache refresh can block on external lookups;
			// answer each datagram on its own goroutine so the read
			// loop keeps draining.
			wg.Add(1)
			go func() {
				defer wg.Done()
				q.respond(ctx, payload, addr)
			}()
		}
	}()
	obs.Info("qos.listening", obs.Fields{"port": q.port})
	return nil
}

func (q *Qos) Close() {
	if q.conn != nil {
		_ = q.conn.Close()
	}
}

func (q *Qos) respond(ctx context.Context, payload []byte, addr *net.UDPAddr) {
	public := q.cache.PublicAddress(ctx, addr.IP)
	out := appendQosSuffix(payload, public, uint16(addr.Port))
	if _, err := q.conn.WriteToUDP(out, addr); err != nil {
		obs.Debug("qos.write", obs.Fields{"addr": addr.String(), "err": err.Error()})
		obs.ErrorsTotal.WithLabelValues("qos_write").Inc()
		return
	}
	obs.QosDatagramsTotal.Inc()
}

// appendQosSuffix builds the response frame:
// payload || ipv4(4, big-endian) || port(2, big-endian) || 4 zero bytes.
func appendQosSuffix(payload []byte, ip net.IP, port uint16) []byte {
	v4 := ip.To4()
	if v4 == nil {
		v4 = net.IPv4zero.To4()
	}
	out := make([]byte, 0, len(payload)+10)
	out = append(out, payload...)
	out = append(out, v4...)
	out = binary.BigEndian.AppendUint16(out, port)
	out = append(out, 0, 0, 0, 0)
	return out
}
