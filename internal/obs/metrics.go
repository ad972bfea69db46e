package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ServicesRunning        = promauto.NewGauge(prometheus.GaugeOpts{Name: "pocketark_services_running", Help: "Currently running local services"})
	TunnelActive           = promauto.NewGauge(prometheus.GaugeOpts{Name: "pocketark_tunnel_active", Help: "Active tunneled game connections"})
	TunnelEstablishedTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "pocketark_tunnel_established_total", Help: "Tunnels established against the remote server"})
	ProxyRequestsTotal     = promauto.NewCounterVec(prometheus.CounterOpts{Name: "pocketark_proxy_requests_total", Help: "HTTP proxy requests by outcome"}, []string{"outcome"})
	RedirectorHitsTotal    = promauto.NewCounter(prometheus.CounterOpts{Name: "pocketark_redirector_hits_total", Help: "Service discovery responses served"})
	QosDatagramsTotal      = promauto.NewCounter(prometheus.CounterOpts{Name: "pocketark_qos_datagrams_total", Help: "QoS datagrams answered"})
	ErrorsTotal            = promauto.NewCounterVec(prometheus.CounterOpts{Name: "pocketark_errors_total", Help: "Errors by type"}, []string{"type"})
	TunnelDurationSeconds  = promauto.NewHistogram(prometheus.HistogramOpts{Name: "pocketark_tunnel_duration_seconds", Help: "Tunnel lifetime seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 16)})
)
