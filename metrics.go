package multisigcheck

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics holds the prometheus collectors of the RPC server.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Verdicts        *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates the collectors and registers them with a new registry.
func NewMetrics() (*Metrics, error) {
	metrics := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	metrics.Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multisigcheck_requests_total",
			Help: "Total number of RPC requests by method and " +
				"outcome",
		},
		[]string{"method", "outcome"},
	)
	metrics.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "multisigcheck_request_duration",
			Help: "RPC request duration by method (in " +
				"microseconds)",
			Buckets: []float64{10, 100, 1_000, 10_000, 100_000},
		},
		[]string{"method"},
	)
	metrics.Verdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multisigcheck_verdicts_total",
			Help: "Total number of checked signatures by format " +
				"and verdict",
		},
		[]string{"format", "valid"},
	)

	collectors := []prometheus.Collector{
		metrics.Requests, metrics.RequestDuration, metrics.Verdicts,
	}
	for _, c := range collectors {
		if err := metrics.registry.Register(c); err != nil {
			return nil, err
		}
	}

	return metrics, nil
}

// Handler returns the HTTP handler serving the collected metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// intercept counts every request by method and status code.
func (m *Metrics) intercept(ctx context.Context, req interface{},
	info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{},
	error) {

	start := time.Now()
	resp, err := handler(ctx, req)

	method := path.Base(info.FullMethod)
	m.Requests.With(prometheus.Labels{
		"method":  method,
		"outcome": status.Code(err).String(),
	}).Inc()
	m.RequestDuration.With(prometheus.Labels{
		"method": method,
	}).Observe(float64(time.Since(start).Microseconds()))

	return resp, err
}
