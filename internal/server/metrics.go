package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rileyhilliard/fleetwatch/internal/logger"
	"github.com/rileyhilliard/fleetwatch/internal/protocol"
)

// Metrics are the server's Prometheus counters.
type Metrics struct {
	Connections     prometheus.Counter
	Commands        *prometheus.CounterVec
	DecodeErrors    prometheus.Counter
	RateLimited     prometheus.Counter
	AuthDenied      prometheus.Counter
	SamplesInserted prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates counters on a private registry so several servers
// (or tests) never collide on global registration.
func NewMetrics() *Metrics {
	m := &Metrics{
		Connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fleetwatch",
			Name:      "connections_total",
			Help:      "Connections accepted by the protocol server",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleetwatch",
			Name:      "commands_total",
			Help:      "Decoded frames by command",
		}, []string{"command"}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fleetwatch",
			Name:      "decode_errors_total",
			Help:      "Frames dropped because they could not be decoded",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fleetwatch",
			Name:      "rate_limited_total",
			Help:      "INPUT frames dropped for arriving too soon",
		}),
		AuthDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fleetwatch",
			Name:      "auth_denied_total",
			Help:      "Privileged commands refused",
		}),
		SamplesInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fleetwatch",
			Name:      "samples_inserted_total",
			Help:      "Samples written to the store",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.Connections, m.Commands, m.DecodeErrors, m.RateLimited, m.AuthDenied, m.SamplesInserted)
	for _, c := range protocol.Commands {
		if c != protocol.Error {
			m.Commands.WithLabelValues(c.String())
		}
	}
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ServeMetrics exposes /metrics on addr until ctx is done.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening on http://%s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
