package service

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes the default Prometheus registry on /metrics
type MetricsServer struct {
	mu     sync.Mutex
	ctx    context.Context
	server *http.Server
	closed bool
}

func (m *MetricsServer) Handler() http.Handler {
	hdlr := http.NewServeMux()
	hdlr.Handle("/metrics", promhttp.Handler())
	return hdlr
}

// Start serves until Shutdown; a server shut down first never listens.
func (m *MetricsServer) Start(ctx context.Context, addr string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return http.ErrServerClosed
	}
	srv := &http.Server{
		Handler: m.Handler(),
		Addr:    addr,
	}
	m.server = srv
	m.ctx = ctx
	m.mu.Unlock()
	return srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown() error {
	m.mu.Lock()
	m.closed = true
	srv, ctx := m.server, m.ctx
	m.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
