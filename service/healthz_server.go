package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

// RunStatus is the healthz body while a harness process is up
type RunStatus struct {
	RunID      string `json:"run_id"`
	Finished   bool   `json:"finished"`
	Successful bool   `json:"successful"`
	Result     string `json:"result,omitempty"`
}

type HealthzServer struct {
	log    log.Logger
	status func() RunStatus

	mu     sync.Mutex
	ctx    context.Context
	server *http.Server
	closed bool
}

func (h *HealthzServer) Handler() http.Handler {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.Handle)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(hdlr)
}

// Start serves until Shutdown; a server shut down first never listens.
func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return http.ErrServerClosed
	}
	srv := &http.Server{
		Handler: h.Handler(),
		Addr:    addr,
	}
	h.server = srv
	h.ctx = ctx
	h.mu.Unlock()
	return srv.ListenAndServe()
}

func (h *HealthzServer) Shutdown() error {
	h.mu.Lock()
	h.closed = true
	srv, ctx := h.server, h.ctx
	h.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	if h.log != nil {
		h.log.Debug("Received health check request", "path", r.URL.Path)
	}
	if h.status == nil {
		w.Write([]byte("OK")) //nolint:errcheck
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.status()); err != nil && h.log != nil {
		h.log.Warn("Failed to write health status", "err", err)
	}
}
