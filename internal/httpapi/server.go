// Package httpapi exposes the gateway SPI over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/gateway"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/scope"
)

// Server hosts the gateway HTTP endpoints.
type Server struct {
	addr   string
	gw     *gateway.Gateway
	scopes *scope.Parser
	log    *slog.Logger
	server *http.Server
	once   sync.Once
}

// New constructs a Server.
func New(addr string, gw *gateway.Gateway, scopes *scope.Parser, log *slog.Logger) *Server {
	return &Server{addr: addr, gw: gw, scopes: scopes, log: log}
}

// Router builds the route tree. Exposed separately so tests can drive the
// handlers without binding a listener.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Route("/gateway/"+gateway.GatewayCode, func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/capture-url", s.handleCaptureURL)
		r.Post("/capture-query", s.handleCaptureQuery)
		r.Post("/cpp-url", s.handleCppURL)
		r.Post("/cpp-query", s.handleCppQuery)
		r.Post("/cnp-transfer", s.handleCnpTransfer)
		r.Post("/token-delete", s.handleTokenDelete)
	})
	return r
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.addr,
			Handler:           s.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	s.log.Info("gateway listening", "addr", s.addr)
	errc := make(chan error, 1)
	go func() {
		errc <- s.server.ListenAndServe()
	}()
	select {
	case err := <-errc:
		// Listener failed before the context was cancelled.
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
