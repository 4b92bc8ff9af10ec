package infra

import (
	"context"
	"net/http"
)

// HTTPServer wraps http.Server with the service's timeout policy. The
// /v1/events endpoint hijacks its connection on websocket upgrade, so the
// write and idle timeouts below only govern the plain JSON surface.
type HTTPServer struct {
	srv *http.Server
}

// NewHTTPServer builds the server from the configured timeouts.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	return &HTTPServer{srv: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadHeaderTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}}
}

// Addr returns the listen address.
func (s *HTTPServer) Addr() string { return s.srv.Addr }

// Start blocks serving requests until Shutdown or a listener error.
func (s *HTTPServer) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests until the context expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
