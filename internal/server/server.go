package server

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"credential-manager/internal/common/errors"
	"credential-manager/internal/common/logging"
)

// Server represents the command API HTTP server
type Server struct {
	srv    *http.Server
	logger logging.Logger
	addr   net.Addr
}

// New creates a new server instance
func New(handler http.Handler, addr string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Start binds the listening socket and serves in the background. Bind
// failures are returned; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return errors.BindError(s.srv.Addr, err)
	}
	s.addr = ln.Addr()
	s.logger.Info("Server listening", logging.String("addr", s.addr.String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server stopped unexpectedly", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.addr == nil {
		return s.srv.Addr
	}
	return s.addr.String()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
