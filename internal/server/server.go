package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/l0p7/objectprobe/internal/config"
)

const shutdownGrace = 5 * time.Second

// Server exposes the fake objects API on a TCP listener.
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server

	mu    sync.Mutex
	addr  net.Addr
	ready chan struct{}
	stop  sync.Once
}

// New prepares a listener for handler on listen. Port 0 picks a free port,
// which Addr reports once Ready is closed.
func New(listen config.ListenConfig, logger *slog.Logger, handler http.Handler) (*Server, error) {
	if handler == nil {
		return nil, errors.New("server: handler required")
	}
	if logger == nil {
		return nil, errors.New("server: logger required")
	}

	return &Server{
		logger: logger.With(slog.String("agent", "listener")),
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(listen.Address, strconv.Itoa(listen.Port)),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ready: make(chan struct{}),
	}, nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run binds, serves until ctx is cancelled and then drains open requests.
// A bind failure is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	close(s.ready)
	s.logger.Info("fake objects API listening", slog.String("address", ln.Addr().String()))

	serveErr := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()

	select {
	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.shutdown(drainCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: serve: %w", err)
		}
		return nil
	}
}

func (s *Server) shutdown(ctx context.Context) error {
	var err error
	s.stop.Do(func() {
		s.logger.Info("fake objects API draining")
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}
