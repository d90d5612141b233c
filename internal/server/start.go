package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Start runs the HTTP server until an interrupt or terminate signal, then
// shuts everything down in dependency order.
func (s *Server) Start() {
	s.E.Server.ReadHeaderTimeout = s.Cfg.HandshakeTimeout

	go func() {
		if err := s.E.Start(s.Cfg.Addr); err != nil && err != http.ErrServerClosed {
			slog.Error("Server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Shutdown(ctx)
}

// Shutdown stops accepting connections, ends the bus subscriptions, and
// closes the database.
func (s *Server) Shutdown(ctx context.Context) {
	slog.Info("Shutting down")

	if err := s.E.Shutdown(ctx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	s.cancel()
	if err := s.bus.Close(); err != nil {
		slog.Error("Bus shutdown failed", "error", err)
	}
	s.cleanup()

	if s.db != nil {
		if err := s.db.Close(ctx); err != nil {
			slog.Error("Database shutdown failed", "error", err)
		}
	}
}
