// Package server wires the pieces together: bus, registry, services,
// handlers, and the echo instance, plus lifecycle around all of it.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/courier/internal/chat"
	"github.com/nfrund/courier/internal/config"
	"github.com/nfrund/courier/internal/database"
	"github.com/nfrund/courier/internal/dispatch"
	"github.com/nfrund/courier/internal/domain"
	"github.com/nfrund/courier/internal/handlers"
	"github.com/nfrund/courier/internal/middleware"
	"github.com/nfrund/courier/internal/presence"
	"github.com/nfrund/courier/internal/pubsub"
	"github.com/nfrund/courier/internal/registry"
	"github.com/nfrund/courier/internal/storage"
	"github.com/nfrund/courier/internal/websocket"
	"github.com/surrealdb/surrealdb.go"
)

// UserDirectory is everything the HTTP layer needs from user storage:
// the lookups the chat service performs plus login-time registration.
type UserDirectory interface {
	domain.UserRepository
	Ensure(ctx context.Context, id, email string, name *string) error
}

// Dependencies are the storage collaborators. Production uses the
// SurrealDB stores; tests inject in-memory ones.
type Dependencies struct {
	Messages domain.MessageRepository
	Users    UserDirectory
	Media    *storage.MediaStore
}

// Server holds the assembled application.
type Server struct {
	E   *echo.Echo
	Cfg *config.Config

	db       *surrealdb.DB
	bus      *pubsub.WatermillBridge
	registry *registry.Registry
	presence *presence.Service
	chat     *chat.Service

	cancel  context.CancelFunc
	cleanup func()
}

// New assembles the production server: database-backed stores on top of
// the shared wiring.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.NewDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	srv, err := NewWithDeps(ctx, cfg, Dependencies{
		Messages: database.NewMessageStore(db),
		Users:    database.NewUserStore(db),
		Media:    storage.NewOsMediaStore(cfg.MediaDir),
	})
	if err != nil {
		db.Close(ctx)
		return nil, err
	}
	srv.db = db
	return srv, nil
}

// NewWithDeps assembles the server around the given stores.
func NewWithDeps(ctx context.Context, cfg *config.Config, deps Dependencies) (*Server, error) {
	if err := registerTopics(); err != nil {
		return nil, err
	}

	// Subscriptions live until the server shuts down, not until the
	// startup context ends.
	runCtx, cancel := context.WithCancel(context.Background())

	bus := pubsub.NewWatermillBridge()

	tracer, cleanupTracing, err := pubsub.SetupTracing(ctx, pubsub.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: "courier",
		ZipkinURL:   cfg.ZipkinURL,
	})
	if err != nil {
		cancel()
		bus.Close()
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	publisher := pubsub.NewTracingPublisher(bus, tracer)

	var regOpts []registry.Option
	if cfg.SingleSession {
		regOpts = append(regOpts, registry.WithSingleSession())
	}
	reg := registry.New(regOpts...)

	presenceSvc, err := presence.NewService(runCtx, reg, bus)
	if err != nil {
		cancel()
		cleanupTracing()
		bus.Close()
		return nil, err
	}

	chatSvc := chat.NewService(deps.Messages, deps.Users, publisher)

	if _, err := dispatch.New(runCtx, reg, bus, publisher); err != nil {
		cancel()
		cleanupTracing()
		bus.Close()
		return nil, err
	}

	var bridgeOpts []websocket.Option
	if cfg.SendBuffer > 0 {
		bridgeOpts = append(bridgeOpts, websocket.WithSendBuffer(cfg.SendBuffer))
	}
	bridge := websocket.NewBridge(reg, publisher, bridgeOpts...)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewValidator()
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	e.Use(echomw.Recover())
	e.Use(middleware.Session(cfg.SessionSecret))

	srv := &Server{
		E:        e,
		Cfg:      cfg,
		bus:      bus,
		registry: reg,
		presence: presenceSvc,
		chat:     chatSvc,
		cancel:   cancel,
		cleanup:  cleanupTracing,
	}
	srv.registerRoutes(deps, bridge)

	slog.Info("Server assembled", "single_session", cfg.SingleSession)
	return srv, nil
}

// Registry exposes the connection registry, useful for tests.
func (s *Server) Registry() *registry.Registry { return s.registry }

// Chat exposes the chat service, useful for tests.
func (s *Server) Chat() *chat.Service { return s.chat }

func registerTopics() error {
	if err := chat.RegisterTopics(); err != nil {
		return err
	}
	return websocket.RegisterTopics()
}
