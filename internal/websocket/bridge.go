// Package websocket owns the server side of every client connection: the
// HTTP upgrade, the read and write pumps, and the lifecycle events that
// tell the rest of the system a connection came or went. The socket is
// push-only; clients mutate state through the REST API and the read pump
// exists to notice disconnects.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/courier/internal/middleware"
	"github.com/nfrund/courier/internal/pubsub"
	"github.com/nfrund/courier/internal/registry"
	"github.com/nfrund/courier/internal/topics"
)

const (
	// writeWait bounds a single frame write to a peer.
	writeWait = 10 * time.Second
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithSendBuffer overrides the per-connection outbound queue depth.
func WithSendBuffer(n int) Option {
	return func(b *Bridge) {
		b.sendBuffer = n
	}
}

// Bridge upgrades HTTP requests to WebSocket connections and binds each one
// to the registry for its lifetime.
type Bridge struct {
	registry   *registry.Registry
	publisher  pubsub.Publisher
	logger     *slog.Logger
	sendBuffer int
}

// NewBridge creates a bridge over the given registry. Lifecycle events go
// out on the publisher after every registry mutation.
func NewBridge(reg *registry.Registry, pub pubsub.Publisher, opts ...Option) *Bridge {
	b := &Bridge{
		registry:   reg,
		publisher:  pub,
		logger:     slog.Default().With("service", "websocket"),
		sendBuffer: registry.DefaultSendBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handler returns the echo handler for the upgrade endpoint. It must sit
// behind the identity middleware: a socket with no identity is rejected
// before the upgrade.
func (b *Bridge) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		identity := middleware.Identity(c)
		if identity == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}

		ws, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			b.logger.Error("Failed to upgrade connection", "identity", identity, "error", err)
			return nil
		}

		conn := registry.NewConn(identity, b.sendBuffer)
		evicted := b.registry.Register(conn)
		for _, prior := range evicted {
			b.logger.Info("Evicted prior session",
				"identity", identity,
				"connection_id", prior.ID())
			b.announce(c.Request().Context(), TopicConnClosed, prior, "session_replaced")
		}

		b.logger.Info("Client connected", "identity", identity, "connection_id", conn.ID())
		b.announce(c.Request().Context(), TopicConnReady, conn, "")

		go b.writePump(ws, conn)
		b.readPump(c.Request().Context(), ws, conn)
		return nil
	}
}

// readPump blocks until the connection dies. Inbound frames are discarded;
// a read only ever ends the connection.
func (b *Bridge) readPump(ctx context.Context, ws *websocket.Conn, conn *registry.Conn) {
	defer b.drop(ctx, ws, conn, "client_closed")

	for {
		if _, _, err := ws.Read(ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				b.logger.Info("Client disconnected",
					"identity", conn.Identity(),
					"connection_id", conn.ID())
			} else {
				b.logger.Debug("WebSocket read ended",
					"identity", conn.Identity(),
					"connection_id", conn.ID(),
					"error", err)
			}
			return
		}
	}
}

// writePump drains the connection's outbound queue onto the socket. It
// returns when the queue is closed (unregister) or a write fails.
func (b *Bridge) writePump(ws *websocket.Conn, conn *registry.Conn) {
	defer ws.Close(websocket.StatusNormalClosure, "server closed connection")

	for payload := range conn.Outbound() {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := ws.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			b.logger.Warn("WebSocket write failed",
				"identity", conn.Identity(),
				"connection_id", conn.ID(),
				"error", err)
			b.drop(context.Background(), ws, conn, "write_failed")
			return
		}
	}
}

// drop unregisters the connection and announces the closure. Registering
// and unregistering race freely here (read pump, write pump, dispatcher
// eviction), so only the caller that actually removed the connection from
// the registry gets to announce it.
func (b *Bridge) drop(ctx context.Context, ws *websocket.Conn, conn *registry.Conn, reason string) {
	ws.Close(websocket.StatusNormalClosure, "connection closed")

	if !b.registry.Unregister(conn) {
		return
	}
	b.announce(ctx, TopicConnClosed, conn, reason)
}

func (b *Bridge) announce(ctx context.Context, topic topics.Topic, conn *registry.Conn, reason string) {
	payload, err := json.Marshal(LifecycleEvent{
		Identity:     conn.Identity(),
		ConnectionID: conn.ID(),
		Reason:       reason,
	})
	if err != nil {
		b.logger.Error("Failed to marshal lifecycle event", "error", err)
		return
	}

	err = b.publisher.Publish(ctx, pubsub.Message{
		Topic:    topic.Name(),
		Identity: conn.Identity(),
		Payload:  payload,
	})
	if err != nil {
		b.logger.Error("Failed to publish lifecycle event",
			"topic", topic.Name(),
			"identity", conn.Identity(),
			"error", err)
	}
}
