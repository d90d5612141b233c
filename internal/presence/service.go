// Package presence broadcasts the online identity set to every live
// connection. The set is recomputed from the connection registry on every
// change and sent as a full snapshot, never a delta: snapshots are
// idempotent, so a duplicate or dropped update can never leave a client
// showing a user that is gone or missing one that is here.
package presence

import (
	"context"
	"log/slog"

	"github.com/nfrund/courier/internal/events"
	"github.com/nfrund/courier/internal/pubsub"
	"github.com/nfrund/courier/internal/registry"
	"github.com/nfrund/courier/internal/websocket"
)

// Service listens for connection lifecycle events and pushes presence
// snapshots to all live connections.
type Service struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// NewService creates the presence service and subscribes it to the
// connection lifecycle topics. It broadcasts for the lifetime of ctx.
func NewService(ctx context.Context, reg *registry.Registry, subscriber pubsub.Subscriber) (*Service, error) {
	svc := &Service{
		registry: reg,
		logger:   slog.Default().With("service", "presence"),
	}

	if err := subscriber.Subscribe(ctx, websocket.TopicConnReady.Name(), svc.handleLifecycle); err != nil {
		return nil, err
	}
	if err := subscriber.Subscribe(ctx, websocket.TopicConnClosed.Name(), svc.handleLifecycle); err != nil {
		return nil, err
	}

	svc.logger.Info("Presence service initialized")
	return svc, nil
}

// handleLifecycle reacts to any registry mutation the same way: rebroadcast
// the current snapshot. The payload is not inspected beyond logging; the
// registry is the single source of truth for who is online.
func (s *Service) handleLifecycle(ctx context.Context, msg pubsub.Message) error {
	s.logger.Debug("Connection lifecycle event", "topic", msg.Topic, "identity", msg.Identity)
	s.Broadcast()
	return nil
}

// OnlineUsers returns the identities currently holding a live connection.
func (s *Service) OnlineUsers() []string {
	return s.registry.Snapshot()
}

// Broadcast sends the current presence snapshot to every live connection.
// Delivery is fire-and-forget per connection: a connection that cannot take
// the event is unregistered and the snapshot is recomputed, so the last
// broadcast of any burst always reflects the registry exactly.
func (s *Service) Broadcast() {
	for {
		users := s.registry.Snapshot()
		payload, err := events.EncodePresence(users)
		if err != nil {
			s.logger.Error("Failed to encode presence snapshot", "error", err)
			return
		}

		var dead []*registry.Conn
		for _, conn := range s.registry.All() {
			if err := conn.Send(payload); err != nil {
				dead = append(dead, conn)
			}
		}

		if len(dead) == 0 {
			s.logger.Debug("Published presence snapshot", "online", len(users))
			return
		}

		// Evict unreachable connections and go around again: each pass
		// removes at least one connection, so this terminates.
		for _, conn := range dead {
			s.logger.Warn("Evicting unreachable connection during presence broadcast",
				"identity", conn.Identity(),
				"connection_id", conn.ID())
			s.registry.Unregister(conn)
		}
	}
}
