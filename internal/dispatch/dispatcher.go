// Package dispatch fans store-confirmed message events out to the live
// connections of the two participants. It never talks to the store: by the
// time an event reaches it, persistence has already been acknowledged.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nfrund/courier/internal/chat"
	"github.com/nfrund/courier/internal/events"
	"github.com/nfrund/courier/internal/pubsub"
	"github.com/nfrund/courier/internal/registry"
	"github.com/nfrund/courier/internal/websocket"
)

// Dispatcher consumes the message-events topic and writes wire events to
// participant connections. One subscription, handled sequentially, is the
// ordering guarantee: events reach every recipient connection in the order
// they were published, which is the order the store confirmed them.
type Dispatcher struct {
	registry  *registry.Registry
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// New creates a dispatcher and subscribes it to the message-events topic
// for the lifetime of ctx. The publisher is used to announce connections
// it had to evict, so the presence service can rebroadcast.
func New(ctx context.Context, reg *registry.Registry, subscriber pubsub.Subscriber, publisher pubsub.Publisher) (*Dispatcher, error) {
	d := &Dispatcher{
		registry:  reg,
		publisher: publisher,
		logger:    slog.Default().With("service", "dispatch"),
	}

	if err := subscriber.Subscribe(ctx, chat.TopicMessageEvents.Name(), d.handleNotice); err != nil {
		return nil, err
	}

	d.logger.Info("Fan-out dispatcher initialized")
	return d, nil
}

func (d *Dispatcher) handleNotice(ctx context.Context, msg pubsub.Message) error {
	var notice chat.Notice
	if err := json.Unmarshal(msg.Payload, &notice); err != nil {
		d.logger.Error("Failed to unmarshal message notice", "error", err)
		return err
	}

	var (
		payload []byte
		err     error
	)
	switch notice.Kind {
	case chat.KindCreated:
		payload, err = events.EncodeMessageCreated(notice.Message)
	case chat.KindDeleted:
		payload, err = events.EncodeMessageDeleted(notice.MessageID)
	default:
		d.logger.Warn("Ignoring message notice of unknown kind", "kind", notice.Kind)
		return nil
	}
	if err != nil {
		d.logger.Error("Failed to encode wire event", "error", err, "kind", notice.Kind)
		return err
	}

	d.deliver(ctx, payload, notice.SenderID, notice.ReceiverID)
	return nil
}

// deliver writes one event to every connection of both participants. The
// two connection sets are resolved independently and deduplicated by
// connection ID rather than assumed disjoint. An identity with no live
// connections simply receives nothing; the next history fetch is the
// catch-up path, so there is no offline queue and no retry.
func (d *Dispatcher) deliver(ctx context.Context, payload []byte, senderID, receiverID string) {
	targets := make(map[string]*registry.Conn)
	for _, conn := range d.registry.ConnectionsFor(senderID) {
		targets[conn.ID()] = conn
	}
	for _, conn := range d.registry.ConnectionsFor(receiverID) {
		targets[conn.ID()] = conn
	}

	for _, conn := range targets {
		err := conn.Send(payload)
		if err == nil {
			continue
		}
		// Transient delivery failure: log, evict, move on. Sibling
		// connections must not be affected and the original requester
		// already has its success response.
		d.logger.Warn("Dropping undeliverable event",
			"identity", conn.Identity(),
			"connection_id", conn.ID(),
			"error", err)
		d.evict(ctx, conn)
	}
}

// evict removes a dead connection and announces its departure so the
// presence snapshot catches up.
func (d *Dispatcher) evict(ctx context.Context, conn *registry.Conn) {
	if !d.registry.Unregister(conn) {
		return
	}

	payload, err := json.Marshal(websocket.LifecycleEvent{
		Identity:     conn.Identity(),
		ConnectionID: conn.ID(),
		Reason:       "send_buffer_full",
	})
	if err != nil {
		return
	}

	err = d.publisher.Publish(ctx, pubsub.Message{
		Topic:    websocket.TopicConnClosed.Name(),
		Identity: conn.Identity(),
		Payload:  payload,
	})
	if err != nil {
		d.logger.Error("Failed to publish eviction event", "error", err, "identity", conn.Identity())
	}
}
