package websocket

import "github.com/nfrund/courier/internal/topics"

// Framework topics for connection lifecycle. The bridge publishes these
// after every registry mutation; the presence service subscribes to them
// to rebroadcast the online set.

var (
	// TopicConnReady is published after a client completes its handshake
	// and is registered.
	TopicConnReady = topics.Define(topics.Config{
		Name:        "ws.client.ready",
		Description: "Published when a WebSocket client is registered and ready to receive events",
		Example:     `{"identity":"user123","connectionID":"conn456"}`,
	})

	// TopicConnClosed is published after a client's connection is
	// unregistered, whatever the reason.
	TopicConnClosed = topics.Define(topics.Config{
		Name:        "ws.client.closed",
		Description: "Published when a WebSocket client disconnects or is evicted",
		Example:     `{"identity":"user123","connectionID":"conn456","reason":"client_closed"}`,
	})
)

// LifecycleEvent is the payload of the lifecycle topics.
type LifecycleEvent struct {
	Identity     string `json:"identity"`
	ConnectionID string `json:"connectionID"`
	Reason       string `json:"reason,omitempty"`
}

// RegisterTopics registers the lifecycle topics with the default registry.
func RegisterTopics() error {
	for _, t := range []topics.Topic{TopicConnReady, TopicConnClosed} {
		if err := topics.Default().Register(t); err != nil {
			return err
		}
	}
	return nil
}
