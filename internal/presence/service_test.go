package presence

import (
	"context"
	"testing"
	"time"

	"github.com/nfrund/courier/internal/events"
	"github.com/nfrund/courier/internal/pubsub"
	"github.com/nfrund/courier/internal/registry"
	"github.com/nfrund/courier/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSubscriber implements pubsub.Subscriber for tests that drive
// Broadcast directly instead of through the bus.
type mockSubscriber struct{}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string, handler pubsub.Handler) error {
	return nil
}

func (m *mockSubscriber) Close() error { return nil }

// lastSnapshot drains a connection's outbound queue and decodes the most
// recent presence event it carried.
func lastSnapshot(t *testing.T, conn *registry.Conn) []string {
	t.Helper()

	var users []string
	seen := false
	for {
		select {
		case payload, ok := <-conn.Outbound():
			if !ok {
				require.True(t, seen, "connection closed before any presence event arrived")
				return users
			}
			env, err := events.Decode(payload)
			require.NoError(t, err)
			if env.Event != events.TypePresence {
				continue
			}
			users, err = env.Presence()
			require.NoError(t, err)
			seen = true
		default:
			require.True(t, seen, "no presence event queued")
			return users
		}
	}
}

func TestService_BroadcastSnapshot(t *testing.T) {
	reg := registry.New()
	svc, err := NewService(context.Background(), reg, &mockSubscriber{})
	require.NoError(t, err)

	alice := registry.NewConn("alice", 8)
	bob := registry.NewConn("bob", 8)
	reg.Register(alice)
	reg.Register(bob)

	svc.Broadcast()

	assert.Equal(t, []string{"alice", "bob"}, lastSnapshot(t, alice))
	assert.Equal(t, []string{"alice", "bob"}, lastSnapshot(t, bob))
}

func TestService_SnapshotTracksRegisterUnregister(t *testing.T) {
	reg := registry.New()
	svc, err := NewService(context.Background(), reg, &mockSubscriber{})
	require.NoError(t, err)

	c1 := registry.NewConn("alice", 8)
	c2 := registry.NewConn("bob", 8)

	reg.Register(c1)
	svc.Broadcast()
	reg.Register(c2)
	svc.Broadcast()
	reg.Unregister(c1)
	svc.Broadcast()

	// After the full sequence, the surviving connection's latest snapshot
	// is exactly the set of identities still registered.
	assert.Equal(t, []string{"bob"}, lastSnapshot(t, c2))
	assert.Equal(t, []string{"bob"}, svc.OnlineUsers())
}

func TestService_DeadConnectionEvicted(t *testing.T) {
	reg := registry.New()
	svc, err := NewService(context.Background(), reg, &mockSubscriber{})
	require.NoError(t, err)

	alice := registry.NewConn("alice", 8)
	bob := registry.NewConn("bob", 8)
	reg.Register(alice)
	reg.Register(bob)

	// Simulate a dead socket: closed but still registered.
	alice.Close()

	svc.Broadcast()

	// The dead connection is evicted and the survivor's final snapshot
	// reflects that, without the broadcast failing.
	assert.Equal(t, []string{"bob"}, svc.OnlineUsers())
	assert.Equal(t, []string{"bob"}, lastSnapshot(t, bob))
}

func TestService_SlowConsumerDoesNotBlockSiblings(t *testing.T) {
	reg := registry.New()
	svc, err := NewService(context.Background(), reg, &mockSubscriber{})
	require.NoError(t, err)

	// A connection with no buffer space left.
	stuck := registry.NewConn("alice", 1)
	require.NoError(t, stuck.Send([]byte("junk")))

	healthy := registry.NewConn("bob", 8)
	reg.Register(stuck)
	reg.Register(healthy)

	svc.Broadcast()

	assert.Equal(t, []string{"bob"}, svc.OnlineUsers())
	assert.Equal(t, []string{"bob"}, lastSnapshot(t, healthy))
}

func TestService_BroadcastsOnLifecycleEvents(t *testing.T) {
	reg := registry.New()
	bridge := pubsub.NewWatermillBridge()
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := NewService(ctx, reg, bridge)
	require.NoError(t, err)

	alice := registry.NewConn("alice", 8)
	reg.Register(alice)

	err = bridge.Publish(ctx, pubsub.Message{
		Topic:    websocket.TopicConnReady.Name(),
		Identity: "alice",
		Payload:  []byte(`{"identity":"alice","connectionID":"c1"}`),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case payload, ok := <-alice.Outbound():
			if !ok {
				return false
			}
			env, err := events.Decode(payload)
			if err != nil || env.Event != events.TypePresence {
				return false
			}
			users, err := env.Presence()
			return err == nil && len(users) == 1 && users[0] == "alice"
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "presence snapshot should follow the lifecycle event")
}
