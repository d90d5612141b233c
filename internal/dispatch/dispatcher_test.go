package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nfrund/courier/internal/chat"
	"github.com/nfrund/courier/internal/events"
	"github.com/nfrund/courier/internal/pubsub"
	"github.com/nfrund/courier/internal/registry"
	"github.com/nfrund/courier/internal/testutils"
	"github.com/nfrund/courier/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSubscriber hands the registered handler back to the test so events can
// be pushed through the dispatcher synchronously.
type mockSubscriber struct {
	handlers map[string]pubsub.Handler
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{handlers: make(map[string]pubsub.Handler)}
}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string, handler pubsub.Handler) error {
	m.handlers[topic] = handler
	return nil
}

func (m *mockSubscriber) Close() error { return nil }

func (m *mockSubscriber) push(t *testing.T, topic string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	handler, ok := m.handlers[topic]
	require.True(t, ok, "no handler registered for topic %s", topic)
	require.NoError(t, handler(context.Background(), pubsub.Message{Topic: topic, Payload: raw}))
}

type mockPublisher struct {
	mu       sync.Mutex
	messages []pubsub.Message
}

func (m *mockPublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) published() []pubsub.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pubsub.Message(nil), m.messages...)
}

func newTestDispatcher(t *testing.T, reg *registry.Registry) (*mockSubscriber, *mockPublisher) {
	t.Helper()
	sub := newMockSubscriber()
	pub := &mockPublisher{}
	_, err := New(context.Background(), reg, sub, pub)
	require.NoError(t, err)
	return sub, pub
}

// drain pulls every queued frame off a connection without blocking.
func drain(conn *registry.Conn) [][]byte {
	var out [][]byte
	for {
		select {
		case payload, ok := <-conn.Outbound():
			if !ok {
				return out
			}
			out = append(out, payload)
		default:
			return out
		}
	}
}

func createdNotice(t *testing.T, store *testutils.MemMessageRepo, sender, receiver, text string) chat.Notice {
	t.Helper()
	msg, err := store.Create(context.Background(), sender, receiver, text, "")
	require.NoError(t, err)
	return chat.Notice{
		Kind:       chat.KindCreated,
		Message:    msg,
		SenderID:   sender,
		ReceiverID: receiver,
	}
}

func TestDispatcher_FanOutToBothParticipants(t *testing.T) {
	reg := registry.New()
	s1 := registry.NewConn("alice", 8)
	r1 := registry.NewConn("bob", 8)
	r2 := registry.NewConn("bob", 8)
	third := registry.NewConn("carol", 8)
	for _, c := range []*registry.Conn{s1, r1, r2, third} {
		reg.Register(c)
	}

	sub, _ := newTestDispatcher(t, reg)
	store := testutils.NewMemMessageRepo()

	notice := createdNotice(t, store, "alice", "bob", "hello")
	sub.push(t, chat.TopicMessageEvents.Name(), notice)

	for _, c := range []*registry.Conn{s1, r1, r2} {
		frames := drain(c)
		require.Len(t, frames, 1, "every participant connection gets exactly one copy")

		env, err := events.Decode(frames[0])
		require.NoError(t, err)
		assert.Equal(t, events.TypeMessageCreated, env.Event)

		got, err := env.MessageCreated()
		require.NoError(t, err)
		assert.Equal(t, notice.Message.ID, got.ID)
		assert.Equal(t, "hello", got.Text)
	}

	assert.Empty(t, drain(third), "uninvolved identities receive nothing")
}

func TestDispatcher_DeleteEvent(t *testing.T) {
	reg := registry.New()
	conn := registry.NewConn("bob", 8)
	reg.Register(conn)

	sub, _ := newTestDispatcher(t, reg)

	sub.push(t, chat.TopicMessageEvents.Name(), chat.Notice{
		Kind:       chat.KindDeleted,
		MessageID:  "m-42",
		SenderID:   "alice",
		ReceiverID: "bob",
	})

	frames := drain(conn)
	require.Len(t, frames, 1)

	env, err := events.Decode(frames[0])
	require.NoError(t, err)
	id, err := env.MessageDeleted()
	require.NoError(t, err)
	assert.Equal(t, "m-42", id)
}

func TestDispatcher_OfflineReceiverIsSilentlySkipped(t *testing.T) {
	reg := registry.New()
	sender := registry.NewConn("alice", 8)
	reg.Register(sender)

	sub, pub := newTestDispatcher(t, reg)
	store := testutils.NewMemMessageRepo()

	// Receiver has no connections. The event is still delivered to the
	// sender's own connections; nothing is queued for later.
	sub.push(t, chat.TopicMessageEvents.Name(), createdNotice(t, store, "alice", "bob", "hi"))

	assert.Len(t, drain(sender), 1)
	assert.Empty(t, pub.published(), "no eviction events for absent identities")
}

func TestDispatcher_SlowConsumerIsEvicted(t *testing.T) {
	reg := registry.New()
	slow := registry.NewConn("bob", 1)
	healthy := registry.NewConn("bob", 8)
	reg.Register(slow)
	reg.Register(healthy)

	sub, pub := newTestDispatcher(t, reg)
	store := testutils.NewMemMessageRepo()

	// Two events fill the slow connection's single-slot buffer and then
	// overflow it. The healthy sibling takes both.
	sub.push(t, chat.TopicMessageEvents.Name(), createdNotice(t, store, "alice", "bob", "one"))
	sub.push(t, chat.TopicMessageEvents.Name(), createdNotice(t, store, "alice", "bob", "two"))

	assert.Len(t, drain(healthy), 2, "a lagging sibling must not affect healthy connections")
	assert.Contains(t, reg.Snapshot(), "bob", "the identity stays online through its healthy connection")

	found := false
	for _, c := range reg.ConnectionsFor("bob") {
		if c.ID() == slow.ID() {
			found = true
		}
	}
	assert.False(t, found, "the overflowed connection is unregistered")

	published := pub.published()
	require.Len(t, published, 1)
	assert.Equal(t, websocket.TopicConnClosed.Name(), published[0].Topic)

	var lifecycle websocket.LifecycleEvent
	require.NoError(t, json.Unmarshal(published[0].Payload, &lifecycle))
	assert.Equal(t, slow.ID(), lifecycle.ConnectionID)
	assert.Equal(t, "bob", lifecycle.Identity)
}

func TestDispatcher_UnknownKindIsIgnored(t *testing.T) {
	reg := registry.New()
	conn := registry.NewConn("bob", 8)
	reg.Register(conn)

	sub, _ := newTestDispatcher(t, reg)

	sub.push(t, chat.TopicMessageEvents.Name(), chat.Notice{
		Kind:       "renamed",
		SenderID:   "alice",
		ReceiverID: "bob",
	})

	assert.Empty(t, drain(conn))
}

// End to end over the real bus: the chat service publishes, the dispatcher
// consumes, and events land on participant connections in persistence order.
func TestDispatcher_OrderOverRealBus(t *testing.T) {
	bridge := pubsub.NewWatermillBridge()
	defer bridge.Close()

	reg := registry.New()
	conn := registry.NewConn("bob", 32)
	reg.Register(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := New(ctx, reg, bridge, bridge)
	require.NoError(t, err)

	store := testutils.NewMemMessageRepo()
	users := testutils.NewMemUserRepo("alice", "bob")
	svc := chat.NewService(store, users, bridge)

	first, err := svc.Send(ctx, "alice", "bob", "first", "")
	require.NoError(t, err)
	second, err := svc.Send(ctx, "alice", "bob", "second", "")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "alice", first.ID))

	var frames [][]byte
	require.Eventually(t, func() bool {
		frames = append(frames, drain(conn)...)
		return len(frames) == 3
	}, time.Second, 10*time.Millisecond)

	env, err := events.Decode(frames[0])
	require.NoError(t, err)
	got, err := env.MessageCreated()
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	env, err = events.Decode(frames[1])
	require.NoError(t, err)
	got, err = env.MessageCreated()
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	env, err = events.Decode(frames[2])
	require.NoError(t, err)
	deletedID, err := env.MessageDeleted()
	require.NoError(t, err)
	assert.Equal(t, first.ID, deletedID, "a delete never overtakes the create it follows")
}
