package pubsub

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillBridge_PublishSubscribe(t *testing.T) {
	bridge := NewWatermillBridge()
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var received []Message
	err := bridge.Subscribe(ctx, "test.topic", func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, msg)
		return nil
	})
	require.NoError(t, err)

	err = bridge.Publish(ctx, Message{
		Topic:    "test.topic",
		Identity: "alice",
		Payload:  []byte(`{"k":"v"}`),
		Metadata: map[string]string{"trace": "t1"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "test.topic", received[0].Topic)
	assert.Equal(t, "alice", received[0].Identity)
	assert.Equal(t, []byte(`{"k":"v"}`), received[0].Payload)
	assert.Equal(t, "t1", received[0].Metadata["trace"])
}

// Sequential in-order delivery per subscription is what the dispatcher's
// ordering guarantee rests on.
func TestWatermillBridge_DeliversInPublishOrder(t *testing.T) {
	bridge := NewWatermillBridge()
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const n = 50
	var mu sync.Mutex
	var got []string
	err := bridge.Subscribe(ctx, "ordered.topic", func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(msg.Payload))
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		require.NoError(t, bridge.Publish(ctx, Message{
			Topic:   "ordered.topic",
			Payload: []byte(fmt.Sprintf("%03d", i)),
		}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == n
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("%03d", i), got[i])
	}
}

func TestWatermillBridge_HandlerErrorDoesNotStopSubscription(t *testing.T) {
	bridge := NewWatermillBridge()
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen int
	err := bridge.Subscribe(ctx, "flaky.topic", func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen++
		if seen == 1 {
			return fmt.Errorf("first message fails")
		}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bridge.Publish(ctx, Message{Topic: "flaky.topic", Payload: []byte("a")}))
	require.NoError(t, bridge.Publish(ctx, Message{Topic: "flaky.topic", Payload: []byte("b")}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen == 2
	}, time.Second, 10*time.Millisecond)
}
