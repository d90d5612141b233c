package testutils

import (
	"context"

	"github.com/nfrund/courier/internal/pubsub"
)

// NopPublisher discards everything. For tests that exercise a service but
// not its event flow.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, msg pubsub.Message) error { return nil }
func (NopPublisher) Close() error                                          { return nil }
