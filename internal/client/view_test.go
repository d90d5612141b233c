package client

import (
	"testing"
	"time"

	"github.com/nfrund/courier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var viewEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func msg(id, sender, receiver string, at int) *domain.Message {
	return &domain.Message{
		ID:         id,
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       "text-" + id,
		CreatedAt:  viewEpoch.Add(time.Duration(at) * time.Millisecond),
	}
}

func ids(messages []*domain.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func TestView_LoadHistoryEntersReady(t *testing.T) {
	v := NewConversationView("alice", "bob")
	assert.Equal(t, StateLoading, v.State())

	v.LoadHistory([]*domain.Message{
		msg("m2", "bob", "alice", 2),
		msg("m1", "alice", "bob", 1),
	})

	assert.Equal(t, StateReady, v.State())
	assert.Equal(t, []string{"m1", "m2"}, ids(v.Messages()), "history is sorted on load")
}

func TestView_EventsDuringLoadAreBufferedAndReplayed(t *testing.T) {
	v := NewConversationView("alice", "bob")

	// Arrives while the fetch is in flight and is missing from its result.
	v.ApplyCreated(msg("m3", "bob", "alice", 3))
	// Arrives during load and is ALSO in the fetch result: replay must not
	// duplicate it.
	v.ApplyCreated(msg("m2", "alice", "bob", 2))
	// A delete for a message the fetch result still contains.
	v.ApplyDeleted("m1")

	assert.Zero(t, v.Len(), "nothing applies before history lands")

	v.LoadHistory([]*domain.Message{
		msg("m1", "alice", "bob", 1),
		msg("m2", "alice", "bob", 2),
	})

	assert.Equal(t, []string{"m2", "m3"}, ids(v.Messages()))
}

func TestView_CreateIsIdempotent(t *testing.T) {
	v := NewConversationView("alice", "bob")
	v.LoadHistory(nil)

	m := msg("m1", "alice", "bob", 1)
	v.ApplyCreated(m)
	v.ApplyCreated(m) // the sender's own echo racing the live event

	assert.Equal(t, []string{"m1"}, ids(v.Messages()))
}

func TestView_DeleteIsIdempotent(t *testing.T) {
	v := NewConversationView("alice", "bob")
	v.LoadHistory([]*domain.Message{msg("m1", "alice", "bob", 1)})

	v.ApplyDeleted("m1")
	v.ApplyDeleted("m1")
	v.ApplyDeleted("never-existed")

	assert.Zero(t, v.Len())
}

func TestView_InsertKeepsConversationOrder(t *testing.T) {
	v := NewConversationView("alice", "bob")
	v.LoadHistory([]*domain.Message{
		msg("m1", "alice", "bob", 1),
		msg("m4", "bob", "alice", 4),
	})

	// A late arrival with an earlier timestamp lands in the middle.
	v.ApplyCreated(msg("m2", "bob", "alice", 2))
	// Equal timestamps break ties by ID.
	v.ApplyCreated(msg("m3", "alice", "bob", 2))

	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids(v.Messages()))
}

func TestView_FiltersOtherConversations(t *testing.T) {
	v := NewConversationView("alice", "bob")
	v.LoadHistory(nil)

	v.ApplyCreated(msg("other1", "alice", "carol", 1))
	v.ApplyCreated(msg("other2", "carol", "bob", 2))
	v.ApplyCreated(msg("mine", "bob", "alice", 3))

	assert.Equal(t, []string{"mine"}, ids(v.Messages()))
}

func TestView_PeerSwitchIsolation(t *testing.T) {
	bob := NewConversationView("alice", "bob")
	bob.LoadHistory([]*domain.Message{msg("b1", "alice", "bob", 1)})

	// Selecting carol creates a fresh view; nothing from bob's view leaks.
	carol := NewConversationView("alice", "carol")
	carol.LoadHistory([]*domain.Message{msg("c1", "carol", "alice", 1)})

	assert.Equal(t, []string{"c1"}, ids(carol.Messages()))
	assert.Equal(t, []string{"b1"}, ids(bob.Messages()))
}

func TestView_LoadHistoryDropsForeignAndDuplicateRows(t *testing.T) {
	v := NewConversationView("alice", "bob")
	v.LoadHistory([]*domain.Message{
		msg("m1", "alice", "bob", 1),
		msg("m1", "alice", "bob", 1),
		msg("foreign", "alice", "carol", 2),
	})

	assert.Equal(t, []string{"m1"}, ids(v.Messages()))
}

func TestView_ConvergesUnderInterleaving(t *testing.T) {
	// The live delete for m2 and the live create for m3 both arrive before
	// the fetch result, which predates both. The final set must equal the
	// server's live set {m1, m3} regardless.
	v := NewConversationView("alice", "bob")
	v.ApplyDeleted("m2")
	v.ApplyCreated(msg("m3", "bob", "alice", 3))

	v.LoadHistory([]*domain.Message{
		msg("m1", "alice", "bob", 1),
		msg("m2", "alice", "bob", 2),
	})

	require.Equal(t, []string{"m1", "m3"}, ids(v.Messages()))
	assert.Equal(t, StateReady, v.State())
}

func TestView_MessagesReturnsCopies(t *testing.T) {
	v := NewConversationView("alice", "bob")
	v.LoadHistory([]*domain.Message{msg("m1", "alice", "bob", 1)})

	v.Messages()[0].Text = "tampered"
	assert.Equal(t, "text-m1", v.Messages()[0].Text)
}
