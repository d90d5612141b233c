// Package client implements the consumer side of the event stream: a live
// connection plus the per-conversation view that merges a one-shot history
// fetch with asynchronously arriving events. The view is the authoritative
// ordered message list for the one conversation that is currently open.
package client

import (
	"sort"
	"sync"

	"github.com/nfrund/courier/internal/domain"
)

// ViewState is the lifecycle state of a ConversationView.
type ViewState int

const (
	// StateLoading means the history fetch is in flight. Events that arrive
	// now are buffered and replayed once the fetch lands; applying them
	// immediately would be pointless because the bulk replace would stomp
	// them, and dropping them would lose any event the fetch raced past.
	StateLoading ViewState = iota
	// StateReady means history has been loaded and events apply directly.
	StateReady
)

type bufferedOp struct {
	created *domain.Message
	deleted string
}

// ConversationView holds the ordered live messages between the local
// identity and one peer. It is mutated only by bulk-replace on history
// load, insert-if-absent on a create event, and remove-if-present on a
// delete event, so any interleaving of fetch result and live events
// converges on the server's live set.
type ConversationView struct {
	self string
	peer string

	mu      sync.Mutex
	state   ViewState
	byID    map[string]*domain.Message
	ordered []*domain.Message
	pending []bufferedOp
}

// NewConversationView creates a view in Loading state. The caller issues
// the history fetch and hands the result to LoadHistory.
func NewConversationView(self, peer string) *ConversationView {
	return &ConversationView{
		self:  self,
		peer:  peer,
		state: StateLoading,
		byID:  make(map[string]*domain.Message),
	}
}

// Peer returns the peer identity this view is bound to.
func (v *ConversationView) Peer() string { return v.peer }

// State returns the current lifecycle state.
func (v *ConversationView) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// relevant reports whether a message belongs to this conversation. Events
// are broadcast per participant, not per conversation, so the view filters
// by comparing both identities against self and peer.
func (v *ConversationView) relevant(m *domain.Message) bool {
	return m.Between(v.self, v.peer)
}

// LoadHistory replaces the view's contents with the fetch result and
// replays any events buffered while the fetch was in flight. The replay
// is idempotent, so an event that is also present in the fetch result
// applies as a no-op.
func (v *ConversationView) LoadHistory(messages []*domain.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.byID = make(map[string]*domain.Message, len(messages))
	v.ordered = v.ordered[:0]
	for _, m := range messages {
		if !v.relevant(m) || m.ID == "" {
			continue
		}
		if _, ok := v.byID[m.ID]; ok {
			continue
		}
		cp := *m
		v.byID[m.ID] = &cp
		v.ordered = append(v.ordered, &cp)
	}
	sort.Slice(v.ordered, func(i, j int) bool { return v.ordered[i].Less(v.ordered[j]) })

	for _, op := range v.pending {
		if op.created != nil {
			v.insert(op.created)
		} else if op.deleted != "" {
			v.remove(op.deleted)
		}
	}
	v.pending = nil
	v.state = StateReady
}

// ApplyCreated handles a messageCreated event. Irrelevant conversations
// are filtered out; duplicates are ignored, which is what makes the
// sender's own echo safe.
func (v *ConversationView) ApplyCreated(m *domain.Message) {
	if m == nil || m.ID == "" {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.relevant(m) {
		return
	}
	cp := *m
	if v.state == StateLoading {
		v.pending = append(v.pending, bufferedOp{created: &cp})
		return
	}
	v.insert(&cp)
}

// ApplyDeleted handles a messageDeleted event. Removing an ID the view
// does not hold is a no-op, including IDs from other conversations.
func (v *ConversationView) ApplyDeleted(messageID string) {
	if messageID == "" {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == StateLoading {
		v.pending = append(v.pending, bufferedOp{deleted: messageID})
		return
	}
	v.remove(messageID)
}

// Messages returns the current ordered message list as a copy.
func (v *ConversationView) Messages() []*domain.Message {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]*domain.Message, len(v.ordered))
	for i, m := range v.ordered {
		cp := *m
		out[i] = &cp
	}
	return out
}

// Len returns the number of live messages in the view.
func (v *ConversationView) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.ordered)
}

// insert adds a message if absent, preserving createdAt order with ID
// tie-breaks. Callers hold the lock.
func (v *ConversationView) insert(m *domain.Message) {
	if _, ok := v.byID[m.ID]; ok {
		return
	}
	v.byID[m.ID] = m

	at := sort.Search(len(v.ordered), func(i int) bool { return m.Less(v.ordered[i]) })
	v.ordered = append(v.ordered, nil)
	copy(v.ordered[at+1:], v.ordered[at:])
	v.ordered[at] = m
}

// remove drops a message if present. Callers hold the lock.
func (v *ConversationView) remove(messageID string) {
	if _, ok := v.byID[messageID]; !ok {
		return
	}
	delete(v.byID, messageID)
	for i, m := range v.ordered {
		if m.ID == messageID {
			v.ordered = append(v.ordered[:i], v.ordered[i+1:]...)
			return
		}
	}
}
