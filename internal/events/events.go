// Package events defines the wire contract between the server and every
// connected client. The three event shapes are stable: clients filter
// messageCreated/messageDeleted locally against the open conversation, and
// presence always carries the full online list rather than a delta.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/nfrund/courier/internal/domain"
)

// Event type names as they appear on the wire.
const (
	TypeMessageCreated = "messageCreated"
	TypeMessageDeleted = "messageDeleted"
	TypePresence       = "presence"
)

// Envelope is the frame every event travels in.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// MessageDeleted is the payload of a messageDeleted event. Only the ID is
// carried; deletion is hard, so there is nothing else to say.
type MessageDeleted struct {
	MessageID string `json:"messageId"`
}

// PresenceSnapshot is the payload of a presence event: the complete set of
// identities currently holding at least one live connection.
type PresenceSnapshot struct {
	Users []string `json:"users"`
}

// EncodeMessageCreated frames a full message record as a messageCreated event.
func EncodeMessageCreated(m *domain.Message) ([]byte, error) {
	return encode(TypeMessageCreated, m)
}

// EncodeMessageDeleted frames a message ID as a messageDeleted event.
func EncodeMessageDeleted(messageID string) ([]byte, error) {
	return encode(TypeMessageDeleted, MessageDeleted{MessageID: messageID})
}

// EncodePresence frames the online identity list as a presence snapshot event.
func EncodePresence(users []string) ([]byte, error) {
	if users == nil {
		users = []string{}
	}
	return encode(TypePresence, PresenceSnapshot{Users: users})
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Decode parses a raw frame into an envelope without interpreting the payload.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed event frame: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("event frame missing event name")
	}
	return &env, nil
}

// MessageCreated unpacks the payload of a messageCreated envelope.
func (e *Envelope) MessageCreated() (*domain.Message, error) {
	if e.Event != TypeMessageCreated {
		return nil, fmt.Errorf("expected %s event, got %s", TypeMessageCreated, e.Event)
	}
	var msg domain.Message
	if err := json.Unmarshal(e.Data, &msg); err != nil {
		return nil, fmt.Errorf("malformed messageCreated payload: %w", err)
	}
	return &msg, nil
}

// MessageDeleted unpacks the payload of a messageDeleted envelope.
func (e *Envelope) MessageDeleted() (string, error) {
	if e.Event != TypeMessageDeleted {
		return "", fmt.Errorf("expected %s event, got %s", TypeMessageDeleted, e.Event)
	}
	var del MessageDeleted
	if err := json.Unmarshal(e.Data, &del); err != nil {
		return "", fmt.Errorf("malformed messageDeleted payload: %w", err)
	}
	return del.MessageID, nil
}

// Presence unpacks the payload of a presence envelope.
func (e *Envelope) Presence() ([]string, error) {
	if e.Event != TypePresence {
		return nil, fmt.Errorf("expected %s event, got %s", TypePresence, e.Event)
	}
	var snap PresenceSnapshot
	if err := json.Unmarshal(e.Data, &snap); err != nil {
		return nil, fmt.Errorf("malformed presence payload: %w", err)
	}
	return snap.Users, nil
}
