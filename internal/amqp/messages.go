package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pennywise/internal/core"
)

// Message types carried on the queue.
const (
	TypeLedgerSync    = "ledger.sync"
	TypePasswordReset = "auth.password_reset"
)

// Message is the envelope for every background job. It carries only
// identifiers; the worker loads current state from the database.
type Message struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Link      string    `json:"link,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerSyncMessage(userID string) *Message {
	return &Message{Type: TypeLedgerSync, UserID: userID, Timestamp: time.Now().UTC()}
}

func NewPasswordResetMessage(reset core.PasswordReset) *Message {
	return &Message{
		Type:      TypePasswordReset,
		UserID:    reset.UserID,
		Email:     reset.Email,
		Link:      reset.Link,
		Timestamp: time.Now().UTC(),
	}
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON decodes and validates a delivery body.
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case TypeLedgerSync:
	case TypePasswordReset:
		if msg.Email == "" || msg.Link == "" {
			return nil, errors.New("password reset message without email or link")
		}
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	if msg.UserID == "" {
		return nil, errors.New("message without user_id")
	}
	return &msg, nil
}

// PasswordReset converts a reset message back to the domain value.
func (m *Message) PasswordReset() core.PasswordReset {
	return core.PasswordReset{UserID: m.UserID, Email: m.Email, Link: m.Link}
}
