package models

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an individual entry within a transcript. It contains the participant's role, the final
// answer content, the reasoning segment the model produced before answering, and whether the message is still
// receiving updates from an open stream.
type Message struct {
	ID        string
	Role      Role
	Timestamp time.Time

	Content          string
	ReasoningContent string

	// Streaming is true only for the assistant placeholder of the active turn.
	Streaming bool
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message submitted by the person chatting.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the backend, including synthetic error messages.
	RoleAssistant Role = "assistant"
	// RoleSystem represents the persona/instruction message that the backend prepends to a request.
	RoleSystem Role = "system"
)

// Valid reports whether r is one of the roles accepted on the wire.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// DisplayName returns the label shown next to a message.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "DeepSeek"
	default:
		return string(r)
	}
}

// NewMessage creates a finalized message with a fresh ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Timestamp: time.Now(),
		Content:   content,
	}
}

// NewPlaceholder creates the empty, streaming assistant message that opens a turn.
func NewPlaceholder() Message {
	m := NewMessage(RoleAssistant, "")
	m.Streaming = true
	return m
}
