package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Thread is the bounded conversation attached to one analysis and one user.
// MessageCount counts accepted user turns and is capped by configuration.
type Thread struct {
	ID           uuid.UUID `json:"id"`
	AnalysisID   uuid.UUID `json:"analysisId"`
	UserID       int64     `json:"userId"`
	MessageCount int       `json:"messageCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Message is one turn inside a thread.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ThreadID  uuid.UUID `json:"threadId,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
