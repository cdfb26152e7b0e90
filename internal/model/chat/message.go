package chat

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status tracks the delivery lifecycle of a user message.
type Status string

const (
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusError   Status = "error"
)

// Message is a single turn within a session. Assistant messages carry no
// status; their interpreted rendering lives in Reply.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status,omitempty"`
	Reply     *Reply    `json:"reply,omitempty"`
}

// Failed reports whether the message ended in the error state.
func (m Message) Failed() bool {
	return m.Status == StatusError
}
