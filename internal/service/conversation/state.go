package conversation

import (
	"errors"
	"fmt"
	"time"

	"github.com/zhouzirui/eddez/backend/internal/model/chat"
	"github.com/zhouzirui/eddez/backend/internal/model/settings"
)

var (
	ErrIllegalTransition = errors.New("illegal message status transition")
	ErrTurnInFlight      = errors.New("a message is already being answered")
	ErrMessageNotFound   = errors.New("message not found")
	ErrSessionNotFound   = errors.New("session not found")
)

// State is the application state the widget renders. Transitions below
// never mutate their input; they return the next state.
type State struct {
	User             string
	Settings         settings.UserSettings
	CurrentSessionID string
	Messages         []chat.Message
	Sessions         []chat.Session
	Thinking         bool
}

// Clone deep-copies the slices so the result can be handed to readers.
func (s State) Clone() State {
	s.Messages = append([]chat.Message(nil), s.Messages...)
	sessions := make([]chat.Session, len(s.Sessions))
	for i, session := range s.Sessions {
		sessions[i] = session.Clone()
	}
	s.Sessions = sessions
	return s
}

// BeginTurn moves a message into the sending state. An unknown id appends a
// new user message; a known id must currently be in the error state and is
// retried with its original content.
func BeginTurn(s State, id, content string, now time.Time) (State, error) {
	if s.Thinking {
		return s, ErrTurnInFlight
	}

	next := s.Clone()
	idx := indexOf(next.Messages, id)
	if idx < 0 {
		next.Messages = append(next.Messages, chat.Message{
			ID:        id,
			Role:      chat.RoleUser,
			Content:   content,
			Timestamp: now,
			Status:    chat.StatusSending,
		})
	} else {
		msg := next.Messages[idx]
		if msg.Role != chat.RoleUser || msg.Status != chat.StatusError {
			return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, msg.Status, chat.StatusSending)
		}
		next.Messages[idx].Status = chat.StatusSending
	}

	next.Thinking = true
	return next, nil
}

// CompleteTurn marks the sending message sent, appends the assistant reply
// and records the conversation in the session list under sessionID.
func CompleteTurn(s State, id string, reply chat.Message, sessionID string, now time.Time) (State, error) {
	next := s.Clone()
	idx := indexOf(next.Messages, id)
	if idx < 0 {
		return s, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	if next.Messages[idx].Status != chat.StatusSending {
		return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, next.Messages[idx].Status, chat.StatusSent)
	}

	next.Messages[idx].Status = chat.StatusSent
	next.Messages = append(next.Messages, reply)
	next.Thinking = false
	next.CurrentSessionID = sessionID

	session := chat.Session{ID: sessionID, Title: chat.DefaultTitle, CreatedAt: now}
	if existing, ok := FindSession(next.Sessions, sessionID); ok {
		session.Title = existing.Title
		session.CreatedAt = existing.CreatedAt
	}
	session.Messages = append([]chat.Message(nil), next.Messages...)
	next.Sessions = UpsertSession(next.Sessions, session)
	return next, nil
}

// FailTurn marks the sending message as failed. No assistant message is
// added and the session list is untouched.
func FailTurn(s State, id string) (State, error) {
	next := s.Clone()
	idx := indexOf(next.Messages, id)
	if idx < 0 {
		return s, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	if next.Messages[idx].Status != chat.StatusSending {
		return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, next.Messages[idx].Status, chat.StatusError)
	}
	next.Messages[idx].Status = chat.StatusError
	next.Thinking = false
	return next, nil
}

// AbortTurn ends the in-flight turn whatever happened to its message. The
// message is marked failed when it is still sending; otherwise only the
// thinking flag is cleared.
func AbortTurn(s State, id string) State {
	if failed, err := FailTurn(s, id); err == nil {
		return failed
	}
	next := s.Clone()
	next.Thinking = false
	return next
}

// SetTitle renames a session in the list, if present.
func SetTitle(s State, sessionID, title string) State {
	next := s.Clone()
	for i := range next.Sessions {
		if next.Sessions[i].ID == sessionID {
			next.Sessions[i].Title = title
		}
	}
	return next
}

// UpsertSession replaces the session with the same id or prepends it.
func UpsertSession(list []chat.Session, session chat.Session) []chat.Session {
	out := make([]chat.Session, 0, len(list)+1)
	replaced := false
	for _, existing := range list {
		if existing.ID == session.ID {
			out = append(out, session)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append([]chat.Session{session}, out...)
	}
	return out
}

// RemoveSession drops the session with the given id.
func RemoveSession(list []chat.Session, id string) []chat.Session {
	out := make([]chat.Session, 0, len(list))
	for _, session := range list {
		if session.ID != id {
			out = append(out, session)
		}
	}
	return out
}

// FindSession looks up a session by id.
func FindSession(list []chat.Session, id string) (chat.Session, bool) {
	for _, session := range list {
		if session.ID == id {
			return session, true
		}
	}
	return chat.Session{}, false
}

// HistoryFor returns the turns sent to the model alongside a query: every
// message except failed ones and the in-flight message itself.
func HistoryFor(messages []chat.Message, inflightID string) []chat.Message {
	history := make([]chat.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.ID == inflightID || msg.Failed() {
			continue
		}
		history = append(history, msg)
	}
	return history
}

func indexOf(messages []chat.Message, id string) int {
	for i, msg := range messages {
		if msg.ID == id {
			return i
		}
	}
	return -1
}
