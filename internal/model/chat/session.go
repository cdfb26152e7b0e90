package chat

import "time"

// DefaultTitle is used until a generated title is available.
const DefaultTitle = "New Chat"

// Session captures a saved conversation owned by one user.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a copy whose message slice is safe to mutate.
func (s Session) Clone() Session {
	s.Messages = append([]Message(nil), s.Messages...)
	return s
}
