package chat

// Segment is one run of assistant text: either plain text or a link.
type Segment struct {
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Value returns the literal characters the segment covers.
func (s Segment) Value() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Text
}

// ActionButton is a knowledge-base linked button that passed validation.
type ActionButton struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Reply is the display-ready form of an assistant completion.
type Reply struct {
	Text              string        `json:"text"`
	Segments          []Segment     `json:"segments,omitempty"`
	Button            *ActionButton `json:"button,omitempty"`
	WantsHumanSupport bool          `json:"wantsHumanSupport,omitempty"`
}
