package interpret

import (
	"regexp"
	"strings"

	"github.com/zhouzirui/eddez/backend/internal/model/chat"
	"github.com/zhouzirui/eddez/backend/internal/model/knowledge"
)

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// Result is the interpreted form of one assistant completion.
type Result struct {
	Tokens            []Token
	Text              string
	Segments          []chat.Segment
	Button            *chat.ActionButton
	WantsHumanSupport bool
}

// Reply converts the result into the message payload stored with the turn.
func (r Result) Reply() *chat.Reply {
	return &chat.Reply{
		Text:              r.Text,
		Segments:          append([]chat.Segment(nil), r.Segments...),
		Button:            r.Button,
		WantsHumanSupport: r.WantsHumanSupport,
	}
}

// Interpret strips control directives from raw and validates any proposed
// button against the knowledge base. It never fails: malformed directives
// are rendered as text.
func Interpret(raw string, items []knowledge.Item) Result {
	tokens := Tokenize(raw)
	whitelist := knowledge.ButtonURLs(items)

	var (
		result    = Result{Tokens: tokens}
		text      strings.Builder
		candidate *Token
	)

	for idx := range tokens {
		tok := tokens[idx]
		switch tok.Kind {
		case KindSupport:
			result.WantsHumanSupport = true
		case KindButton:
			if candidate == nil {
				candidate = &tokens[idx]
			}
		default:
			text.WriteString(tok.Text)
		}
	}

	if candidate != nil {
		url := strings.TrimSpace(candidate.URL)
		if allowed(url, whitelist) {
			result.Button = &chat.ActionButton{Name: strings.TrimSpace(candidate.Name), URL: url}
		}
	}

	result.Text = strings.TrimSpace(text.String())
	result.Segments = Segments(result.Text)
	return result
}

func allowed(url string, whitelist []string) bool {
	if url == "" {
		return false
	}
	for _, candidate := range whitelist {
		if candidate == url {
			return true
		}
	}
	return false
}

// Segments splits text into ordered plain and link runs. Joining the segment
// values reproduces text exactly.
func Segments(text string) []chat.Segment {
	if text == "" {
		return nil
	}

	var segments []chat.Segment
	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			segments = append(segments, chat.Segment{Text: text[last:loc[0]]})
		}
		segments = append(segments, chat.Segment{URL: text[loc[0]:loc[1]]})
		last = loc[1]
	}
	if last < len(text) {
		segments = append(segments, chat.Segment{Text: text[last:]})
	}
	return segments
}
