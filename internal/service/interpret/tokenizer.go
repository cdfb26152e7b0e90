package interpret

import (
	"strings"

	"github.com/zhouzirui/eddez/backend/internal/model/directive"
)

// Kind tags a token produced by Tokenize.
type Kind int

const (
	KindText Kind = iota
	KindSupport
	KindButton
)

func (k Kind) String() string {
	switch k {
	case KindSupport:
		return "support"
	case KindButton:
		return "button"
	default:
		return "text"
	}
}

// Token is one lexical unit of an assistant completion. Name and URL are set
// only for button tokens, Text only for text tokens.
type Token struct {
	Kind Kind
	Text string
	Name string
	URL  string
}

// Tokenize splits raw completion text into text, support and button tokens.
// A button directive must be closed on the same line and contain the name
// separator; anything else is kept as text.
func Tokenize(raw string) []Token {
	var (
		tokens []Token
		text   strings.Builder
	)

	flush := func() {
		if text.Len() > 0 {
			tokens = append(tokens, Token{Kind: KindText, Text: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(raw); {
		rest := raw[i:]

		if strings.HasPrefix(rest, directive.SupportMarker) {
			flush()
			tokens = append(tokens, Token{Kind: KindSupport})
			i += len(directive.SupportMarker)
			continue
		}

		if strings.HasPrefix(rest, directive.ButtonPrefix) {
			if name, url, width, ok := scanButton(rest); ok {
				flush()
				tokens = append(tokens, Token{Kind: KindButton, Name: name, URL: url})
				i += width
				continue
			}
		}

		text.WriteByte(raw[i])
		i++
	}
	flush()
	return tokens
}

// scanButton parses "[ACTION_BUTTON:name|url]" at the start of s. The name
// ends at the first separator and the url at the first closing bracket.
func scanButton(s string) (name, url string, width int, ok bool) {
	body := s[len(directive.ButtonPrefix):]
	end := strings.IndexAny(body, directive.ButtonSuffix+"\n")
	if end < 0 || body[end] != directive.ButtonSuffix[0] {
		return "", "", 0, false
	}
	inner := body[:end]
	sep := strings.Index(inner, directive.ButtonSeparator)
	if sep < 0 {
		return "", "", 0, false
	}
	width = len(directive.ButtonPrefix) + end + len(directive.ButtonSuffix)
	return inner[:sep], inner[sep+len(directive.ButtonSeparator):], width, true
}
