package knowledge

import (
	"errors"
	"strings"
)

var (
	ErrTopicRequired = errors.New("knowledge item topic is required")
	ErrPartialButton = errors.New("knowledge item button needs both a name and a url")
)

// Item is one admin-curated fact the assistant is grounded on.
type Item struct {
	ID         string `json:"id" yaml:"id"`
	Topic      string `json:"topic" yaml:"topic"`
	Content    string `json:"content" yaml:"content"`
	ButtonName string `json:"buttonName,omitempty" yaml:"buttonName,omitempty"`
	ButtonURL  string `json:"buttonUrl,omitempty" yaml:"buttonUrl,omitempty"`
}

// HasButton reports whether the item carries a complete linked action.
func (i Item) HasButton() bool {
	return strings.TrimSpace(i.ButtonName) != "" && strings.TrimSpace(i.ButtonURL) != ""
}

// Normalize trims surrounding whitespace from every field.
func (i Item) Normalize() Item {
	i.ID = strings.TrimSpace(i.ID)
	i.Topic = strings.TrimSpace(i.Topic)
	i.Content = strings.TrimSpace(i.Content)
	i.ButtonName = strings.TrimSpace(i.ButtonName)
	i.ButtonURL = strings.TrimSpace(i.ButtonURL)
	return i
}

// Validate rejects items without a topic and items with only half a button.
func (i Item) Validate() error {
	n := i.Normalize()
	if n.Topic == "" {
		return ErrTopicRequired
	}
	if (n.ButtonName == "") != (n.ButtonURL == "") {
		return ErrPartialButton
	}
	return nil
}

// ButtonURLs collects the trimmed, non-empty button URLs of items. This is
// the whitelist against which assistant-proposed buttons are checked.
func ButtonURLs(items []Item) []string {
	urls := make([]string, 0, len(items))
	for _, item := range items {
		if u := strings.TrimSpace(item.ButtonURL); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
