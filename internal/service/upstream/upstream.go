package upstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingCredential means no provider key is configured.
	ErrMissingCredential = errors.New("missing upstream api key")
	// ErrInvalidRequest is returned for requests without a model or messages.
	ErrInvalidRequest = errors.New("invalid completion request")
)

// Message is one chat turn in OpenAI wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request mirrors the OpenAI chat-completion request body the widget sends.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float32  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	TopP        *float32  `json:"top_p,omitempty"`
}

// Validate checks the fields every provider needs.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidRequest)
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("%w: messages are required", ErrInvalidRequest)
	}
	return nil
}

// Choice is one completion alternative.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Response mirrors the OpenAI chat-completion response body.
type Response struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
}

// StatusError carries the upstream HTTP status of a failed call.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}

// Completer forwards one completion request to an LLM provider.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
