package upstream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// OpenAICompleter talks to any OpenAI-compatible API.
type OpenAICompleter struct {
	client *openai.Client
}

// NewOpenAICompleter creates a completer. An empty apiKey yields
// ErrMissingCredential so the server can report a configuration error.
func NewOpenAICompleter(apiKey, baseURL string) (*OpenAICompleter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingCredential
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAICompleter{client: openai.NewClientWithConfig(cfg)}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	for _, msg := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		chatReq.MaxTokens = *req.MaxTokens
	}
	if req.TopP != nil {
		chatReq.TopP = *req.TopP
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &StatusError{Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	out := &Response{ID: resp.ID, Model: resp.Model, Choices: make([]Choice, 0, len(resp.Choices))}
	for _, choice := range resp.Choices {
		out.Choices = append(out.Choices, Choice{
			Index:        choice.Index,
			Message:      Message{Role: choice.Message.Role, Content: choice.Message.Content},
			FinishReason: string(choice.FinishReason),
		})
	}
	return out, nil
}
