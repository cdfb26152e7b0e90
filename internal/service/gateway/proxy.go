package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Params are the sampling parameters sent with every completion request.
type Params struct {
	Temperature float32
	MaxTokens   int
	TopP        float32
}

// DefaultParams returns the conservative sampling used for support replies.
func DefaultParams() Params {
	return Params{Temperature: 0.1, MaxTokens: 1024, TopP: 0.8}
}

// ConfigurationCode marks the proxy's missing-credential error envelope.
const ConfigurationCode = "configuration"

// legacyMissingKey is the text older proxies put in the error field.
const legacyMissingKey = "Missing API Key"

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float32       `json:"top_p"`
}

type completionResponse struct {
	Choices []struct {
		Message *wireMessage `json:"message"`
	} `json:"choices"`
}

type errorEnvelope struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ProxyModel is an eino chat model that forwards requests to the server's
// chat-completion route for a single model name.
type ProxyModel struct {
	endpoint string
	model    string
	params   Params
	client   *http.Client
}

var _ model.BaseChatModel = (*ProxyModel)(nil)

// NewProxyModel creates a model bound to endpoint (the full completion URL).
func NewProxyModel(endpoint, modelName string, params Params, client *http.Client) *ProxyModel {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &ProxyModel{
		endpoint: endpoint,
		model:    modelName,
		params:   params,
		client:   client,
	}
}

// Endpoints builds the standard primary-then-fallback endpoint list.
func Endpoints(completionURL string, params Params, client *http.Client, models ...string) []Endpoint {
	if len(models) == 0 {
		models = []string{PrimaryModel, FallbackModel}
	}
	endpoints := make([]Endpoint, 0, len(models))
	for _, name := range models {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		endpoints = append(endpoints, Endpoint{Name: name, Model: NewProxyModel(completionURL, name, params, client)})
	}
	return endpoints
}

// Generate performs one blocking completion request.
func (m *ProxyModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	temperature, maxTokens, topP, modelName := m.params.Temperature, m.params.MaxTokens, m.params.TopP, m.model
	common := model.GetCommonOptions(&model.Options{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		TopP:        &topP,
		Model:       &modelName,
	}, opts...)

	req := completionRequest{
		Model:    deref(common.Model, m.model),
		Messages: make([]wireMessage, 0, len(input)),
	}
	req.Temperature = deref(common.Temperature, m.params.Temperature)
	req.MaxTokens = deref(common.MaxTokens, m.params.MaxTokens)
	req.TopP = deref(common.TopP, m.params.TopP)
	for _, msg := range input {
		if msg == nil {
			continue
		}
		req.Messages = append(req.Messages, wireMessage{Role: string(msg.Role), Content: msg.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, req.Model, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyFailure(resp.StatusCode, raw)
	}

	var decoded completionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUpstream, err)
	}

	content := ""
	if len(decoded.Choices) > 0 && decoded.Choices[0].Message != nil {
		content = decoded.Choices[0].Message.Content
	}
	if content == "" {
		content = NoResponse
	}
	return schema.AssistantMessage(content, nil), nil
}

// Stream wraps Generate; the proxy does not stream.
func (m *ProxyModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func classifyFailure(status int, raw []byte) error {
	var envelope errorEnvelope
	_ = json.Unmarshal(raw, &envelope)

	if envelope.Code == ConfigurationCode || strings.Contains(envelope.Error, legacyMissingKey) {
		return fmt.Errorf("%w: %s", ErrConfiguration, envelope.Error)
	}

	detail := strings.TrimSpace(envelope.Error)
	if detail == "" {
		detail = http.StatusText(status)
	}
	return fmt.Errorf("%w: status %d: %s", ErrUpstream, status, detail)
}

func deref[T any](ptr *T, fallback T) T {
	if ptr == nil {
		return fallback
	}
	return *ptr
}
