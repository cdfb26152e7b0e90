package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

const (
	// PrimaryModel is tried first for every completion.
	PrimaryModel = "meta-llama/llama-4-scout-17b-16e-instruct"
	// FallbackModel is tried once when the primary attempt fails.
	FallbackModel = "llama-3.3-70b-versatile"
	// NoResponse is returned when the upstream answers without content.
	NoResponse = "No response."
)

var (
	// ErrConfiguration means the proxy has no upstream credentials.
	ErrConfiguration = errors.New("model gateway is not configured")
	// ErrUpstream means every endpoint failed for a non-configuration reason.
	ErrUpstream = errors.New("model upstream failed")
	// ErrNoEndpoints is returned by a gateway built without endpoints.
	ErrNoEndpoints = errors.New("model gateway has no endpoints")
)

// Endpoint is one model attempt in the fallback order.
type Endpoint struct {
	Name  string
	Model model.BaseChatModel
}

// Gateway sends a message list to an ordered list of endpoints and returns
// the first successful completion.
type Gateway struct {
	endpoints []Endpoint
	logger    *zap.Logger
}

// New creates a gateway. Endpoints are attempted in the order given.
func New(logger *zap.Logger, endpoints ...Endpoint) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		endpoints: append([]Endpoint(nil), endpoints...),
		logger:    logger.With(zap.String("component", "gateway")),
	}
}

// Endpoints returns the configured endpoint names in attempt order.
func (g *Gateway) Endpoints() []string {
	names := make([]string, 0, len(g.endpoints))
	for _, ep := range g.endpoints {
		names = append(names, ep.Name)
	}
	return names
}

// Complete runs the attempt, classify, advance loop. The error returned
// after exhausting the list reflects the final attempt: ErrConfiguration
// when credentials are missing, ErrUpstream otherwise.
func (g *Gateway) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	if len(g.endpoints) == 0 {
		return "", ErrNoEndpoints
	}

	var lastErr error
	for idx, ep := range g.endpoints {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUpstream, err)
		}

		resp, err := ep.Model.Generate(ctx, messages)
		if err == nil {
			return contentOf(resp), nil
		}

		lastErr = err
		g.logger.Warn("model attempt failed",
			zap.String("endpoint", ep.Name),
			zap.Int("attempt", idx+1),
			zap.Int("of", len(g.endpoints)),
			zap.Error(err),
		)
	}

	if errors.Is(lastErr, ErrConfiguration) {
		return "", lastErr
	}
	if errors.Is(lastErr, ErrUpstream) {
		return "", lastErr
	}
	return "", fmt.Errorf("%w: %v", ErrUpstream, lastErr)
}

func contentOf(msg *schema.Message) string {
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return NoResponse
	}
	return msg.Content
}
