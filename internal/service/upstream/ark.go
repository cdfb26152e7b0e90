package upstream

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ModelCompleter serves completions from an eino chat model, such as the
// Ark model built by config.AIConfig.NewChatModel. The request's model name
// is passed through as a per-call option.
type ModelCompleter struct {
	chatModel model.BaseChatModel
}

// NewModelCompleter wraps chatModel.
func NewModelCompleter(chatModel model.BaseChatModel) (*ModelCompleter, error) {
	if chatModel == nil {
		return nil, ErrMissingCredential
	}
	return &ModelCompleter{chatModel: chatModel}, nil
}

func (c *ModelCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	input := make([]*schema.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		input = append(input, &schema.Message{Role: schema.RoleType(msg.Role), Content: msg.Content})
	}

	opts := []model.Option{model.WithModel(req.Model)}
	if req.Temperature != nil {
		opts = append(opts, model.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*req.MaxTokens))
	}
	if req.TopP != nil {
		opts = append(opts, model.WithTopP(*req.TopP))
	}

	out, err := c.chatModel.Generate(ctx, input, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	resp := &Response{Model: req.Model, Choices: []Choice{}}
	if out != nil {
		resp.Choices = append(resp.Choices, Choice{
			Message: Message{Role: string(schema.Assistant), Content: out.Content},
		})
	}
	return resp, nil
}
