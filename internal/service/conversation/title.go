package conversation

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/eddez/backend/internal/model/chat"
	"github.com/zhouzirui/eddez/backend/internal/service/gateway"
)

const titlePrompt = `Generate a title (max 4 words) for: "{message}". No quotes.`

// TitleGenerator names a new session from its first user message.
type TitleGenerator interface {
	Title(ctx context.Context, firstMessage string) string
}

// Titler asks the model for a short session title and falls back to the
// placeholder title on any failure.
type Titler struct {
	completer Completer
	template  *prompt.DefaultChatTemplate
	logger    *zap.Logger
}

// NewTitler creates a title generator that reuses the chat gateway.
func NewTitler(completer Completer, logger *zap.Logger) *Titler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Titler{
		completer: completer,
		template:  prompt.FromMessages(schema.FString, schema.UserMessage(titlePrompt)),
		logger:    logger.With(zap.String("component", "titler")),
	}
}

// Title never fails; it returns chat.DefaultTitle when generation does.
func (t *Titler) Title(ctx context.Context, firstMessage string) string {
	if t == nil || t.completer == nil {
		return chat.DefaultTitle
	}

	messages, err := t.template.Format(ctx, map[string]any{"message": firstMessage})
	if err != nil {
		t.logger.Warn("title prompt failed", zap.Error(err))
		return chat.DefaultTitle
	}

	raw, err := t.completer.Complete(ctx, messages)
	if err != nil {
		t.logger.Info("title generation failed, using placeholder", zap.Error(err))
		return chat.DefaultTitle
	}
	return cleanTitle(raw)
}

// cleanTitle drops one quote from each end; inner quotes are kept.
func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if strings.HasPrefix(title, `"`) || strings.HasPrefix(title, "'") {
		title = title[1:]
	}
	if strings.HasSuffix(title, `"`) || strings.HasSuffix(title, "'") {
		title = title[:len(title)-1]
	}
	title = strings.TrimSpace(title)
	if title == "" || title == gateway.NoResponse {
		return chat.DefaultTitle
	}
	return title
}
