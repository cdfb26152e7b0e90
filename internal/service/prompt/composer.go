package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/eddez/backend/internal/model/chat"
	"github.com/zhouzirui/eddez/backend/internal/model/directive"
	"github.com/zhouzirui/eddez/backend/internal/model/knowledge"
	"github.com/zhouzirui/eddez/backend/internal/model/settings"
)

// DefaultAssistantName is the persona the system prompt introduces.
const DefaultAssistantName = "Eddez"

// Input carries everything needed to build one model request.
type Input struct {
	Query     string
	Knowledge []knowledge.Item
	History   []chat.Message
	Settings  settings.UserSettings
}

// Composer turns a user query plus grounding data into an ordered message
// list: system block, prior turns, then the query.
type Composer struct {
	template      *prompt.DefaultChatTemplate
	assistantName string
	historyLimit  int
}

// Option customises a Composer.
type Option func(*Composer)

// WithAssistantName overrides the persona name used in the system prompt.
func WithAssistantName(name string) Option {
	return func(c *Composer) {
		if name = strings.TrimSpace(name); name != "" {
			c.assistantName = name
		}
	}
}

// WithHistoryLimit keeps only the most recent n history turns. Zero keeps all.
func WithHistoryLimit(n int) Option {
	return func(c *Composer) {
		if n >= 0 {
			c.historyLimit = n
		}
	}
}

// NewComposer builds a composer backed by an eino chat template.
func NewComposer(opts ...Option) *Composer {
	c := &Composer{
		template: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{query}"),
		),
		assistantName: DefaultAssistantName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose renders the message list for in.
func (c *Composer) Compose(ctx context.Context, in Input) ([]*schema.Message, error) {
	messages, err := c.template.Format(ctx, map[string]any{
		"system":  c.SystemPrompt(in.Knowledge, in.Settings),
		"history": c.historyMessages(in.History),
		"query":   in.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("format prompt template: %w", err)
	}
	return messages, nil
}

// SystemPrompt renders the grounding data and behavioural rules.
func (c *Composer) SystemPrompt(items []knowledge.Item, prefs settings.UserSettings) string {
	prefs = prefs.WithDefaults()

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a support AI.\n\n", c.assistantName)
	b.WriteString("DATA:\n")
	b.WriteString(RenderKnowledge(items))
	b.WriteString("\n\n**STRICT RULES (READ CAREFULLY):**\n\n")

	b.WriteString("1. **NO FAKE BUTTONS:**\n")
	fmt.Fprintf(&b, "   - You are **PROHIBITED** from generating %s...] tags unless they are EXACTLY copied from the \"LINKED ACTION\" line in the Data above.\n", directive.ButtonPrefix)
	b.WriteString("   - Do NOT invent links. Do NOT create buttons like \"Click Here\".\n\n")

	b.WriteString("2. **SUPPORT BUTTON RULES (CRITICAL):**\n")
	fmt.Fprintf(&b, "   - **MANDATORY:** You MUST output %s immediately if the user asks to speak to a \"human\", \"agent\", \"real person\", \"support\", or \"whatsapp\", even if you can answer the question yourself.\n", directive.SupportMarker)
	fmt.Fprintf(&b, "   - **ALLOWED:** Use %s if the answer is completely MISSING from the Data.\n", directive.SupportMarker)
	b.WriteString("   - **BANNED:** Do NOT use it if the user asks a simple question found in the data (unless they specifically asked for a human).\n\n")

	b.WriteString("3. **ANSWERING:**\n")
	b.WriteString("   - Use the DATA provided. If the info is there, answer directly.\n")
	fmt.Fprintf(&b, "   - %s\n\n", toneDirective(prefs.Tone))

	b.WriteString(languageDirective(prefs.Language))
	b.WriteString("\n")
	return b.String()
}

// RenderKnowledge formats the knowledge base as numbered entries. Linked
// actions are included only for items with a complete button.
func RenderKnowledge(items []knowledge.Item) string {
	if len(items) == 0 {
		return "No Data."
	}

	entries := make([]string, 0, len(items))
	for idx, item := range items {
		entry := fmt.Sprintf("### ENTRY %d:\n**TOPIC:** %s\n**CONTENT:** %s", idx+1, item.Topic, item.Content)
		if item.HasButton() {
			entry += "\n**LINKED ACTION:** " + directive.Button(strings.TrimSpace(item.ButtonName), strings.TrimSpace(item.ButtonURL))
		}
		entries = append(entries, entry)
	}
	return strings.Join(entries, "\n\n")
}

func toneDirective(tone settings.Tone) string {
	if tone == settings.ToneCasual {
		return "Tone: Friendly, casual."
	}
	return "Tone: Professional, direct."
}

func languageDirective(lang settings.Language) string {
	if lang != settings.LanguageRomanUrdu {
		return "LANGUAGE: Answer primarily in English."
	}
	return `**CRITICAL LANGUAGE RULE (ROMAN URDU ONLY):**
1. **WHAT TO DO:** You MUST speak Urdu but write it using **ENGLISH ALPHABETS** (Roman Urdu).
   - Correct Example: "Apka order 3 din mein mil jayega."
   - Correct Example: "Shipping bilkul free hai."

2. **WHAT NOT TO DO:**
   - **DO NOT** write in Urdu Script (like: "آپ کا آرڈر"). This is strictly FORBIDDEN.
   - **DO NOT** write in standard English (like: "Your order will arrive...").
   - **DO NOT** mix scripts. Only use English letters to spell Urdu words.

3. **TRANSLATION:**
   - Read the Data provided in English.
   - Mentally translate the answer into Roman Urdu.
   - Output ONLY the Roman Urdu translation.`
}

// historyMessages converts prior turns, dropping failed ones.
func (c *Composer) historyMessages(messages []chat.Message) []*schema.Message {
	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Failed() {
			continue
		}
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	if c.historyLimit > 0 && len(history) > c.historyLimit {
		history = history[len(history)-c.historyLimit:]
	}
	return history
}
