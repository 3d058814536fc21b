// Package ai drafts replies with the Anthropic API. Drafting is a
// producer like any other: the reducer requests a draft, the result
// comes back through the multiplexer as DraftReady or DraftFailed.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/roelfdiedericks/wavi/internal/config"
	"github.com/roelfdiedericks/wavi/internal/types"

	. "github.com/roelfdiedericks/wavi/internal/logging"
)

const (
	draftTimeout   = 10 * time.Second
	maxDraftTokens = 512
	historyWindow  = 20 // messages of context handed to the model
)

// tone presets carried over from the tone selector of the original
// reply-draft feature.
var toneInstructions = map[string]string{
	"casual":    "Use a friendly, casual tone.",
	"formal":    "Use a professional, formal tone.",
	"technical": "Use a detailed, technical tone with specific terminology.",
}

// Assistant drafts replies for the active chat.
type Assistant struct {
	client anthropic.Client
	model  string
	tone   string
	push   func(types.Update) error
}

// New builds an assistant, or nil when drafting is disabled or has no
// key; the reducer treats a nil Drafter as "not configured".
func New(cfg config.AIConfig, push func(types.Update) error) *Assistant {
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil
	}
	return &Assistant{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
		tone:   cfg.Tone,
		push:   push,
	}
}

// Draft implements reducer.Drafter: request a reply draft off-loop and
// push the outcome back as an update.
func (a *Assistant) Draft(chatID types.ChatID, history []types.Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), draftTimeout)
		defer cancel()

		text, err := a.complete(ctx, history)
		if err != nil {
			L_warn("ai: draft failed", "chat", chatID, "error", err)
			a.pushUpdate(types.DraftFailed{Err: err.Error()})
			return
		}
		a.pushUpdate(types.DraftReady{ChatID: chatID, Text: text})
	}()
}

func (a *Assistant) complete(ctx context.Context, history []types.Message) (string, error) {
	tone := toneInstructions[a.tone]
	if tone == "" {
		tone = toneInstructions["casual"]
	}
	system := fmt.Sprintf(`You are helping draft a reply in a chat application.
Given the chat history, generate a helpful, concise reply.
%s
Do NOT include greetings unless the conversation warrants it.
Keep the reply brief and natural.
Respond with ONLY the reply text, no quotes or explanation.`, tone)

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxDraftTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(
				"Chat history:\n" + historyContext(history) + "\n\nDraft a reply:",
			)),
		},
	})
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if t, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(t.Text)
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", fmt.Errorf("empty draft from model")
	}
	return text, nil
}

// historyContext flattens the tail of the conversation into
// "Sender: text" lines.
func historyContext(history []types.Message) string {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Sender, m.Text)
	}
	return b.String()
}

func (a *Assistant) pushUpdate(u types.Update) {
	if err := a.push(u); err != nil {
		L_debug("ai: core gone, dropping draft result")
	}
}
