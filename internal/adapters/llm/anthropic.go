package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/PabloGalante/chat-relay/internal/domain"
)

type AnthropicConfig struct {
	APIKey          string
	Model           string
	SystemPrompt    string
	MaxOutputTokens int64
	// BaseURL overrides the API endpoint, e.g. for tests.
	BaseURL string
}

type AnthropicClient struct {
	client       anthropic.Client
	model        anthropic.Model
	systemPrompt string
	maxTokens    int64
}

// NewAnthropicClient creates a domain.AIClient backed by the Anthropic Messages API.
// Retries are disabled: a failed reply is surfaced and the caller resubmits.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		model:        anthropic.Model(cfg.Model),
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    maxTokens,
	}
}

// Reply implements domain.AIClient.
func (a *AnthropicClient) Reply(ctx context.Context, conv domain.Conversation) (string, error) {
	if len(conv) == 0 {
		return "", fmt.Errorf("anthropic: empty conversation")
	}

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  toAnthropicMessages(conv),
	}
	if a.systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.systemPrompt}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	text := b.String()
	if text == "" {
		return "", fmt.Errorf("anthropic returned empty text (stop_reason=%s)", msg.StopReason)
	}
	return text, nil
}

func toAnthropicMessages(conv domain.Conversation) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(conv))
	for _, t := range conv {
		block := anthropic.NewTextBlock(t.Text)
		if t.Speaker == domain.SpeakerAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}
