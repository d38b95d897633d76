package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/PabloGalante/chat-relay/internal/domain"
)

// GeminiConfig selects between the Gemini Developer API (APIKey) and
// Vertex AI (Project + Location).
type GeminiConfig struct {
	APIKey   string
	Project  string
	Location string
	Vertex   bool

	Model           string
	SystemPrompt    string
	MaxOutputTokens int32
}

// generator is the slice of *genai.Models used here; swapped out in tests.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	models generator
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiClient creates a domain.AIClient backed by Gemini.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Vertex {
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("project and location must be set for Vertex AI")
		}
		cc = &genai.ClientConfig{
			Project:  cfg.Project,
			Location: cfg.Location,
			Backend:  genai.BackendVertexAI,
		}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return newGeminiClient(client.Models, cfg), nil
}

func newGeminiClient(models generator, cfg GeminiConfig) *GeminiClient {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	temp := float32(0.7)
	topP := float32(0.9)

	gc := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
	if cfg.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(cfg.SystemPrompt, genai.RoleUser)
	}

	return &GeminiClient{models: models, model: model, config: gc}
}

// Reply implements domain.AIClient.
func (g *GeminiClient) Reply(ctx context.Context, conv domain.Conversation) (string, error) {
	contents := toGeminiContents(conv)
	if len(contents) == 0 {
		return "", fmt.Errorf("gemini: empty conversation")
	}

	res, err := g.models.GenerateContent(ctx, g.model, contents, g.config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}

	return text, nil
}

func toGeminiContents(conv domain.Conversation) []*genai.Content {
	contents := make([]*genai.Content, 0, len(conv))
	for _, t := range conv {
		var role genai.Role = genai.RoleUser
		if t.Speaker == domain.SpeakerAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	return contents
}
