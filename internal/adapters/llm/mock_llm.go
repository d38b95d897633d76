package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/chat-relay/internal/domain"
)

type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// Reply echoes the latest user turn along with how much history it saw.
func (m *MockLLM) Reply(_ context.Context, conv domain.Conversation) (string, error) {
	last, ok := conv.Last()
	if !ok {
		return "", fmt.Errorf("mock: empty conversation")
	}
	return fmt.Sprintf("You said %q (turn %d of this conversation).", last.Text, len(conv)/2+1), nil
}
