package conversation_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/PabloGalante/chat-relay/internal/domain"
)

// scriptedAI answers with "reply to <text>" unless a hook overrides it.
type scriptedAI struct {
	calls atomic.Int32

	mu   sync.Mutex
	seen []domain.Conversation

	hook func(ctx context.Context, conv domain.Conversation) (string, error)
}

func (a *scriptedAI) Reply(ctx context.Context, conv domain.Conversation) (string, error) {
	a.calls.Add(1)

	a.mu.Lock()
	a.seen = append(a.seen, conv.Clone())
	a.mu.Unlock()

	if a.hook != nil {
		return a.hook(ctx, conv)
	}
	last, _ := conv.Last()
	return fmt.Sprintf("reply to %s", last.Text), nil
}

func (a *scriptedAI) lastSeen() domain.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.seen) == 0 {
		return nil
	}
	return a.seen[len(a.seen)-1]
}
