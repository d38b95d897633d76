package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chat-relay/internal/adapters/storage/memory"
	"github.com/PabloGalante/chat-relay/internal/adapters/storage/storagetest"
	"github.com/PabloGalante/chat-relay/internal/domain"
)

func TestSessionStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) domain.SessionStore {
		return memory.NewSessionStore()
	})
}

func TestSweepWithClock(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewSessionStore().WithClock(func() time.Time { return now })
	ctx := context.Background()
	conv := domain.Conversation{domain.UserTurn("q"), domain.AssistantTurn("a")}

	require.NoError(t, store.Save(ctx, "u1", conv))
	now = now.Add(2 * time.Hour)
	require.NoError(t, store.Save(ctx, "u2", conv))

	removed, err := store.Sweep(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}
