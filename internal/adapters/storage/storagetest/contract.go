// Package storagetest holds the behavioral checks every domain.SessionStore
// implementation must pass.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chat-relay/internal/domain"
)

// Factory returns a fresh, empty store. The store is closed by the suite.
type Factory func(t *testing.T) domain.SessionStore

// Run exercises store against the domain.SessionStore contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("load unknown identity is empty", func(t *testing.T) {
		s := open(t, newStore)
		conv, err := s.Load(context.Background(), "never-seen")
		require.NoError(t, err)
		assert.Empty(t, conv)
	})

	t.Run("save then load", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		want := domain.Conversation{domain.UserTurn("hi"), domain.AssistantTurn("hello")}

		require.NoError(t, s.Save(ctx, "u1", want))

		got, err := s.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("save replaces and is idempotent", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		first := domain.Conversation{domain.UserTurn("a"), domain.AssistantTurn("b")}
		second := first.Append(domain.UserTurn("c"), domain.AssistantTurn("d"))

		require.NoError(t, s.Save(ctx, "u1", first))
		require.NoError(t, s.Save(ctx, "u1", second))
		require.NoError(t, s.Save(ctx, "u1", second))

		got, err := s.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, second, got)
	})

	t.Run("identities are isolated", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		a := domain.Conversation{domain.UserTurn("from a"), domain.AssistantTurn("to a")}
		b := domain.Conversation{domain.UserTurn("from b"), domain.AssistantTurn("to b")}

		require.NoError(t, s.Save(ctx, "a", a))
		require.NoError(t, s.Save(ctx, "b", b))
		require.NoError(t, s.Save(ctx, "a", a.Append(domain.UserTurn("more"), domain.AssistantTurn("ok"))))

		gotB, err := s.Load(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, b, gotB)
	})

	t.Run("loaded conversation does not alias stored state", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, "u1", domain.Conversation{domain.UserTurn("q"), domain.AssistantTurn("a")}))

		got, err := s.Load(ctx, "u1")
		require.NoError(t, err)
		got[0].Text = "mutated"

		again, err := s.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "q", again[0].Text)
	})

	t.Run("expire removes and tolerates unknown", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, "u1", domain.Conversation{domain.UserTurn("q"), domain.AssistantTurn("a")}))

		require.NoError(t, s.Expire(ctx, "u1"))
		require.NoError(t, s.Expire(ctx, "u1"))
		require.NoError(t, s.Expire(ctx, "ghost"))

		got, err := s.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("sweep removes only inactive", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		conv := domain.Conversation{domain.UserTurn("q"), domain.AssistantTurn("a")}

		require.NoError(t, s.Save(ctx, "old", conv))
		time.Sleep(20 * time.Millisecond)
		cutoff := time.Now()
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, s.Save(ctx, "fresh", conv))

		removed, err := s.Sweep(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		old, err := s.Load(ctx, "old")
		require.NoError(t, err)
		assert.Empty(t, old)

		fresh, err := s.Load(ctx, "fresh")
		require.NoError(t, err)
		assert.Equal(t, conv, fresh)
	})

	t.Run("concurrent writers on distinct identities", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := domain.Identity(fmt.Sprintf("user-%d", i))
				conv := domain.Conversation{domain.UserTurn(string(id)), domain.AssistantTurn("ok")}
				assert.NoError(t, s.Save(ctx, id, conv))
			}(i)
		}
		wg.Wait()

		for i := 0; i < 16; i++ {
			id := domain.Identity(fmt.Sprintf("user-%d", i))
			got, err := s.Load(ctx, id)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, string(id), got[0].Text)
		}
	})
}

func open(t *testing.T, newStore Factory) domain.SessionStore {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
