package main

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chat-relay/internal/adapters/llm"
	memstore "github.com/PabloGalante/chat-relay/internal/adapters/storage/memory"
	"github.com/PabloGalante/chat-relay/internal/adapters/storage/sqlstore"
	"github.com/PabloGalante/chat-relay/internal/config"
)

func loadConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.Load(config.New())
	require.NoError(t, err)
	return cfg
}

func TestNewAIClient(t *testing.T) {
	ctx := context.Background()

	ai, err := newAIClient(ctx, loadConfig(t, nil))
	require.NoError(t, err)
	assert.IsType(t, &llm.MockLLM{}, ai)

	ai, err = newAIClient(ctx, loadConfig(t, map[string]string{
		"RELAY_AI_PROVIDER": "anthropic",
		"ANTHROPIC_API_KEY": "sk-test",
	}))
	require.NoError(t, err)
	assert.IsType(t, &llm.AnthropicClient{}, ai)
}

func TestNewSessionStore(t *testing.T) {
	ctx := context.Background()

	store, err := newSessionStore(ctx, loadConfig(t, nil))
	require.NoError(t, err)
	assert.IsType(t, &memstore.SessionStore{}, store)

	store, err = newSessionStore(ctx, loadConfig(t, map[string]string{
		"RELAY_STORAGE_BACKEND": "sqlite",
		"RELAY_STORAGE_DSN":     filepath.Join(t.TempDir(), "relay.db"),
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	assert.IsType(t, &sqlstore.Store{}, store)
}

func TestSessionSecret(t *testing.T) {
	secret, err := sessionSecret(loadConfig(t, map[string]string{"RELAY_SESSION_SECRET": "s3cret"}))
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), secret)

	secret, err = sessionSecret(loadConfig(t, nil))
	require.NoError(t, err)
	assert.Len(t, secret, 32)
}

func TestNewHTTPServerCoversQueuedExchange(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"RELAY_AI_TIMEOUT": "20s", "RELAY_PORT": "9090"})

	srv := newHTTPServer(cfg, http.NotFoundHandler())

	assert.Equal(t, ":9090", srv.Addr)
	// one exchange holding the identity lock plus our own AI call
	assert.Greater(t, srv.WriteTimeout, 2*cfg.AITimeout)
	assert.Equal(t, 20*time.Second, cfg.AITimeout)
}
