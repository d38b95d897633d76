package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chat-relay/internal/adapters/llm"
	"github.com/PabloGalante/chat-relay/internal/domain"
)

func TestAnthropicReply(t *testing.T) {
	var got struct {
		Model  string `json:"model"`
		System []struct {
			Text string `json:"text"`
		} `json:"system"`
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "doing well"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	client := llm.NewAnthropicClient(llm.AnthropicConfig{
		APIKey:       "test-key",
		Model:        "claude-test",
		SystemPrompt: "be brief",
		BaseURL:      srv.URL + "/",
	})

	reply, err := client.Reply(context.Background(), domain.Conversation{
		domain.UserTurn("hi"),
		domain.AssistantTurn("hello"),
		domain.UserTurn("how are you"),
	})
	require.NoError(t, err)
	assert.Equal(t, "doing well", reply)

	assert.Equal(t, "claude-test", got.Model)
	require.Len(t, got.System, 1)
	assert.Equal(t, "be brief", got.System[0].Text)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "how are you", got.Messages[2].Content[0].Text)
}

func TestAnthropicReplyUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	client := llm.NewAnthropicClient(llm.AnthropicConfig{APIKey: "k", Model: "m", BaseURL: srv.URL + "/"})

	_, err := client.Reply(context.Background(), domain.Conversation{domain.UserTurn("hi")})
	require.Error(t, err)
}

func TestMockLLM(t *testing.T) {
	reply, err := llm.NewMockLLM().Reply(context.Background(), domain.Conversation{domain.UserTurn("hola")})
	require.NoError(t, err)
	assert.Contains(t, reply, "hola")

	_, err = llm.NewMockLLM().Reply(context.Background(), nil)
	require.Error(t, err)
}
