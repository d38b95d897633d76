package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/PabloGalante/chat-relay/internal/adapters/http"
	"github.com/PabloGalante/chat-relay/internal/adapters/llm"
	"github.com/PabloGalante/chat-relay/internal/adapters/storage/memory"
	"github.com/PabloGalante/chat-relay/internal/app/conversation"
	"github.com/PabloGalante/chat-relay/internal/domain"
)

const cookieName = "relay_session"

type aiFunc func(ctx context.Context, conv domain.Conversation) (string, error)

func (f aiFunc) Reply(ctx context.Context, conv domain.Conversation) (string, error) {
	return f(ctx, conv)
}

func newTestServer(t *testing.T, ai domain.AIClient) (http.Handler, *memory.SessionStore) {
	t.Helper()

	if ai == nil {
		ai = llm.NewMockLLM()
	}
	store := memory.NewSessionStore()
	svc := conversation.NewService(ai, store, conversation.Options{AITimeout: time.Second})

	return httpadapter.NewServer(svc, httpadapter.Options{
		Identity: httpadapter.IdentityConfig{
			CookieName: cookieName,
			Secret:     []byte("test-secret"),
			TTL:        time.Hour,
		},
	}), store
}

func do(t *testing.T, h http.Handler, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", cookieName)
	return nil
}

func decodeReply(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Reply string `json:"reply"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Reply
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := do(t, srv, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestChatSuccessSetsCookieAndPersists(t *testing.T) {
	srv, store := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/chat", `{"user_input":"hello"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decodeReply(t, w), "hello")

	c := sessionCookie(t, w)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, 1, store.Len())

	// same cookie continues the same conversation
	w = do(t, srv, http.MethodPost, "/api/chat", `{"user_input":"again"}`, c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, store.Len())

	w = do(t, srv, http.MethodGet, "/api/conversation", "", c)
	require.Equal(t, http.StatusOK, w.Code)

	var conv struct {
		Turns []struct {
			Role string `json:"role"`
			Text string `json:"text"`
		} `json:"turns"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&conv))
	require.Len(t, conv.Turns, 4)
	assert.Equal(t, "user", conv.Turns[0].Role)
	assert.Equal(t, "hello", conv.Turns[0].Text)
	assert.Equal(t, "assistant", conv.Turns[1].Role)
	assert.Equal(t, "again", conv.Turns[2].Text)
}

func TestChatWithoutCookieStartsSeparateConversations(t *testing.T) {
	srv, store := newTestServer(t, nil)

	do(t, srv, http.MethodPost, "/api/chat", `{"user_input":"one"}`, nil)
	do(t, srv, http.MethodPost, "/api/chat", `{"user_input":"two"}`, nil)

	assert.Equal(t, 2, store.Len())
}

func TestChatForgedCookieGetsFreshIdentity(t *testing.T) {
	srv, store := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/chat", `{"user_input":"mine"}`, nil)
	orig := sessionCookie(t, w)

	forged := &http.Cookie{Name: cookieName, Value: orig.Value + "x"}
	w = do(t, srv, http.MethodPost, "/api/chat", `{"user_input":"theirs"}`, forged)
	require.Equal(t, http.StatusOK, w.Code)

	assert.NotEqual(t, orig.Value, sessionCookie(t, w).Value)
	assert.Equal(t, 2, store.Len())
}

func TestChatEmptyInput(t *testing.T) {
	called := false
	srv, store := newTestServer(t, aiFunc(func(context.Context, domain.Conversation) (string, error) {
		called = true
		return "x", nil
	}))

	for _, body := range []string{`{"user_input":""}`, `{"user_input":"   "}`, `{}`} {
		w := do(t, srv, http.MethodPost, "/api/chat", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "Please enter a message.", decodeReply(t, w))
	}

	assert.False(t, called)
	assert.Zero(t, store.Len())
}

func TestChatInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/chat", `{"user_input":`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body.", decodeReply(t, w))
}

func TestChatMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		w := do(t, srv, method, "/api/chat", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		assert.Equal(t, "Method not allowed", decodeReply(t, w))
	}
}

func TestChatUpstreamErrorIsNotLeaked(t *testing.T) {
	srv, store := newTestServer(t, aiFunc(func(context.Context, domain.Conversation) (string, error) {
		return "", errors.New("googleapi: Error 429: quota exceeded for project secret-project")
	}))

	w := do(t, srv, http.MethodPost, "/api/chat", `{"user_input":"hi"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	reply := decodeReply(t, w)
	assert.Equal(t, "Error: Could not connect to the AI. Please check the server.", reply)
	assert.NotContains(t, reply, "secret-project")
	assert.Zero(t, store.Len())
}

func TestChatPanicIsRecovered(t *testing.T) {
	srv, _ := newTestServer(t, aiFunc(func(context.Context, domain.Conversation) (string, error) {
		panic("boom")
	}))

	w := do(t, srv, http.MethodPost, "/api/chat", `{"user_input":"hi"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Something went wrong. Please try again.", decodeReply(t, w))
}

func TestResetConversation(t *testing.T) {
	srv, store := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/chat", `{"user_input":"hi"}`, nil)
	c := sessionCookie(t, w)
	require.Equal(t, 1, store.Len())

	w = do(t, srv, http.MethodDelete, "/api/conversation", "", c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, store.Len())

	w = do(t, srv, http.MethodPatch, "/api/conversation", "", c)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc123")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, "abc123", w.Header().Get("X-Request-ID"))
}
