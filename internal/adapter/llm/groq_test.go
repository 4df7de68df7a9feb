package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func fakeChatServer(t *testing.T, status int, reply string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "llama-3.1-8b-instant",
			"choices": []any{map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatLLM_Generate(t *testing.T) {
	var seen chatRequest
	srv := fakeChatServer(t, http.StatusOK, "Paris [d1:2]", &seen)

	c := New(Config{BaseURL: srv.URL, Model: "llama-3.1-8b-instant", APIKeyEnv: "TEST_GROQ_KEY"})
	c.getenv = func(string) string { return "gsk-test" }

	out, err := c.Generate(context.Background(), "What is the capital?", "")
	require.NoError(t, err)
	assert.Equal(t, "Paris [d1:2]", out)
	assert.Equal(t, "llama-3.1-8b-instant", seen.Model)
	require.NotEmpty(t, seen.Messages)
	assert.Equal(t, "What is the capital?", seen.Messages[len(seen.Messages)-1].Content)

	_, err = c.Generate(context.Background(), "again", "llama-3.3-70b-versatile")
	require.NoError(t, err)
	assert.Equal(t, "llama-3.3-70b-versatile", seen.Model, "per-request model overrides the default")
}

func TestChatLLM_MissingKey(t *testing.T) {
	c := New(Config{Model: "llama-3.1-8b-instant", APIKeyEnv: "TEST_GROQ_KEY"})
	c.getenv = func(string) string { return "" }

	_, err := c.Generate(context.Background(), "hi", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
	assert.Contains(t, err.Error(), "TEST_GROQ_KEY")
	assert.Equal(t, "llama-3.1-8b-instant", c.ModelName())
}

func TestChatLLM_UpstreamFailure(t *testing.T) {
	srv := fakeChatServer(t, http.StatusInternalServerError, "", nil)

	c := New(Config{BaseURL: srv.URL, Model: "llama-3.1-8b-instant"})
	c.getenv = func(string) string { return "gsk-test" }

	_, err := c.Generate(context.Background(), "hi", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestChatLLM_ModelClientsAreBounded(t *testing.T) {
	var seen chatRequest
	srv := fakeChatServer(t, http.StatusOK, "ok", &seen)

	c := New(Config{BaseURL: srv.URL, Model: "llama-3.1-8b-instant", APIKeyEnv: "TEST_GROQ_KEY"})
	c.getenv = func(string) string { return "gsk-test" }

	ctx := context.Background()
	for i := range 3 * maxModelClients {
		name := fmt.Sprintf("made-up-model-%d", i)
		_, err := c.Generate(ctx, "hi", name)
		require.NoError(t, err)
		assert.Equal(t, name, seen.Model)
	}
	assert.Equal(t, maxModelClients, c.models.Len())

	// an evicted model is rebuilt on demand
	_, err := c.Generate(ctx, "hi", "made-up-model-0")
	require.NoError(t, err)
	assert.Equal(t, "made-up-model-0", seen.Model)
	assert.Equal(t, maxModelClients, c.models.Len())
}
