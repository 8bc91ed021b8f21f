package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-gpt-go/internal/config"
	"line-gpt-go/internal/model"
)

func floatPtr(v float64) *float64 { return &v }

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	return newTestClientWithGeneration(t, handler, config.LLMGenerationConfig{
		Temperature: floatPtr(0.7),
		MaxTokens:   500,
	})
}

func newTestClientWithGeneration(t *testing.T, handler http.HandlerFunc, gen config.LLMGenerationConfig) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.LLMConfig{
		APIKey:     "sk-test",
		BaseURL:    srv.URL + "/v1/",
		Model:      "gpt-3.5-turbo",
		Generation: gen,
	})
}

func TestCompleteSendsMessagesAndParams(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Hi there"}}]}`)
	})

	text, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "be nice"},
		{Role: "user", Content: "Hello"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)

	assert.Equal(t, "gpt-3.5-turbo", got["model"])
	assert.Equal(t, false, got["stream"])
	assert.InDelta(t, 0.7, got["temperature"], 1e-9)
	assert.EqualValues(t, 500, got["max_tokens"])
	assert.NotContains(t, got, "top_p")
	msgs := got["messages"].([]interface{})
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[1].(map[string]interface{})["content"])
}

func TestCompleteExplicitParamsOverrideConfig(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	})

	topP := 0.5
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, &GenerationParams{Model: "gpt-4o-mini", TopP: &topP})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.InDelta(t, 0.5, got["top_p"], 1e-9)
	assert.NotContains(t, got, "temperature")
}

func TestCompleteSendsExplicitZeroParams(t *testing.T) {
	var got map[string]interface{}
	c := newTestClientWithGeneration(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}, config.LLMGenerationConfig{
		Temperature:     floatPtr(0),
		PresencePenalty: floatPtr(0),
	})

	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, nil)
	require.NoError(t, err)
	require.Contains(t, got, "temperature")
	assert.InDelta(t, 0.0, got["temperature"], 1e-9)
	assert.Contains(t, got, "presence_penalty")
	assert.NotContains(t, got, "frequency_penalty")
	assert.NotContains(t, got, "max_tokens")
}

func TestCompleteOversizedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"`)
		_, _ = io.WriteString(w, strings.Repeat("a", 2*maxResponseBytes))
		_, _ = io.WriteString(w, `"}}]}`)
	})

	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, nil)
	var be *model.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusOK, be.Status)
}

func TestCompleteNon200ReturnsBackendError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"rate limited"}}`)
	})

	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, nil)
	var be *model.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "llm", be.Service)
	assert.Equal(t, http.StatusTooManyRequests, be.Status)
	assert.Equal(t, "rate limited", be.Message)
}

func TestCompleteTimeoutReturnsBackendError(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Complete(ctx, []Message{{Role: "user", Content: "x"}}, nil)
	var be *model.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 0, be.Status)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCompleteEmptyContentUsesFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"   "}}]}`)
	})

	text, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, EmptyResponseText, text)
}

func TestCompleteNoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	})

	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, nil)
	var be *model.BackendError
	require.ErrorAs(t, err, &be)
}
