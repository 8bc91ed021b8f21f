package line

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-gpt-go/internal/config"
	"line-gpt-go/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.LineConfig{
		ChannelAccessToken: "token",
		APIBaseURL:         srv.URL,
		Timeout:            2 * time.Second,
	})
}

func TestPrepareText(t *testing.T) {
	assert.Equal(t, FallbackText, PrepareText(""))
	assert.Equal(t, FallbackText, PrepareText(" \n\t"))
	assert.Equal(t, "你好", PrepareText("你好"))
	assert.Equal(t, "a�b", PrepareText("a\xffb"))

	long := strings.Repeat("字", MaxTextLength+10)
	got := PrepareText(long)
	assert.Equal(t, MaxTextLength, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))

	exact := strings.Repeat("a", MaxTextLength)
	assert.Equal(t, exact, PrepareText(exact))
}

func TestPush(t *testing.T) {
	var got pushRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/push", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, `{}`)
	})

	status, err := c.Push(context.Background(), "U123", "hello")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "U123", got.To)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, textMessage{Type: "text", Text: "hello"}, got.Messages[0])
}

func TestPushFailureReturnsDeliveryError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"The property, 'to', in the request body is invalid"}`)
	})

	status, err := c.Push(context.Background(), "bad", "hello")
	assert.Equal(t, http.StatusBadRequest, status)
	var de *model.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "bad", de.UserID)
	assert.Equal(t, http.StatusBadRequest, de.Status)
	assert.Contains(t, de.Message, "invalid")
}

func TestReply(t *testing.T) {
	var got replyRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/reply", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, `{}`)
	})

	require.NoError(t, c.Reply(context.Background(), "rt-1", ""))
	assert.Equal(t, "rt-1", got.ReplyToken)
	assert.Equal(t, FallbackText, got.Messages[0].Text)
}

func TestReplyNon200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	assert.Error(t, c.Reply(context.Background(), "rt-1", "hi"))
}
