package line

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleWebhook = `{
  "destination": "Uxxxxxxxx",
  "events": [
    {"type":"message","replyToken":"rt-1","timestamp":1700000000000,
     "source":{"type":"user","userId":"U1"},
     "message":{"id":"1","type":"text","text":"/chat Hello"}},
    {"type":"message","replyToken":"rt-2","source":{"type":"user","userId":"U2"},
     "message":{"id":"2","type":"sticker"}},
    {"type":"follow","replyToken":"rt-3","source":{"type":"user","userId":"U3"}}
  ]
}`

func TestParseWebhook(t *testing.T) {
	wb, err := ParseWebhook([]byte(sampleWebhook))
	require.NoError(t, err)
	require.Len(t, wb.Events, 3)

	assert.True(t, wb.Events[0].IsText())
	assert.Equal(t, "U1", wb.Events[0].Source.UserID)
	assert.Equal(t, "/chat Hello", wb.Events[0].Message.Text)
	assert.False(t, wb.Events[1].IsText())
	assert.False(t, wb.Events[2].IsText())
}

func TestParseWebhookInvalid(t *testing.T) {
	_, err := ParseWebhook([]byte("not json"))
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(sampleWebhook)
	sig := Sign("secret", body)

	assert.NoError(t, VerifySignature("secret", body, sig))
	assert.ErrorIs(t, VerifySignature("other", body, sig), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("secret", append(body, ' '), sig), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("secret", body, ""), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("secret", body, "%%%"), ErrInvalidSignature)
}
