package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// SignatureHeader 是 LINE 平台携带 webhook 签名的请求头。
const SignatureHeader = "X-Line-Signature"

// ErrInvalidSignature 表示 webhook 签名校验失败。
var ErrInvalidSignature = errors.New("invalid webhook signature")

// WebhookBody 是 LINE webhook 请求体。
type WebhookBody struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event 是 webhook 中的单个事件，只解析本服务关心的字段。
type Event struct {
	Type       string        `json:"type"`
	ReplyToken string        `json:"replyToken"`
	Timestamp  int64         `json:"timestamp"`
	Source     EventSource   `json:"source"`
	Message    *EventMessage `json:"message,omitempty"`
}

// EventSource 描述事件来源。
type EventSource struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// EventMessage 描述消息事件携带的消息。
type EventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// IsText 判断事件是否为文本消息事件。
func (e Event) IsText() bool {
	return e.Type == "message" && e.Message != nil && e.Message.Type == "text"
}

// ParseWebhook 解析 webhook 请求体。
func ParseWebhook(body []byte) (*WebhookBody, error) {
	var wb WebhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, fmt.Errorf("解析 webhook 请求体失败: %w", err)
	}
	return &wb, nil
}

// Sign 计算请求体的签名：base64(HMAC-SHA256(channelSecret, body))。
func Sign(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature 使用常量时间比较校验签名。
func VerifySignature(channelSecret string, body []byte, signature string) error {
	if signature == "" {
		return ErrInvalidSignature
	}
	expected, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), expected) {
		return ErrInvalidSignature
	}
	return nil
}
