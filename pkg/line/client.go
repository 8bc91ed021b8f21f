// Package line 提供了 LINE Messaging API 的推送/回复客户端以及 webhook 解析。
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"line-gpt-go/internal/config"
	"line-gpt-go/internal/model"
	"line-gpt-go/pkg/log"
)

const (
	// MaxTextLength 是 LINE 单条文本消息允许的最大字符数
	MaxTextLength = 5000
	// FallbackText 在待发送文本为空时使用
	FallbackText = "Sorry, I couldn't generate a response. Please try again."
)

// Client 定义了向 LINE 用户发送消息的接口。
type Client interface {
	// Reply 使用 webhook 事件中的 reply token 回复。
	Reply(ctx context.Context, replyToken, text string) error
	// Push 主动推送一条消息，返回 LINE API 的 HTTP 状态码；失败时返回 *model.DeliveryError。
	Push(ctx context.Context, userID, text string) (int, error)
}

type messagingClient struct {
	cfg    config.LineConfig
	client *http.Client
}

// NewClient 创建一个新的 LINE Messaging API 客户端。
func NewClient(cfg config.LineConfig) Client {
	return &messagingClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

// PrepareText 保证文本非空、是合法 UTF-8 且不超过 LINE 的长度限制。
func PrepareText(text string) string {
	if strings.TrimSpace(text) == "" {
		log.Warnf("检测到空消息, 使用兜底文本")
		return FallbackText
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		log.Warnf("消息过长 (%d 字符), 截断为 %d 字符", utf8.RuneCountInString(text), MaxTextLength)
		runes := []rune(text)
		text = string(runes[:MaxTextLength-3]) + "..."
	}
	return text
}

// Reply 调用 /v2/bot/message/reply。
func (c *messagingClient) Reply(ctx context.Context, replyToken, text string) error {
	payload := replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: PrepareText(text)}},
	}
	status, body, err := c.post(ctx, "/v2/bot/message/reply", payload)
	if err != nil {
		return fmt.Errorf("调用 LINE reply 接口失败: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("LINE reply 接口返回状态码 %d: %s", status, body)
	}
	return nil
}

// Push 调用 /v2/bot/message/push。
func (c *messagingClient) Push(ctx context.Context, userID, text string) (int, error) {
	payload := pushRequest{
		To:       userID,
		Messages: []textMessage{{Type: "text", Text: PrepareText(text)}},
	}
	status, body, err := c.post(ctx, "/v2/bot/message/push", payload)
	if err != nil {
		return 0, &model.DeliveryError{UserID: userID, Message: err.Error(), Err: err}
	}
	if status != http.StatusOK {
		return status, &model.DeliveryError{UserID: userID, Status: status, Message: body}
	}
	return status, nil
}

func (c *messagingClient) post(ctx context.Context, path string, payload interface{}) (int, string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("序列化请求失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.APIBaseURL, "/")+path, bytes.NewReader(data))
	if err != nil {
		return 0, "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.ChannelAccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	log.Debugf("[LineClient] %s 返回状态码 %d", path, resp.StatusCode)
	return resp.StatusCode, string(body), nil
}
