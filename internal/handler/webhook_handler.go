// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"line-gpt-go/internal/model"
	"line-gpt-go/internal/service"
	"line-gpt-go/pkg/line"
	"line-gpt-go/pkg/log"
)

// VerificationText 是 GET /callback 的固定响应。
const VerificationText = "Webhook verification successful!"

// Replier 使用 reply token 回复一条消息。
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// WebhookHandler 负责接收 LINE 平台推送的 webhook 事件。
type WebhookHandler struct {
	dispatcher service.Dispatcher
	replier    Replier
}

// NewWebhookHandler 创建一个新的 WebhookHandler。
func NewWebhookHandler(dispatcher service.Dispatcher, replier Replier) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher, replier: replier}
}

// Verify 响应 LINE 控制台的 webhook 地址校验。
func (h *WebhookHandler) Verify(c *gin.Context) {
	c.String(http.StatusOK, VerificationText)
}

// Callback 解析 webhook 请求体，按用户分组处理其中的文本消息事件。
func (h *WebhookHandler) Callback(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无法读取请求体", "data": nil})
		return
	}
	wb, err := line.ParseWebhook(body)
	if err != nil {
		log.Warnf("Callback: 无效的 webhook 请求体, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	// 同一用户的事件按到达顺序串行处理，不同用户之间并发
	var order []string
	byUser := make(map[string][]line.Event)
	handled := 0
	for _, event := range wb.Events {
		if !event.IsText() || event.Source.UserID == "" {
			log.Debugf("Callback: 忽略事件 type=%s source=%s", event.Type, event.Source.Type)
			continue
		}
		handled++
		userID := event.Source.UserID
		if _, ok := byUser[userID]; !ok {
			order = append(order, userID)
		}
		byUser[userID] = append(byUser[userID], event)
	}

	var g errgroup.Group
	for _, userID := range order {
		events := byUser[userID]
		g.Go(func() error {
			for _, event := range events {
				h.handleEvent(c.Request.Context(), event)
			}
			return nil
		})
	}
	_ = g.Wait()

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"handled": handled}})
}

func (h *WebhookHandler) handleEvent(ctx context.Context, event line.Event) {
	userID := event.Source.UserID
	reply, err := h.dispatcher.Handle(ctx, userID, event.Message.Text)
	if err != nil && !errors.Is(err, model.ErrEmptyInput) {
		log.Errorf("Callback: 处理消息失败, user: %s, error: %v", userID, err)
		return
	}
	if err := h.replier.Reply(ctx, event.ReplyToken, reply.Text); err != nil {
		log.Errorw("Callback: 回复消息失败", "user", userID, "command", reply.Command.String(), "error", err)
		return
	}
	log.Infow("Callback: 已回复", "user", userID, "command", reply.Command.String(), "degraded", reply.Degraded)
}
