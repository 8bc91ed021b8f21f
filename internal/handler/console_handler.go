package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"line-gpt-go/internal/model"
	"line-gpt-go/internal/service"
	"line-gpt-go/pkg/log"
	"line-gpt-go/pkg/token"
)

// DefaultConsoleUser 是控制台消息未指定 userId 时使用的用户。
const DefaultConsoleUser = "console"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源，访问控制由 token 完成
	},
}

// ConsoleMessage 是控制台发来的消息。非 JSON 文本按 DefaultConsoleUser 的消息处理。
type ConsoleMessage struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

// ConsoleReply 是发回控制台的消息。
type ConsoleReply struct {
	Type      string `json:"type"`
	UserID    string `json:"userId,omitempty"`
	Command   string `json:"command,omitempty"`
	Text      string `json:"text"`
	Degraded  bool   `json:"degraded,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ConsoleHandler 让管理员通过 WebSocket 以任意用户身份与 Dispatcher 对话，
// 消息走与 LINE webhook 完全相同的处理流程，只是回复写回 WebSocket。
type ConsoleHandler struct {
	dispatcher service.Dispatcher
	jwtManager *token.JWTManager
}

// NewConsoleHandler 创建一个新的 ConsoleHandler。
func NewConsoleHandler(dispatcher service.Dispatcher, jwtManager *token.JWTManager) *ConsoleHandler {
	return &ConsoleHandler{dispatcher: dispatcher, jwtManager: jwtManager}
}

func parseConsoleMessage(data []byte) ConsoleMessage {
	var msg ConsoleMessage
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &msg); err == nil {
			if strings.TrimSpace(msg.UserID) == "" {
				msg.UserID = DefaultConsoleUser
			}
			return msg
		}
	}
	return ConsoleMessage{UserID: DefaultConsoleUser, Text: string(data)}
}

// Handle 处理一个传入的 WebSocket 连接。
func (h *ConsoleHandler) Handle(c *gin.Context) {
	claims, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}
	if claims.Role != token.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "权限不足，需要管理员权限", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("控制台连接已建立，管理员: %s", claims.Username)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}
		msg := parseConsoleMessage(data)

		reply, err := h.dispatcher.Handle(c.Request.Context(), msg.UserID, msg.Text)
		out := ConsoleReply{
			Type:      "reply",
			UserID:    msg.UserID,
			Text:      reply.Text,
			Degraded:  reply.Degraded,
			Timestamp: time.Now().UnixMilli(),
		}
		if err == nil {
			out.Command = reply.Command.String()
		} else if !errors.Is(err, model.ErrEmptyInput) {
			out.Type = "error"
			out.Text = err.Error()
		}
		if err := conn.WriteJSON(out); err != nil {
			log.Warnf("写入 WebSocket 消息失败: %v", err)
			break
		}
	}
}
