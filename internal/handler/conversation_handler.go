package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"line-gpt-go/internal/model"
	"line-gpt-go/internal/service"
	"line-gpt-go/pkg/log"
)

// ConversationHandler 让管理员查看与重置用户的会话。
type ConversationHandler struct {
	conversations service.ConversationService
	dispatcher    service.Dispatcher
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(conversations service.ConversationService, dispatcher service.Dispatcher) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, dispatcher: dispatcher}
}

// ListUsers 返回所有有会话记录的用户。
func (h *ConversationHandler) ListUsers(c *gin.Context) {
	users, err := h.conversations.Users(c.Request.Context())
	if err != nil {
		log.Error("ListUsers: 读取会话用户失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Failed to list users", "data": nil})
		return
	}
	if users == nil {
		users = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": users})
}

// GetConversation 处理获取用户对话历史的请求。
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	conv, err := h.conversations.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		log.Error("GetConversation: 读取会话失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Failed to retrieve conversation history", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": conv})
}

// ResetConversation 与用户发送 /reset 的效果相同。
func (h *ConversationHandler) ResetConversation(c *gin.Context) {
	reply := h.dispatcher.Dispatch(c.Request.Context(), c.Param("userId"), model.Reset())
	if reply.Degraded {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Failed to reset conversation", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": reply.Text, "data": nil})
}
