package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"line-gpt-go/internal/middleware"
	"line-gpt-go/internal/repository"
	"line-gpt-go/internal/service"
	"line-gpt-go/pkg/log"
	"line-gpt-go/pkg/token"
)

// AdminHandler 负责处理所有与管理员相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
	dispatcher   service.Dispatcher
	newsService  service.NewsService
	recipients   []string
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。recipients 是广播的默认接收者。
func NewAdminHandler(adminService service.AdminService, dispatcher service.Dispatcher, newsService service.NewsService, recipients []string) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		dispatcher:   dispatcher,
		newsService:  newsService,
		recipients:   recipients,
	}
}

func adminName(c *gin.Context) string {
	if v, ok := c.Get(middleware.ClaimsKey); ok {
		if claims, ok := v.(*token.CustomClaims); ok {
			return claims.Username
		}
	}
	return ""
}

// LoginRequest 定义了登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 校验管理员凭证并返回 access token。
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	accessToken, err := h.adminService.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, service.ErrAdminDisabled):
		c.JSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "管理员登录未启用", "data": nil})
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		log.Warnf("Login: 管理员登录失败, username: %s", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "用户名或密码错误", "data": nil})
		return
	case err != nil:
		log.Error("Login: 生成 token 失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "登录失败", "data": nil})
		return
	}
	log.Infof("管理员 '%s' 登录成功", req.Username)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"token": accessToken}})
}

// PushRequest 定义了单用户推送 API 的请求体结构。
type PushRequest struct {
	UserID  string `json:"userId" binding:"required"`
	Message string `json:"message"`
}

// Push 向单个用户推送一条测试消息。
func (h *AdminHandler) Push(c *gin.Context) {
	var req PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		req.Message = "This is a test message from line-gpt-go."
	}
	report := h.dispatcher.Broadcast(c.Request.Context(), []string{req.UserID}, req.Message)
	result := report.Results[0]
	log.Infof("管理员 '%s' 向 %s 推送消息, success: %t", adminName(c), req.UserID, result.Success)
	if !result.Success {
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": "推送失败", "data": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}

// BroadcastRequest 定义了广播 API 的请求体结构。UserIDs 为空时使用配置的接收者。
type BroadcastRequest struct {
	Message string   `json:"message" binding:"required"`
	UserIDs []string `json:"userIds"`
}

// Broadcast 把消息发送给多个用户并返回每个接收者的结果。
func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	recipients := req.UserIDs
	if len(recipients) == 0 {
		recipients = h.recipients
	}
	if len(recipients) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "没有可用的接收者", "data": nil})
		return
	}
	report := h.dispatcher.Broadcast(c.Request.Context(), recipients, req.Message)
	log.Infof("管理员 '%s' 发起广播, attempted: %d, succeeded: %d", adminName(c), report.Attempted, report.Succeeded)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": report})
}

// SendNewsRequest 定义了立即推送新闻 API 的请求体结构。
type SendNewsRequest struct {
	UserIDs []string `json:"userIds"`
}

// SendNews 立即获取新闻并推送。
func (h *AdminHandler) SendNews(c *gin.Context) {
	var req SendNewsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
			return
		}
	}
	report, err := h.newsService.SendNow(c.Request.Context(), req.UserIDs)
	if err != nil {
		log.Error("SendNews: 推送新闻失败", err)
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": "获取新闻失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": report})
}

// Debug 返回运行状态。
func (h *AdminHandler) Debug(c *gin.Context) {
	info, err := h.adminService.DebugInfo(c.Request.Context())
	if err != nil {
		log.Error("Debug: 获取调试信息失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": err.Error(), "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": info})
}

// ListExchanges 处理查询问答审计记录的请求。
func (h *AdminHandler) ListExchanges(c *gin.Context) {
	var filter repository.ExchangeFilter
	if userID := c.Query("user_id"); userID != "" {
		filter.UserID = &userID
	}

	timeLayout := "2006-01-02"
	if startDateStr := c.Query("start_date"); startDateStr != "" {
		t, err := time.ParseInLocation(timeLayout, startDateStr, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "Invalid start_date format, use YYYY-MM-DD", "data": nil})
			return
		}
		filter.StartTime = &t
	}
	if endDateStr := c.Query("end_date"); endDateStr != "" {
		t, err := time.ParseInLocation(timeLayout, endDateStr, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "Invalid end_date format, use YYYY-MM-DD", "data": nil})
			return
		}
		// 包含整天
		t = t.Add(24*time.Hour - time.Second)
		filter.EndTime = &t
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "Invalid limit", "data": nil})
			return
		}
		filter.Limit = limit
	}

	exchanges, err := h.adminService.ListExchanges(filter)
	if errors.Is(err, service.ErrAuditDisabled) {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "审计记录未启用", "data": nil})
		return
	}
	if err != nil {
		log.Error("ListExchanges: 查询失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": err.Error(), "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": exchanges})
}
