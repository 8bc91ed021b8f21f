// Package router 负责组装 Gin 路由。
package router

import (
	"github.com/gin-gonic/gin"

	"line-gpt-go/internal/handler"
	"line-gpt-go/internal/middleware"
	"line-gpt-go/pkg/token"
)

// Handlers 汇总所有需要注册的处理器。
type Handlers struct {
	Health       *handler.HealthHandler
	Webhook      *handler.WebhookHandler
	Admin        *handler.AdminHandler
	Conversation *handler.ConversationHandler
	Console      *handler.ConsoleHandler
}

// New 创建路由引擎。channelSecret 用于校验 LINE webhook 签名。
func New(h Handlers, jwtManager *token.JWTManager, channelSecret string) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/", h.Health.Index)
	r.GET("/health", h.Health.Health)

	// LINE webhook
	r.GET("/callback", h.Webhook.Verify)
	r.POST("/callback", middleware.LineSignature(channelSecret), h.Webhook.Callback)

	apiV1 := r.Group("/api/v1")
	{
		adminPublic := apiV1.Group("/admin")
		{
			adminPublic.POST("/login", h.Admin.Login)
			// WebSocket 无法携带授权头，token 放在路径中
			adminPublic.GET("/console/:token", h.Console.Handle)
		}

		admin := apiV1.Group("/admin")
		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin.Use(middleware.AuthMiddleware(jwtManager), middleware.AdminAuthMiddleware())
		{
			admin.POST("/push", h.Admin.Push)
			admin.POST("/broadcast", h.Admin.Broadcast)
			admin.POST("/news/send", h.Admin.SendNews)
			admin.GET("/debug", h.Admin.Debug)
			admin.GET("/exchanges", h.Admin.ListExchanges)

			conversations := admin.Group("/conversations")
			{
				conversations.GET("", h.Conversation.ListUsers)
				conversations.GET("/:userId", h.Conversation.GetConversation)
				conversations.DELETE("/:userId", h.Conversation.ResetConversation)
			}
		}
	}
	return r
}
