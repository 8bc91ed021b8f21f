package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler 提供服务信息与健康检查。
type HealthHandler struct {
	version string
}

// NewHealthHandler 创建一个新的 HealthHandler。
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// Index 返回服务基本信息。
func (h *HealthHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{
		"service": "line-gpt-go",
		"version": h.version,
		"status":  "running",
	}})
}

// Health 用于存活探针。
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"status": "healthy"}})
}
