package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"line-gpt-go/pkg/line"
	"line-gpt-go/pkg/log"
)

// LineSignature 校验 LINE webhook 的 X-Line-Signature。channelSecret 为空时不做校验。
func LineSignature(channelSecret string) gin.HandlerFunc {
	if channelSecret == "" {
		log.Warnf("未配置 line.channel_secret，webhook 签名校验已关闭")
	}
	return func(c *gin.Context) {
		if channelSecret == "" {
			c.Next()
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无法读取请求体", "data": nil})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		if err := line.VerifySignature(channelSecret, body, c.GetHeader(line.SignatureHeader)); err != nil {
			log.Warnw("webhook 签名校验失败", "clientIP", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "invalid signature", "data": nil})
			return
		}
		c.Next()
	}
}
