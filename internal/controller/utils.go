package controller

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// requesterIDHeader 携带请求者的身份句柄。网关完成认证后注入该头。
const requesterIDHeader = "X-User-ID"

// extractRequesterID 从请求头中取出请求者 ID。公开端点允许为空。
func extractRequesterID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(requesterIDHeader))
}
