package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"aurora-addict/backend/pkg/jwt"
	"aurora-addict/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetIdentity 提取完整的调用者身份（user_id、role、email_verified）
func MustGetIdentity(c *gin.Context) (jwt.Identity, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return jwt.Identity{}, false
	}
	return jwt.Identity{
		UserID:        userID,
		Role:          c.GetString("role"),
		EmailVerified: c.GetBool("email_verified"),
	}, true
}

// getTokenMeta 当前 Access Token 的 jti 与过期时间（注销时加入黑名单使用）
func getTokenMeta(c *gin.Context) (string, time.Time) {
	return c.GetString("token_jti"), c.GetTime("token_exp")
}
