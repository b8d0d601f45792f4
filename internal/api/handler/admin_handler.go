package handler

import (
	"github.com/gin-gonic/gin"

	"aurora-addict/backend/internal/dto"
	"aurora-addict/backend/internal/service"
	"aurora-addict/backend/pkg/response"
)

// AdminHandler 运维接口
type AdminHandler struct {
	cleanupSvc service.CleanupService
}

// NewAdminHandler 创建 AdminHandler
func NewAdminHandler(cleanupSvc service.CleanupService) *AdminHandler {
	return &AdminHandler{cleanupSvc: cleanupSvc}
}

// SweepExpired 立即执行一次过期申请清理
// POST /api/v1/admin/sweep
func (h *AdminHandler) SweepExpired(c *gin.Context) {
	n, err := h.cleanupSvc.CleanupExpiredParticipants(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, dto.SweepResponse{Expired: n})
}
