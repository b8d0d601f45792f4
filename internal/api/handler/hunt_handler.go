package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"aurora-addict/backend/internal/dto"
	"aurora-addict/backend/internal/service"
	"aurora-addict/backend/pkg/response"
)

// HuntHandler 活动模块 HTTP 处理器
type HuntHandler struct {
	huntSvc service.HuntService
}

// NewHuntHandler 创建 HuntHandler
func NewHuntHandler(huntSvc service.HuntService) *HuntHandler {
	return &HuntHandler{huntSvc: huntSvc}
}

// CreateHunt 创建活动
// POST /api/v1/hunts
func (h *HuntHandler) CreateHunt(c *gin.Context) {
	var req dto.CreateHuntRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	identity, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	hunt, err := h.huntSvc.Create(c.Request.Context(), &req, identity.UserID, identity.EmailVerified)
	if err != nil {
		h.handleHuntError(c, err)
		return
	}

	response.Created(c, hunt)
}

// GetHunt 获取活动详情（私密活动可通过直链访问）
// GET /api/v1/hunts/:id
func (h *HuntHandler) GetHunt(c *gin.Context) {
	hunt, err := h.huntSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleHuntError(c, err)
		return
	}
	response.OK(c, hunt)
}

// ListPublicHunts 公开活动列表
// GET /api/v1/hunts
func (h *HuntHandler) ListPublicHunts(c *gin.Context) {
	var req dto.HuntListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.huntSvc.ListPublic(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ListMyHunts 我创建或参与的活动
// GET /api/v1/hunts/mine
func (h *HuntHandler) ListMyHunts(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.huntSvc.ListMine(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// UpdateHunt 修改活动设置
// PUT /api/v1/hunts/:id
func (h *HuntHandler) UpdateHunt(c *gin.Context) {
	var req dto.UpdateHuntRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	identity, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	result, err := h.huntSvc.UpdateSettings(c.Request.Context(), c.Param("id"), &req, identity.UserID, identity.EmailVerified)
	if err != nil {
		h.handleHuntError(c, err)
		return
	}
	response.OK(c, result)
}

// DeleteHunt 取消并删除活动
// DELETE /api/v1/hunts/:id
func (h *HuntHandler) DeleteHunt(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.huntSvc.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.handleHuntError(c, err)
		return
	}
	response.OK(c, nil)
}

// handleHuntError 统一处理活动模块业务错误
func (h *HuntHandler) handleHuntError(c *gin.Context, err error) {
	if handleHuntLookupError(c, err) || handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrHuntDateInvalid):
		response.BadRequest(c, 20004, "活动时间无效")
	case errors.Is(err, service.ErrHuntTimezoneInvalid):
		response.BadRequest(c, 20005, "无效的时区")
	case errors.Is(err, service.ErrHuntVisibilityInvalid):
		response.BadRequest(c, 20006, "仅私密活动可以从公开列表中隐藏")
	case errors.Is(err, service.ErrHuntPriceInvalid):
		response.BadRequest(c, 20007, "价格设置无效")
	case errors.Is(err, service.ErrWaitlistRequiresCapacity):
		response.BadRequest(c, 20008, "开启候补名单必须先设置人数上限")
	case errors.Is(err, service.ErrEmailNotVerified):
		response.Forbidden(c, 20009, "创建收费活动前需先完成邮箱验证")
	default:
		response.InternalError(c)
	}
}
