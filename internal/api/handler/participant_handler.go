package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"aurora-addict/backend/internal/dto"
	"aurora-addict/backend/internal/service"
	"aurora-addict/backend/pkg/response"
)

// ParticipantHandler 参与者模块 HTTP 处理器
type ParticipantHandler struct {
	participantSvc service.ParticipantService
}

// NewParticipantHandler 创建 ParticipantHandler
func NewParticipantHandler(participantSvc service.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{participantSvc: participantSvc}
}

// Join 申请加入活动
// POST /api/v1/hunts/:id/join
func (h *ParticipantHandler) Join(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.participantSvc.Join(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}
	response.Created(c, result)
}

// Leave 退出活动
// POST /api/v1/hunts/:id/leave
func (h *ParticipantHandler) Leave(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.participantSvc.Leave(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.handleParticipantError(c, err)
		return
	}
	response.OK(c, nil)
}

// ListParticipants 参与者列表（组织者可见全部状态）
// GET /api/v1/hunts/:id/participants
func (h *ParticipantHandler) ListParticipants(c *gin.Context) {
	var req dto.ParticipantListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.participantSvc.List(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// Approve 组织者通过申请
// POST /api/v1/hunts/:id/participants/:userId/approve
func (h *ParticipantHandler) Approve(c *gin.Context) {
	h.ownerAction(c, h.participantSvc.Approve)
}

// Reject 组织者拒绝申请
// POST /api/v1/hunts/:id/participants/:userId/reject
func (h *ParticipantHandler) Reject(c *gin.Context) {
	h.ownerAction(c, h.participantSvc.Reject)
}

// ConfirmPayment 组织者确认收款
// POST /api/v1/hunts/:id/participants/:userId/confirm-payment
func (h *ParticipantHandler) ConfirmPayment(c *gin.Context) {
	h.ownerAction(c, h.participantSvc.ConfirmPayment)
}

// Remove 组织者移除未付款的参与者
// DELETE /api/v1/hunts/:id/participants/:userId
func (h *ParticipantHandler) Remove(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.participantSvc.Remove(c.Request.Context(), c.Param("id"), c.Param("userId"), callerID); err != nil {
		h.handleParticipantError(c, err)
		return
	}
	response.OK(c, nil)
}

// MarkPayment 参与者标记已付款
// POST /api/v1/hunts/:id/payment/mark
func (h *ParticipantHandler) MarkPayment(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.participantSvc.MarkPayment(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}
	response.OK(c, result)
}

// Eligibility 当前用户能否申请加入
// GET /api/v1/hunts/:id/eligibility
func (h *ParticipantHandler) Eligibility(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.participantSvc.Eligibility(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}
	response.OK(c, result)
}

type ownerActionFunc func(ctx context.Context, huntID, targetUserID, callerID string) (*dto.ParticipantResponse, error)

func (h *ParticipantHandler) ownerAction(c *gin.Context, action ownerActionFunc) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := action(c.Request.Context(), c.Param("id"), c.Param("userId"), callerID)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}
	response.OK(c, result)
}

// handleParticipantError 统一处理参与者模块业务错误
func (h *ParticipantHandler) handleParticipantError(c *gin.Context, err error) {
	if handleHuntLookupError(c, err) || handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrAlreadyJoined):
		response.Conflict(c, 21001, "已加入或已申请该活动")
	case errors.Is(err, service.ErrNotParticipant):
		response.NotFound(c, 21002, "未参与该活动")
	case errors.Is(err, service.ErrHuntFull):
		response.Conflict(c, 21003, "活动名额已满")
	case errors.Is(err, service.ErrJoinBlocked):
		response.Forbidden(c, 21004, "申请被拒绝次数过多，不能再次申请该活动")
	case errors.Is(err, service.ErrHuntAlreadyStarted):
		response.Conflict(c, 21005, "活动已开始")
	case errors.Is(err, service.ErrOwnerCannotLeave):
		response.BadRequest(c, 21006, "组织者不能退出自己的活动")
	case errors.Is(err, service.ErrPaidParticipantCannotLeave):
		response.Conflict(c, 21007, "已付款的参与者不能退出")
	case errors.Is(err, service.ErrHuntIsPaid):
		response.BadRequest(c, 21008, "收费活动需通过确认收款加入")
	case errors.Is(err, service.ErrHuntNotPaid):
		response.BadRequest(c, 21009, "该活动为免费活动")
	case errors.Is(err, service.ErrRequestNotPending):
		response.Conflict(c, 21010, "该申请当前不处于待审核状态")
	case errors.Is(err, service.ErrPaymentNotInFlight):
		response.Conflict(c, 21011, "当前没有进行中的付款")
	default:
		response.InternalError(c)
	}
}
