package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"aurora-addict/backend/internal/model"
	"aurora-addict/backend/internal/service"
	pkgerrors "aurora-addict/backend/pkg/errors"
	"aurora-addict/backend/pkg/response"
)

// handleCommonError 处理各模块共有的错误，已写入响应时返回 true
//   - 守卫拒绝 → 409，details 携带全部原因
//   - 并发修改 / 可重试的数据库冲突 → 409
//   - 非法状态转换 → 409
func handleCommonError(c *gin.Context, err error) bool {
	var guardErr *service.GuardError
	switch {
	case errors.As(err, &guardErr):
		response.ErrorWithDetails(c, http.StatusConflict, 10009, "当前状态不允许该操作", guardErr.Error())
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 10006, "数据已被修改，请刷新后重试")
	case pkgerrors.IsRetryable(err):
		response.Conflict(c, 10007, "请求冲突，请稍后重试")
	case errors.Is(err, model.ErrIllegalTransition):
		response.Conflict(c, 10008, "当前状态不允许该操作")
	default:
		return false
	}
	return true
}

// handleHuntLookupError 活动查询相关错误
func handleHuntLookupError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, service.ErrHuntNotFound):
		response.NotFound(c, 20001, "活动不存在")
	case errors.Is(err, service.ErrNotHuntOwner):
		response.Forbidden(c, 20002, "仅活动组织者可执行该操作")
	case errors.Is(err, service.ErrHuntEnded):
		response.Conflict(c, 20003, "活动已结束")
	default:
		return false
	}
	return true
}
