package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // 时区校验不依赖宿主机的 zoneinfo

	"go.uber.org/zap"
	"gorm.io/gorm"

	"aurora-addict/backend/internal/dto"
	"aurora-addict/backend/internal/model"
	"aurora-addict/backend/internal/repository"
	pkgerrors "aurora-addict/backend/pkg/errors"
)

// ── 活动模块业务错误 ──

var (
	ErrHuntNotFound             = errors.New("活动不存在")
	ErrNotHuntOwner             = errors.New("仅活动组织者可执行该操作")
	ErrHuntEnded                = errors.New("活动已结束")
	ErrHuntDateInvalid          = errors.New("活动时间无效：结束时间必须晚于开始时间且晚于当前时间")
	ErrHuntTimezoneInvalid      = errors.New("无效的 IANA 时区")
	ErrHuntVisibilityInvalid    = errors.New("仅私密活动可以从公开列表中隐藏")
	ErrHuntPriceInvalid         = errors.New("收费活动必须设置大于 0 的价格，免费活动不能设置价格")
	ErrWaitlistRequiresCapacity = errors.New("开启候补名单必须先设置人数上限")
	ErrEmailNotVerified         = errors.New("创建收费活动前需先完成邮箱验证")
)

// HuntService 活动业务接口
type HuntService interface {
	Create(ctx context.Context, req *dto.CreateHuntRequest, callerID string, emailVerified bool) (*dto.HuntResponse, error)
	Get(ctx context.Context, id string) (*dto.HuntResponse, error)
	ListPublic(ctx context.Context, req *dto.HuntListRequest) ([]dto.HuntResponse, int64, error)
	ListMine(ctx context.Context, userID string) ([]dto.HuntResponse, error)
	UpdateSettings(ctx context.Context, id string, req *dto.UpdateHuntRequest, callerID string, emailVerified bool) (*dto.UpdateHuntResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
}

type huntService struct {
	repo   *repository.Repository
	policy HuntPolicy
	logger *zap.Logger
	now    func() time.Time
}

// NewHuntService 创建 HuntService 实例
func NewHuntService(repo *repository.Repository, policy HuntPolicy, logger *zap.Logger) HuntService {
	return &huntService{repo: repo, policy: policy, logger: logger, now: time.Now}
}

// ────────────────────── Create ──────────────────────

func (s *huntService) Create(ctx context.Context, req *dto.CreateHuntRequest, callerID string, emailVerified bool) (*dto.HuntResponse, error) {
	now := s.now()

	startDate, endDate, err := parseHuntDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	hunt := &model.Hunt{
		OwnerID:            callerID,
		Title:              req.Title,
		Description:        req.Description,
		LocationName:       req.LocationName,
		Latitude:           req.Latitude,
		Longitude:          req.Longitude,
		StartDate:          startDate,
		EndDate:            endDate,
		Timezone:           req.Timezone,
		IsPublic:           req.IsPublic,
		HideFromPublic:     req.HideFromPublic,
		IsPaid:             req.IsPaid,
		Price:              req.Price,
		CancellationPolicy: req.CancellationPolicy,
		Capacity:           req.Capacity,
		AllowWaitlist:      req.AllowWaitlist,
		MinParticipants:    req.MinParticipants,
	}
	hunt.CreatedBy = &callerID
	hunt.UpdatedBy = &callerID
	hunt.Version = 1

	if err := validateHunt(hunt, now); err != nil {
		return nil, err
	}
	if hunt.IsPaid && !emailVerified {
		return nil, ErrEmailNotVerified
	}

	// 活动与组织者本人的参与记录在同一事务内创建
	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Hunt.Create(ctx, hunt); err != nil {
			return fmt.Errorf("创建活动失败: %w", err)
		}
		owner := &model.Participant{
			HuntID:   hunt.HuntID,
			UserID:   callerID,
			Status:   model.ParticipantConfirmed,
			JoinedAt: now,
		}
		owner.CreatedBy = &callerID
		if err := txRepo.Participant.Create(ctx, owner); err != nil {
			return fmt.Errorf("创建组织者参与记录失败: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("创建活动失败", zap.String("owner_id", callerID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("活动已创建", zap.String("hunt_id", hunt.HuntID), zap.String("owner_id", callerID))
	return toHuntResponse(hunt, 0), nil
}

// ────────────────────── Get ──────────────────────

// Get 私密或隐藏的活动同样可以通过直链访问
func (s *huntService) Get(ctx context.Context, id string) (*dto.HuntResponse, error) {
	hunt, err := s.repo.Hunt.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHuntNotFound
		}
		s.logger.Error("查询活动失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	confirmed, err := s.repo.Participant.CountByStatus(ctx, hunt.HuntID, model.ParticipantConfirmed, hunt.OwnerID)
	if err != nil {
		s.logger.Error("统计已确认人数失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toHuntResponse(hunt, confirmed), nil
}

// ────────────────────── ListPublic ──────────────────────

func (s *huntService) ListPublic(ctx context.Context, req *dto.HuntListRequest) ([]dto.HuntResponse, int64, error) {
	hunts, total, err := s.repo.Hunt.ListPublic(ctx, s.now(), req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询公开活动失败", zap.Error(err))
		return nil, 0, err
	}

	result, err := s.withConfirmedCounts(ctx, hunts)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// ────────────────────── ListMine ──────────────────────

func (s *huntService) ListMine(ctx context.Context, userID string) ([]dto.HuntResponse, error) {
	hunts, err := s.repo.Hunt.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询我的活动失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return s.withConfirmedCounts(ctx, hunts)
}

func (s *huntService) withConfirmedCounts(ctx context.Context, hunts []model.Hunt) ([]dto.HuntResponse, error) {
	result := make([]dto.HuntResponse, 0, len(hunts))
	for i := range hunts {
		h := &hunts[i]
		confirmed, err := s.repo.Participant.CountByStatus(ctx, h.HuntID, model.ParticipantConfirmed, h.OwnerID)
		if err != nil {
			s.logger.Error("统计已确认人数失败", zap.String("hunt_id", h.HuntID), zap.Error(err))
			return nil, err
		}
		result = append(result, *toHuntResponse(h, confirmed))
	}
	return result, nil
}

// ────────────────────── UpdateSettings ──────────────────────

func (s *huntService) UpdateSettings(ctx context.Context, id string, req *dto.UpdateHuntRequest, callerID string, emailVerified bool) (*dto.UpdateHuntResponse, error) {
	now := s.now()
	var (
		after     *model.Hunt
		result    *transitionResult
		confirmed int64
	)

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		// 1. 锁定活动行并校验前置条件
		before, err := lockOwnedHunt(ctx, txRepo, id, callerID)
		if err != nil {
			return err
		}
		if before.HasEnded(now) {
			return ErrHuntEnded
		}
		if req.Version != before.Version {
			return pkgerrors.ErrOptimisticLock
		}

		// 2. 计算修改后的设置
		after, err = applyHuntUpdate(before, req)
		if err != nil {
			return err
		}
		if err := validateHunt(after, now); err != nil {
			return err
		}
		if after.IsPaid && !before.IsPaid && !emailVerified {
			return ErrEmailNotVerified
		}

		// 3. 基于当前参与状态执行设置变更守卫
		state, err := loadParticipantState(ctx, txRepo, before)
		if err != nil {
			return err
		}
		change := SettingsChange{
			VisibilityChanged:      before.IsPublic != after.IsPublic,
			BecomesPrivate:         before.IsPublic && !after.IsPublic,
			WasPaid:                before.IsPaid,
			IsPaid:                 after.IsPaid,
			OldCapacity:            before.Capacity,
			NewCapacity:            after.Capacity,
			MinParticipantsChanged: !intPtrEqual(before.MinParticipants, after.MinParticipants),
		}
		if err := CanChangeHuntSettings(state, change); err != nil {
			return err
		}

		// 4. 写入设置（乐观锁 version+1）
		after.UpdatedBy = &callerID
		if err := txRepo.Hunt.Update(ctx, after); err != nil {
			return err
		}

		// 5. 级联流转参与者并写入通知
		var batch notificationBatch
		result, err = applySettingsTransitions(ctx, txRepo, before, after, s.policy, now, &batch)
		if err != nil {
			return err
		}
		if err := batch.flush(ctx, txRepo); err != nil {
			return err
		}

		confirmed, err = confirmedCount(ctx, txRepo, after)
		return err
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("修改活动设置失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("活动设置已修改",
		zap.String("hunt_id", id),
		zap.Int("version", after.Version),
		zap.Int("promoted", len(result.Promoted)),
		zap.Int("accepted", len(result.Accepted)),
	)

	return &dto.UpdateHuntResponse{
		Hunt:         *toHuntResponse(after, confirmed),
		Promoted:     result.Promoted,
		Accepted:     result.Accepted,
		Waitlisted:   result.Waitlisted,
		StillPending: result.StillPending,
	}, nil
}

// ────────────────────── Delete ──────────────────────

func (s *huntService) Delete(ctx context.Context, id string, callerID string) error {
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		hunt, err := lockOwnedHunt(ctx, txRepo, id, callerID)
		if err != nil {
			return err
		}

		paid, err := txRepo.Participant.CountPaid(ctx, hunt.HuntID)
		if err != nil {
			return err
		}
		if err := CanCancelHunt(paid); err != nil {
			return err
		}

		// 通知仍在活动中的参与者
		active, err := txRepo.Participant.ListByHunt(ctx, hunt.HuntID,
			model.ParticipantPending, model.ParticipantConfirmed, model.ParticipantWaitlisted)
		if err != nil {
			return err
		}
		var batch notificationBatch
		for i := range active {
			if active[i].UserID == hunt.OwnerID {
				continue
			}
			batch.add(active[i].UserID, model.NotifyHuntCancelled, hunt,
				"活动已取消", fmt.Sprintf("组织者已取消「%s」", hunt.Title))
		}
		if err := batch.flush(ctx, txRepo); err != nil {
			return err
		}

		// 显式级联：先删参与记录，再删活动
		if err := txRepo.Participant.DeleteByHunt(ctx, hunt.HuntID); err != nil {
			return err
		}
		return txRepo.Hunt.Delete(ctx, hunt.HuntID)
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("删除活动失败", zap.String("id", id), zap.Error(err))
		}
		return err
	}

	s.logger.Info("活动已删除", zap.String("hunt_id", id), zap.String("owner_id", callerID))
	return nil
}

// ── 内部辅助 ──

// lockOwnedHunt 锁定活动行并校验调用者为组织者
func lockOwnedHunt(ctx context.Context, txRepo *repository.Repository, id, callerID string) (*model.Hunt, error) {
	hunt, err := lockHunt(ctx, txRepo, id)
	if err != nil {
		return nil, err
	}
	if hunt.OwnerID != callerID {
		return nil, ErrNotHuntOwner
	}
	return hunt, nil
}

func lockHunt(ctx context.Context, txRepo *repository.Repository, id string) (*model.Hunt, error) {
	hunt, err := txRepo.Hunt.GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHuntNotFound
		}
		return nil, err
	}
	return hunt, nil
}

func loadParticipantState(ctx context.Context, txRepo *repository.Repository, hunt *model.Hunt) (HuntParticipantState, error) {
	var state HuntParticipantState
	var err error
	if state.PendingWithPayment, err = txRepo.Participant.CountPendingWithPayment(ctx, hunt.HuntID); err != nil {
		return state, err
	}
	if state.PendingCount, err = txRepo.Participant.CountByStatus(ctx, hunt.HuntID, model.ParticipantPending, ""); err != nil {
		return state, err
	}
	if state.PaidCount, err = txRepo.Participant.CountPaid(ctx, hunt.HuntID); err != nil {
		return state, err
	}
	if state.ConfirmedCount, err = confirmedCount(ctx, txRepo, hunt); err != nil {
		return state, err
	}
	return state, nil
}

// applyHuntUpdate 返回应用修改后的副本，不修改 before
func applyHuntUpdate(before *model.Hunt, req *dto.UpdateHuntRequest) (*model.Hunt, error) {
	after := *before

	if req.Title != nil {
		after.Title = *req.Title
	}
	if req.Description != nil {
		after.Description = *req.Description
	}
	if req.LocationName != nil {
		after.LocationName = *req.LocationName
	}
	if req.Latitude != nil {
		after.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		after.Longitude = req.Longitude
	}
	if req.StartDate != nil {
		t, err := time.Parse(time.RFC3339, *req.StartDate)
		if err != nil {
			return nil, ErrHuntDateInvalid
		}
		after.StartDate = t
	}
	if req.EndDate != nil {
		t, err := time.Parse(time.RFC3339, *req.EndDate)
		if err != nil {
			return nil, ErrHuntDateInvalid
		}
		after.EndDate = t
	}
	if req.Timezone != nil {
		after.Timezone = *req.Timezone
	}
	if req.IsPublic != nil {
		after.IsPublic = *req.IsPublic
		if after.IsPublic {
			after.HideFromPublic = false
		}
	}
	if req.HideFromPublic != nil {
		after.HideFromPublic = *req.HideFromPublic
	}
	if req.IsPaid != nil {
		after.IsPaid = *req.IsPaid
	}
	if req.Price != nil {
		after.Price = req.Price
	}
	if req.CancellationPolicy != nil {
		after.CancellationPolicy = *req.CancellationPolicy
	}
	if !after.IsPaid {
		after.Price = nil
		after.CancellationPolicy = ""
	}
	if req.Capacity != nil {
		after.Capacity = positiveOrNil(*req.Capacity)
	}
	if req.AllowWaitlist != nil {
		after.AllowWaitlist = *req.AllowWaitlist
	}
	if req.MinParticipants != nil {
		after.MinParticipants = positiveOrNil(*req.MinParticipants)
	}

	return &after, nil
}

// validateHunt 写入前校验活动自身的字段约束
func validateHunt(h *model.Hunt, now time.Time) error {
	if !h.EndDate.After(h.StartDate) || !h.EndDate.After(now) {
		return ErrHuntDateInvalid
	}
	if _, err := time.LoadLocation(h.Timezone); err != nil || h.Timezone == "" {
		return ErrHuntTimezoneInvalid
	}
	if h.HideFromPublic && h.IsPublic {
		return ErrHuntVisibilityInvalid
	}
	if h.IsPaid && (h.Price == nil || !h.Price.IsPositive()) {
		return ErrHuntPriceInvalid
	}
	if !h.IsPaid && h.Price != nil {
		return ErrHuntPriceInvalid
	}
	if h.AllowWaitlist && h.Capacity == nil {
		return ErrWaitlistRequiresCapacity
	}
	return nil
}

func parseHuntDates(start, end string) (time.Time, time.Time, error) {
	startDate, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, time.Time{}, ErrHuntDateInvalid
	}
	endDate, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return time.Time{}, time.Time{}, ErrHuntDateInvalid
	}
	return startDate, endDate, nil
}

func positiveOrNil(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// isBusinessError 业务拒绝不记录错误日志
func isBusinessError(err error) bool {
	var guardErr *GuardError
	if errors.As(err, &guardErr) {
		return true
	}
	if errors.Is(err, model.ErrIllegalTransition) || errors.Is(err, pkgerrors.ErrOptimisticLock) {
		return true
	}
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var businessErrors = []error{
	ErrHuntNotFound, ErrNotHuntOwner, ErrHuntEnded, ErrHuntDateInvalid, ErrHuntTimezoneInvalid,
	ErrHuntVisibilityInvalid, ErrHuntPriceInvalid, ErrWaitlistRequiresCapacity, ErrEmailNotVerified,
	ErrAlreadyJoined, ErrNotParticipant, ErrHuntFull, ErrJoinBlocked, ErrHuntAlreadyStarted,
	ErrOwnerCannotLeave, ErrPaidParticipantCannotLeave, ErrHuntIsPaid, ErrHuntNotPaid,
	ErrRequestNotPending, ErrPaymentNotInFlight,
}

func toHuntResponse(h *model.Hunt, confirmed int64) *dto.HuntResponse {
	resp := &dto.HuntResponse{
		ID:                 h.HuntID,
		OwnerID:            h.OwnerID,
		Title:              h.Title,
		Description:        h.Description,
		LocationName:       h.LocationName,
		Latitude:           h.Latitude,
		Longitude:          h.Longitude,
		StartDate:          h.StartDate.Format(time.RFC3339),
		EndDate:            h.EndDate.Format(time.RFC3339),
		Timezone:           h.Timezone,
		IsPublic:           h.IsPublic,
		HideFromPublic:     h.HideFromPublic,
		IsPaid:             h.IsPaid,
		Price:              h.Price,
		CancellationPolicy: h.CancellationPolicy,
		Capacity:           h.Capacity,
		AllowWaitlist:      h.AllowWaitlist,
		MinParticipants:    h.MinParticipants,
		ConfirmedCount:     confirmed,
		Version:            h.Version,
		CreatedAt:          h.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          h.UpdatedAt.Format(time.RFC3339),
	}
	if remaining := h.RemainingSpots(confirmed); remaining >= 0 {
		resp.RemainingSpots = &remaining
	}
	return resp
}
