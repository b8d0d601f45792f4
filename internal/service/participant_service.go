package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"aurora-addict/backend/internal/dto"
	"aurora-addict/backend/internal/model"
	"aurora-addict/backend/internal/repository"
)

// ── 参与者模块业务错误 ──

var (
	ErrAlreadyJoined              = errors.New("已加入或已申请该活动")
	ErrNotParticipant             = errors.New("未参与该活动")
	ErrHuntFull                   = errors.New("活动名额已满")
	ErrJoinBlocked                = errors.New("申请被拒绝次数过多，不能再次申请该活动")
	ErrHuntAlreadyStarted         = errors.New("活动已开始，不再接受需要审核或付款的申请")
	ErrOwnerCannotLeave           = errors.New("组织者不能退出自己的活动，请直接取消活动")
	ErrPaidParticipantCannotLeave = errors.New("已付款的参与者不能退出，请联系组织者处理退款")
	ErrHuntIsPaid                 = errors.New("收费活动需通过确认收款加入")
	ErrHuntNotPaid                = errors.New("该活动为免费活动")
	ErrRequestNotPending          = errors.New("该申请当前不处于待审核状态")
	ErrPaymentNotInFlight         = errors.New("当前没有进行中的付款")
)

// ParticipantService 参与者业务接口
type ParticipantService interface {
	Join(ctx context.Context, huntID, userID string) (*dto.ParticipantResponse, error)
	Leave(ctx context.Context, huntID, userID string) error
	List(ctx context.Context, huntID, callerID string, req *dto.ParticipantListRequest) ([]dto.ParticipantResponse, error)
	Approve(ctx context.Context, huntID, targetUserID, callerID string) (*dto.ParticipantResponse, error)
	Reject(ctx context.Context, huntID, targetUserID, callerID string) (*dto.ParticipantResponse, error)
	Remove(ctx context.Context, huntID, targetUserID, callerID string) error
	MarkPayment(ctx context.Context, huntID, userID string) (*dto.ParticipantResponse, error)
	ConfirmPayment(ctx context.Context, huntID, targetUserID, callerID string) (*dto.ParticipantResponse, error)
	IsUserBlockedFromJoining(ctx context.Context, huntID, userID string) (bool, error)
	Eligibility(ctx context.Context, huntID, userID string) (*dto.EligibilityResponse, error)
}

type participantService struct {
	repo   *repository.Repository
	policy HuntPolicy
	logger *zap.Logger
	now    func() time.Time
}

// NewParticipantService 创建 ParticipantService 实例
func NewParticipantService(repo *repository.Repository, policy HuntPolicy, logger *zap.Logger) ParticipantService {
	return &participantService{repo: repo, policy: policy, logger: logger, now: time.Now}
}

// ────────────────────── Join ──────────────────────

// Join 申请加入活动
//
// 结果状态：
//   - 私密活动：pending，等待组织者审核
//   - 公开活动无空余名额：开启候补则 waitlisted，否则拒绝
//   - 公开收费活动：pending + 待付款，组织者确认收款后转为 confirmed
//   - 公开免费活动：直接 confirmed
func (s *participantService) Join(ctx context.Context, huntID, userID string) (*dto.ParticipantResponse, error) {
	now := s.now()
	var (
		hunt *model.Hunt
		p    *model.Participant
	)

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		// 1. 锁定活动行，串行化同一活动的名额计算
		var err error
		hunt, err = lockHunt(ctx, txRepo, huntID)
		if err != nil {
			return err
		}
		if hunt.OwnerID == userID {
			return ErrAlreadyJoined
		}
		if hunt.HasEnded(now) {
			return ErrHuntEnded
		}

		// 2. 先清理本活动已过期的申请，释放其占用的状态
		var batch notificationBatch
		if err := expireHuntRequests(ctx, txRepo, hunt, now, &batch); err != nil {
			return err
		}

		// 3. 已有记录则复用（保留 rejection_count）
		existing, err := txRepo.Participant.GetByHuntAndUserForUpdate(ctx, huntID, userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if existing != nil {
			if existing.Status.IsActive() {
				return ErrAlreadyJoined
			}
			if s.policy.IsBlocked(existing) {
				return ErrJoinBlocked
			}
		}

		// 4. 决定目标状态
		confirmed, err := confirmedCount(ctx, txRepo, hunt)
		if err != nil {
			return err
		}
		target, err := joinTarget(hunt, confirmed, now)
		if err != nil {
			return err
		}

		if existing == nil {
			p = &model.Participant{HuntID: huntID, UserID: userID, Status: target, JoinedAt: now}
			p.CreatedBy = &userID
		} else {
			p = existing
			if err := p.TransitionTo(target); err != nil {
				return err
			}
			p.JoinedAt = now
		}
		p.UpdatedBy = &userID
		p.UpdatedAt = now

		if hunt.IsPaid && p.PaymentStatus == model.PaymentNone {
			if err := p.SetPaymentStatus(model.PaymentPending); err != nil {
				return err
			}
		}

		switch target {
		case model.ParticipantPending:
			expiresAt := s.policy.ExpirationDate(hunt.StartDate, now)
			p.RequestExpiresAt = &expiresAt
			batch.add(hunt.OwnerID, model.NotifyRequestReceived, hunt,
				"新的参加申请", fmt.Sprintf("有用户申请加入「%s」", hunt.Title))
		case model.ParticipantWaitlisted:
			last, err := txRepo.Participant.MaxWaitlistPosition(ctx, huntID)
			if err != nil {
				return err
			}
			pos := last + 1
			p.WaitlistPosition = &pos
			batch.add(userID, model.NotifyWaitlisted, hunt,
				"已进入候补", fmt.Sprintf("「%s」名额已满，你已进入候补第 %d 位", hunt.Title, pos))
		}

		if target == model.ParticipantConfirmed {
			if err := countJoin(ctx, txRepo, p); err != nil {
				return err
			}
		}

		// 5. 写入
		if existing == nil {
			err = txRepo.Participant.Create(ctx, p)
		} else {
			err = txRepo.Participant.Save(ctx, p)
		}
		if err != nil {
			return fmt.Errorf("保存参与记录失败: %w", err)
		}
		return batch.flush(ctx, txRepo)
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("加入活动失败", zap.String("hunt_id", huntID), zap.String("user_id", userID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("用户加入活动",
		zap.String("hunt_id", huntID),
		zap.String("user_id", userID),
		zap.String("status", string(p.Status)),
	)
	return toParticipantResponse(p, hunt), nil
}

// joinTarget 根据活动设置与当前名额决定申请的目标状态
// 私密活动一律进入待审核，名额由组织者通过或确认收款时再判断
func joinTarget(hunt *model.Hunt, confirmed int64, now time.Time) (model.ParticipantStatus, error) {
	if !hunt.IsPublic {
		if hunt.HasStarted(now) {
			return "", ErrHuntAlreadyStarted
		}
		return model.ParticipantPending, nil
	}

	if !hunt.HasRoom(confirmed) {
		if hunt.AllowWaitlist {
			return model.ParticipantWaitlisted, nil
		}
		return "", ErrHuntFull
	}

	if hunt.IsPaid {
		// 开始后待审核的申请会立即过期
		if hunt.HasStarted(now) {
			return "", ErrHuntAlreadyStarted
		}
		return model.ParticipantPending, nil
	}
	return model.ParticipantConfirmed, nil
}

// ────────────────────── Leave ──────────────────────

func (s *participantService) Leave(ctx context.Context, huntID, userID string) error {
	now := s.now()

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		hunt, err := lockHunt(ctx, txRepo, huntID)
		if err != nil {
			return err
		}
		if hunt.OwnerID == userID {
			return ErrOwnerCannotLeave
		}

		p, err := getActiveParticipant(ctx, txRepo, huntID, userID)
		if err != nil {
			return err
		}
		if p.HasPaid() {
			return ErrPaidParticipantCannotLeave
		}

		var batch notificationBatch
		if err := cancelAndBackfill(ctx, txRepo, hunt, p, userID, now, &batch); err != nil {
			return err
		}
		return batch.flush(ctx, txRepo)
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("退出活动失败", zap.String("hunt_id", huntID), zap.String("user_id", userID), zap.Error(err))
		}
		return err
	}

	s.logger.Info("用户退出活动", zap.String("hunt_id", huntID), zap.String("user_id", userID))
	return nil
}

// cancelAndBackfill 取消参与；释放的是已确认名额时转正下一位候补
func cancelAndBackfill(ctx context.Context, txRepo *repository.Repository, hunt *model.Hunt, p *model.Participant, actorID string, now time.Time, batch *notificationBatch) error {
	wasConfirmed := p.Status == model.ParticipantConfirmed

	if err := p.TransitionTo(model.ParticipantCancelled); err != nil {
		return err
	}
	if p.PaymentStatus.InFlight() {
		if err := p.SetPaymentStatus(model.PaymentNone); err != nil {
			return err
		}
	}
	p.UpdatedBy = &actorID
	p.UpdatedAt = now
	if err := txRepo.Participant.Save(ctx, p); err != nil {
		return fmt.Errorf("保存参与记录失败: %w", err)
	}

	if wasConfirmed {
		if _, err := promoteNextWaitlisted(ctx, txRepo, hunt, now, batch); err != nil {
			return err
		}
	}
	return nil
}

// ────────────────────── List ──────────────────────

// List 组织者可查看全部参与记录，其他用户只能看到已确认的参与者
func (s *participantService) List(ctx context.Context, huntID, callerID string, req *dto.ParticipantListRequest) ([]dto.ParticipantResponse, error) {
	hunt, err := s.repo.Hunt.GetByID(ctx, huntID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHuntNotFound
		}
		s.logger.Error("查询活动失败", zap.String("hunt_id", huntID), zap.Error(err))
		return nil, err
	}

	var statuses []model.ParticipantStatus
	switch {
	case hunt.OwnerID != callerID:
		statuses = []model.ParticipantStatus{model.ParticipantConfirmed}
	case req != nil && req.Status != "":
		statuses = []model.ParticipantStatus{model.ParticipantStatus(req.Status)}
	}

	list, err := s.repo.Participant.ListByHunt(ctx, huntID, statuses...)
	if err != nil {
		s.logger.Error("查询参与者失败", zap.String("hunt_id", huntID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ParticipantResponse, 0, len(list))
	for i := range list {
		result = append(result, *toParticipantResponse(&list[i], hunt))
	}
	return result, nil
}

// ────────────────────── Approve / Reject / Remove ──────────────────────

// Approve 组织者通过免费活动的待审核申请；名额已满时转入候补
func (s *participantService) Approve(ctx context.Context, huntID, targetUserID, callerID string) (*dto.ParticipantResponse, error) {
	now := s.now()
	var (
		hunt *model.Hunt
		p    *model.Participant
	)

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		var err error
		hunt, err = lockOwnedHunt(ctx, txRepo, huntID, callerID)
		if err != nil {
			return err
		}
		if hunt.HasEnded(now) {
			return ErrHuntEnded
		}
		if hunt.IsPaid {
			return ErrHuntIsPaid
		}

		p, err = getActiveParticipant(ctx, txRepo, huntID, targetUserID)
		if err != nil {
			return err
		}
		if p.Status != model.ParticipantPending {
			return ErrRequestNotPending
		}

		var batch notificationBatch
		confirmed, err := confirmedCount(ctx, txRepo, hunt)
		if err != nil {
			return err
		}
		switch {
		case hunt.HasRoom(confirmed):
			p.UpdatedBy = &callerID
			if err := confirmParticipant(ctx, txRepo, p, now); err != nil {
				return err
			}
			batch.add(p.UserID, model.NotifyRequestApproved, hunt,
				"申请已通过", fmt.Sprintf("组织者已通过你加入「%s」的申请", hunt.Title))
		case hunt.AllowWaitlist:
			last, err := txRepo.Participant.MaxWaitlistPosition(ctx, huntID)
			if err != nil {
				return err
			}
			if err := p.TransitionTo(model.ParticipantWaitlisted); err != nil {
				return err
			}
			pos := last + 1
			p.WaitlistPosition = &pos
			p.UpdatedBy = &callerID
			p.UpdatedAt = now
			if err := txRepo.Participant.Save(ctx, p); err != nil {
				return err
			}
			batch.add(p.UserID, model.NotifyWaitlisted, hunt,
				"已进入候补", fmt.Sprintf("「%s」名额已满，你已进入候补第 %d 位", hunt.Title, pos))
		default:
			return ErrHuntFull
		}
		return batch.flush(ctx, txRepo)
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("通过申请失败", zap.String("hunt_id", huntID), zap.String("user_id", targetUserID), zap.Error(err))
		}
		return nil, err
	}

	return toParticipantResponse(p, hunt), nil
}

// Reject 组织者拒绝申请，rejection_count 只增不减
func (s *participantService) Reject(ctx context.Context, huntID, targetUserID, callerID string) (*dto.ParticipantResponse, error) {
	now := s.now()
	var (
		hunt *model.Hunt
		p    *model.Participant
	)

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		var err error
		hunt, err = lockOwnedHunt(ctx, txRepo, huntID, callerID)
		if err != nil {
			return err
		}

		p, err = getActiveParticipant(ctx, txRepo, huntID, targetUserID)
		if err != nil {
			return err
		}
		if p.Status != model.ParticipantPending && p.Status != model.ParticipantWaitlisted {
			return ErrRequestNotPending
		}

		if err := p.TransitionTo(model.ParticipantCancelled); err != nil {
			return err
		}
		if p.PaymentStatus.InFlight() {
			if err := p.SetPaymentStatus(model.PaymentNone); err != nil {
				return err
			}
		}
		p.RejectionCount++
		p.UpdatedBy = &callerID
		p.UpdatedAt = now
		if err := txRepo.Participant.Save(ctx, p); err != nil {
			return err
		}

		var batch notificationBatch
		batch.add(p.UserID, model.NotifyRequestRejected, hunt,
			"申请未通过", fmt.Sprintf("组织者未通过你加入「%s」的申请", hunt.Title))
		return batch.flush(ctx, txRepo)
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("拒绝申请失败", zap.String("hunt_id", huntID), zap.String("user_id", targetUserID), zap.Error(err))
		}
		return nil, err
	}

	return toParticipantResponse(p, hunt), nil
}

// Remove 组织者移除未付款的参与者；释放名额后转正下一位候补
func (s *participantService) Remove(ctx context.Context, huntID, targetUserID, callerID string) error {
	now := s.now()

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		hunt, err := lockOwnedHunt(ctx, txRepo, huntID, callerID)
		if err != nil {
			return err
		}
		if targetUserID == hunt.OwnerID {
			return ErrOwnerCannotLeave
		}

		p, err := getActiveParticipant(ctx, txRepo, huntID, targetUserID)
		if err != nil {
			return err
		}
		if p.HasPaid() {
			return ErrPaidParticipantCannotLeave
		}

		var batch notificationBatch
		if err := cancelAndBackfill(ctx, txRepo, hunt, p, callerID, now, &batch); err != nil {
			return err
		}
		return batch.flush(ctx, txRepo)
	})
	if err != nil && !isBusinessError(err) {
		s.logger.Error("移除参与者失败", zap.String("hunt_id", huntID), zap.String("user_id", targetUserID), zap.Error(err))
	}
	return err
}

// ────────────────────── Payment ──────────────────────

// MarkPayment 参与者标记已付款，等待组织者确认
func (s *participantService) MarkPayment(ctx context.Context, huntID, userID string) (*dto.ParticipantResponse, error) {
	now := s.now()
	var (
		hunt *model.Hunt
		p    *model.Participant
	)

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		var err error
		hunt, err = lockHunt(ctx, txRepo, huntID)
		if err != nil {
			return err
		}
		if !hunt.IsPaid {
			return ErrHuntNotPaid
		}

		p, err = getActiveParticipant(ctx, txRepo, huntID, userID)
		if err != nil {
			return err
		}
		// 候补转正后的参与者同样需要付款
		if p.Status == model.ParticipantWaitlisted || p.PaymentStatus != model.PaymentPending {
			return ErrPaymentNotInFlight
		}

		if err := p.SetPaymentStatus(model.PaymentMarkedPaid); err != nil {
			return err
		}
		p.UpdatedBy = &userID
		p.UpdatedAt = now
		if err := txRepo.Participant.Save(ctx, p); err != nil {
			return err
		}

		var batch notificationBatch
		batch.add(hunt.OwnerID, model.NotifyPaymentMarked, hunt,
			"参与者已标记付款", fmt.Sprintf("有参与者标记已支付「%s」的费用，请确认收款", hunt.Title))
		return batch.flush(ctx, txRepo)
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("标记付款失败", zap.String("hunt_id", huntID), zap.String("user_id", userID), zap.Error(err))
		}
		return nil, err
	}

	return toParticipantResponse(p, hunt), nil
}

// ConfirmPayment 组织者确认收款：status=confirmed、payment_status=confirmed 并写入 paid_at
func (s *participantService) ConfirmPayment(ctx context.Context, huntID, targetUserID, callerID string) (*dto.ParticipantResponse, error) {
	now := s.now()
	var (
		hunt *model.Hunt
		p    *model.Participant
	)

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		var err error
		hunt, err = lockOwnedHunt(ctx, txRepo, huntID, callerID)
		if err != nil {
			return err
		}
		if !hunt.IsPaid {
			return ErrHuntNotPaid
		}

		p, err = getActiveParticipant(ctx, txRepo, huntID, targetUserID)
		if err != nil {
			return err
		}
		if p.Status == model.ParticipantWaitlisted || !p.PaymentStatus.InFlight() {
			return ErrPaymentNotInFlight
		}

		p.UpdatedBy = &callerID
		if p.Status == model.ParticipantPending {
			confirmed, err := confirmedCount(ctx, txRepo, hunt)
			if err != nil {
				return err
			}
			if !hunt.HasRoom(confirmed) {
				return ErrHuntFull
			}
			if err := p.TransitionTo(model.ParticipantConfirmed); err != nil {
				return err
			}
			if err := countJoin(ctx, txRepo, p); err != nil {
				return err
			}
		}

		if err := p.SetPaymentStatus(model.PaymentConfirmed); err != nil {
			return err
		}
		p.PaidAt = &now
		p.UpdatedAt = now
		if err := txRepo.Participant.Save(ctx, p); err != nil {
			return err
		}

		var batch notificationBatch
		batch.add(p.UserID, model.NotifyPaymentConfirmed, hunt,
			"收款已确认", fmt.Sprintf("组织者已确认收到你参加「%s」的费用", hunt.Title))
		return batch.flush(ctx, txRepo)
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("确认收款失败", zap.String("hunt_id", huntID), zap.String("user_id", targetUserID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("收款已确认", zap.String("hunt_id", huntID), zap.String("user_id", targetUserID))
	return toParticipantResponse(p, hunt), nil
}

// ────────────────────── Eligibility ──────────────────────

// IsUserBlockedFromJoining 用户是否因多次被拒绝而不能申请
func (s *participantService) IsUserBlockedFromJoining(ctx context.Context, huntID, userID string) (bool, error) {
	p, err := s.repo.Participant.GetByHuntAndUser(ctx, huntID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		s.logger.Error("查询参与记录失败", zap.String("hunt_id", huntID), zap.String("user_id", userID), zap.Error(err))
		return false, err
	}
	return s.policy.IsBlocked(p), nil
}

func (s *participantService) Eligibility(ctx context.Context, huntID, userID string) (*dto.EligibilityResponse, error) {
	if _, err := s.repo.Hunt.GetByID(ctx, huntID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHuntNotFound
		}
		s.logger.Error("查询活动失败", zap.String("hunt_id", huntID), zap.Error(err))
		return nil, err
	}

	blocked, err := s.IsUserBlockedFromJoining(ctx, huntID, userID)
	if err != nil {
		return nil, err
	}
	resp := &dto.EligibilityResponse{HuntID: huntID, Blocked: blocked}
	if blocked {
		resp.Reason = ErrJoinBlocked.Error()
	}
	return resp, nil
}

// ── 内部辅助 ──

// getActiveParticipant 加锁读取未取消的参与记录
func getActiveParticipant(ctx context.Context, txRepo *repository.Repository, huntID, userID string) (*model.Participant, error) {
	p, err := txRepo.Participant.GetByHuntAndUserForUpdate(ctx, huntID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}
	if !p.Status.IsActive() {
		return nil, ErrNotParticipant
	}
	return p, nil
}

func toParticipantResponse(p *model.Participant, hunt *model.Hunt) *dto.ParticipantResponse {
	resp := &dto.ParticipantResponse{
		ID:               p.ParticipantID,
		HuntID:           p.HuntID,
		UserID:           p.UserID,
		Status:           string(p.Status),
		WaitlistPosition: p.WaitlistPosition,
		RejectionCount:   p.RejectionCount,
		JoinedAt:         p.JoinedAt.Format(time.RFC3339),
		IsOwner:          hunt != nil && hunt.OwnerID == p.UserID,
	}
	if p.PaymentStatus != model.PaymentNone {
		status := string(p.PaymentStatus)
		resp.PaymentStatus = &status
	}
	if p.PaidAt != nil {
		paidAt := p.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &paidAt
	}
	if p.RequestExpiresAt != nil {
		expiresAt := p.RequestExpiresAt.Format(time.RFC3339)
		resp.RequestExpiresAt = &expiresAt
	}
	return resp
}
