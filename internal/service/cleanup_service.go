package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"aurora-addict/backend/internal/model"
	"aurora-addict/backend/internal/repository"
)

// CleanupService 过期申请清理
type CleanupService interface {
	// CleanupExpiredParticipants 将所有已过期的 pending 申请置为 cancelled，返回处理条数
	// 过期不是组织者拒绝，不增加 rejection_count；重复执行不会重复处理
	CleanupExpiredParticipants(ctx context.Context) (int64, error)
}

type cleanupService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewCleanupService 创建 CleanupService 实例
func NewCleanupService(repo *repository.Repository, logger *zap.Logger) CleanupService {
	return &cleanupService{repo: repo, logger: logger, now: time.Now}
}

func (s *cleanupService) CleanupExpiredParticipants(ctx context.Context) (int64, error) {
	now := s.now()
	var expired []model.Participant

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		var err error
		expired, err = txRepo.Participant.ExpirePending(ctx, "", now)
		if err != nil {
			return err
		}
		return notifyExpired(ctx, txRepo, expired)
	})
	if err != nil {
		s.logger.Error("清理过期申请失败", zap.Error(err))
		return 0, err
	}

	if len(expired) > 0 {
		s.logger.Info("已清理过期申请", zap.Int("count", len(expired)))
	}
	return int64(len(expired)), nil
}

// expireHuntRequests 加入前对单个活动做惰性清理，调用方需已持有活动行锁
func expireHuntRequests(ctx context.Context, txRepo *repository.Repository, hunt *model.Hunt, now time.Time, batch *notificationBatch) error {
	expired, err := txRepo.Participant.ExpirePending(ctx, hunt.HuntID, now)
	if err != nil {
		return err
	}
	for i := range expired {
		batch.add(expired[i].UserID, model.NotifyRequestExpired, hunt,
			"申请已过期", fmt.Sprintf("你加入「%s」的申请未在截止时间前处理，已自动取消", hunt.Title))
	}
	return nil
}

// notifyExpired 全局清理时按活动批量读取标题后写入通知
func notifyExpired(ctx context.Context, txRepo *repository.Repository, expired []model.Participant) error {
	if len(expired) == 0 {
		return nil
	}

	hunts := make(map[string]*model.Hunt)
	var batch notificationBatch
	for i := range expired {
		p := &expired[i]
		hunt, ok := hunts[p.HuntID]
		if !ok {
			h, err := txRepo.Hunt.GetByID(ctx, p.HuntID)
			if err != nil {
				return fmt.Errorf("查询活动失败: %w", err)
			}
			hunt = h
			hunts[p.HuntID] = h
		}
		batch.add(p.UserID, model.NotifyRequestExpired, hunt,
			"申请已过期", fmt.Sprintf("你加入「%s」的申请未在截止时间前处理，已自动取消", hunt.Title))
	}
	return batch.flush(ctx, txRepo)
}
