package job

import (
	"context"
	"time"

	"go.uber.org/zap"

	"aurora-addict/backend/internal/service"
)

const sweepLockName = "job:sweep_expired_participants"

// Locker 分布式锁，多实例部署时保证同一时刻只有一个实例执行清理
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, name, token string) error
}

// Sweeper 周期性清理过期的待审核申请
// locker 为 nil 时不加锁直接执行（单实例部署或 Redis 不可用）
type Sweeper struct {
	cleanup  service.CleanupService
	locker   Locker
	interval time.Duration
	lockTTL  time.Duration
	logger   *zap.Logger
}

// NewSweeper 创建清理任务
func NewSweeper(cleanup service.CleanupService, locker Locker, interval, lockTTL time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		cleanup:  cleanup,
		locker:   locker,
		interval: interval,
		lockTTL:  lockTTL,
		logger:   logger,
	}
}

// Run 启动后立即执行一次，之后按固定周期执行，直到 ctx 取消
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("过期申请清理任务已启动", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("过期申请清理任务已停止")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce 执行一轮清理，返回处理条数；未抢到锁时返回 0
func (s *Sweeper) RunOnce(ctx context.Context) int64 {
	if s.locker != nil {
		token, ok, err := s.locker.AcquireLock(ctx, sweepLockName, s.lockTTL)
		if err != nil {
			// Redis 异常时降级为无锁执行，清理本身是幂等的
			s.logger.Warn("获取清理任务锁失败，降级为无锁执行", zap.Error(err))
		} else if !ok {
			s.logger.Debug("清理任务正由其他实例执行，本轮跳过")
			return 0
		} else {
			defer func() {
				if err := s.locker.ReleaseLock(context.Background(), sweepLockName, token); err != nil {
					s.logger.Warn("释放清理任务锁失败", zap.Error(err))
				}
			}()
		}
	}

	n, err := s.cleanup.CleanupExpiredParticipants(ctx)
	if err != nil {
		// 错误已在 Service 层记录，下一轮重试
		return 0
	}
	return n
}
