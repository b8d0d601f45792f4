package service

import (
	"go.uber.org/zap"

	"aurora-addict/backend/config"
	"aurora-addict/backend/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	Hunt         HuntService
	Participant  ParticipantService
	Cleanup      CleanupService
	Notification NotificationService
	Export       ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) *Service {
	policy := NewHuntPolicy(&cfg.Hunt)
	return &Service{
		Auth:         NewAuthService(repo, blacklist, logger),
		Hunt:         NewHuntService(repo, policy, logger),
		Participant:  NewParticipantService(repo, policy, logger),
		Cleanup:      NewCleanupService(repo, logger),
		Notification: NewNotificationService(repo, logger),
		Export:       NewExportService(repo, cfg.Server.BaseURL, logger),
	}
}
