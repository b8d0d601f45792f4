package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"aurora-addict/backend/internal/dto"
	"aurora-addict/backend/internal/repository"
	"aurora-addict/backend/pkg/jwt"
)

// TokenBlacklist Token 黑名单存储
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// AuthService 认证业务接口
// 登录与注册由外部身份服务负责，本服务只处理注销与本地资料
type AuthService interface {
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
	Me(ctx context.Context, identity jwt.Identity) (*dto.MeResponse, error)
}

type authService struct {
	repo      *repository.Repository
	blacklist TokenBlacklist
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例；blacklist 为 nil 时注销只在客户端生效
func NewAuthService(repo *repository.Repository, blacklist TokenBlacklist, logger *zap.Logger) AuthService {
	return &authService{repo: repo, blacklist: blacklist, logger: logger}
}

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.blacklist == nil || jti == "" {
		return nil
	}
	if err := s.blacklist.BlacklistToken(ctx, jti, time.Until(expiresAt)); err != nil {
		s.logger.Error("Token 加入黑名单失败", zap.String("jti", jti), zap.Error(err))
		return err
	}
	return nil
}

func (s *authService) Me(ctx context.Context, identity jwt.Identity) (*dto.MeResponse, error) {
	resp := &dto.MeResponse{
		UserID:        identity.UserID,
		Role:          identity.Role,
		EmailVerified: identity.EmailVerified,
	}

	profile, err := s.repo.UserProfile.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resp, nil
		}
		s.logger.Error("查询用户资料失败", zap.String("user_id", identity.UserID), zap.Error(err))
		return nil, err
	}
	resp.HuntsJoined = profile.HuntsJoined
	return resp, nil
}
