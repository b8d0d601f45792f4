package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aurora-addict/backend/internal/model"
)

// UserProfileRepository 用户资料数据访问接口
type UserProfileRepository interface {
	GetByID(ctx context.Context, userID string) (*model.UserProfile, error)
	// IncrementHuntsJoined 参与成功计数 +1，资料行不存在时自动创建
	IncrementHuntsJoined(ctx context.Context, userID string) error
}

type userProfileRepo struct {
	db *gorm.DB
}

// NewUserProfileRepo 创建 UserProfileRepository 实例
func NewUserProfileRepo(db *gorm.DB) UserProfileRepository {
	return &userProfileRepo{db: db}
}

func (r *userProfileRepo) GetByID(ctx context.Context, userID string) (*model.UserProfile, error) {
	var profile model.UserProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *userProfileRepo) IncrementHuntsJoined(ctx context.Context, userID string) error {
	now := time.Now()
	profile := &model.UserProfile{
		UserID:      userID,
		HuntsJoined: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"hunts_joined": gorm.Expr("user_profiles.hunts_joined + 1"),
				"updated_at":   now,
			}),
		}).
		Create(profile).Error
}
