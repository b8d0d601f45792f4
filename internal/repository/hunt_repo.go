package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aurora-addict/backend/internal/model"
	pkgerrors "aurora-addict/backend/pkg/errors"
)

// HuntRepository 活动数据访问接口
type HuntRepository interface {
	Create(ctx context.Context, hunt *model.Hunt) error
	GetByID(ctx context.Context, id string) (*model.Hunt, error)
	// GetByIDForUpdate 使用 SELECT ... FOR UPDATE 锁定活动行
	// 同一活动的所有参与者变更都先获取该锁，从而串行化名额计算
	GetByIDForUpdate(ctx context.Context, id string) (*model.Hunt, error)
	Update(ctx context.Context, hunt *model.Hunt) error
	Delete(ctx context.Context, id string) error
	ListPublic(ctx context.Context, from time.Time, offset, limit int) ([]model.Hunt, int64, error)
	ListByUser(ctx context.Context, userID string) ([]model.Hunt, error)
}

type huntRepo struct {
	db *gorm.DB
}

// NewHuntRepo 创建 HuntRepository 实例
func NewHuntRepo(db *gorm.DB) HuntRepository {
	return &huntRepo{db: db}
}

func (r *huntRepo) Create(ctx context.Context, hunt *model.Hunt) error {
	return r.db.WithContext(ctx).Create(hunt).Error
}

func (r *huntRepo) GetByID(ctx context.Context, id string) (*model.Hunt, error) {
	var hunt model.Hunt
	err := r.db.WithContext(ctx).
		Where("hunt_id = ?", id).
		First(&hunt).Error
	if err != nil {
		return nil, err
	}
	return &hunt, nil
}

// GetByIDForUpdate 必须在已有事务的 *gorm.DB 上调用（通过 Repository.WithTx 注入事务连接）
func (r *huntRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Hunt, error) {
	var hunt model.Hunt
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("hunt_id = ?", id).
		First(&hunt).Error
	if err != nil {
		return nil, err
	}
	return &hunt, nil
}

// Update 基于 version 的乐观锁更新；owner_id 不可变，不在更新列中
func (r *huntRepo) Update(ctx context.Context, hunt *model.Hunt) error {
	oldVersion := hunt.Version
	result := r.db.WithContext(ctx).
		Model(&model.Hunt{}).
		Where("hunt_id = ? AND version = ?", hunt.HuntID, oldVersion).
		Updates(map[string]interface{}{
			"title":               hunt.Title,
			"description":         hunt.Description,
			"location_name":       hunt.LocationName,
			"latitude":            hunt.Latitude,
			"longitude":           hunt.Longitude,
			"start_date":          hunt.StartDate,
			"end_date":            hunt.EndDate,
			"timezone":            hunt.Timezone,
			"is_public":           hunt.IsPublic,
			"hide_from_public":    hunt.HideFromPublic,
			"is_paid":             hunt.IsPaid,
			"price":               hunt.Price,
			"cancellation_policy": hunt.CancellationPolicy,
			"capacity":            hunt.Capacity,
			"allow_waitlist":      hunt.AllowWaitlist,
			"min_participants":    hunt.MinParticipants,
			"updated_by":          hunt.UpdatedBy,
			"updated_at":          time.Now(),
			"version":             oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	hunt.Version = oldVersion + 1
	return nil
}

// Delete 仅删除活动行；参与记录需由调用方在同一事务内先删除
func (r *huntRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("hunt_id = ?", id).
		Delete(&model.Hunt{}).Error
}

// ListPublic 公开且未隐藏、尚未结束的活动，按开始时间升序
func (r *huntRepo) ListPublic(ctx context.Context, from time.Time, offset, limit int) ([]model.Hunt, int64, error) {
	var hunts []model.Hunt
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Hunt{}).
		Where("is_public = ? AND hide_from_public = ? AND end_date > ?", true, false, from)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("start_date ASC").
		Find(&hunts).Error
	return hunts, total, err
}

// ListByUser 用户创建或有效参与的活动
func (r *huntRepo) ListByUser(ctx context.Context, userID string) ([]model.Hunt, error) {
	var hunts []model.Hunt
	err := r.db.WithContext(ctx).
		Joins("JOIN hunt_participants p ON p.hunt_id = hunts.hunt_id").
		Where("p.user_id = ? AND p.status <> ?", userID, model.ParticipantCancelled).
		Order("hunts.start_date ASC").
		Find(&hunts).Error
	return hunts, err
}
