package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aurora-addict/backend/internal/model"
)

// ParticipantRepository 参与记录数据访问接口
// 计数类方法必须在持有活动行锁的事务中调用，否则结果只是快照
type ParticipantRepository interface {
	Create(ctx context.Context, p *model.Participant) error
	Save(ctx context.Context, p *model.Participant) error
	GetByHuntAndUser(ctx context.Context, huntID, userID string) (*model.Participant, error)
	GetByHuntAndUserForUpdate(ctx context.Context, huntID, userID string) (*model.Participant, error)
	ListByHunt(ctx context.Context, huntID string, statuses ...model.ParticipantStatus) ([]model.Participant, error)
	// ListWaitlist 候补队列，按 (waitlist_position, joined_at) 先进先出
	ListWaitlist(ctx context.Context, huntID string, limit int) ([]model.Participant, error)
	CountByStatus(ctx context.Context, huntID string, status model.ParticipantStatus, excludeUserID string) (int64, error)
	CountPaid(ctx context.Context, huntID string) (int64, error)
	CountPendingWithPayment(ctx context.Context, huntID string) (int64, error)
	MaxWaitlistPosition(ctx context.Context, huntID string) (int, error)
	// ExpirePending 批量将已过期的 pending 申请置为 cancelled 并返回受影响的记录
	// huntID 为空时处理全部活动
	ExpirePending(ctx context.Context, huntID string, now time.Time) ([]model.Participant, error)
	DeleteByHunt(ctx context.Context, huntID string) error
}

type participantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo 创建 ParticipantRepository 实例
func NewParticipantRepo(db *gorm.DB) ParticipantRepository {
	return &participantRepo{db: db}
}

func (r *participantRepo) Create(ctx context.Context, p *model.Participant) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *participantRepo) Save(ctx context.Context, p *model.Participant) error {
	p.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).
		Select("*").Omit("Hunt", "created_at", "created_by").
		Updates(p).Error
}

func (r *participantRepo) GetByHuntAndUser(ctx context.Context, huntID, userID string) (*model.Participant, error) {
	var p model.Participant
	err := r.db.WithContext(ctx).
		Where("hunt_id = ? AND user_id = ?", huntID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByHuntAndUserForUpdate 必须在已有事务的 *gorm.DB 上调用
func (r *participantRepo) GetByHuntAndUserForUpdate(ctx context.Context, huntID, userID string) (*model.Participant, error) {
	var p model.Participant
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("hunt_id = ? AND user_id = ?", huntID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *participantRepo) ListByHunt(ctx context.Context, huntID string, statuses ...model.ParticipantStatus) ([]model.Participant, error) {
	var list []model.Participant
	db := r.db.WithContext(ctx).Where("hunt_id = ?", huntID)
	if len(statuses) > 0 {
		db = db.Where("status IN ?", statuses)
	}
	err := db.Order("joined_at ASC").Find(&list).Error
	return list, err
}

func (r *participantRepo) ListWaitlist(ctx context.Context, huntID string, limit int) ([]model.Participant, error) {
	var list []model.Participant
	db := r.db.WithContext(ctx).
		Where("hunt_id = ? AND status = ?", huntID, model.ParticipantWaitlisted).
		Order("waitlist_position ASC NULLS LAST").
		Order("joined_at ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&list).Error
	return list, err
}

func (r *participantRepo) CountByStatus(ctx context.Context, huntID string, status model.ParticipantStatus, excludeUserID string) (int64, error) {
	var count int64
	db := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("hunt_id = ? AND status = ?", huntID, status)
	if excludeUserID != "" {
		db = db.Where("user_id <> ?", excludeUserID)
	}
	err := db.Count(&count).Error
	return count, err
}

// CountPaid 已完成付款（paid_at 非空）的参与者数
func (r *participantRepo) CountPaid(ctx context.Context, huntID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("hunt_id = ? AND paid_at IS NOT NULL", huntID).
		Count(&count).Error
	return count, err
}

// CountPendingWithPayment 付款流程进行中的 pending 参与者数
func (r *participantRepo) CountPendingWithPayment(ctx context.Context, huntID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("hunt_id = ? AND status = ? AND payment_status IN ?", huntID,
			model.ParticipantPending,
			[]model.PaymentStatus{model.PaymentPending, model.PaymentMarkedPaid}).
		Count(&count).Error
	return count, err
}

func (r *participantRepo) MaxWaitlistPosition(ctx context.Context, huntID string) (int, error) {
	var last *int
	err := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Select("MAX(waitlist_position)").
		Where("hunt_id = ? AND status = ?", huntID, model.ParticipantWaitlisted).
		Scan(&last).Error
	if err != nil || last == nil {
		return 0, err
	}
	return *last, nil
}

// ExpirePending 单条 UPDATE ... RETURNING 完成，多实例并发执行时每条记录只会被处理一次
func (r *participantRepo) ExpirePending(ctx context.Context, huntID string, now time.Time) ([]model.Participant, error) {
	var expired []model.Participant
	db := r.db.WithContext(ctx).
		Model(&expired).
		Clauses(clause.Returning{}).
		Where("status = ? AND request_expires_at IS NOT NULL AND request_expires_at <= ?",
			model.ParticipantPending, now)
	if huntID != "" {
		db = db.Where("hunt_id = ?", huntID)
	}
	err := db.Updates(map[string]interface{}{
		"status":             model.ParticipantCancelled,
		"request_expires_at": nil,
		"payment_status":     nil,
		"updated_at":         now,
	}).Error
	return expired, err
}

func (r *participantRepo) DeleteByHunt(ctx context.Context, huntID string) error {
	return r.db.WithContext(ctx).
		Where("hunt_id = ?", huntID).
		Delete(&model.Participant{}).Error
}
