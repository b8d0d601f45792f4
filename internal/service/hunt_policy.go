package service

import (
	"fmt"
	"strings"
	"time"

	"aurora-addict/backend/config"
	"aurora-addict/backend/internal/model"
)

const (
	defaultExpirationWindow   = 7 * 24 * time.Hour
	defaultRejectionThreshold = 3
)

// HuntPolicy 申请有效期与拒绝阈值
type HuntPolicy struct {
	ExpirationWindow   time.Duration
	RejectionThreshold int
}

// DefaultHuntPolicy 7 天有效期，被拒绝 3 次后禁止再申请
func DefaultHuntPolicy() HuntPolicy {
	return HuntPolicy{
		ExpirationWindow:   defaultExpirationWindow,
		RejectionThreshold: defaultRejectionThreshold,
	}
}

// NewHuntPolicy 从配置构造，未配置的项使用默认值
func NewHuntPolicy(cfg *config.HuntConfig) HuntPolicy {
	p := DefaultHuntPolicy()
	if cfg == nil {
		return p
	}
	if cfg.ExpirationWindow > 0 {
		p.ExpirationWindow = cfg.ExpirationWindow
	}
	if cfg.RejectionThreshold > 0 {
		p.RejectionThreshold = cfg.RejectionThreshold
	}
	return p
}

// ExpirationDate 计算待审核申请的自动过期时间
// 活动开始时间晚于 now+窗口 时返回 now+窗口，否则在活动开始前 1 秒过期
func (p HuntPolicy) ExpirationDate(huntStart, now time.Time) time.Time {
	deadline := now.Add(p.ExpirationWindow)
	if huntStart.After(deadline) {
		return deadline
	}
	return huntStart.Add(-time.Second)
}

// IsBlocked 用户是否因多次被拒绝而不能再次申请
func (p HuntPolicy) IsBlocked(participant *model.Participant) bool {
	if participant == nil {
		return false
	}
	return participant.Status == model.ParticipantCancelled &&
		participant.RejectionCount >= p.RejectionThreshold
}

// CalculateExpirationDate 使用默认 7 天窗口计算过期时间
func CalculateExpirationDate(huntStart, now time.Time) time.Time {
	return DefaultHuntPolicy().ExpirationDate(huntStart, now)
}

// ── 设置变更与取消守卫 ──

// GuardError 守卫拒绝，Reasons 为面向用户的说明
type GuardError struct {
	Reasons []string
}

func (e *GuardError) Error() string {
	return strings.Join(e.Reasons, "；")
}

// HuntParticipantState 在持有活动行锁的事务内读取的参与者计数快照
type HuntParticipantState struct {
	PendingWithPayment int64 // 付款流程进行中的 pending 参与者
	PendingCount       int64 // 全部 pending 参与者
	PaidCount          int64 // paid_at 非空
	ConfirmedCount     int64 // 不含组织者本人
}

// SettingsChange 一次设置修改的前后对比
type SettingsChange struct {
	VisibilityChanged      bool
	BecomesPrivate         bool // 公开 → 私密
	WasPaid                bool
	IsPaid                 bool
	OldCapacity            *int
	NewCapacity            *int
	MinParticipantsChanged bool
}

const (
	reasonPendingPayment = "存在付款处理中的 pending 参与者，暂不能修改公开设置"
	reasonPendingPrivate = "存在待处理的 pending 申请，暂不能改为私密活动"
	reasonPaidToFree     = "已有参与者完成付款（paid），不能将活动改为免费"
	reasonFreeToPaid     = "已有参与者免费加入，不能将活动改为收费"
	reasonMinPaxFrozen   = "已有参与者完成付款（paid），成团人数不能再修改"
)

// CanChangeHuntSettings 校验设置修改是否被当前参与状态允许
// 所有规则都会执行，返回的 *GuardError 包含全部不满足的原因
func CanChangeHuntSettings(state HuntParticipantState, change SettingsChange) error {
	var reasons []string

	switch {
	case change.VisibilityChanged && state.PendingWithPayment > 0:
		reasons = append(reasons, reasonPendingPayment)
	case change.BecomesPrivate && state.PendingCount > 0:
		// 私密 → 公开会自动处理 pending 申请，反方向没有对应的流转
		reasons = append(reasons, reasonPendingPrivate)
	}
	if change.WasPaid && !change.IsPaid && state.PaidCount > 0 {
		reasons = append(reasons, reasonPaidToFree)
	}
	if !change.WasPaid && change.IsPaid && state.ConfirmedCount > 0 {
		reasons = append(reasons, reasonFreeToPaid)
	}
	if change.NewCapacity != nil && int64(*change.NewCapacity) < state.ConfirmedCount {
		reasons = append(reasons, fmt.Sprintf("人数上限不能低于已确认人数（%d < %d）", *change.NewCapacity, state.ConfirmedCount))
	}
	if change.MinParticipantsChanged && state.PaidCount > 0 {
		reasons = append(reasons, reasonMinPaxFrozen)
	}

	if len(reasons) > 0 {
		return &GuardError{Reasons: reasons}
	}
	return nil
}

// CanCancelHunt 存在已付款参与者时不能取消活动
func CanCancelHunt(paidCount int64) error {
	if paidCount > 0 {
		return &GuardError{Reasons: []string{"存在已确认付款（payment confirmed）的参与者，无法取消活动"}}
	}
	return nil
}
