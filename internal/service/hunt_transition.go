package service

import (
	"context"
	"fmt"
	"time"

	"aurora-addict/backend/internal/model"
	"aurora-addict/backend/internal/repository"
)

// ── 通知批次 ──

const relatedTypeHunt = "hunt"

// notificationBatch 事务内累积的通知，与状态变更一起提交
type notificationBatch []model.Notification

func (b *notificationBatch) add(userID, typ string, hunt *model.Hunt, title, content string) {
	relatedType := relatedTypeHunt
	huntID := hunt.HuntID
	*b = append(*b, model.Notification{
		UserID:      userID,
		Type:        typ,
		Title:       title,
		Content:     content,
		RelatedType: &relatedType,
		RelatedID:   &huntID,
	})
}

func (b notificationBatch) flush(ctx context.Context, txRepo *repository.Repository) error {
	if len(b) == 0 {
		return nil
	}
	return txRepo.Notification.BatchCreate(ctx, b)
}

// ── 参与者状态流转 ──

// transitionResult 设置变更后自动流转的参与者
type transitionResult struct {
	Promoted     []string
	Accepted     []string
	Waitlisted   []string
	StillPending []string
}

// confirmParticipant 将参与者置为 confirmed 并累加其参与次数
func confirmParticipant(ctx context.Context, txRepo *repository.Repository, p *model.Participant, now time.Time) error {
	if err := p.TransitionTo(model.ParticipantConfirmed); err != nil {
		return err
	}
	if err := countJoin(ctx, txRepo, p); err != nil {
		return err
	}
	p.UpdatedAt = now
	if err := txRepo.Participant.Save(ctx, p); err != nil {
		return fmt.Errorf("保存参与记录失败: %w", err)
	}
	return nil
}

// countJoin 参与记录首次确认时累加 hunts_joined
// 调用方负责随后保存 p，使 JoinCounted 与计数在同一事务内落库
func countJoin(ctx context.Context, txRepo *repository.Repository, p *model.Participant) error {
	if p.JoinCounted {
		return nil
	}
	if err := txRepo.UserProfile.IncrementHuntsJoined(ctx, p.UserID); err != nil {
		return fmt.Errorf("更新参与次数失败: %w", err)
	}
	p.JoinCounted = true
	return nil
}

// confirmedCount 已确认人数（不含组织者本人）
func confirmedCount(ctx context.Context, txRepo *repository.Repository, hunt *model.Hunt) (int64, error) {
	return txRepo.Participant.CountByStatus(ctx, hunt.HuntID, model.ParticipantConfirmed, hunt.OwnerID)
}

// promoteWaitlisted 按 (waitlist_position, joined_at) 顺序转正最多 limit 名候补，limit < 0 表示不限
// 转正人数同时受剩余名额限制；其余候补的序号保持不变
func promoteWaitlisted(ctx context.Context, txRepo *repository.Repository, hunt *model.Hunt, limit int, now time.Time, batch *notificationBatch) ([]string, error) {
	confirmed, err := confirmedCount(ctx, txRepo, hunt)
	if err != nil {
		return nil, err
	}
	room := hunt.RemainingSpots(confirmed)
	if room == 0 || limit == 0 {
		return nil, nil
	}
	if room > 0 && (limit < 0 || limit > room) {
		limit = room
	}

	queue, err := txRepo.Participant.ListWaitlist(ctx, hunt.HuntID, limit)
	if err != nil {
		return nil, err
	}

	promoted := make([]string, 0, len(queue))
	for i := range queue {
		p := &queue[i]
		if err := confirmParticipant(ctx, txRepo, p, now); err != nil {
			return nil, err
		}
		promoted = append(promoted, p.UserID)
		batch.add(p.UserID, model.NotifyWaitlistPromoted, hunt,
			"候补转正", fmt.Sprintf("你已从「%s」的候补名单转为正式参与者", hunt.Title))
	}
	return promoted, nil
}

// promoteNextWaitlisted 有空余名额时转正队首候补，返回是否有人转正
func promoteNextWaitlisted(ctx context.Context, txRepo *repository.Repository, hunt *model.Hunt, now time.Time, batch *notificationBatch) (bool, error) {
	promoted, err := promoteWaitlisted(ctx, txRepo, hunt, 1, now, batch)
	if err != nil {
		return false, err
	}
	return len(promoted) > 0, nil
}

// acceptPendingOnPublic 私密活动转为公开：按申请顺序自动通过 pending 申请
// 名额不足时，开启候补则追加到候补队尾，否则保持 pending 等待组织者处理或自动过期
func acceptPendingOnPublic(ctx context.Context, txRepo *repository.Repository, hunt *model.Hunt, now time.Time, batch *notificationBatch, result *transitionResult) error {
	pending, err := txRepo.Participant.ListByHunt(ctx, hunt.HuntID, model.ParticipantPending)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	confirmed, err := confirmedCount(ctx, txRepo, hunt)
	if err != nil {
		return err
	}
	available := hunt.RemainingSpots(confirmed)

	nextPos := 0
	for i := range pending {
		p := &pending[i]
		if p.UserID == hunt.OwnerID {
			continue
		}

		if available != 0 {
			if err := confirmParticipant(ctx, txRepo, p, now); err != nil {
				return err
			}
			if available > 0 {
				available--
			}
			result.Accepted = append(result.Accepted, p.UserID)
			batch.add(p.UserID, model.NotifyAutoAccepted, hunt,
				"申请已通过", fmt.Sprintf("「%s」已转为公开活动，你的申请已自动通过", hunt.Title))
			continue
		}

		if !hunt.AllowWaitlist {
			result.StillPending = append(result.StillPending, p.UserID)
			continue
		}

		if nextPos == 0 {
			last, err := txRepo.Participant.MaxWaitlistPosition(ctx, hunt.HuntID)
			if err != nil {
				return err
			}
			nextPos = last + 1
		}
		if err := p.TransitionTo(model.ParticipantWaitlisted); err != nil {
			return err
		}
		pos := nextPos
		p.WaitlistPosition = &pos
		p.UpdatedAt = now
		nextPos++
		if err := txRepo.Participant.Save(ctx, p); err != nil {
			return fmt.Errorf("保存参与记录失败: %w", err)
		}
		result.Waitlisted = append(result.Waitlisted, p.UserID)
		batch.add(p.UserID, model.NotifyWaitlisted, hunt,
			"已进入候补", fmt.Sprintf("「%s」名额已满，你已进入候补第 %d 位", hunt.Title, pos))
	}
	return nil
}

// syncPaymentMode 收费模式变更后同步未付款参与者的付款状态
// 改为免费：撤销进行中的付款流程；改为收费：待审核与候补的参与者进入待付款
func syncPaymentMode(ctx context.Context, txRepo *repository.Repository, hunt *model.Hunt, now time.Time) error {
	rows, err := txRepo.Participant.ListByHunt(ctx, hunt.HuntID,
		model.ParticipantPending, model.ParticipantWaitlisted, model.ParticipantConfirmed)
	if err != nil {
		return err
	}

	for i := range rows {
		p := &rows[i]
		if p.UserID == hunt.OwnerID || p.HasPaid() {
			continue
		}

		var target model.PaymentStatus
		switch {
		case !hunt.IsPaid && p.PaymentStatus.InFlight():
			target = model.PaymentNone
		case hunt.IsPaid && p.PaymentStatus == model.PaymentNone && p.Status != model.ParticipantConfirmed:
			target = model.PaymentPending
		default:
			continue
		}

		if err := p.SetPaymentStatus(target); err != nil {
			return err
		}
		p.UpdatedAt = now
		if err := txRepo.Participant.Save(ctx, p); err != nil {
			return fmt.Errorf("保存参与记录失败: %w", err)
		}
	}
	return nil
}

// refreshPendingExpiry 活动开始时间变更后重新计算待审核申请的过期时间
func refreshPendingExpiry(ctx context.Context, txRepo *repository.Repository, hunt *model.Hunt, policy HuntPolicy, now time.Time) error {
	pending, err := txRepo.Participant.ListByHunt(ctx, hunt.HuntID, model.ParticipantPending)
	if err != nil {
		return err
	}
	expiresAt := policy.ExpirationDate(hunt.StartDate, now)
	for i := range pending {
		p := &pending[i]
		p.RequestExpiresAt = &expiresAt
		p.UpdatedAt = now
		if err := txRepo.Participant.Save(ctx, p); err != nil {
			return fmt.Errorf("保存参与记录失败: %w", err)
		}
	}
	return nil
}

// applySettingsTransitions 设置修改后的级联流转，与设置更新在同一事务内执行
// 顺序：收费模式同步 → 扩容转正候补 → 私密转公开 → 开始时间变更
func applySettingsTransitions(ctx context.Context, txRepo *repository.Repository, before, after *model.Hunt, policy HuntPolicy, now time.Time, batch *notificationBatch) (*transitionResult, error) {
	result := &transitionResult{}

	if before.IsPaid != after.IsPaid {
		if err := syncPaymentMode(ctx, txRepo, after, now); err != nil {
			return nil, err
		}
	}

	if freed, ok := freedSpots(before.Capacity, after.Capacity); ok {
		promoted, err := promoteWaitlisted(ctx, txRepo, after, freed, now, batch)
		if err != nil {
			return nil, err
		}
		result.Promoted = promoted
	}

	if !before.IsPublic && after.IsPublic {
		if err := acceptPendingOnPublic(ctx, txRepo, after, now, batch, result); err != nil {
			return nil, err
		}
	}

	if !before.StartDate.Equal(after.StartDate) {
		if err := refreshPendingExpiry(ctx, txRepo, after, policy, now); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// freedSpots 扩容新增的名额；改为不限人数时返回 -1（全部候补可转正）
func freedSpots(oldCap, newCap *int) (int, bool) {
	switch {
	case oldCap == nil:
		return 0, false
	case newCap == nil:
		return -1, true
	case *newCap > *oldCap:
		return *newCap - *oldCap, true
	default:
		return 0, false
	}
}
