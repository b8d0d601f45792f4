package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"aurora-addict/backend/internal/dto"
	"aurora-addict/backend/internal/model"
)

func TestNotificationService_ListAndMarkRead(t *testing.T) {
	repos := newTestRepos()
	svc := NewNotificationService(repos.repo, zap.NewNop())
	ctx := context.Background()
	_ = repos.notifications.BatchCreate(ctx, []model.Notification{
		{UserID: "u", Type: model.NotifyRequestApproved, Title: "一"},
		{UserID: "u", Type: model.NotifyWaitlisted, Title: "二"},
		{UserID: "other", Type: model.NotifyWaitlisted, Title: "三"},
	})

	list, total, err := svc.List(ctx, "u", &dto.NotificationListRequest{})
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if total != 2 || list[0].Title != "二" {
		t.Errorf("期望按时间倒序返回本人 2 条通知，实际 total=%d %+v", total, list)
	}

	if err := svc.MarkRead(ctx, list[0].ID, "u"); err != nil {
		t.Fatalf("MarkRead 应成功: %v", err)
	}
	_, unread, _ := svc.List(ctx, "u", &dto.NotificationListRequest{UnreadOnly: true})
	if unread != 1 {
		t.Errorf("期望剩余 1 条未读，实际 %d", unread)
	}
}

func TestNotificationService_MarkRead_OtherUser(t *testing.T) {
	repos := newTestRepos()
	svc := NewNotificationService(repos.repo, zap.NewNop())
	ctx := context.Background()
	_ = repos.notifications.BatchCreate(ctx, []model.Notification{{UserID: "u", Type: model.NotifyHuntCancelled}})

	err := svc.MarkRead(ctx, repos.notifications.list[0].NotificationID, "mallory")
	if !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("期望 ErrNotificationNotFound，实际: %v", err)
	}
}
