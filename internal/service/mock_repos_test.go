package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"aurora-addict/backend/internal/model"
	"aurora-addict/backend/internal/repository"
	pkgerrors "aurora-addict/backend/pkg/errors"
)

// ── Mock HuntRepository ──

type mockHuntRepo struct {
	hunts        map[string]*model.Hunt
	participants *mockParticipantRepo
	seq          int
}

func newMockHuntRepo(participants *mockParticipantRepo) *mockHuntRepo {
	return &mockHuntRepo{hunts: make(map[string]*model.Hunt), participants: participants}
}

func (m *mockHuntRepo) Create(_ context.Context, hunt *model.Hunt) error {
	if hunt.HuntID == "" {
		m.seq++
		hunt.HuntID = fmt.Sprintf("hunt-%d", m.seq)
	}
	if hunt.Version == 0 {
		hunt.Version = 1
	}
	cp := *hunt
	m.hunts[hunt.HuntID] = &cp
	return nil
}

func (m *mockHuntRepo) GetByID(_ context.Context, id string) (*model.Hunt, error) {
	if h, ok := m.hunts[id]; ok {
		cp := *h
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockHuntRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Hunt, error) {
	return m.GetByID(ctx, id)
}

func (m *mockHuntRepo) Update(_ context.Context, hunt *model.Hunt) error {
	stored, ok := m.hunts[hunt.HuntID]
	if !ok || stored.Version != hunt.Version {
		return pkgerrors.ErrOptimisticLock
	}
	hunt.Version++
	cp := *hunt
	m.hunts[hunt.HuntID] = &cp
	return nil
}

func (m *mockHuntRepo) Delete(_ context.Context, id string) error {
	delete(m.hunts, id)
	return nil
}

func (m *mockHuntRepo) ListPublic(_ context.Context, from time.Time, offset, limit int) ([]model.Hunt, int64, error) {
	var result []model.Hunt
	for _, h := range m.hunts {
		if h.IsPublic && !h.HideFromPublic && h.EndDate.After(from) {
			result = append(result, *h)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartDate.Before(result[j].StartDate) })
	total := int64(len(result))
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *mockHuntRepo) ListByUser(_ context.Context, userID string) ([]model.Hunt, error) {
	var result []model.Hunt
	for _, p := range m.participants.rows {
		if p.UserID == userID && p.Status != model.ParticipantCancelled {
			if h, ok := m.hunts[p.HuntID]; ok {
				result = append(result, *h)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartDate.Before(result[j].StartDate) })
	return result, nil
}

// ── Mock ParticipantRepository ──

type mockParticipantRepo struct {
	rows map[string]*model.Participant // key: huntID/userID
	seq  int
}

func newMockParticipantRepo() *mockParticipantRepo {
	return &mockParticipantRepo{rows: make(map[string]*model.Participant)}
}

func participantKey(huntID, userID string) string { return huntID + "/" + userID }

func (m *mockParticipantRepo) Create(_ context.Context, p *model.Participant) error {
	key := participantKey(p.HuntID, p.UserID)
	if _, exists := m.rows[key]; exists {
		return fmt.Errorf("duplicate key value violates unique constraint uq_hunt_participants_hunt_user")
	}
	if p.ParticipantID == "" {
		m.seq++
		p.ParticipantID = fmt.Sprintf("p-%d", m.seq)
	}
	cp := *p
	m.rows[key] = &cp
	return nil
}

func (m *mockParticipantRepo) Save(_ context.Context, p *model.Participant) error {
	key := participantKey(p.HuntID, p.UserID)
	if _, ok := m.rows[key]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *p
	m.rows[key] = &cp
	return nil
}

func (m *mockParticipantRepo) GetByHuntAndUser(_ context.Context, huntID, userID string) (*model.Participant, error) {
	if p, ok := m.rows[participantKey(huntID, userID)]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockParticipantRepo) GetByHuntAndUserForUpdate(ctx context.Context, huntID, userID string) (*model.Participant, error) {
	return m.GetByHuntAndUser(ctx, huntID, userID)
}

func (m *mockParticipantRepo) ListByHunt(_ context.Context, huntID string, statuses ...model.ParticipantStatus) ([]model.Participant, error) {
	var result []model.Participant
	for _, p := range m.rows {
		if p.HuntID != huntID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, p.Status) {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JoinedAt.Before(result[j].JoinedAt) })
	return result, nil
}

func (m *mockParticipantRepo) ListWaitlist(ctx context.Context, huntID string, limit int) ([]model.Participant, error) {
	list, _ := m.ListByHunt(ctx, huntID, model.ParticipantWaitlisted)
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].WaitlistPosition, list[j].WaitlistPosition
		switch {
		case a == nil && b == nil:
			return list[i].JoinedAt.Before(list[j].JoinedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a < *b
		default:
			return list[i].JoinedAt.Before(list[j].JoinedAt)
		}
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *mockParticipantRepo) CountByStatus(_ context.Context, huntID string, status model.ParticipantStatus, excludeUserID string) (int64, error) {
	var n int64
	for _, p := range m.rows {
		if p.HuntID == huntID && p.Status == status && p.UserID != excludeUserID {
			n++
		}
	}
	return n, nil
}

func (m *mockParticipantRepo) CountPaid(_ context.Context, huntID string) (int64, error) {
	var n int64
	for _, p := range m.rows {
		if p.HuntID == huntID && p.PaidAt != nil {
			n++
		}
	}
	return n, nil
}

func (m *mockParticipantRepo) CountPendingWithPayment(_ context.Context, huntID string) (int64, error) {
	var n int64
	for _, p := range m.rows {
		if p.HuntID == huntID && p.Status == model.ParticipantPending && p.PaymentStatus.InFlight() {
			n++
		}
	}
	return n, nil
}

func (m *mockParticipantRepo) MaxWaitlistPosition(_ context.Context, huntID string) (int, error) {
	last := 0
	for _, p := range m.rows {
		if p.HuntID == huntID && p.Status == model.ParticipantWaitlisted && p.WaitlistPosition != nil && *p.WaitlistPosition > last {
			last = *p.WaitlistPosition
		}
	}
	return last, nil
}

func (m *mockParticipantRepo) ExpirePending(_ context.Context, huntID string, now time.Time) ([]model.Participant, error) {
	var expired []model.Participant
	for _, p := range m.rows {
		if huntID != "" && p.HuntID != huntID {
			continue
		}
		if p.Status != model.ParticipantPending || p.RequestExpiresAt == nil || p.RequestExpiresAt.After(now) {
			continue
		}
		p.Status = model.ParticipantCancelled
		p.RequestExpiresAt = nil
		p.PaymentStatus = model.PaymentNone
		p.UpdatedAt = now
		expired = append(expired, *p)
	}
	return expired, nil
}

func (m *mockParticipantRepo) DeleteByHunt(_ context.Context, huntID string) error {
	for key, p := range m.rows {
		if p.HuntID == huntID {
			delete(m.rows, key)
		}
	}
	return nil
}

// get 测试断言使用
func (m *mockParticipantRepo) get(huntID, userID string) *model.Participant {
	return m.rows[participantKey(huntID, userID)]
}

func containsStatus(list []model.ParticipantStatus, s model.ParticipantStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ── Mock UserProfileRepository ──

type mockUserProfileRepo struct {
	joined map[string]int
}

func newMockUserProfileRepo() *mockUserProfileRepo {
	return &mockUserProfileRepo{joined: make(map[string]int)}
}

func (m *mockUserProfileRepo) GetByID(_ context.Context, userID string) (*model.UserProfile, error) {
	n, ok := m.joined[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.UserProfile{UserID: userID, HuntsJoined: n}, nil
}

func (m *mockUserProfileRepo) IncrementHuntsJoined(_ context.Context, userID string) error {
	m.joined[userID]++
	return nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	list []model.Notification
	seq  int
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) BatchCreate(_ context.Context, list []model.Notification) error {
	for _, n := range list {
		m.seq++
		n.NotificationID = fmt.Sprintf("n-%d", m.seq)
		n.CreatedAt = time.Now()
		m.list = append(m.list, n)
	}
	return nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	var result []model.Notification
	for i := len(m.list) - 1; i >= 0; i-- {
		n := m.list[i]
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, n)
	}
	total := int64(len(result))
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, notificationID, userID string) error {
	for i := range m.list {
		if m.list[i].NotificationID == notificationID && m.list[i].UserID == userID {
			now := time.Now()
			m.list[i].IsRead = true
			m.list[i].ReadAt = &now
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// countType 统计某用户收到的指定类型通知
func (m *mockNotificationRepo) countType(userID, typ string) int {
	n := 0
	for _, item := range m.list {
		if item.UserID == userID && item.Type == typ {
			n++
		}
	}
	return n
}

// ── 测试装配 ──

type testRepos struct {
	repo          *repository.Repository
	hunts         *mockHuntRepo
	participants  *mockParticipantRepo
	profiles      *mockUserProfileRepo
	notifications *mockNotificationRepo
}

func newTestRepos() *testRepos {
	participants := newMockParticipantRepo()
	hunts := newMockHuntRepo(participants)
	profiles := newMockUserProfileRepo()
	notifications := newMockNotificationRepo()
	return &testRepos{
		repo: &repository.Repository{
			Hunt:         hunts,
			Participant:  participants,
			UserProfile:  profiles,
			Notification: notifications,
		},
		hunts:         hunts,
		participants:  participants,
		profiles:      profiles,
		notifications: notifications,
	}
}

// seedHunt 直接写入一个活动及组织者参与记录
func (r *testRepos) seedHunt(h *model.Hunt) *model.Hunt {
	if h.OwnerID == "" {
		h.OwnerID = "owner"
	}
	if h.Title == "" {
		h.Title = "极光观测团"
	}
	if h.Timezone == "" {
		h.Timezone = "UTC"
	}
	if h.StartDate.IsZero() {
		h.StartDate = time.Now().Add(30 * 24 * time.Hour)
	}
	if h.EndDate.IsZero() {
		h.EndDate = h.StartDate.Add(6 * time.Hour)
	}
	_ = r.hunts.Create(context.Background(), h)
	_ = r.participants.Create(context.Background(), &model.Participant{
		HuntID:   h.HuntID,
		UserID:   h.OwnerID,
		Status:   model.ParticipantConfirmed,
		JoinedAt: time.Now().Add(-time.Hour),
	})
	return h
}

// seedParticipant 直接写入参与记录，joinedOffset 用于控制申请顺序
func (r *testRepos) seedParticipant(p *model.Participant, joinedOffset time.Duration) *model.Participant {
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().Add(-time.Hour + joinedOffset)
	}
	_ = r.participants.Create(context.Background(), p)
	return p
}

func intPtr(v int) *int { return &v }
