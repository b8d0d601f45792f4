//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"aurora-addict/backend/internal/model"
	"aurora-addict/backend/internal/repository"
	"aurora-addict/backend/internal/service"
	"aurora-addict/backend/pkg/database"
	pkgerrors "aurora-addict/backend/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=aurora password=aurora_password dbname=aurora_addict_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	// 与生产环境一致，使用嵌入的迁移文件建表
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "执行迁移失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func TestRunMigrations_Idempotent(t *testing.T) {
	sqlDB, err := testDB.DB()
	if err != nil {
		t.Fatalf("获取 sql.DB 失败: %v", err)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		t.Fatalf("重复执行迁移应无变化且不报错: %v", err)
	}

	var row struct {
		Version int64
		Dirty   bool
	}
	if err := testDB.Raw("SELECT version, dirty FROM aurora_schema_migrations").Scan(&row).Error; err != nil {
		t.Fatalf("读取迁移版本表失败: %v", err)
	}
	if row.Version != 2 || row.Dirty {
		t.Errorf("期望 version=2 且非 dirty，实际 %+v", row)
	}
	if !testDB.Migrator().HasColumn(&model.Participant{}, "join_counted") {
		t.Error("hunt_participants 应包含 join_counted 列")
	}
}

// createTestHunt 创建一个测试活动并返回清理函数
func createTestHunt(t *testing.T, capacity *int) (*model.Hunt, func()) {
	t.Helper()
	ctx := context.Background()

	start := time.Now().Add(72 * time.Hour)
	hunt := &model.Hunt{
		OwnerID:   fmt.Sprintf("owner-%d", time.Now().UnixNano()),
		Title:     "测试极光团",
		StartDate: start,
		EndDate:   start.Add(6 * time.Hour),
		Timezone:  "UTC",
		IsPublic:  true,
		Capacity:  capacity,
	}
	if err := testDB.WithContext(ctx).Create(hunt).Error; err != nil {
		t.Fatalf("创建活动失败: %v", err)
	}

	cleanup := func() {
		testDB.Where("hunt_id = ?", hunt.HuntID).Delete(&model.Participant{})
		testDB.Where("hunt_id = ?", hunt.HuntID).Delete(&model.Hunt{})
	}
	return hunt, cleanup
}

// ═══════════════════════════════════════════════════════════
// Test: Transaction
// ═══════════════════════════════════════════════════════════

func TestTransaction_RollbackOnError(t *testing.T) {
	hunt, cleanup := createTestHunt(t, nil)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Participant.Create(ctx, &model.Participant{
			HuntID: hunt.HuntID,
			UserID: "rollback-user",
			Status: model.ParticipantConfirmed,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("期望返回 fn 的错误，实际: %v", err)
	}

	if _, err := repo.Participant.GetByHuntAndUser(ctx, hunt.HuntID, "rollback-user"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("期望回滚后查不到记录，实际: %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Optimistic Lock
// ═══════════════════════════════════════════════════════════

func TestHuntRepo_Update_OptimisticLock(t *testing.T) {
	hunt, cleanup := createTestHunt(t, nil)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	copy1, _ := repo.Hunt.GetByID(ctx, hunt.HuntID)
	copy2, _ := repo.Hunt.GetByID(ctx, hunt.HuntID)

	copy1.Title = "第一次修改"
	if err := repo.Hunt.Update(ctx, copy1); err != nil {
		t.Fatalf("第一次更新应成功: %v", err)
	}
	if copy1.Version != 2 {
		t.Errorf("期望版本号 2，实际 %d", copy1.Version)
	}

	copy2.Title = "并发修改"
	if err := repo.Hunt.Update(ctx, copy2); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Fatalf("期望 ErrOptimisticLock，实际: %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Participant queries
// ═══════════════════════════════════════════════════════════

func TestParticipantRepo_ExpirePending(t *testing.T) {
	hunt, cleanup := createTestHunt(t, nil)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	for _, p := range []*model.Participant{
		{HuntID: hunt.HuntID, UserID: "expired", Status: model.ParticipantPending, RequestExpiresAt: &past, PaymentStatus: model.PaymentPending},
		{HuntID: hunt.HuntID, UserID: "fresh", Status: model.ParticipantPending, RequestExpiresAt: &future},
	} {
		if err := repo.Participant.Create(ctx, p); err != nil {
			t.Fatalf("创建参与记录失败: %v", err)
		}
	}

	expired, err := repo.Participant.ExpirePending(ctx, hunt.HuntID, now)
	if err != nil {
		t.Fatalf("ExpirePending 失败: %v", err)
	}
	if len(expired) != 1 || expired[0].UserID != "expired" {
		t.Fatalf("期望仅过期 1 条 expired，实际 %+v", expired)
	}

	got, _ := repo.Participant.GetByHuntAndUser(ctx, hunt.HuntID, "expired")
	if got.Status != model.ParticipantCancelled || got.PaymentStatus != model.PaymentNone || got.RequestExpiresAt != nil {
		t.Errorf("过期记录字段未正确清理: %+v", got)
	}

	// 再次执行不应重复处理
	again, _ := repo.Participant.ExpirePending(ctx, hunt.HuntID, now)
	if len(again) != 0 {
		t.Errorf("期望第二次无记录过期，实际 %d", len(again))
	}
}

func TestParticipantRepo_ListWaitlist_FIFO(t *testing.T) {
	hunt, cleanup := createTestHunt(t, nil)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	for i, user := range []string{"w-c", "w-a", "w-b"} {
		pos := []int{3, 1, 2}[i]
		if err := repo.Participant.Create(ctx, &model.Participant{
			HuntID: hunt.HuntID, UserID: user, Status: model.ParticipantWaitlisted, WaitlistPosition: &pos,
		}); err != nil {
			t.Fatalf("创建候补记录失败: %v", err)
		}
	}

	list, err := repo.Participant.ListWaitlist(ctx, hunt.HuntID, 2)
	if err != nil {
		t.Fatalf("ListWaitlist 失败: %v", err)
	}
	if len(list) != 2 || list[0].UserID != "w-a" || list[1].UserID != "w-b" {
		t.Fatalf("候补顺序错误: %+v", list)
	}

	last, _ := repo.Participant.MaxWaitlistPosition(ctx, hunt.HuntID)
	if last != 3 {
		t.Errorf("期望最大候补序号 3，实际 %d", last)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Concurrent joins
// ═══════════════════════════════════════════════════════════

// 并发加入时活动行锁保证已确认人数不超过上限
func TestParticipantService_Join_ConcurrentCapacity(t *testing.T) {
	const (
		capacity = 3
		joiners  = 24
	)

	for _, allowWaitlist := range []bool{false, true} {
		t.Run(fmt.Sprintf("allow_waitlist=%v", allowWaitlist), func(t *testing.T) {
			hunt, cleanup := createTestHunt(t, intPtr(capacity))
			defer cleanup()
			if allowWaitlist {
				if err := testDB.Model(&model.Hunt{}).Where("hunt_id = ?", hunt.HuntID).Update("allow_waitlist", true).Error; err != nil {
					t.Fatalf("开启候补失败: %v", err)
				}
			}

			prefix := "racer-" + hunt.HuntID[:8] + "-"
			defer func() {
				testDB.Where("user_id LIKE ?", prefix+"%").Delete(&model.Notification{})
				testDB.Where("user_id LIKE ?", prefix+"%").Delete(&model.UserProfile{})
				testDB.Where("user_id = ?", hunt.OwnerID).Delete(&model.Notification{})
			}()

			repo := repository.NewRepository(testDB)
			svc := service.NewParticipantService(repo, service.DefaultHuntPolicy(), zap.NewNop())
			ctx := context.Background()

			errs := make([]error, joiners)
			start := make(chan struct{})
			var wg sync.WaitGroup
			for i := 0; i < joiners; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					_, errs[i] = svc.Join(ctx, hunt.HuntID, fmt.Sprintf("%s%02d", prefix, i))
				}(i)
			}
			close(start)
			wg.Wait()

			var full int
			for i, err := range errs {
				switch {
				case err == nil:
				case errors.Is(err, service.ErrHuntFull) && !allowWaitlist:
					full++
				default:
					t.Errorf("第 %d 个加入请求返回非预期错误: %v", i, err)
				}
			}

			confirmed, err := repo.Participant.CountByStatus(ctx, hunt.HuntID, model.ParticipantConfirmed, hunt.OwnerID)
			if err != nil {
				t.Fatalf("统计已确认人数失败: %v", err)
			}
			if confirmed != capacity {
				t.Fatalf("期望已确认 %d 人，实际 %d", capacity, confirmed)
			}

			waitlist, err := repo.Participant.ListWaitlist(ctx, hunt.HuntID, 0)
			if err != nil {
				t.Fatalf("查询候补失败: %v", err)
			}
			if !allowWaitlist {
				if full != joiners-capacity || len(waitlist) != 0 {
					t.Errorf("期望 %d 个 ErrHuntFull 且无候补，实际 %d / %d", joiners-capacity, full, len(waitlist))
				}
				return
			}

			// 候补序号连续且不重复
			if len(waitlist) != joiners-capacity {
				t.Fatalf("期望候补 %d 人，实际 %d", joiners-capacity, len(waitlist))
			}
			positions := make([]int, 0, len(waitlist))
			for _, p := range waitlist {
				if p.WaitlistPosition == nil {
					t.Fatalf("候补记录缺少序号: %+v", p)
				}
				positions = append(positions, *p.WaitlistPosition)
			}
			sort.Ints(positions)
			for i, pos := range positions {
				if pos != i+1 {
					t.Fatalf("候补序号应为 1..%d，实际 %v", len(positions), positions)
				}
			}

			// 每位确认者的 hunts_joined 恰好 +1
			var profiles []model.UserProfile
			testDB.Where("user_id LIKE ?", prefix+"%").Find(&profiles)
			var total int
			for _, profile := range profiles {
				total += profile.HuntsJoined
			}
			if total != capacity {
				t.Errorf("期望 hunts_joined 合计 %d，实际 %d", capacity, total)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

func TestUserProfileRepo_IncrementHuntsJoined_Upsert(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	userID := fmt.Sprintf("profile-%d", time.Now().UnixNano())
	defer testDB.Where("user_id = ?", userID).Delete(&model.UserProfile{})

	for i := 0; i < 2; i++ {
		if err := repo.UserProfile.IncrementHuntsJoined(ctx, userID); err != nil {
			t.Fatalf("IncrementHuntsJoined 失败: %v", err)
		}
	}
	profile, err := repo.UserProfile.GetByID(ctx, userID)
	if err != nil {
		t.Fatalf("查询资料失败: %v", err)
	}
	if profile.HuntsJoined != 2 {
		t.Errorf("期望 hunts_joined=2，实际 %d", profile.HuntsJoined)
	}
}
