package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"aurora-addict/backend/internal/model"
)

func setupTestExportService() (ExportService, *testRepos) {
	repos := newTestRepos()
	return NewExportService(repos.repo, "https://aurora.example.com", zap.NewNop()), repos
}

func TestExportService_Roster_NonOwner(t *testing.T) {
	svc, repos := setupTestExportService()
	hunt := repos.seedHunt(&model.Hunt{IsPublic: true})

	_, _, err := svc.ExportRoster(context.Background(), hunt.HuntID, "mallory")
	if !errors.Is(err, ErrNotHuntOwner) {
		t.Errorf("期望 ErrNotHuntOwner，实际: %v", err)
	}
}

func TestExportService_Roster_GroupsByStatus(t *testing.T) {
	svc, repos := setupTestExportService()
	hunt := repos.seedHunt(&model.Hunt{IsPublic: true, Capacity: intPtr(1), AllowWaitlist: true, Title: "罗弗敦"})
	repos.seedParticipant(&model.Participant{HuntID: hunt.HuntID, UserID: "w", Status: model.ParticipantWaitlisted, WaitlistPosition: intPtr(1)}, 0)
	repos.seedParticipant(&model.Participant{HuntID: hunt.HuntID, UserID: "c", Status: model.ParticipantConfirmed}, time.Minute)

	buf, filename, err := svc.ExportRoster(context.Background(), hunt.HuntID, hunt.OwnerID)
	if err != nil {
		t.Fatalf("导出应成功: %v", err)
	}
	if !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("文件名应为 xlsx，实际 %s", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("读取导出文件失败: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("参与者")
	if err != nil {
		t.Fatalf("读取工作表失败: %v", err)
	}
	// 标题 + 表头 + 组织者 + c + w
	if len(rows) != 5 {
		t.Fatalf("期望 5 行，实际 %d", len(rows))
	}
	if rows[2][1] != "已确认" || rows[4][0] != "w" || rows[4][3] != "1" {
		t.Errorf("应按 confirmed → waitlisted 分组，实际 %v", rows[2:])
	}
}

func TestExportService_Calendar(t *testing.T) {
	svc, repos := setupTestExportService()
	hunt := repos.seedHunt(&model.Hunt{IsPublic: false, Title: "特罗姆瑟追光", LocationName: "Tromsø"})

	buf, filename, err := svc.ExportCalendar(context.Background(), hunt.HuntID)
	if err != nil {
		t.Fatalf("导出日历应成功: %v", err)
	}
	body := buf.String()
	for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:特罗姆瑟追光", "LOCATION:Tromsø", hunt.HuntID + "@aurora-addict"} {
		if !strings.Contains(body, want) {
			t.Errorf("日历内容缺少 %q", want)
		}
	}
	if filename != "hunt_"+hunt.HuntID+".ics" {
		t.Errorf("文件名错误: %s", filename)
	}
}

func TestExportService_Calendar_NotFound(t *testing.T) {
	svc, _ := setupTestExportService()

	_, _, err := svc.ExportCalendar(context.Background(), "missing")
	if !errors.Is(err, ErrHuntNotFound) {
		t.Errorf("期望 ErrHuntNotFound，实际: %v", err)
	}
}
