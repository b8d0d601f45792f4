package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"aurora-addict/backend/internal/model"
	"aurora-addict/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成导出文件失败")

// ExportService 导出业务接口
//
// 设计说明：
//   - 参与者名单导出为 Excel (.xlsx)，仅组织者可用
//   - 活动日历导出为 iCalendar (.ics)，任何拿到链接的人都可订阅
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	ExportRoster(ctx context.Context, huntID, callerID string) (*bytes.Buffer, string, error)
	ExportCalendar(ctx context.Context, huntID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo    *repository.Repository
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, baseURL string, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, baseURL: baseURL, logger: logger, now: time.Now}
}

// ═══════════════════════════════════════════════════════════
// ExportRoster 导出参与者名单为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "参与者"，第一行为活动标题
//   - 按状态分组（confirmed → pending → waitlisted → cancelled），组内按申请时间排序
//   - 时间按活动时区展示

var rosterStatusOrder = []model.ParticipantStatus{
	model.ParticipantConfirmed,
	model.ParticipantPending,
	model.ParticipantWaitlisted,
	model.ParticipantCancelled,
}

var rosterStatusNames = map[model.ParticipantStatus]string{
	model.ParticipantConfirmed:  "已确认",
	model.ParticipantPending:    "待审核",
	model.ParticipantWaitlisted: "候补",
	model.ParticipantCancelled:  "已取消",
}

var paymentStatusNames = map[model.PaymentStatus]string{
	model.PaymentNone:       "-",
	model.PaymentPending:    "待付款",
	model.PaymentMarkedPaid: "已标记付款",
	model.PaymentConfirmed:  "已确认收款",
}

func (s *exportService) ExportRoster(ctx context.Context, huntID, callerID string) (*bytes.Buffer, string, error) {
	// 1. 查询活动并校验组织者
	hunt, err := s.repo.Hunt.GetByID(ctx, huntID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrHuntNotFound
		}
		s.logger.Error("查询活动失败", zap.String("hunt_id", huntID), zap.Error(err))
		return nil, "", err
	}
	if hunt.OwnerID != callerID {
		return nil, "", ErrNotHuntOwner
	}

	// 2. 查询全部参与记录
	list, err := s.repo.Participant.ListByHunt(ctx, huntID)
	if err != nil {
		s.logger.Error("查询参与者失败", zap.String("hunt_id", huntID), zap.Error(err))
		return nil, "", err
	}
	byStatus := make(map[model.ParticipantStatus][]model.Participant)
	for _, p := range list {
		byStatus[p.Status] = append(byStatus[p.Status], p)
	}

	loc, err := time.LoadLocation(hunt.Timezone)
	if err != nil {
		loc = time.UTC
	}
	formatTime := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.In(loc).Format("2006-01-02 15:04")
	}

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "参与者"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 28)
	f.SetColWidth(sheetName, "B", "C", 14)
	f.SetColWidth(sheetName, "D", "D", 10)
	f.SetColWidth(sheetName, "E", "G", 20)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s 参与者名单", hunt.Title))
	f.MergeCell(sheetName, "A1", "G1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	f.SetSheetRow(sheetName, "A2", &[]interface{}{"用户", "状态", "付款状态", "候补序号", "申请时间", "申请截止", "付款时间"})
	f.SetCellStyle(sheetName, "A2", "G2", headerStyle)

	row := 3
	for _, status := range rosterStatusOrder {
		for _, p := range byStatus[status] {
			userLabel := p.UserID
			if p.UserID == hunt.OwnerID {
				userLabel += "（组织者）"
			}
			waitlist := "-"
			if p.WaitlistPosition != nil {
				waitlist = fmt.Sprintf("%d", *p.WaitlistPosition)
			}
			joinedAt := p.JoinedAt
			cellName, _ := excelize.CoordinatesToCellName(1, row)
			f.SetSheetRow(sheetName, cellName, &[]interface{}{
				userLabel,
				rosterStatusNames[p.Status],
				paymentStatusNames[p.PaymentStatus],
				waitlist,
				formatTime(&joinedAt),
				formatTime(p.RequestExpiresAt),
				formatTime(p.PaidAt),
			})
			row++
		}
	}

	// 4. 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("参与者名单_%s.xlsx", hunt.Title)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportCalendar 导出活动为 iCalendar
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportCalendar(ctx context.Context, huntID string) (*bytes.Buffer, string, error) {
	hunt, err := s.repo.Hunt.GetByID(ctx, huntID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrHuntNotFound
		}
		s.logger.Error("查询活动失败", zap.String("hunt_id", huntID), zap.Error(err))
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//aurora-addict//hunts//CN")
	cal.SetXWRCalName(hunt.Title)
	cal.SetXWRTimezone(hunt.Timezone)

	event := cal.AddEvent(hunt.HuntID + "@aurora-addict")
	event.SetDtStampTime(s.now())
	event.SetCreatedTime(hunt.CreatedAt)
	event.SetModifiedAt(hunt.UpdatedAt)
	event.SetStartAt(hunt.StartDate)
	event.SetEndAt(hunt.EndDate)
	event.SetSummary(hunt.Title)
	if hunt.Description != "" {
		event.SetDescription(hunt.Description)
	}
	if hunt.LocationName != "" {
		event.SetLocation(hunt.LocationName)
	}
	if s.baseURL != "" {
		event.SetURL(fmt.Sprintf("%s/hunts/%s", s.baseURL, hunt.HuntID))
	}

	buf := bytes.NewBufferString(cal.Serialize())
	return buf, fmt.Sprintf("hunt_%s.ics", hunt.HuntID), nil
}
