package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/24Tech-io/nursepor-stable-sub005/internal/dto"
)

// 汇总页的漂移类型固定排列，导出结果可复现
var issueTypeOrder = []string{
	dto.IssueRogueLegacyFact,
	dto.IssueOrphanCanonicalRecord,
	dto.IssueStaleRequest,
	dto.IssueDuplicateRequests,
	dto.IssueProgressMismatch,
}

// ── 报表模块业务错误 ──

var (
	ErrReportNoIssues     = errors.New("本轮巡检未发现漂移，无需导出")
	ErrReportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ReportService 巡检报表导出接口
//
// 设计说明：
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
//   - Excel 格式：Sheet "巡检汇总" 为各类漂移计数，Sheet "漂移明细" 逐条列出
type ReportService interface {
	// ExportAudit 执行一轮巡检并将结果导出为 Excel
	ExportAudit(ctx context.Context) (*bytes.Buffer, string, error)
}

type reportService struct {
	audit  AuditService
	logger *zap.Logger
}

// NewReportService 创建 ReportService 实例
func NewReportService(audit AuditService, logger *zap.Logger) ReportService {
	return &reportService{audit: audit, logger: logger}
}

func (s *reportService) ExportAudit(ctx context.Context) (*bytes.Buffer, string, error) {
	report, err := s.audit.Run(ctx)
	if err != nil {
		return nil, "", err
	}
	if len(report.Issues) == 0 {
		return nil, "", ErrReportNoIssues
	}

	f := excelize.NewFile()
	defer f.Close()

	// ── Sheet 1: 巡检汇总 ──
	summarySheet := "巡检汇总"
	idx, _ := f.NewSheet(summarySheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(summarySheet, "A", "A", 28)
	f.SetColWidth(summarySheet, "B", "B", 12)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	f.SetCellValue(summarySheet, "A1", fmt.Sprintf("一致性巡检报告 — %s", report.RanAt.Format("2006-01-02 15:04:05")))
	f.MergeCell(summarySheet, "A1", "B1")
	f.SetCellStyle(summarySheet, "A1", "A1", headerStyle)

	f.SetCellValue(summarySheet, "A2", "扫描配对数")
	f.SetCellValue(summarySheet, "B2", report.PairsScanned)
	f.SetCellValue(summarySheet, "A3", "漂移总数")
	f.SetCellValue(summarySheet, "B3", len(report.Issues))

	row := 5
	f.SetCellValue(summarySheet, cell("A", row), "漂移类型")
	f.SetCellValue(summarySheet, cell("B", row), "数量")
	row++
	for _, issueType := range issueTypeOrder {
		count, ok := report.CountsByType[issueType]
		if !ok {
			continue
		}
		f.SetCellValue(summarySheet, cell("A", row), issueType)
		f.SetCellValue(summarySheet, cell("B", row), count)
		row++
	}

	// ── Sheet 2: 漂移明细 ──
	detailSheet := "漂移明细"
	f.NewSheet(detailSheet)

	f.SetColWidth(detailSheet, "A", "A", 24)
	f.SetColWidth(detailSheet, "B", "B", 10)
	f.SetColWidth(detailSheet, "C", "D", 16)
	f.SetColWidth(detailSheet, "E", "E", 48)
	f.SetColWidth(detailSheet, "F", "F", 22)

	headers := []string{"漂移类型", "级别", "学员ID", "课程ID", "详情", "建议动作"}
	for i, h := range headers {
		f.SetCellValue(detailSheet, cell(colName(i), 1), h)
	}
	f.SetCellStyle(detailSheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	for i, issue := range report.Issues {
		r := i + 2
		f.SetCellValue(detailSheet, cell("A", r), issue.Type)
		f.SetCellValue(detailSheet, cell("B", r), issue.Severity)
		f.SetCellValue(detailSheet, cell("C", r), issue.StudentID)
		f.SetCellValue(detailSheet, cell("D", r), issue.CourseID)
		f.SetCellValue(detailSheet, cell("E", r), issue.Details)
		f.SetCellValue(detailSheet, cell("F", r), issue.SuggestedFix.Action)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrReportGenerateFail
	}

	filename := fmt.Sprintf("巡检报告_%s.xlsx", report.RanAt.Format("20060102_150405"))
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
