package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/24Tech-io/nursepor-stable-sub005/internal/dto"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/event"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/model"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/repository"
)

// ── 测试辅助 ──

func setupTestAuditService() (AuditService, *mockLedgerStore, *event.Bus) {
	store := newMockLedgerStore()
	repo := &repository.Repository{
		Course:        newMockCourseRepo(),
		Enrollment:    &mockEnrollmentRepo{store: store},
		LegacyFact:    &mockFactRepo{store: store},
		AccessRequest: &mockRequestRepo{store: store},
		EnrollmentTx:  &mockTxRepo{store: store},
	}
	bus := event.NewBus(zap.NewNop())
	svc := NewAuditService(repo, bus, testEngineConfig(), zap.NewNop())
	return svc, store, bus
}

func seedActiveRecord(store *mockLedgerStore, studentID, courseID string, progress int) {
	store.records[pairKey(studentID, courseID)] = &model.EnrollmentRecord{
		EnrollmentID: store.nextID("enr"), StudentID: studentID, CourseID: courseID,
		Status: model.EnrollmentStatusActive, ProgressPercent: progress,
		VersionedModel: model.VersionedModel{Version: 1},
	}
}

func seedFact(store *mockLedgerStore, studentID, courseID string, progress int) {
	store.facts[pairKey(studentID, courseID)] = &model.EnrollmentFact{
		FactID: store.nextID("fact"), StudentID: studentID, CourseID: courseID,
		ProgressPercent: progress, LastAccessedAt: time.Now().UTC(),
	}
}

func issuesOfType(report *dto.AuditReport, typ string) []dto.AuditIssue {
	var out []dto.AuditIssue
	for _, issue := range report.Issues {
		if issue.Type == typ {
			out = append(out, issue)
		}
	}
	return out
}

// ── Run 测试 ──

func TestAuditService_Run_CleanState(t *testing.T) {
	svc, store, _ := setupTestAuditService()
	seedActiveRecord(store, "stu-001", "course-001", 50)
	seedFact(store, "stu-001", "course-001", 48) // 差 2，容忍值 5 之内

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	if report.PairsScanned != 1 {
		t.Errorf("期望扫描 1 个配对，实际=%d", report.PairsScanned)
	}
	if len(report.Issues) != 0 {
		t.Errorf("一致状态不应产生漂移，实际=%d 条: %+v", len(report.Issues), report.Issues)
	}
}

func TestAuditService_Run_RogueLegacyFact(t *testing.T) {
	svc, store, _ := setupTestAuditService()
	// 遗留行有进度，权威账本无有效报名
	seedFact(store, "stu-003", "course-005", 70)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	issues := issuesOfType(report, dto.IssueRogueLegacyFact)
	if len(issues) != 1 {
		t.Fatalf("期望 1 条 RogueLegacyFact，实际=%d", len(issues))
	}
	if issues[0].Severity != dto.SeverityCritical {
		t.Errorf("RogueLegacyFact 应为 critical，实际=%s", issues[0].Severity)
	}
	if issues[0].SuggestedFix.Action != dto.FixDeleteLegacyFact {
		t.Errorf("建议动作应为 delete_legacy_fact，实际=%s", issues[0].SuggestedFix.Action)
	}
}

func TestAuditService_Run_OrphanCanonicalIsInfo(t *testing.T) {
	svc, store, _ := setupTestAuditService()
	// 权威有效报名但无遗留行：权威账本为准，不算故障
	seedActiveRecord(store, "stu-001", "course-001", 0)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	issues := issuesOfType(report, dto.IssueOrphanCanonicalRecord)
	if len(issues) != 1 {
		t.Fatalf("期望 1 条 OrphanCanonicalRecord，实际=%d", len(issues))
	}
	if issues[0].Severity != dto.SeverityInfo {
		t.Errorf("OrphanCanonicalRecord 应为 info，实际=%s", issues[0].Severity)
	}
	if issues[0].SuggestedFix.Action != dto.FixNone {
		t.Errorf("建议动作应为 none，实际=%s", issues[0].SuggestedFix.Action)
	}
}

func TestAuditService_Run_ProgressMismatch(t *testing.T) {
	svc, store, _ := setupTestAuditService()
	seedActiveRecord(store, "stu-001", "course-001", 80)
	seedFact(store, "stu-001", "course-001", 60) // 差 20 > 容忍值 5

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	issues := issuesOfType(report, dto.IssueProgressMismatch)
	if len(issues) != 1 {
		t.Fatalf("期望 1 条 ProgressMismatch，实际=%d", len(issues))
	}
	if issues[0].Severity != dto.SeverityMedium {
		t.Errorf("ProgressMismatch 应为 medium，实际=%s", issues[0].Severity)
	}
	if issues[0].SuggestedFix.Action != dto.FixSyncLegacyProgress {
		t.Errorf("建议动作应为 sync_legacy_progress，实际=%s", issues[0].SuggestedFix.Action)
	}
}

func TestAuditService_Run_StaleRequests(t *testing.T) {
	svc, store, _ := setupTestAuditService()
	now := time.Now().UTC()

	// 待审申请与有效报名并存 → critical
	seedActiveRecord(store, "stu-001", "course-001", 10)
	store.requests["req-coexist"] = &model.AccessRequest{
		RequestID: "req-coexist", StudentID: "stu-001", CourseID: "course-001",
		Status: model.RequestStatusPending, RequestedAt: now,
	}
	// 已审批残留 → high
	store.requests["req-approved"] = &model.AccessRequest{
		RequestID: "req-approved", StudentID: "stu-002", CourseID: "course-001",
		Status: model.RequestStatusApproved, RequestedAt: now,
	}
	// 已驳回残留 → medium
	store.requests["req-rejected"] = &model.AccessRequest{
		RequestID: "req-rejected", StudentID: "stu-003", CourseID: "course-001",
		Status: model.RequestStatusRejected, RequestedAt: now,
	}

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	issues := issuesOfType(report, dto.IssueStaleRequest)
	if len(issues) != 3 {
		t.Fatalf("期望 3 条 StaleRequest，实际=%d", len(issues))
	}

	severityByStudent := make(map[string]string)
	for _, issue := range issues {
		severityByStudent[issue.StudentID] = issue.Severity
	}
	if severityByStudent["stu-001"] != dto.SeverityCritical {
		t.Errorf("并存待审申请应为 critical，实际=%s", severityByStudent["stu-001"])
	}
	if severityByStudent["stu-002"] != dto.SeverityHigh {
		t.Errorf("已审批残留应为 high，实际=%s", severityByStudent["stu-002"])
	}
	if severityByStudent["stu-003"] != dto.SeverityMedium {
		t.Errorf("已驳回残留应为 medium，实际=%s", severityByStudent["stu-003"])
	}
}

func TestAuditService_Run_TerminalResidueWithEnrollmentIsCritical(t *testing.T) {
	svc, store, _ := setupTestAuditService()
	now := time.Now().UTC()

	// 终态残留与有效报名并存：不变量 (1)+(2) 同时被破坏，统一升级为 critical
	seedActiveRecord(store, "stu-001", "course-001", 10)
	seedFact(store, "stu-001", "course-001", 10)
	store.requests["req-approved"] = &model.AccessRequest{
		RequestID: "req-approved", StudentID: "stu-001", CourseID: "course-001",
		Status: model.RequestStatusApproved, RequestedAt: now,
	}
	seedActiveRecord(store, "stu-002", "course-001", 20)
	seedFact(store, "stu-002", "course-001", 20)
	store.requests["req-rejected"] = &model.AccessRequest{
		RequestID: "req-rejected", StudentID: "stu-002", CourseID: "course-001",
		Status: model.RequestStatusRejected, RequestedAt: now,
	}

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	issues := issuesOfType(report, dto.IssueStaleRequest)
	if len(issues) != 2 {
		t.Fatalf("期望 2 条 StaleRequest，实际=%d", len(issues))
	}
	for _, issue := range issues {
		if issue.Severity != dto.SeverityCritical {
			t.Errorf("终态申请与有效报名并存应为 critical，实际=%s（学生 %s）",
				issue.Severity, issue.StudentID)
		}
	}
}

func TestAuditService_Run_DuplicateRequestsKeepNewest(t *testing.T) {
	svc, store, _ := setupTestAuditService()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store.requests["req-old"] = &model.AccessRequest{
		RequestID: "req-old", StudentID: "stu-001", CourseID: "course-001",
		Status: model.RequestStatusPending, RequestedAt: base,
	}
	store.requests["req-new"] = &model.AccessRequest{
		RequestID: "req-new", StudentID: "stu-001", CourseID: "course-001",
		Status: model.RequestStatusPending, RequestedAt: base.Add(time.Hour),
	}

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	issues := issuesOfType(report, dto.IssueDuplicateRequests)
	if len(issues) != 1 {
		t.Fatalf("期望 1 条 DuplicateRequests，实际=%d", len(issues))
	}
	fix := issues[0].SuggestedFix
	if fix.Action != dto.FixKeepNewestPending {
		t.Errorf("建议动作应为 keep_newest_pending，实际=%s", fix.Action)
	}
	if len(fix.RequestIDs) != 1 || fix.RequestIDs[0] != "req-old" {
		t.Errorf("应建议删除较旧申请 req-old，实际=%v", fix.RequestIDs)
	}
}

func TestAuditService_Run_PublishesEvent(t *testing.T) {
	svc, store, bus := setupTestAuditService()
	seedFact(store, "stu-001", "course-001", 30)
	counts := countEvents(bus)

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	if n := eventCount(counts, event.TypeAuditCompleted); n != 1 {
		t.Errorf("期望 1 条 audit.completed 事件，实际=%d", n)
	}
}

func TestAuditService_Run_DeterministicOrder(t *testing.T) {
	svc, store, _ := setupTestAuditService()
	seedFact(store, "stu-002", "course-002", 10)
	seedFact(store, "stu-001", "course-003", 10)
	seedFact(store, "stu-001", "course-001", 10)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	if len(report.Issues) != 3 {
		t.Fatalf("期望 3 条漂移，实际=%d", len(report.Issues))
	}
	for i := 1; i < len(report.Issues); i++ {
		prev, cur := report.Issues[i-1], report.Issues[i]
		if prev.StudentID > cur.StudentID ||
			(prev.StudentID == cur.StudentID && prev.CourseID > cur.CourseID) {
			t.Fatalf("漂移清单应按 (学生, 课程) 有序，第 %d 项乱序", i)
		}
	}
}
