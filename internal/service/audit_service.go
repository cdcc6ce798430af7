package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/24Tech-io/nursepor-stable-sub005/config"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/dto"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/event"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/model"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/repository"
)

// AuditService 一致性巡检接口
//
// 只读批量扫描全部学生×课程配对，把双账本与申请队列的漂移归类为
// 带建议修复动作的问题清单。不持有任何锁，观测的是尽力而为的时点快照，
// 因此产出仅供参考：任何修复动作都必须经修复流程在锁内复核后执行。
type AuditService interface {
	Run(ctx context.Context) (*dto.AuditReport, error)
}

type auditService struct {
	repo   *repository.Repository
	bus    *event.Bus
	engine config.EngineConfig
	logger *zap.Logger
}

// NewAuditService 创建 AuditService 实例
func NewAuditService(repo *repository.Repository, bus *event.Bus, engine config.EngineConfig, logger *zap.Logger) AuditService {
	return &auditService{repo: repo, bus: bus, engine: engine, logger: logger}
}

// pairKey 巡检内部配对键
func pairKey(studentID, courseID string) string {
	return studentID + "/" + courseID
}

// ════════════════════════════════════════════════════════════
// Run — 全量漂移扫描
// ════════════════════════════════════════════════════════════
//
// 检测规则：
//   - RogueLegacyFact      遗留行存在、权威无有效报名          → critical
//   - OrphanCanonicalRecord 权威有效报名、遗留无进度行          → info
//     （本库以权威账本为准，遗留行由下一次进度事件惰性补齐）
//   - StaleRequest         终态申请残留，或待审申请与有效报名并存 → critical/high/medium
//   - DuplicateRequests    同配对多条申请                       → high
//   - ProgressMismatch     双账本进度差超容忍值                  → medium

func (s *auditService) Run(ctx context.Context) (*dto.AuditReport, error) {
	records, err := s.repo.Enrollment.ListAllActive(ctx)
	if err != nil {
		return nil, storageErr("扫描权威账本", err)
	}
	facts, err := s.repo.LegacyFact.ListAll(ctx)
	if err != nil {
		return nil, storageErr("扫描遗留账本", err)
	}
	requests, err := s.repo.AccessRequest.ListAll(ctx)
	if err != nil {
		return nil, storageErr("扫描申请队列", err)
	}

	recordByPair := make(map[string]*model.EnrollmentRecord, len(records))
	for i := range records {
		recordByPair[pairKey(records[i].StudentID, records[i].CourseID)] = &records[i]
	}
	factByPair := make(map[string]*model.EnrollmentFact, len(facts))
	for i := range facts {
		factByPair[pairKey(facts[i].StudentID, facts[i].CourseID)] = &facts[i]
	}
	requestsByPair := make(map[string][]*model.AccessRequest)
	for i := range requests {
		k := pairKey(requests[i].StudentID, requests[i].CourseID)
		requestsByPair[k] = append(requestsByPair[k], &requests[i])
	}

	pairs := make(map[string]struct{})
	for k := range recordByPair {
		pairs[k] = struct{}{}
	}
	for k := range factByPair {
		pairs[k] = struct{}{}
	}
	for k := range requestsByPair {
		pairs[k] = struct{}{}
	}

	var issues []dto.AuditIssue

	// ── 账本漂移 ──
	for k, fact := range factByPair {
		if _, ok := recordByPair[k]; !ok {
			issues = append(issues, dto.AuditIssue{
				Type:      dto.IssueRogueLegacyFact,
				Severity:  dto.SeverityCritical,
				StudentID: fact.StudentID,
				CourseID:  fact.CourseID,
				Details:   fmt.Sprintf("遗留账本进度 %d%%，权威账本无有效报名", fact.ProgressPercent),
				SuggestedFix: dto.SuggestedFix{
					Action: dto.FixDeleteLegacyFact,
				},
			})
		}
	}
	for k, rec := range recordByPair {
		fact, ok := factByPair[k]
		if !ok {
			issues = append(issues, dto.AuditIssue{
				Type:      dto.IssueOrphanCanonicalRecord,
				Severity:  dto.SeverityInfo,
				StudentID: rec.StudentID,
				CourseID:  rec.CourseID,
				Details:   "权威账本有效报名无对应遗留行（下次进度事件将惰性补齐）",
				SuggestedFix: dto.SuggestedFix{
					Action: dto.FixNone,
				},
			})
			continue
		}
		// 双账本进度差异
		diff := rec.ProgressPercent - fact.ProgressPercent
		if diff < 0 {
			diff = -diff
		}
		if diff > s.engine.ProgressTolerance {
			issues = append(issues, dto.AuditIssue{
				Type:      dto.IssueProgressMismatch,
				Severity:  dto.SeverityMedium,
				StudentID: rec.StudentID,
				CourseID:  rec.CourseID,
				Details: fmt.Sprintf("权威 %d%% 与遗留 %d%% 差异超容忍值 %d",
					rec.ProgressPercent, fact.ProgressPercent, s.engine.ProgressTolerance),
				SuggestedFix: dto.SuggestedFix{
					Action: dto.FixSyncLegacyProgress,
				},
			})
		}
	}

	// ── 申请队列漂移 ──
	for k, reqs := range requestsByPair {
		_, hasActive := recordByPair[k]
		issues = append(issues, auditRequests(reqs, hasActive)...)
	}

	// 确定性输出：按 (学生, 课程, 类型) 排序
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].StudentID != issues[j].StudentID {
			return issues[i].StudentID < issues[j].StudentID
		}
		if issues[i].CourseID != issues[j].CourseID {
			return issues[i].CourseID < issues[j].CourseID
		}
		return issues[i].Type < issues[j].Type
	})

	counts := make(map[string]int)
	for i := range issues {
		counts[issues[i].Type]++
	}

	report := &dto.AuditReport{
		RanAt:        time.Now().UTC(),
		PairsScanned: len(pairs),
		Issues:       issues,
		CountsByType: counts,
	}

	s.logger.Info("一致性巡检完成",
		zap.Int("pairs_scanned", report.PairsScanned),
		zap.Int("issues", len(issues)),
	)
	s.bus.Publish(event.Event{
		Type:      event.TypeAuditCompleted,
		Entity:    event.EntityAudit,
		EntityID:  report.RanAt.Format(time.RFC3339),
		Action:    "completed",
		Timestamp: report.RanAt,
		Data: map[string]interface{}{
			"pairs_scanned":  report.PairsScanned,
			"issue_count":    len(issues),
			"counts_by_type": counts,
		},
	})

	return report, nil
}

// terminalResidueSeverity 终态申请残留的严重级别：
// 配对仍有有效报名时任何残留都升级为 critical，否则按申请状态分级
func terminalResidueSeverity(byStatus string, hasActiveEnrollment bool) string {
	if hasActiveEnrollment {
		return dto.SeverityCritical
	}
	return byStatus
}

// auditRequests 单配对的申请队列检测
func auditRequests(reqs []*model.AccessRequest, hasActiveEnrollment bool) []dto.AuditIssue {
	var issues []dto.AuditIssue
	studentID, courseID := reqs[0].StudentID, reqs[0].CourseID

	// 逐条终态/并存检测
	for _, req := range reqs {
		switch {
		case req.Status == model.RequestStatusPending && hasActiveEnrollment:
			// 不变量 (1) 被破坏：待审申请与有效报名并存
			issues = append(issues, dto.AuditIssue{
				Type:      dto.IssueStaleRequest,
				Severity:  dto.SeverityCritical,
				StudentID: studentID,
				CourseID:  courseID,
				Details:   fmt.Sprintf("待审申请 %s 与有效报名并存", req.RequestID),
				SuggestedFix: dto.SuggestedFix{
					Action:     dto.FixDeleteRequest,
					RequestIDs: []string{req.RequestID},
				},
			})
		case req.Status == model.RequestStatusApproved:
			// 不变量 (2) 被破坏：审批生效后申请行应已随事务删除。
			// 与有效报名并存时升级为 critical。
			issues = append(issues, dto.AuditIssue{
				Type:      dto.IssueStaleRequest,
				Severity:  terminalResidueSeverity(dto.SeverityHigh, hasActiveEnrollment),
				StudentID: studentID,
				CourseID:  courseID,
				Details:   fmt.Sprintf("已审批申请 %s 残留未删除", req.RequestID),
				SuggestedFix: dto.SuggestedFix{
					Action:     dto.FixDeleteRequest,
					RequestIDs: []string{req.RequestID},
				},
			})
		case req.Status == model.RequestStatusRejected:
			issues = append(issues, dto.AuditIssue{
				Type:      dto.IssueStaleRequest,
				Severity:  terminalResidueSeverity(dto.SeverityMedium, hasActiveEnrollment),
				StudentID: studentID,
				CourseID:  courseID,
				Details:   fmt.Sprintf("已驳回申请 %s 残留未删除", req.RequestID),
				SuggestedFix: dto.SuggestedFix{
					Action:     dto.FixDeleteRequest,
					RequestIDs: []string{req.RequestID},
				},
			})
		}
	}

	// 同配对多条申请：保留最新待审一条，其余建议删除
	if len(reqs) > 1 {
		newestPending := -1
		for i, req := range reqs {
			if req.Status != model.RequestStatusPending {
				continue
			}
			if newestPending < 0 || req.RequestedAt.After(reqs[newestPending].RequestedAt) {
				newestPending = i
			}
		}
		var surplus []string
		for i, req := range reqs {
			if i != newestPending {
				surplus = append(surplus, req.RequestID)
			}
		}
		issues = append(issues, dto.AuditIssue{
			Type:      dto.IssueDuplicateRequests,
			Severity:  dto.SeverityHigh,
			StudentID: studentID,
			CourseID:  courseID,
			Details:   fmt.Sprintf("同配对存在 %d 条申请", len(reqs)),
			SuggestedFix: dto.SuggestedFix{
				Action:     dto.FixKeepNewestPending,
				RequestIDs: surplus,
			},
		})
	}

	return issues
}
