package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/24Tech-io/nursepor-stable-sub005/config"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/dto"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/repository"
	"github.com/24Tech-io/nursepor-stable-sub005/pkg/lock"
)

// RemediationService 漂移修复接口
//
// 巡检只建议、不落盘；修复必须由管理端显式触发。巡检产出基于无锁快照，
// 每条修复动作执行前都在配对锁内重新取当前状态复核：
// 漂移已不存在（或形态已变化）时跳过，绝不盲目套用建议。
type RemediationService interface {
	Apply(ctx context.Context, issues []dto.AuditIssue, actorID string) (*dto.RemediationSummary, error)
}

type remediationService struct {
	repo   *repository.Repository
	locks  *lock.Manager
	cache  ViewCache
	engine config.EngineConfig
	logger *zap.Logger
}

// NewRemediationService 创建 RemediationService 实例
func NewRemediationService(
	repo *repository.Repository,
	locks *lock.Manager,
	cache ViewCache,
	engine config.EngineConfig,
	logger *zap.Logger,
) RemediationService {
	return &remediationService{repo: repo, locks: locks, cache: cache, engine: engine, logger: logger}
}

func (s *remediationService) Apply(ctx context.Context, issues []dto.AuditIssue, actorID string) (*dto.RemediationSummary, error) {
	summary := &dto.RemediationSummary{}

	for _, issue := range issues {
		outcome := s.applyOne(ctx, issue)
		switch {
		case outcome.Error != "":
			summary.Failed++
		case outcome.Applied:
			summary.Applied++
		default:
			summary.Skipped++
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	s.logger.Info("漂移修复完成",
		zap.String("actor_id", actorID),
		zap.Int("applied", summary.Applied),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (s *remediationService) applyOne(ctx context.Context, issue dto.AuditIssue) dto.RemediationOutcome {
	outcome := dto.RemediationOutcome{Issue: issue}

	// 修复与命令路径同等对待：管理端操作，锁等待有上限
	lockCtx, cancel := context.WithTimeout(ctx, s.engine.AdminLockWait)
	defer cancel()
	release, err := s.locks.Acquire(lockCtx, lock.PairKey(issue.StudentID, issue.CourseID))
	if err != nil {
		outcome.Error = "配对锁等待超时"
		return outcome
	}
	defer release()

	switch issue.SuggestedFix.Action {
	case dto.FixDeleteLegacyFact:
		outcome = s.fixDeleteLegacyFact(ctx, issue)
	case dto.FixDeleteRequest, dto.FixKeepNewestPending:
		outcome = s.fixDeleteRequests(ctx, issue)
	case dto.FixSyncLegacyProgress:
		outcome = s.fixSyncProgress(ctx, issue)
	case dto.FixNone:
		outcome.Skipped = "无需修复"
	default:
		outcome.Error = "未知修复动作: " + issue.SuggestedFix.Action
	}

	if outcome.Applied && s.cache != nil {
		s.cache.InvalidateView(ctx, issue.StudentID)
	}
	return outcome
}

// fixDeleteLegacyFact 复核权威账本仍无有效报名后删除孤儿遗留行
func (s *remediationService) fixDeleteLegacyFact(ctx context.Context, issue dto.AuditIssue) dto.RemediationOutcome {
	outcome := dto.RemediationOutcome{Issue: issue}

	rec, err := s.repo.Enrollment.GetByPair(ctx, issue.StudentID, issue.CourseID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		outcome.Error = err.Error()
		return outcome
	}
	if err == nil && rec.IsActive() {
		// 巡检之后出现了有效报名：遗留行不再是孤儿
		outcome.Skipped = "权威账本已存在有效报名"
		return outcome
	}

	deleted, err := s.repo.LegacyFact.DeleteByPair(ctx, issue.StudentID, issue.CourseID)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	if !deleted {
		outcome.Skipped = "遗留行已不存在"
		return outcome
	}
	outcome.Applied = true
	return outcome
}

// fixDeleteRequests 复核后删除建议清单中的申请行
// 复核规则：待审申请仅在仍与有效报名并存（或属于重复申请建议）时删除
func (s *remediationService) fixDeleteRequests(ctx context.Context, issue dto.AuditIssue) dto.RemediationOutcome {
	outcome := dto.RemediationOutcome{Issue: issue}

	deletedAny := false
	for _, requestID := range issue.SuggestedFix.RequestIDs {
		req, err := s.repo.AccessRequest.GetByID(ctx, requestID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue // 已被命令路径清理
		}
		if err != nil {
			outcome.Error = err.Error()
			return outcome
		}

		if req.IsPending() && issue.Type == dto.IssueStaleRequest {
			// 待审申请只有在报名确实存在时才算漂移，重新确认
			rec, err := s.repo.Enrollment.GetByPair(ctx, req.StudentID, req.CourseID)
			if err != nil || !rec.IsActive() {
				outcome.Skipped = "待审申请已不与有效报名并存"
				return outcome
			}
		}

		deleted, err := s.repo.AccessRequest.Delete(ctx, requestID)
		if err != nil {
			outcome.Error = err.Error()
			return outcome
		}
		deletedAny = deletedAny || deleted
	}

	if !deletedAny {
		outcome.Skipped = "建议删除的申请均已不存在"
		return outcome
	}
	outcome.Applied = true
	return outcome
}

// fixSyncProgress 复核双账本差异仍超容忍值后，把遗留进度对齐到权威值
func (s *remediationService) fixSyncProgress(ctx context.Context, issue dto.AuditIssue) dto.RemediationOutcome {
	outcome := dto.RemediationOutcome{Issue: issue}

	rec, err := s.repo.Enrollment.GetByPair(ctx, issue.StudentID, issue.CourseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		outcome.Skipped = "权威报名已不存在"
		return outcome
	}
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	fact, err := s.repo.LegacyFact.GetByPair(ctx, issue.StudentID, issue.CourseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		outcome.Skipped = "遗留行已不存在"
		return outcome
	}
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	diff := rec.ProgressPercent - fact.ProgressPercent
	if diff < 0 {
		diff = -diff
	}
	if diff <= s.engine.ProgressTolerance {
		outcome.Skipped = "进度差异已回到容忍值内"
		return outcome
	}

	if err := s.repo.EnrollmentTx.SyncLegacyProgress(ctx, issue.StudentID, issue.CourseID,
		rec.ProgressPercent, time.Now().UTC()); err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Applied = true
	return outcome
}
