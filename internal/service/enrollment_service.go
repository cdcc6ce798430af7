package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/24Tech-io/nursepor-stable-sub005/config"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/dto"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/event"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/model"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/repository"
	pkgerrors "github.com/24Tech-io/nursepor-stable-sub005/pkg/errors"
	"github.com/24Tech-io/nursepor-stable-sub005/pkg/lock"
)

// ViewCache 报名视图缓存契约
// 命令服务在每次成功变更后调用 InvalidateView；缓存不可用时传 nil 降级
type ViewCache interface {
	GetView(ctx context.Context, studentID string, dest interface{}) bool
	SetView(ctx context.Context, studentID string, view interface{}, ttl time.Duration)
	InvalidateView(ctx context.Context, studentID string)
}

// EnrollmentService 报名命令与查询接口
//
// 五条命令（报名/退课/审批/驳回/进度更新）均在配对锁保护下执行单事务写入，
// 事务提交后发出恰好一个领域事件并失效视图缓存。
// 锁获取之后的任何失败都会整体回滚并释放锁，不存在跨账本的半提交状态。
type EnrollmentService interface {
	// Enroll 报名（幂等：重复报名返回 EnrollmentCreated=false 的成功）
	Enroll(ctx context.Context, req *dto.EnrollRequest, actorID string) (*dto.EnrollResult, error)
	// Unenroll 退课，顺带清理配对的遗留进度与残留申请
	Unenroll(ctx context.Context, req *dto.UnenrollRequest, actorID string) (*dto.UnenrollResult, error)
	// RequestAccess 学生提交准入申请（幂等：已有待审申请时返回原申请）
	RequestAccess(ctx context.Context, studentID string, req *dto.AccessRequestCreate) (*dto.AccessRequestResponse, error)
	// ApproveRequest 审批通过；申请已被处理时自愈清理并返回 AlreadyReviewed
	ApproveRequest(ctx context.Context, requestID, actorID, reason string) (*dto.ApproveResult, error)
	// RejectRequest 驳回；删除申请行，不触碰账本
	RejectRequest(ctx context.Context, requestID, actorID, reason string) (*dto.RejectResult, error)
	// MarkProgress 进度更新；未报名返回 NotEnrolled 终态错误
	MarkProgress(ctx context.Context, req *dto.MarkProgressRequest) (*dto.ProgressResult, error)
	// GetEnrollmentView 归并只读视图（缓存优先）
	GetEnrollmentView(ctx context.Context, studentID string) ([]dto.EnrollmentView, error)
	// ListCourses 已发布课程目录
	ListCourses(ctx context.Context) ([]dto.CourseResponse, error)
}

type enrollmentService struct {
	repo   *repository.Repository
	locks  *lock.Manager
	bus    *event.Bus
	cache  ViewCache
	engine config.EngineConfig
	logger *zap.Logger
}

// NewEnrollmentService 创建 EnrollmentService 实例
func NewEnrollmentService(
	repo *repository.Repository,
	locks *lock.Manager,
	bus *event.Bus,
	cache ViewCache,
	engine config.EngineConfig,
	logger *zap.Logger,
) EnrollmentService {
	return &enrollmentService{
		repo:   repo,
		locks:  locks,
		bus:    bus,
		cache:  cache,
		engine: engine,
		logger: logger,
	}
}

// ── 内部工具 ──

// acquirePair 获取配对锁。bounded 为 true 时（管理端人工操作）施加等待上限，
// 超时转换为可重试错误而非无限阻塞；false 时仅受调用方 ctx 约束。
func (s *enrollmentService) acquirePair(ctx context.Context, studentID, courseID string, bounded bool) (func(), error) {
	if bounded {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.engine.AdminLockWait)
		defer cancel()
	}
	release, err := s.locks.Acquire(ctx, lock.PairKey(studentID, courseID))
	if err != nil {
		return nil, pkgerrors.LockTimeout("配对操作排队超时，请稍后重试").
			WithDetail("student_id", studentID).
			WithDetail("course_id", courseID)
	}
	return release, nil
}

// storageErr 存储层错误归类：乐观锁冲突是瞬态竞争（可重试），其余视为终态
func storageErr(op string, err error) error {
	if errors.Is(err, pkgerrors.ErrOptimisticLock) {
		return pkgerrors.Storage(op+"遇到并发冲突，请重试", true, err)
	}
	return pkgerrors.Storage(op+"失败", false, err)
}

// requirePublishedCourse 校验课程存在且已发布
func (s *enrollmentService) requirePublishedCourse(ctx context.Context, courseID string) (*model.Course, error) {
	course, err := s.repo.Course.GetByID(ctx, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Validation("课程不存在").WithDetail("course_id", courseID)
	}
	if err != nil {
		return nil, storageErr("查询课程", err)
	}
	if course.Status != model.CourseStatusPublished {
		return nil, pkgerrors.Validation("课程未发布").WithDetail("course_id", courseID)
	}
	return course, nil
}

func (s *enrollmentService) invalidateView(ctx context.Context, studentID string) {
	if s.cache != nil {
		s.cache.InvalidateView(ctx, studentID)
	}
}

// ════════════════════════════════════════════════════════════
// 命令
// ════════════════════════════════════════════════════════════

func (s *enrollmentService) Enroll(ctx context.Context, req *dto.EnrollRequest, actorID string) (*dto.EnrollResult, error) {
	if _, err := s.requirePublishedCourse(ctx, req.CourseID); err != nil {
		return nil, err
	}

	release, err := s.acquirePair(ctx, req.StudentID, req.CourseID, false)
	if err != nil {
		return nil, err
	}
	defer release()

	source := req.Source
	if source == "" {
		source = "direct"
	}
	rec := &model.EnrollmentRecord{
		StudentID:       req.StudentID,
		CourseID:        req.CourseID,
		Status:          model.EnrollmentStatusActive,
		ProgressPercent: 0,
		EnrolledAt:      time.Now().UTC(),
		Source:          source,
	}
	rec.CreatedBy = &actorID
	rec.UpdatedBy = &actorID

	created, err := s.repo.EnrollmentTx.Enroll(ctx, rec)
	if err != nil {
		return nil, storageErr("写入报名", err)
	}

	if created {
		s.bus.Publish(event.Event{
			Type:      event.TypeEnrollmentCreated,
			Entity:    event.EntityEnrollment,
			EntityID:  rec.EnrollmentID,
			Action:    "created",
			Timestamp: time.Now().UTC(),
			UserID:    req.StudentID,
			AdminID:   actorID,
			Data: map[string]interface{}{
				"course_id": req.CourseID,
				"source":    source,
			},
		})
		s.invalidateView(ctx, req.StudentID)
	}

	return &dto.EnrollResult{EnrollmentCreated: created, EnrollmentID: rec.EnrollmentID}, nil
}

func (s *enrollmentService) Unenroll(ctx context.Context, req *dto.UnenrollRequest, actorID string) (*dto.UnenrollResult, error) {
	release, err := s.acquirePair(ctx, req.StudentID, req.CourseID, false)
	if err != nil {
		return nil, err
	}
	defer release()

	deleted, err := s.repo.EnrollmentTx.RemoveEnrollment(ctx, req.StudentID, req.CourseID, actorID)
	if err != nil {
		return nil, storageErr("退课", err)
	}

	if deleted {
		s.bus.Publish(event.Event{
			Type:      event.TypeEnrollmentRemoved,
			Entity:    event.EntityEnrollment,
			EntityID:  req.StudentID + "/" + req.CourseID,
			Action:    "removed",
			Timestamp: time.Now().UTC(),
			UserID:    req.StudentID,
			AdminID:   actorID,
			Data: map[string]interface{}{
				"course_id": req.CourseID,
				"reason":    req.Reason,
			},
		})
		s.invalidateView(ctx, req.StudentID)
	}

	return &dto.UnenrollResult{Deleted: deleted}, nil
}

func (s *enrollmentService) RequestAccess(ctx context.Context, studentID string, req *dto.AccessRequestCreate) (*dto.AccessRequestResponse, error) {
	if _, err := s.requirePublishedCourse(ctx, req.CourseID); err != nil {
		return nil, err
	}

	release, err := s.acquirePair(ctx, studentID, req.CourseID, false)
	if err != nil {
		return nil, err
	}
	defer release()

	// 已有效报名的学生不允许再排队申请（不变量 (1) 的写入侧防线）
	rec, err := s.repo.Enrollment.GetByPair(ctx, studentID, req.CourseID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storageErr("查询报名", err)
	}
	if err == nil && rec.IsActive() {
		return nil, pkgerrors.Conflict("已报名该课程，无需申请").
			WithDetail("student_id", studentID).
			WithDetail("course_id", req.CourseID)
	}

	// 幂等：已有待审申请直接返回
	existing, err := s.repo.AccessRequest.GetPendingByPair(ctx, studentID, req.CourseID)
	if err == nil {
		return accessRequestResponse(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storageErr("查询申请", err)
	}

	ar := &model.AccessRequest{
		RequestID:   uuid.NewString(),
		StudentID:   studentID,
		CourseID:    req.CourseID,
		Status:      model.RequestStatusPending,
		Reason:      req.Reason,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.repo.AccessRequest.Create(ctx, ar); err != nil {
		return nil, storageErr("创建申请", err)
	}

	s.bus.Publish(event.Event{
		Type:      event.TypeRequestCreated,
		Entity:    event.EntityRequest,
		EntityID:  ar.RequestID,
		Action:    "created",
		Timestamp: time.Now().UTC(),
		UserID:    studentID,
		Data: map[string]interface{}{
			"course_id": req.CourseID,
		},
	})
	s.invalidateView(ctx, studentID)

	return accessRequestResponse(ar), nil
}

func (s *enrollmentService) ApproveRequest(ctx context.Context, requestID, actorID, reason string) (*dto.ApproveResult, error) {
	req, err := s.repo.AccessRequest.GetByID(ctx, requestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 重复点击/并发审批的常态路径：按"已处理"上报，不升级为错误
		return &dto.ApproveResult{AlreadyReviewed: true}, nil
	}
	if err != nil {
		return nil, storageErr("查询申请", err)
	}
	if !req.IsPending() {
		// 终态申请残留本身是漂移：自愈删除后上报"已处理"
		s.selfHealStaleRequest(ctx, req)
		return &dto.ApproveResult{AlreadyReviewed: true}, nil
	}

	// 管理端人工操作：锁等待加上限，超时让管理员稍后重试
	release, err := s.acquirePair(ctx, req.StudentID, req.CourseID, true)
	if err != nil {
		return nil, err
	}
	defer release()

	outcome, err := s.repo.EnrollmentTx.Approve(ctx, requestID, actorID, time.Now().UTC())
	if errors.Is(err, pkgerrors.ErrRequestNotPending) {
		// 锁外读到待审，事务内复核发现已被并发消费
		return &dto.ApproveResult{AlreadyReviewed: true}, nil
	}
	if err != nil {
		return nil, storageErr("审批", err)
	}

	s.bus.Publish(event.Event{
		Type:      event.TypeRequestApproved,
		Entity:    event.EntityRequest,
		EntityID:  requestID,
		Action:    "approved",
		Timestamp: time.Now().UTC(),
		UserID:    outcome.StudentID,
		AdminID:   actorID,
		Data: map[string]interface{}{
			"course_id":          outcome.CourseID,
			"enrollment_created": outcome.EnrollmentCreated,
			"reason":             reason,
		},
	})
	s.invalidateView(ctx, outcome.StudentID)

	return &dto.ApproveResult{EnrollmentCreated: outcome.EnrollmentCreated}, nil
}

func (s *enrollmentService) RejectRequest(ctx context.Context, requestID, actorID, reason string) (*dto.RejectResult, error) {
	req, err := s.repo.AccessRequest.GetByID(ctx, requestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &dto.RejectResult{AlreadyReviewed: true}, nil
	}
	if err != nil {
		return nil, storageErr("查询申请", err)
	}
	if !req.IsPending() {
		s.selfHealStaleRequest(ctx, req)
		return &dto.RejectResult{AlreadyReviewed: true}, nil
	}

	release, err := s.acquirePair(ctx, req.StudentID, req.CourseID, true)
	if err != nil {
		return nil, err
	}
	defer release()

	// 驳回只删申请行，不触碰任何账本
	deleted, err := s.repo.AccessRequest.Delete(ctx, requestID)
	if err != nil {
		return nil, storageErr("驳回", err)
	}
	if !deleted {
		return &dto.RejectResult{AlreadyReviewed: true}, nil
	}

	s.bus.Publish(event.Event{
		Type:      event.TypeRequestRejected,
		Entity:    event.EntityRequest,
		EntityID:  requestID,
		Action:    "rejected",
		Timestamp: time.Now().UTC(),
		UserID:    req.StudentID,
		AdminID:   actorID,
		Data: map[string]interface{}{
			"course_id": req.CourseID,
			"reason":    reason,
		},
	})
	s.invalidateView(ctx, req.StudentID)

	return &dto.RejectResult{}, nil
}

func (s *enrollmentService) MarkProgress(ctx context.Context, req *dto.MarkProgressRequest) (*dto.ProgressResult, error) {
	if req.ChapterID == "" && req.AssessmentID == "" {
		return nil, pkgerrors.Validation("必须指定章节或测评")
	}
	if req.ProgressPercent < 0 || req.ProgressPercent > 100 {
		return nil, pkgerrors.Validation("进度必须在 0-100 之间")
	}

	rec, err := s.repo.Enrollment.GetByPair(ctx, req.StudentID, req.CourseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.NotEnrolled("未报名该课程").
			WithDetail("student_id", req.StudentID).
			WithDetail("course_id", req.CourseID)
	}
	if err != nil {
		return nil, storageErr("查询报名", err)
	}
	if !rec.IsActive() {
		return nil, pkgerrors.NotEnrolled("报名已失效").
			WithDetail("student_id", req.StudentID).
			WithDetail("course_id", req.CourseID)
	}

	release, err := s.acquirePair(ctx, req.StudentID, req.CourseID, false)
	if err != nil {
		return nil, err
	}
	defer release()

	now := time.Now().UTC()
	if err := s.repo.EnrollmentTx.UpdateProgress(ctx, req.StudentID, req.CourseID, req.ProgressPercent, now); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 锁外校验通过后报名被并发移除
			return nil, pkgerrors.NotEnrolled("未报名该课程").
				WithDetail("student_id", req.StudentID).
				WithDetail("course_id", req.CourseID)
		}
		return nil, storageErr("更新进度", err)
	}

	unit := req.ChapterID
	unitKind := "chapter"
	if unit == "" {
		unit = req.AssessmentID
		unitKind = "assessment"
	}
	s.bus.Publish(event.Event{
		Type:      event.TypeProgressUpdated,
		Entity:    event.EntityProgress,
		EntityID:  req.StudentID + "/" + req.CourseID,
		Action:    "updated",
		Timestamp: now,
		UserID:    req.StudentID,
		Data: map[string]interface{}{
			"course_id":        req.CourseID,
			"unit_kind":        unitKind,
			"unit_id":          unit,
			"progress_percent": req.ProgressPercent,
		},
	})
	s.invalidateView(ctx, req.StudentID)

	return &dto.ProgressResult{ProgressPercent: req.ProgressPercent}, nil
}

// selfHealStaleRequest 终态申请按约定必须已随审批事务删除；
// 观测到残留时就地清理（ConflictError 的自愈策略：删除并上报，而非传播错误）。
// 清理同样是申请队列写入，照常走配对锁；拿不到锁就放弃，残留留给巡检兜底。
func (s *enrollmentService) selfHealStaleRequest(ctx context.Context, req *model.AccessRequest) {
	release, err := s.acquirePair(ctx, req.StudentID, req.CourseID, true)
	if err != nil {
		s.logger.Warn("残留终态申请清理跳过：配对锁获取失败",
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
		return
	}
	defer release()

	if _, err := s.repo.AccessRequest.Delete(ctx, req.RequestID); err != nil {
		s.logger.Warn("残留终态申请清理失败",
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("已清理残留终态申请",
		zap.String("request_id", req.RequestID),
		zap.String("status", req.Status),
	)
}

// ════════════════════════════════════════════════════════════
// 查询
// ════════════════════════════════════════════════════════════

func (s *enrollmentService) GetEnrollmentView(ctx context.Context, studentID string) ([]dto.EnrollmentView, error) {
	if s.cache != nil {
		var cached []dto.EnrollmentView
		if s.cache.GetView(ctx, studentID, &cached) {
			return cached, nil
		}
	}

	courses, err := s.repo.Course.ListPublished(ctx)
	if err != nil {
		return nil, storageErr("查询课程目录", err)
	}
	records, err := s.repo.Enrollment.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, storageErr("查询权威账本", err)
	}
	facts, err := s.repo.LegacyFact.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, storageErr("查询遗留账本", err)
	}
	pending, err := s.repo.AccessRequest.ListPendingByStudent(ctx, studentID)
	if err != nil {
		return nil, storageErr("查询申请队列", err)
	}

	views := MergeEnrollmentState(courses, records, facts, pending)

	if s.cache != nil {
		s.cache.SetView(ctx, studentID, views, s.engine.ViewCacheTTL)
	}
	return views, nil
}

func (s *enrollmentService) ListCourses(ctx context.Context) ([]dto.CourseResponse, error) {
	courses, err := s.repo.Course.ListPublished(ctx)
	if err != nil {
		return nil, storageErr("查询课程目录", err)
	}
	out := make([]dto.CourseResponse, 0, len(courses))
	for i := range courses {
		out = append(out, dto.CourseResponse{
			CourseID:     courses[i].CourseID,
			Title:        courses[i].Title,
			Slug:         courses[i].Slug,
			ChapterCount: courses[i].ChapterCount,
		})
	}
	return out, nil
}

func accessRequestResponse(ar *model.AccessRequest) *dto.AccessRequestResponse {
	return &dto.AccessRequestResponse{
		RequestID:   ar.RequestID,
		StudentID:   ar.StudentID,
		CourseID:    ar.CourseID,
		Status:      ar.Status,
		RequestedAt: ar.RequestedAt,
	}
}
