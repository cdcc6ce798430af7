package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/24Tech-io/nursepor-stable-sub005/internal/model"
	pkgerrors "github.com/24Tech-io/nursepor-stable-sub005/pkg/errors"
)

// EnrollmentTxRepository 报名命令的多表原子写入接口
//
// 每个方法对应一条命令的全部账本副作用，在单个数据库事务内完成：
// 要么双账本与申请队列全部提交，要么全部回滚，不存在跨账本的中间可见状态。
// 业务校验（课程存在性、报名前置等）由 Service 层在事务外完成，
// 事务内只做提交前的终态复核。
type EnrollmentTxRepository interface {
	// Enroll 创建或重新激活权威报名，并清理配对的待审申请。
	// 配对已有效报名时不做任何写入，返回 created=false（幂等）。
	// 报名不写遗留账本：遗留行由首次进度事件惰性创建。
	Enroll(ctx context.Context, rec *model.EnrollmentRecord) (created bool, err error)

	// Approve 审批通过：复核申请仍为待审，创建/激活权威报名，
	// 并在同一事务内删除该配对的全部申请行（终态申请不留痕）。
	// 申请已不存在或已非待审时返回 pkgerrors.ErrRequestNotPending，不做写入。
	Approve(ctx context.Context, requestID, actorID string, now time.Time) (*ApproveOutcome, error)

	// RemoveEnrollment 退课：停用权威报名（乐观锁校验）、删除遗留进度行、
	// 删除配对的全部申请行。返回是否有任何行被实际移除。
	RemoveEnrollment(ctx context.Context, studentID, courseID, actorID string) (deleted bool, err error)

	// UpdateProgress 进度更新：权威账本进度单调推进，遗留账本按需创建并
	// 单调推进 + 刷新 last_accessed_at，两笔写入同一事务。
	UpdateProgress(ctx context.Context, studentID, courseID string, percent int, now time.Time) error

	// SyncLegacyProgress 修复流程专用：将遗留账本进度对齐到权威值
	SyncLegacyProgress(ctx context.Context, studentID, courseID string, percent int, now time.Time) error
}

// ApproveOutcome 审批事务的结果
type ApproveOutcome struct {
	EnrollmentCreated bool
	StudentID         string
	CourseID          string
}

// ── EnrollmentTx Repository 实现 ──

type enrollmentTxRepo struct {
	db *gorm.DB
}

func NewEnrollmentTxRepo(db *gorm.DB) EnrollmentTxRepository {
	return &enrollmentTxRepo{db: db}
}

func (r *enrollmentTxRepo) Enroll(ctx context.Context, rec *model.EnrollmentRecord) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.EnrollmentRecord
		err := tx.Where("student_id = ? AND course_id = ?", rec.StudentID, rec.CourseID).
			First(&existing).Error
		switch {
		case err == nil && existing.Status == model.EnrollmentStatusActive:
			// 已有效报名：幂等成功，不做写入
			rec.EnrollmentID = existing.EnrollmentID
			return nil
		case err == nil:
			// 存在停用行：重新激活，进度归零
			if uerr := reactivateRecord(tx, &existing, rec); uerr != nil {
				return uerr
			}
			rec.EnrollmentID = existing.EnrollmentID
			created = true
		case errors.Is(err, gorm.ErrRecordNotFound):
			if cerr := tx.Create(rec).Error; cerr != nil {
				return cerr
			}
			created = true
		default:
			return err
		}
		// 不变量 (1)：有效报名与待审申请互斥，报名落库即清理配对申请
		return tx.Where("student_id = ? AND course_id = ?", rec.StudentID, rec.CourseID).
			Delete(&model.AccessRequest{}).Error
	})
	return created, err
}

// reactivateRecord 重新激活停用的报名行（乐观锁校验）
func reactivateRecord(tx *gorm.DB, existing *model.EnrollmentRecord, rec *model.EnrollmentRecord) error {
	result := tx.Model(&model.EnrollmentRecord{}).
		Where("enrollment_id = ? AND version = ?", existing.EnrollmentID, existing.Version).
		Updates(map[string]interface{}{
			"status":           model.EnrollmentStatusActive,
			"progress_percent": rec.ProgressPercent,
			"enrolled_at":      rec.EnrolledAt,
			"source":           rec.Source,
			"updated_by":       rec.UpdatedBy,
			"version":          existing.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *enrollmentTxRepo) Approve(ctx context.Context, requestID, actorID string, now time.Time) (*ApproveOutcome, error) {
	outcome := &ApproveOutcome{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 事务内复核：锁外读到的待审状态可能已被并发审批消费
		var req model.AccessRequest
		err := tx.Where("request_id = ?", requestID).First(&req).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.ErrRequestNotPending
		}
		if err != nil {
			return err
		}
		if req.Status != model.RequestStatusPending {
			return pkgerrors.ErrRequestNotPending
		}
		outcome.StudentID = req.StudentID
		outcome.CourseID = req.CourseID

		// 创建/激活权威报名
		var existing model.EnrollmentRecord
		err = tx.Where("student_id = ? AND course_id = ?", req.StudentID, req.CourseID).
			First(&existing).Error
		switch {
		case err == nil && existing.Status == model.EnrollmentStatusActive:
			// 已报名却有待审申请：本身即漂移，此处顺带自愈（只删申请）
		case err == nil:
			rec := &model.EnrollmentRecord{
				ProgressPercent: 0,
				EnrolledAt:      now,
				Source:          "request",
			}
			rec.UpdatedBy = &actorID
			if uerr := reactivateRecord(tx, &existing, rec); uerr != nil {
				return uerr
			}
			outcome.EnrollmentCreated = true
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec := &model.EnrollmentRecord{
				StudentID:       req.StudentID,
				CourseID:        req.CourseID,
				Status:          model.EnrollmentStatusActive,
				ProgressPercent: 0,
				EnrolledAt:      now,
				Source:          "request",
			}
			rec.CreatedBy = &actorID
			rec.UpdatedBy = &actorID
			if cerr := tx.Create(rec).Error; cerr != nil {
				return cerr
			}
			outcome.EnrollmentCreated = true
		default:
			return err
		}

		// 不变量 (2)：审批生效与申请删除同一事务——事务结束后
		// "已审批"的含义是申请行的缺失，而非终态申请的存在
		return tx.Where("student_id = ? AND course_id = ?", req.StudentID, req.CourseID).
			Delete(&model.AccessRequest{}).Error
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (r *enrollmentTxRepo) RemoveEnrollment(ctx context.Context, studentID, courseID, actorID string) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.EnrollmentRecord
		err := tx.Where("student_id = ? AND course_id = ? AND status = ?",
			studentID, courseID, model.EnrollmentStatusActive).
			First(&existing).Error
		if err == nil {
			result := tx.Model(&model.EnrollmentRecord{}).
				Where("enrollment_id = ? AND version = ?", existing.EnrollmentID, existing.Version).
				Updates(map[string]interface{}{
					"status":     model.EnrollmentStatusInactive,
					"updated_by": actorID,
					"version":    existing.Version + 1,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return pkgerrors.ErrOptimisticLock
			}
			deleted = true
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// 遗留进度行与残留申请一并清理
		factRes := tx.Where("student_id = ? AND course_id = ?", studentID, courseID).
			Delete(&model.EnrollmentFact{})
		if factRes.Error != nil {
			return factRes.Error
		}
		reqRes := tx.Where("student_id = ? AND course_id = ?", studentID, courseID).
			Delete(&model.AccessRequest{})
		if reqRes.Error != nil {
			return reqRes.Error
		}
		if factRes.RowsAffected > 0 || reqRes.RowsAffected > 0 {
			deleted = true
		}
		return nil
	})
	return deleted, err
}

func (r *enrollmentTxRepo) UpdateProgress(ctx context.Context, studentID, courseID string, percent int, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 事务内复核有效报名仍存在：锁外校验可能已被并发退课推翻，
		// 此时绝不能惰性创建遗留行（那正是巡检要抓的漂移）
		var rec model.EnrollmentRecord
		err := tx.Where("student_id = ? AND course_id = ? AND status = ?",
			studentID, courseID, model.EnrollmentStatusActive).
			First(&rec).Error
		if err != nil {
			return err
		}

		// 权威账本：进度只进不退
		err = tx.Model(&model.EnrollmentRecord{}).
			Where("enrollment_id = ?", rec.EnrollmentID).
			Update("progress_percent", gorm.Expr("GREATEST(progress_percent, ?)", percent)).Error
		if err != nil {
			return err
		}

		// 遗留账本：惰性创建，进度同样单调
		var fact model.EnrollmentFact
		err = tx.Where("student_id = ? AND course_id = ?", studentID, courseID).
			First(&fact).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&model.EnrollmentFact{
				StudentID:       studentID,
				CourseID:        courseID,
				ProgressPercent: percent,
				LastAccessedAt:  now,
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&model.EnrollmentFact{}).
			Where("fact_id = ?", fact.FactID).
			Updates(map[string]interface{}{
				"progress_percent": gorm.Expr("GREATEST(progress_percent, ?)", percent),
				"last_accessed_at": now,
			}).Error
	})
}

func (r *enrollmentTxRepo) SyncLegacyProgress(ctx context.Context, studentID, courseID string, percent int, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.EnrollmentFact{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Updates(map[string]interface{}{
			"progress_percent": percent,
			"updated_at":       now,
		}).Error
}
