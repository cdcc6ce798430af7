package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/24Tech-io/nursepor-stable-sub005/internal/model"
)

// EnrollmentRecordRepository 权威报名账本数据访问接口
type EnrollmentRecordRepository interface {
	// GetByPair 按配对查询（不限状态），未找到返回 gorm.ErrRecordNotFound
	GetByPair(ctx context.Context, studentID, courseID string) (*model.EnrollmentRecord, error)
	// ListActiveByStudent 某学生的全部有效报名
	ListActiveByStudent(ctx context.Context, studentID string) ([]model.EnrollmentRecord, error)
	// ListAllActive 全量有效报名（巡检扫描用），按配对排序保证输出稳定
	ListAllActive(ctx context.Context) ([]model.EnrollmentRecord, error)
}

// ── EnrollmentRecord Repository 实现 ──

type enrollmentRecordRepo struct {
	db *gorm.DB
}

func NewEnrollmentRecordRepo(db *gorm.DB) EnrollmentRecordRepository {
	return &enrollmentRecordRepo{db: db}
}

func (r *enrollmentRecordRepo) GetByPair(ctx context.Context, studentID, courseID string) (*model.EnrollmentRecord, error) {
	var rec model.EnrollmentRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *enrollmentRecordRepo) ListActiveByStudent(ctx context.Context, studentID string) ([]model.EnrollmentRecord, error) {
	var recs []model.EnrollmentRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND status = ?", studentID, model.EnrollmentStatusActive).
		Order("course_id").
		Find(&recs).Error
	return recs, err
}

func (r *enrollmentRecordRepo) ListAllActive(ctx context.Context) ([]model.EnrollmentRecord, error) {
	var recs []model.EnrollmentRecord
	err := r.db.WithContext(ctx).
		Where("status = ?", model.EnrollmentStatusActive).
		Order("student_id, course_id").
		Find(&recs).Error
	return recs, err
}
