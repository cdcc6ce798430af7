package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/24Tech-io/nursepor-stable-sub005/internal/model"
)

// EnrollmentFactRepository 遗留进度账本数据访问接口
//
// 遗留账本只在进度更新事务内写入（见 EnrollmentTxRepository），
// 此接口的删除方法仅供巡检修复流程使用。
type EnrollmentFactRepository interface {
	GetByPair(ctx context.Context, studentID, courseID string) (*model.EnrollmentFact, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.EnrollmentFact, error)
	// ListAll 全量遗留进度（巡检扫描用），按配对排序保证输出稳定
	ListAll(ctx context.Context) ([]model.EnrollmentFact, error)
	// DeleteByPair 删除配对的遗留进度行，返回是否实际删除
	DeleteByPair(ctx context.Context, studentID, courseID string) (bool, error)
}

// ── EnrollmentFact Repository 实现 ──

type enrollmentFactRepo struct {
	db *gorm.DB
}

func NewEnrollmentFactRepo(db *gorm.DB) EnrollmentFactRepository {
	return &enrollmentFactRepo{db: db}
}

func (r *enrollmentFactRepo) GetByPair(ctx context.Context, studentID, courseID string) (*model.EnrollmentFact, error) {
	var fact model.EnrollmentFact
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&fact).Error
	if err != nil {
		return nil, err
	}
	return &fact, nil
}

func (r *enrollmentFactRepo) ListByStudent(ctx context.Context, studentID string) ([]model.EnrollmentFact, error) {
	var facts []model.EnrollmentFact
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("course_id").
		Find(&facts).Error
	return facts, err
}

func (r *enrollmentFactRepo) ListAll(ctx context.Context) ([]model.EnrollmentFact, error) {
	var facts []model.EnrollmentFact
	err := r.db.WithContext(ctx).
		Order("student_id, course_id").
		Find(&facts).Error
	return facts, err
}

func (r *enrollmentFactRepo) DeleteByPair(ctx context.Context, studentID, courseID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Delete(&model.EnrollmentFact{})
	return result.RowsAffected > 0, result.Error
}
