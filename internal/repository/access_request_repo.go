package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/24Tech-io/nursepor-stable-sub005/internal/model"
)

// AccessRequestRepository 课程准入申请队列数据访问接口
type AccessRequestRepository interface {
	Create(ctx context.Context, req *model.AccessRequest) error
	GetByID(ctx context.Context, id string) (*model.AccessRequest, error)
	// GetPendingByPair 配对的待审申请（多条时取最早一条），未找到返回 gorm.ErrRecordNotFound
	GetPendingByPair(ctx context.Context, studentID, courseID string) (*model.AccessRequest, error)
	ListPendingByStudent(ctx context.Context, studentID string) ([]model.AccessRequest, error)
	// ListAll 全量申请（含终态残留，巡检扫描用），按配对+申请时间排序
	ListAll(ctx context.Context) ([]model.AccessRequest, error)
	// Delete 按 ID 删除申请行，返回是否实际删除
	Delete(ctx context.Context, id string) (bool, error)
	// DeleteByPair 删除配对的全部申请行，返回删除条数
	DeleteByPair(ctx context.Context, studentID, courseID string) (int64, error)
}

// ── AccessRequest Repository 实现 ──

type accessRequestRepo struct {
	db *gorm.DB
}

func NewAccessRequestRepo(db *gorm.DB) AccessRequestRepository {
	return &accessRequestRepo{db: db}
}

func (r *accessRequestRepo) Create(ctx context.Context, req *model.AccessRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *accessRequestRepo) GetByID(ctx context.Context, id string) (*model.AccessRequest, error) {
	var req model.AccessRequest
	err := r.db.WithContext(ctx).
		Where("request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *accessRequestRepo) GetPendingByPair(ctx context.Context, studentID, courseID string) (*model.AccessRequest, error) {
	var req model.AccessRequest
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ? AND status = ?", studentID, courseID, model.RequestStatusPending).
		Order("requested_at").
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *accessRequestRepo) ListPendingByStudent(ctx context.Context, studentID string) ([]model.AccessRequest, error) {
	var reqs []model.AccessRequest
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND status = ?", studentID, model.RequestStatusPending).
		Order("course_id").
		Find(&reqs).Error
	return reqs, err
}

func (r *accessRequestRepo) ListAll(ctx context.Context) ([]model.AccessRequest, error) {
	var reqs []model.AccessRequest
	err := r.db.WithContext(ctx).
		Order("student_id, course_id, requested_at").
		Find(&reqs).Error
	return reqs, err
}

func (r *accessRequestRepo) Delete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("request_id = ?", id).
		Delete(&model.AccessRequest{})
	return result.RowsAffected > 0, result.Error
}

func (r *accessRequestRepo) DeleteByPair(ctx context.Context, studentID, courseID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Delete(&model.AccessRequest{})
	return result.RowsAffected, result.Error
}
