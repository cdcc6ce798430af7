package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/24Tech-io/nursepor-stable-sub005/internal/model"
)

// CourseRepository 课程目录数据访问接口
type CourseRepository interface {
	Create(ctx context.Context, course *model.Course) error
	GetByID(ctx context.Context, id string) (*model.Course, error)
	// ListPublished 仅返回已发布课程（账本读取器只关心已发布目录）
	ListPublished(ctx context.Context) ([]model.Course, error)
}

// ── Course Repository 实现 ──

type courseRepo struct {
	db *gorm.DB
}

func NewCourseRepo(db *gorm.DB) CourseRepository {
	return &courseRepo{db: db}
}

func (r *courseRepo) Create(ctx context.Context, course *model.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepo) GetByID(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	err := r.db.WithContext(ctx).
		Where("course_id = ?", id).
		First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) ListPublished(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	err := r.db.WithContext(ctx).
		Where("status = ?", model.CourseStatusPublished).
		Order("course_id").
		Find(&courses).Error
	return courses, err
}
