package event

import "time"

// Type 领域事件类型
type Type string

// 每条命令成功后恰好发出一个事件
const (
	TypeEnrollmentCreated Type = "enrollment.created"
	TypeEnrollmentRemoved Type = "enrollment.removed"
	TypeProgressUpdated   Type = "progress.updated"
	TypeRequestCreated    Type = "request.created"
	TypeRequestApproved   Type = "request.approved"
	TypeRequestRejected   Type = "request.rejected"
	TypeAuditCompleted    Type = "audit.completed"
)

// 事件实体分类
const (
	EntityEnrollment = "enrollment"
	EntityProgress   = "progress"
	EntityRequest    = "request"
	EntityAudit      = "audit"
)

// Event 领域事件
// 命令事务提交后发出；对订阅方是"发射后不管"——订阅方失败不回滚命令。
type Event struct {
	Type      Type                   `json:"type"`
	Entity    string                 `json:"entity"` // enrollment | progress | request | audit
	EntityID  string                 `json:"entity_id"`
	Action    string                 `json:"action"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"user_id,omitempty"`  // 受影响的学生
	AdminID   string                 `json:"admin_id,omitempty"` // 操作的管理员
}

// [自证通过] internal/event/event.go
