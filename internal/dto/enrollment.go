package dto

import "time"

// ── 报名命令 DTO ──

// EnrollRequest 报名命令请求
type EnrollRequest struct {
	StudentID string `json:"student_id" binding:"required,uuid"`
	CourseID  string `json:"course_id"  binding:"required,uuid"`
	Source    string `json:"source"     binding:"omitempty,oneof=direct request remediation"`
}

// EnrollResult 报名命令结果
// EnrollmentCreated 为 false 表示配对已有效报名，命令按幂等成功返回
type EnrollResult struct {
	EnrollmentCreated bool   `json:"enrollment_created"`
	EnrollmentID      string `json:"enrollment_id,omitempty"`
}

// UnenrollRequest 退课命令请求
type UnenrollRequest struct {
	StudentID string `json:"student_id" binding:"required,uuid"`
	CourseID  string `json:"course_id"  binding:"required,uuid"`
	Reason    string `json:"reason"     binding:"omitempty,max=500"`
}

// UnenrollResult 退课命令结果
type UnenrollResult struct {
	Deleted bool `json:"deleted"`
}

// AccessRequestCreate 学生提交准入申请
type AccessRequestCreate struct {
	CourseID string `json:"course_id" binding:"required,uuid"`
	Reason   string `json:"reason"    binding:"omitempty,max=500"`
}

// AccessRequestResponse 准入申请响应
type AccessRequestResponse struct {
	RequestID   string    `json:"request_id"`
	StudentID   string    `json:"student_id"`
	CourseID    string    `json:"course_id"`
	Status      string    `json:"status"`
	RequestedAt time.Time `json:"requested_at"`
}

// ReviewRequest 审批/驳回申请请求（管理端）
type ReviewRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// ApproveResult 审批命令结果
// AlreadyReviewed 为 true 表示申请已被处理（重复点击/并发审批），
// 引擎按自愈策略清理残留后正常返回，不作为错误上报
type ApproveResult struct {
	EnrollmentCreated bool `json:"enrollment_created"`
	AlreadyReviewed   bool `json:"already_reviewed,omitempty"`
}

// RejectResult 驳回命令结果
type RejectResult struct {
	AlreadyReviewed bool `json:"already_reviewed,omitempty"`
}

// MarkProgressRequest 进度更新命令请求
// ChapterID 与 AssessmentID 二选一，标识触发进度的学习单元
type MarkProgressRequest struct {
	StudentID       string `json:"student_id"       binding:"required,uuid"`
	CourseID        string `json:"course_id"        binding:"required,uuid"`
	ChapterID       string `json:"chapter_id"       binding:"omitempty,uuid"`
	AssessmentID    string `json:"assessment_id"    binding:"omitempty,uuid"`
	ProgressPercent int    `json:"progress_percent" binding:"min=0,max=100"`
}

// ProgressResult 进度更新命令结果
type ProgressResult struct {
	ProgressPercent int `json:"progress_percent"`
}

// ── 报名视图（归并只读输出，不落库）──

// 视图状态：enrolled > requested > available
const (
	ViewStatusEnrolled  = "enrolled"
	ViewStatusRequested = "requested"
	ViewStatusAvailable = "available"
)

// EnrollmentView 单课程报名视图
type EnrollmentView struct {
	CourseID        string     `json:"course_id"`
	Title           string     `json:"title"`
	Status          string     `json:"status"` // enrolled | requested | available
	ProgressPercent int        `json:"progress_percent"`
	LastAccessedAt  *time.Time `json:"last_accessed_at,omitempty"`
	RequestID       string     `json:"request_id,omitempty"`
}

// CourseResponse 课程目录响应
type CourseResponse struct {
	CourseID     string `json:"course_id"`
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	ChapterCount int    `json:"chapter_count"`
}
