package dto

import "time"

// ── 一致性巡检 DTO ──

// 漂移类型
const (
	IssueRogueLegacyFact       = "RogueLegacyFact"       // 遗留账本有进度，权威账本无有效报名
	IssueOrphanCanonicalRecord = "OrphanCanonicalRecord" // 权威账本有效报名，遗留账本无进度
	IssueStaleRequest          = "StaleRequest"          // 终态申请残留，或待审申请与有效报名并存
	IssueDuplicateRequests     = "DuplicateRequests"     // 同一配对存在多条申请
	IssueProgressMismatch      = "ProgressMismatch"      // 双账本进度差异超出容忍值
)

// 漂移严重级别
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityInfo     = "info"
)

// 建议修复动作（巡检仅建议，由修复流程显式执行）
const (
	FixDeleteLegacyFact   = "delete_legacy_fact"
	FixDeleteRequest      = "delete_request"
	FixKeepNewestPending  = "keep_newest_pending"
	FixSyncLegacyProgress = "sync_legacy_progress"
	FixNone               = "none"
)

// SuggestedFix 巡检建议的修复动作
type SuggestedFix struct {
	Action     string   `json:"action"`
	RequestIDs []string `json:"request_ids,omitempty"` // delete_request / keep_newest_pending 的待删申请
}

// AuditIssue 单条漂移记录
type AuditIssue struct {
	Type         string       `json:"type"`
	Severity     string       `json:"severity"`
	StudentID    string       `json:"student_id"`
	CourseID     string       `json:"course_id"`
	Details      string       `json:"details"`
	SuggestedFix SuggestedFix `json:"suggested_fix"`
}

// AuditReport 巡检结果汇总
type AuditReport struct {
	RanAt        time.Time      `json:"ran_at"`
	PairsScanned int            `json:"pairs_scanned"`
	Issues       []AuditIssue   `json:"issues"`
	CountsByType map[string]int `json:"counts_by_type"`
}

// RemediationRequest 修复请求（管理端显式触发）
type RemediationRequest struct {
	Issues []AuditIssue `json:"issues" binding:"required,min=1"`
}

// RemediationOutcome 单条漂移的修复结果
type RemediationOutcome struct {
	Issue   AuditIssue `json:"issue"`
	Applied bool       `json:"applied"`
	Skipped string     `json:"skipped,omitempty"` // 复核不通过时的原因
	Error   string     `json:"error,omitempty"`
}

// RemediationSummary 修复流程汇总
type RemediationSummary struct {
	Applied  int                  `json:"applied"`
	Skipped  int                  `json:"skipped"`
	Failed   int                  `json:"failed"`
	Outcomes []RemediationOutcome `json:"outcomes"`
}
