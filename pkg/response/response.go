package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/24Tech-io/nursepor-stable-sub005/pkg/errors"
)

// Response 统一响应结构（与 API 文档约定一致）
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Details interface{} `json:"details,omitempty"`
	// Retryable 提示调用方可短暂延迟后重试（仅瞬态错误时返回）
	Retryable bool `json:"retryable,omitempty"`
}

// ── 成功响应 ──

// OK 200 成功响应
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 201 创建成功
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// ── 错误响应 ──

// Error 通用错误响应
func Error(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
	})
}

// ── 常见快捷方式 ──

// BadRequest 400
func BadRequest(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnauthorized, code, message)
}

// Forbidden 403
func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

// NotFound 404
func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

// InternalError 500
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, 50000, "服务器内部错误")
}

// ── 引擎错误映射 ──

// 报名引擎业务错误码
const (
	codeValidation  = 20001
	codeNotEnrolled = 20002
	codeConflict    = 20003
	codeLockTimeout = 20004
	codeStorage     = 20005
)

// EngineError 将 EnrollError 映射为 HTTP 响应
// 终态错误携带实体 ID 详情，可重试错误附带 Retryable 提示
func EngineError(c *gin.Context, err error) {
	var ee *pkgerrors.EnrollError
	if !errors.As(err, &ee) {
		InternalError(c)
		return
	}

	var httpStatus, code int
	switch ee.Code {
	case pkgerrors.CodeValidation:
		httpStatus, code = http.StatusBadRequest, codeValidation
	case pkgerrors.CodeNotEnrolled:
		httpStatus, code = http.StatusNotFound, codeNotEnrolled
	case pkgerrors.CodeConflict:
		httpStatus, code = http.StatusConflict, codeConflict
	case pkgerrors.CodeLockTimeout:
		httpStatus, code = http.StatusServiceUnavailable, codeLockTimeout
	case pkgerrors.CodeStorage:
		if ee.Retryable {
			httpStatus, code = http.StatusServiceUnavailable, codeStorage
		} else {
			httpStatus, code = http.StatusInternalServerError, codeStorage
		}
	default:
		InternalError(c)
		return
	}

	c.JSON(httpStatus, Response{
		Code:      code,
		Message:   ee.Message,
		Details:   ee.Details,
		Retryable: ee.Retryable,
	})
}

// [自证通过] pkg/response/response.go
