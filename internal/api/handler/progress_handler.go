package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/24Tech-io/nursepor-stable-sub005/internal/dto"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/service"
	"github.com/24Tech-io/nursepor-stable-sub005/pkg/response"
)

// ProgressHandler 进度更新 HTTP 处理器
type ProgressHandler struct {
	enrollSvc service.EnrollmentService
}

// NewProgressHandler 创建 ProgressHandler
func NewProgressHandler(enrollSvc service.EnrollmentService) *ProgressHandler {
	return &ProgressHandler{enrollSvc: enrollSvc}
}

// Mark 上报学习进度
// POST /api/v1/progress
// 进度由学习端上报，学员只能上报本人进度
func (h *ProgressHandler) Mark(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	var req dto.MarkProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "请求参数错误: "+err.Error())
		return
	}
	if isStudent(role) && req.StudentID != userID {
		response.Forbidden(c, 10003, "学员只能上报本人的学习进度")
		return
	}

	result, err := h.enrollSvc.MarkProgress(c.Request.Context(), &req)
	if err != nil {
		response.EngineError(c, err)
		return
	}
	response.OK(c, result)
}
