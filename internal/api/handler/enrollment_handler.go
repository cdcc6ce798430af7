package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/24Tech-io/nursepor-stable-sub005/internal/dto"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/service"
	"github.com/24Tech-io/nursepor-stable-sub005/pkg/response"
)

// EnrollmentHandler 报名命令与视图 HTTP 处理器
type EnrollmentHandler struct {
	enrollSvc service.EnrollmentService
}

// NewEnrollmentHandler 创建 EnrollmentHandler
func NewEnrollmentHandler(enrollSvc service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollSvc: enrollSvc}
}

// Enroll 报名命令
// POST /api/v1/enrollments
// 学员只能为自己报名；管理员可代任意学员报名
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "请求参数错误: "+err.Error())
		return
	}
	if isStudent(role) && req.StudentID != userID {
		response.Forbidden(c, 10003, "学员只能操作本人的报名")
		return
	}

	result, err := h.enrollSvc.Enroll(c.Request.Context(), &req, userID)
	if err != nil {
		response.EngineError(c, err)
		return
	}
	if result.EnrollmentCreated {
		response.Created(c, result)
		return
	}
	response.OK(c, result)
}

// Unenroll 退课命令
// DELETE /api/v1/enrollments
func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	var req dto.UnenrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "请求参数错误: "+err.Error())
		return
	}
	if isStudent(role) && req.StudentID != userID {
		response.Forbidden(c, 10003, "学员只能操作本人的报名")
		return
	}

	result, err := h.enrollSvc.Unenroll(c.Request.Context(), &req, userID)
	if err != nil {
		response.EngineError(c, err)
		return
	}
	response.OK(c, result)
}

// MyView 当前学员的报名视图
// GET /api/v1/enrollments/view
func (h *EnrollmentHandler) MyView(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	view, err := h.enrollSvc.GetEnrollmentView(c.Request.Context(), userID)
	if err != nil {
		response.EngineError(c, err)
		return
	}
	response.OK(c, view)
}

// StudentView 指定学员的报名视图（管理端）
// GET /api/v1/admin/students/:student_id/view
func (h *EnrollmentHandler) StudentView(c *gin.Context) {
	studentID := c.Param("student_id")
	if studentID == "" {
		response.BadRequest(c, 10001, "student_id 不能为空")
		return
	}

	view, err := h.enrollSvc.GetEnrollmentView(c.Request.Context(), studentID)
	if err != nil {
		response.EngineError(c, err)
		return
	}
	response.OK(c, view)
}
