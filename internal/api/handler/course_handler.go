package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/24Tech-io/nursepor-stable-sub005/internal/service"
	"github.com/24Tech-io/nursepor-stable-sub005/pkg/response"
)

// CourseHandler 课程目录 HTTP 处理器
type CourseHandler struct {
	enrollSvc service.EnrollmentService
}

// NewCourseHandler 创建 CourseHandler
func NewCourseHandler(enrollSvc service.EnrollmentService) *CourseHandler {
	return &CourseHandler{enrollSvc: enrollSvc}
}

// List 已发布课程目录
// GET /api/v1/courses
func (h *CourseHandler) List(c *gin.Context) {
	courses, err := h.enrollSvc.ListCourses(c.Request.Context())
	if err != nil {
		response.EngineError(c, err)
		return
	}
	response.OK(c, courses)
}
