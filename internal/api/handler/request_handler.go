package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/24Tech-io/nursepor-stable-sub005/internal/dto"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/service"
	"github.com/24Tech-io/nursepor-stable-sub005/pkg/response"
)

// RequestHandler 准入申请 HTTP 处理器
type RequestHandler struct {
	enrollSvc service.EnrollmentService
}

// NewRequestHandler 创建 RequestHandler
func NewRequestHandler(enrollSvc service.EnrollmentService) *RequestHandler {
	return &RequestHandler{enrollSvc: enrollSvc}
}

// Create 学员提交准入申请
// POST /api/v1/requests
func (h *RequestHandler) Create(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.AccessRequestCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.enrollSvc.RequestAccess(c.Request.Context(), userID, &req)
	if err != nil {
		response.EngineError(c, err)
		return
	}
	response.Created(c, result)
}

// Approve 审批通过（管理端）
// POST /api/v1/admin/requests/:request_id/approve
func (h *RequestHandler) Approve(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	requestID := c.Param("request_id")
	if requestID == "" {
		response.BadRequest(c, 10001, "request_id 不能为空")
		return
	}

	// 审批意见可省略，空请求体按无意见处理
	var req dto.ReviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 10001, "请求参数错误: "+err.Error())
			return
		}
	}

	result, err := h.enrollSvc.ApproveRequest(c.Request.Context(), requestID, userID, req.Reason)
	if err != nil {
		response.EngineError(c, err)
		return
	}
	response.OK(c, result)
}

// Reject 驳回（管理端）
// POST /api/v1/admin/requests/:request_id/reject
func (h *RequestHandler) Reject(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	requestID := c.Param("request_id")
	if requestID == "" {
		response.BadRequest(c, 10001, "request_id 不能为空")
		return
	}

	var req dto.ReviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 10001, "请求参数错误: "+err.Error())
			return
		}
	}

	result, err := h.enrollSvc.RejectRequest(c.Request.Context(), requestID, userID, req.Reason)
	if err != nil {
		response.EngineError(c, err)
		return
	}
	response.OK(c, result)
}
