package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/24Tech-io/nursepor-stable-sub005/internal/dto"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/service"
	"github.com/24Tech-io/nursepor-stable-sub005/pkg/response"
)

// AuditHandler 一致性巡检与修复 HTTP 处理器（管理端）
type AuditHandler struct {
	auditSvc  service.AuditService
	remedySvc service.RemediationService
	reportSvc service.ReportService
}

// NewAuditHandler 创建 AuditHandler
func NewAuditHandler(auditSvc service.AuditService, remedySvc service.RemediationService, reportSvc service.ReportService) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc, remedySvc: remedySvc, reportSvc: reportSvc}
}

// Run 执行一轮一致性巡检
// POST /api/v1/admin/audit
// 巡检只读，仅产出漂移报告与建议修复动作
func (h *AuditHandler) Run(c *gin.Context) {
	report, err := h.auditSvc.Run(c.Request.Context())
	if err != nil {
		response.EngineError(c, err)
		return
	}
	response.OK(c, report)
}

// Remediate 对巡检产出的漂移执行修复
// POST /api/v1/admin/remediate
func (h *AuditHandler) Remediate(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.RemediationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "请求参数错误: "+err.Error())
		return
	}

	summary, err := h.remedySvc.Apply(c.Request.Context(), req.Issues, userID)
	if err != nil {
		response.EngineError(c, err)
		return
	}
	response.OK(c, summary)
}

// Export 巡检报告导出为 Excel
// GET /api/v1/admin/audit/export
func (h *AuditHandler) Export(c *gin.Context) {
	buf, filename, err := h.reportSvc.ExportAudit(c.Request.Context())
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *AuditHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrReportNoIssues):
		response.NotFound(c, 20101, "本轮巡检未发现漂移，无需导出")
	case errors.Is(err, service.ErrReportGenerateFail):
		response.InternalError(c)
	default:
		response.EngineError(c, err)
	}
}
