package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/24Tech-io/nursepor-stable-sub005/config"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/api/handler"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/api/middleware"
	"github.com/24Tech-io/nursepor-stable-sub005/pkg/jwt"
	"github.com/24Tech-io/nursepor-stable-sub005/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(1 << 20)) // 1MB，命令请求体都很小

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			// 课程目录
			authorized.GET("/courses", h.Course.List)

			// 报名命令与视图
			enrollments := authorized.Group("/enrollments")
			{
				enrollments.POST("", h.Enrollment.Enroll)
				enrollments.DELETE("", h.Enrollment.Unenroll)
				enrollments.GET("/view", h.Enrollment.MyView)
			}

			// 准入申请（学员提交；重复提交有限流兜底）
			authorized.POST("/requests",
				middleware.RateLimit(rdb, 10, time.Minute), h.Request.Create)

			// 学习进度上报
			authorized.POST("/progress", h.Progress.Mark)

			// 管理端
			admin := authorized.Group("/admin")
			admin.Use(middleware.RoleAuth("admin", "superadmin"))
			{
				admin.GET("/students/:student_id/view", h.Enrollment.StudentView)
				admin.POST("/requests/:request_id/approve", h.Request.Approve)
				admin.POST("/requests/:request_id/reject", h.Request.Reject)

				// 一致性巡检与修复
				admin.POST("/audit", h.Audit.Run)
				admin.POST("/remediate", h.Audit.Remediate)
				admin.GET("/audit/export", h.Audit.Export)
			}
		}
	}

	return r
}
