package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/24Tech-io/nursepor-stable-sub005/config"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/api/handler"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/api/router"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/event"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/repository"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/service"
	"github.com/24Tech-io/nursepor-stable-sub005/pkg/database"
	"github.com/24Tech-io/nursepor-stable-sub005/pkg/jwt"
	"github.com/24Tech-io/nursepor-stable-sub005/pkg/lock"
	applogger "github.com/24Tech-io/nursepor-stable-sub005/pkg/logger"
	"github.com/24Tech-io/nursepor-stable-sub005/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	var rdb *redis.Client
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，视图缓存/广播/黑名单功能将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 初始化 JWT 管理器与配对锁
	jwtMgr := jwt.NewManager(&cfg.Auth)
	locks := lock.NewManager()

	// 6. 事件总线与广播路由
	bus := event.NewBus(logger)
	var sink event.Sink = event.NopSink{}
	if rdb != nil {
		sink = rdb
	}
	event.NewRouter(sink, logger).Bind(bus)

	// 7. 依赖注入: Repository → Service → Handler
	var cache service.ViewCache
	if rdb != nil {
		cache = rdb
	}
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, locks, bus, cache, logger)
	h := handler.NewHandler(svc)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 9. 后台巡检定时器（可选）
	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()
	if cfg.Engine.AuditEnabled {
		go runAuditLoop(auditCtx, svc.Audit, cfg.Engine.AuditInterval, logger)
	}

	// 10. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 11. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))
	stopAudit()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	closeDB, _ := db.DB()
	if closeDB != nil {
		closeDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}

// runAuditLoop 周期性执行一致性巡检，结果走 audit.completed 事件广播
func runAuditLoop(ctx context.Context, audit service.AuditService, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("后台巡检已启动", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("后台巡检已停止")
			return
		case <-ticker.C:
			if _, err := audit.Run(ctx); err != nil {
				logger.Error("后台巡检执行失败", zap.Error(err))
			}
		}
	}
}
