package event

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// 管理端广播房间
const (
	ChannelAdmins    = "admins"           // 全体管理员
	ChannelRequests  = "admins:requests"  // 审批看板
	ChannelAnalytics = "admins:analytics" // 数据分析面板
)

// Sink 频道投递出口（Redis PUB/SUB 等外部通道的抽象）
type Sink interface {
	Push(ctx context.Context, channel string, e Event) error
}

// Router 广播路由器
//
// 订阅事件总线，把领域事件扇出到学生私有频道（user:{studentId}）
// 与静态路由表命中的管理端房间。路由是"事件类型 → 频道集合"的
// 固定映射，不含按事件内容分支的业务逻辑。
type Router struct {
	sink   Sink
	routes map[Type][]string
	logger *zap.Logger
}

// NewRouter 创建广播路由器（静态路由表在此定义）
func NewRouter(sink Sink, logger *zap.Logger) *Router {
	return &Router{
		sink:   sink,
		logger: logger,
		routes: map[Type][]string{
			TypeEnrollmentCreated: {ChannelAdmins, ChannelAnalytics},
			TypeEnrollmentRemoved: {ChannelAdmins, ChannelAnalytics},
			TypeProgressUpdated:   {ChannelAnalytics},
			TypeRequestCreated:    {ChannelAdmins, ChannelRequests},
			TypeRequestApproved:   {ChannelAdmins, ChannelRequests},
			TypeRequestRejected:   {ChannelAdmins, ChannelRequests},
			TypeAuditCompleted:    {ChannelAnalytics},
		},
	}
}

// Bind 挂接到事件总线
func (r *Router) Bind(bus *Bus) {
	bus.Subscribe(r.Route)
}

// Route 处理单个事件的扇出
func (r *Router) Route(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	channels := make([]string, 0, 4)
	if e.UserID != "" {
		channels = append(channels, "user:"+e.UserID)
	}
	channels = append(channels, r.routes[e.Type]...)

	for _, ch := range channels {
		if err := r.sink.Push(ctx, ch, e); err != nil {
			r.logger.Warn("广播投递失败",
				zap.String("channel", ch),
				zap.String("type", string(e.Type)),
				zap.Error(err),
			)
		}
	}
}

// NopSink 空投递出口（Redis 不可用时降级运行）
type NopSink struct{}

// Push 丢弃事件
func (NopSink) Push(context.Context, string, Event) error { return nil }
