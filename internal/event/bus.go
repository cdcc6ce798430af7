package event

import (
	"sync"

	"go.uber.org/zap"
)

// Handler 事件订阅回调
type Handler func(Event)

// Bus 进程内同步事件总线
//
// Publish 在调用方 goroutine 内依次投递给所有订阅方。
// 订阅方 panic 被捕获并记录日志，绝不回传到发出事件的命令——
// 命令事务此时已提交，通知失败不构成命令失败。
type Bus struct {
	mu     sync.RWMutex
	subs   []Handler
	logger *zap.Logger
}

// NewBus 创建事件总线
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe 注册订阅方；注册后对后续 Publish 立即生效
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, h)
}

// Publish 同步投递事件给全部订阅方
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]Handler, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, h := range subs {
		b.deliver(h, e)
	}
}

func (b *Bus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("事件订阅方 panic，已隔离",
				zap.String("type", string(e.Type)),
				zap.Any("panic", r),
			)
		}
	}()
	h(e)
}
