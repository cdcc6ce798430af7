package lock

import (
	"context"
	"sync"
)

// Manager (studentID, courseID) 配对互斥锁管理器
//
// 设计说明：
//   - 粒度为"学生×课程"配对，同一学生不同课程的命令可并发执行，
//     同一配对的命令严格串行
//   - Acquire 支持 context 取消/超时：等待中的调用方超时后干净退出，
//     不持有任何资源，由调用方转换为可重试错误
//   - 锁条目按需创建、引用计数归零后回收，避免长期运行下 map 无限增长
type Manager struct {
	mu    sync.Mutex
	pairs map[string]*pairLock
}

type pairLock struct {
	sem  chan struct{} // 容量 1 的信号量
	refs int
}

// NewManager 创建锁管理器
func NewManager() *Manager {
	return &Manager{pairs: make(map[string]*pairLock)}
}

// PairKey 生成配对锁键
func PairKey(studentID, courseID string) string {
	return studentID + "/" + courseID
}

// Acquire 获取配对锁，阻塞直到持有或 ctx 结束。
// 成功时返回释放函数；释放函数幂等，可安全地 defer 调用多次。
// ctx 结束时返回 ctx.Err()，此时调用方未持有锁，无需释放。
func (m *Manager) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	pl, ok := m.pairs[key]
	if !ok {
		pl = &pairLock{sem: make(chan struct{}, 1)}
		m.pairs[key] = pl
	}
	pl.refs++
	m.mu.Unlock()

	select {
	case pl.sem <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-pl.sem
				m.unref(key, pl)
			})
		}
		return release, nil
	case <-ctx.Done():
		m.unref(key, pl)
		return nil, ctx.Err()
	}
}

func (m *Manager) unref(key string, pl *pairLock) {
	m.mu.Lock()
	pl.refs--
	if pl.refs == 0 {
		delete(m.pairs, key)
	}
	m.mu.Unlock()
}
