package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestManager_MutualExclusion(t *testing.T) {
	m := NewManager()
	key := PairKey("stu-001", "course-001")

	const n = 32
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), key)
			if err != nil {
				t.Errorf("Acquire 应成功: %v", err)
				return
			}
			defer release()
			// 临界区内无保护自增：互斥失效时竞态检测器和计数都会暴露
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != n {
		t.Errorf("期望计数=%d，实际=%d（互斥被破坏）", n, counter)
	}
}

func TestManager_DifferentPairsConcurrent(t *testing.T) {
	m := NewManager()

	release1, err := m.Acquire(context.Background(), PairKey("stu-001", "course-001"))
	if err != nil {
		t.Fatalf("Acquire 应成功: %v", err)
	}
	defer release1()

	// 不同配对不应互相阻塞
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release2, err := m.Acquire(ctx, PairKey("stu-001", "course-002"))
	if err != nil {
		t.Fatalf("不同配对的 Acquire 不应被阻塞: %v", err)
	}
	release2()
}

func TestManager_AcquireTimeout(t *testing.T) {
	m := NewManager()
	key := PairKey("stu-001", "course-001")

	release, err := m.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("Acquire 应成功: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx, key); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("持锁期间二次获取应超时，实际: %v", err)
	}

	// 释放后可立即再获取
	release()
	release2, err := m.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("释放后 Acquire 应成功: %v", err)
	}
	release2()
}

func TestManager_ReleaseIdempotent(t *testing.T) {
	m := NewManager()
	key := PairKey("stu-001", "course-001")

	release, err := m.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("Acquire 应成功: %v", err)
	}
	release()
	release() // 二次释放应为空操作

	release2, err := m.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("重复释放后 Acquire 应成功: %v", err)
	}
	release2()
}

func TestManager_EntryReclaimed(t *testing.T) {
	m := NewManager()
	key := PairKey("stu-001", "course-001")

	release, err := m.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("Acquire 应成功: %v", err)
	}
	release()

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pairs) != 0 {
		t.Errorf("引用计数归零后锁条目应被回收，剩余=%d", len(m.pairs))
	}
}
