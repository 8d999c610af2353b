package service

import "sync"

// packLockManager 以内容包为粒度提供生成互斥，保证同一内容包
// 同一时刻至多一次生成在进行。锁在释放时立即回收，不做驻留。
type packLockManager struct {
	mu    sync.Mutex
	inUse map[uint]bool
}

func newPackLockManager() *packLockManager {
	return &packLockManager{inUse: make(map[uint]bool)}
}

// TryAcquire 尝试获取指定内容包的生成锁。已被占用时返回 false，
// 调用方应立即拒绝而不是排队等待。成功时返回释放函数。
func (m *packLockManager) TryAcquire(packID uint) (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inUse[packID] {
		return nil, false
	}
	m.inUse[packID] = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.inUse, packID)
			m.mu.Unlock()
		})
	}
	return release, true
}
