package lock

import (
	"context"
	"sync"
	"time"
)

type memoryManager struct {
	mu    sync.Mutex
	leases map[string]time.Time // key -> expiry
}

// NewMemory creates an in-process Manager with the same grant/expiry
// semantics as the Redis implementation. Useful for tests and dev mode.
func NewMemory() Manager {
	return &memoryManager{leases: make(map[string]time.Time)}
}

func (m *memoryManager) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if expiry, held := m.leases[key]; held && time.Now().Before(expiry) {
		return false, nil
	}
	m.leases[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *memoryManager) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, key)
	return nil
}

func (m *memoryManager) Close() error {
	return nil
}

type noopManager struct{}

// NewNoop returns a Manager that always grants. It disables advisory locking
// entirely, forcing all concurrency control through the store's isolation.
func NewNoop() Manager {
	return noopManager{}
}

func (noopManager) Acquire(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (noopManager) Release(context.Context, string) error                        { return nil }
func (noopManager) Close() error                                                 { return nil }
