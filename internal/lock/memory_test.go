package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryMutualExclusion(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if ok, _ := m.Acquire(ctx, "key-1", time.Minute); !ok {
		t.Fatal("first acquire should grant")
	}
	if ok, _ := m.Acquire(ctx, "key-1", time.Minute); ok {
		t.Fatal("second acquire should be busy")
	}
	if err := m.Release(ctx, "key-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := m.Acquire(ctx, "key-1", time.Minute); !ok {
		t.Fatal("acquire after release should grant")
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if ok, _ := m.Acquire(ctx, "key-1", 10*time.Millisecond); !ok {
		t.Fatal("acquire should grant")
	}
	time.Sleep(20 * time.Millisecond)
	if ok, _ := m.Acquire(ctx, "key-1", time.Minute); !ok {
		t.Fatal("acquire after expiry should grant")
	}
}

func TestMemorySingleWinnerUnderContention(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const contenders = 16
	granted := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.Acquire(ctx, "key-1", time.Minute)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 1 {
		t.Fatalf("expected exactly one grant, got %d", granted)
	}
}
