package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lock:transfer:v1:"

// releaseScript deletes the key only if it still carries our token, so a lock
// that expired and was re-acquired by someone else is never released from
// under them.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisManager implements Manager on a shared Redis instance using SET NX PX.
type RedisManager struct {
	client *redis.Client

	mu     sync.Mutex
	tokens map[string]string // key -> holder token for outstanding grants
}

// NewRedis wraps an already-connected Redis client. The manager owns the
// client from this point; Close disconnects it.
func NewRedis(client *redis.Client) *RedisManager {
	return &RedisManager{client: client, tokens: make(map[string]string)}
}

// Acquire takes the lock with a fresh holder token. SetNX is the atomic
// create-if-absent-with-expiry primitive; there is no check-then-set window.
func (m *RedisManager) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	m.mu.Lock()
	m.tokens[key] = token
	m.mu.Unlock()
	return true, nil
}

// Release drops the lock if the stored token is still ours.
func (m *RedisManager) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	token, held := m.tokens[key]
	delete(m.tokens, key)
	m.mu.Unlock()
	if !held {
		return nil
	}
	return releaseScript.Run(ctx, m.client, []string{keyPrefix + key}, token).Err()
}

// Close disconnects the underlying client.
func (m *RedisManager) Close() error {
	return m.client.Close()
}
