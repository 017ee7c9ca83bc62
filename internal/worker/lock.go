package worker

import (
	"context"
	"fmt"
	"time"

	"legalmind/internal/redis"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Locker serializes a key across processes sharing one store.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

const (
	redisLockPrefix    = "legalmind:turnlock:"
	defaultLockTTL     = 2 * time.Minute
	defaultLockBackoff = 50 * time.Millisecond
)

// only the holder's token may delete the lock
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker is a SET NX lease per key. The lease expires on its own if the holder dies.
type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	backoff time.Duration
}

// NewRedisLocker returns a locker whose leases last ttl; ttl should exceed the longest turn.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl, backoff: defaultLockBackoff}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := redisLockPrefix + key
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire turn lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	release := func() {
		// the turn's ctx may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := l.client.RunScript(ctx, unlockScript, []string{lockKey}, token); err != nil {
			debugLogger().Warn("release turn lock failed", "key", key, "error", err)
		}
	}
	return release, nil
}
