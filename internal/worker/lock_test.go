package worker

import (
	"context"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"legalmind/internal/config"
	"legalmind/internal/redis"

	"github.com/google/uuid"
)

func TestRedisLockerExcludesHolders(t *testing.T) {
	locker, cleanup := newTestRedisLocker(t)
	defer cleanup()

	key := "test-" + uuid.NewString()
	var inside, overlap int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), key)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.StoreInt32(&overlap, 1)
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	if overlap != 0 {
		t.Fatalf("two holders inside the lock at once")
	}
}

func TestRedisLockerRespectsContext(t *testing.T) {
	locker, cleanup := newTestRedisLocker(t)
	defer cleanup()

	key := "test-" + uuid.NewString()
	release, err := locker.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(ctx, key); err == nil {
		t.Fatalf("expected second acquire to time out")
	}
}

func TestDispatcherWithRedisLocker(t *testing.T) {
	locker, cleanup := newTestRedisLocker(t)
	defer cleanup()

	d := NewDispatcher(DispatcherConfig{MinWorkers: 1, MaxWorkers: 2, QueueSize: 8, Locker: locker})
	defer d.Close()

	ran := false
	if err := d.Do(context.Background(), "test-"+uuid.NewString(), func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if !ran {
		t.Fatalf("job did not run")
	}
}

func newTestRedisLocker(t *testing.T) (*RedisLocker, func()) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed worker tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Host: host,
			Port: port,
			DB:   db,
		},
	}
	client, err := redis.NewRedisClient(cfg)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	return NewRedisLocker(client, 5*time.Second), func() { client.Close() }
}
