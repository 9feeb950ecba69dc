package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

// ErrLockTimeout is returned when the key stays held past the caller's wait budget.
var ErrLockTimeout = errors.New("timed out waiting for report lock")

// only the holder's token may delete the key
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extends the TTL only while the caller still owns the key
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker serialises report writers across API and worker instances.
type RedisLocker struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	retry   time.Duration
	maxWait time.Duration
}

// NewRedisLocker builds a RedisLocker. ttl bounds how long a crashed holder can block the key.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client:  client,
		prefix:  "tankcontrol:lock:",
		ttl:     ttl,
		retry:   50 * time.Millisecond,
		maxWait: ttl,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// release must run even if the request context was cancelled
			if err := releaseScript.Run(context.Background(), l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				logger.Warnf("> 释放锁 %s 失败: %v", key, err)
			}
		})
	}, nil
}

// keepAlive pushes the key's expiry forward every ttl/3 until stop is closed,
// so a holder slower than the TTL keeps the lock.
func (l *RedisLocker) keepAlive(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			owned, err := refreshScript.Run(context.Background(), l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
			if err != nil {
				logger.Warnf("> 锁 %s 续期失败: %v", redisKey, err)
				continue
			}
			if owned == 0 {
				logger.Warnf("> 锁 %s 已被其他实例持有，停止续期", redisKey)
				return
			}
		}
	}
}
