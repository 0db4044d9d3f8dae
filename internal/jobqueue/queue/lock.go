package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/premium/internal/jobqueue/domain"
)

const lockKeyPrefix = "premium:lock:"

// unlockScript deletes the key only while it still holds our token, so an
// expired lock taken over by another worker is left alone.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker implements domain.Locker with SET NX PX on a single redis.
type RedisLocker struct {
	client *redis.Client
	unlock *redis.Script
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	if client == nil {
		return nil
	}
	return &RedisLocker{client: client, unlock: redis.NewScript(unlockScript)}
}

// TryLock returns a release token and true when key was free.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, domain.ErrQueueUnavailable
	}
	key = strings.TrimSpace(key)
	if key == "" || ttl <= 0 {
		return "", false, fmt.Errorf("%w: key %q ttl %s", domain.ErrLockUnavailable, key, ttl)
	}

	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, lockKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, acquired, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	return l.unlock.Run(ctx, l.client, []string{lockKeyPrefix + strings.TrimSpace(key)}, token).Err()
}

// WithLock runs fn while holding key. It fails with ErrLockUnavailable when
// another holder has it. A nil locker runs fn unguarded.
func WithLock(ctx context.Context, locker domain.Locker, key string, ttl time.Duration, fn func(context.Context) error) error {
	if locker == nil {
		return fn(ctx)
	}
	token, acquired, err := locker.TryLock(ctx, key, ttl)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: %s", domain.ErrLockUnavailable, key)
	}
	defer func() { _ = locker.Release(context.WithoutCancel(ctx), key, token) }()
	return fn(ctx)
}
