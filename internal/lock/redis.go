package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// pollInterval is how often a waiting Lock retries SET NX.
const pollInterval = 100 * time.Millisecond

// unlockScript deletes the key only if it still holds our token, so a
// holder whose lock expired cannot release someone else's.
var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Redis is a Locker shared by every replica using the same Redis and prefix.
type Redis struct {
	client *backend.Client
	prefix string
}

// NewRedis creates a Redis locker. Keys are stored as prefix + "lock:" + key.
func NewRedis(client *backend.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Key returns the Redis key used for key.
func (r *Redis) Key(key string) string {
	return r.prefix + "lock:" + key
}

// Lock implements Locker using SET NX PX, polling until the key is free.
func (r *Redis) Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	lockKey := r.Key(key)
	token := uuid.NewString()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrLockAcquire, lockKey, err)
		}
		if ok {
			return r.unlocker(lockKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Redis) unlocker(lockKey, token string) UnlockFunc {
	var (
		once sync.Once
		err  error
	)
	return func(ctx context.Context) error {
		once.Do(func() {
			if e := unlockScript.Run(ctx, r.client, []string{lockKey}, token).Err(); e != nil {
				err = fmt.Errorf("release lock %s: %w", lockKey, e)
			}
		})
		return err
	}
}
