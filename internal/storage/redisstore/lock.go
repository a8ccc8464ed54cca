package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockKey = "promptlib:lock"

// DefaultLockTTL bounds how long a crashed holder blocks the snapshot.
const DefaultLockTTL = 30 * time.Second

var ErrLocked = errors.New("prompt library is in use by another process")

var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// Lock gives one process exclusive write access to the snapshot under a key
// prefix. Every cache writes whole keys from memory, so two caches on the
// same prefix would overwrite each other.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
	log    *zap.Logger

	stop chan struct{}
	done chan struct{}
}

// AcquireLock takes the lock for holder or fails with ErrLocked. The lock is
// refreshed in the background until Release.
func AcquireLock(ctx context.Context, client *redis.Client, prefix, holder string, ttl time.Duration, log *zap.Logger) (*Lock, error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	key := fmt.Sprintf("%s%s", prefix, lockKey)
	token := holder + "/" + uuid.NewString()

	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to take %s: %w", key, err)
	}
	if !ok {
		current, _ := client.Get(ctx, key).Result()
		if i := strings.LastIndex(current, "/"); i > 0 {
			current = current[:i]
		}
		return nil, fmt.Errorf("%w (held by %q)", ErrLocked, current)
	}

	l := &Lock{
		client: client,
		key:    key,
		token:  token,
		ttl:    ttl,
		log:    log.Named("Lock"),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.keepAlive()
	return l, nil
}

func (l *Lock) keepAlive() {
	defer close(l.done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			held, err := l.refresh(ctx)
			cancel()
			switch {
			case err != nil:
				l.log.Warn("Failed to refresh library lock", zap.String("key", l.key), zap.Error(err))
			case !held:
				l.log.Error("Library lock lost to another process", zap.String("key", l.key))
			}
		}
	}
}

// refresh extends the TTL while the lock is still ours.
func (l *Lock) refresh(ctx context.Context) (bool, error) {
	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release stops the refresher and deletes the key if it is still ours.
func (l *Lock) Release(ctx context.Context) error {
	select {
	case <-l.stop:
		return nil
	default:
		close(l.stop)
	}
	<-l.done

	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release %s: %w", l.key, err)
	}
	return nil
}
