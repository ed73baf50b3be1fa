package redisstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockNotHeld is returned by Release when the caller's token no
// longer matches the key, meaning the lease already expired and
// possibly a different holder acquired it.
var ErrLockNotHeld = errors.New("redisstate: lock not held")

// unlockScript only deletes the key if it still holds our token,
// preventing a slow caller from releasing a lease another holder has
// since acquired.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// Lock is a SETNX-based distributed mutex keyed by (room_id, series),
// standing in for original_source's pg_advisory_xact_lock in the
// original-tracking protocol (spec.md §4.B). MySQL's GET_LOCK is
// connection-scoped and doesn't compose with GORM's pooled
// connections, so the lock lives in Redis instead, which this service
// already depends on for presence state.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewOriginalLock builds the lock for one (room_id, series) pair;
// CreateEvent passes "set/label" as the series, so the lock is held
// per (room, set, label). Call
// Acquire before running the stamping transaction and Release
// (deferred) once it commits or rolls back.
func NewOriginalLock(client *redis.Client, keyPrefix string, roomID uuid.UUID, setID string) *Lock {
	if keyPrefix == "" {
		keyPrefix = "event:"
	}
	return &Lock{
		client: client,
		key:    fmt.Sprintf("%slock:original:%s:%s", keyPrefix, roomID, setID),
		token:  uuid.New().String(),
		ttl:    5 * time.Second,
	}
}

// Acquire blocks, polling at a fixed interval, until the lock is
// obtained or ctx is done.
func (l *Lock) Acquire(ctx context.Context) error {
	for {
		ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("redisstate: acquire lock %s: %w", l.key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// Release drops the lock if this instance still holds it.
func (l *Lock) Release(ctx context.Context) error {
	res, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.token).Result()
	if err != nil {
		return fmt.Errorf("redisstate: release lock %s: %w", l.key, err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
