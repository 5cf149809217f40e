package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const redisKeyPrefix = "paysite:webhook:"

// RedisLedger stores one key per processed event, optionally expiring.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
	script *redis.Script
}

// NewRedisLedger keeps marks for ttl; zero keeps them forever.
func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{
		client: client,
		ttl:    ttl,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *RedisLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	id, err := normalizeID(eventID)
	if err != nil {
		return false, err
	}
	n, err := l.client.Exists(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *RedisLedger) Mark(ctx context.Context, eventID string) (bool, error) {
	id, err := normalizeID(eventID)
	if err != nil {
		return false, err
	}
	return l.client.SetNX(ctx, redisKeyPrefix+id, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
}

func (l *RedisLedger) TryLock(ctx context.Context, eventID string, ttl time.Duration) (func(context.Context) error, bool, error) {
	id, err := normalizeID(eventID)
	if err != nil {
		return nil, false, err
	}
	if ttl <= 0 {
		return nil, false, errors.New("lock ttl must be positive")
	}

	key := redisKeyPrefix + "lock:" + id
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release := func(ctx context.Context) error {
		return l.script.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

var (
	_ Ledger         = (*RedisLedger)(nil)
	_ InFlightLocker = (*RedisLedger)(nil)
)
