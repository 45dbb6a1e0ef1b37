package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/remedyq/remedyq/internal/model"
)

const redisOpTimeout = 5 * time.Second

// acquireScript takes or refreshes the lock hash when it is free, expired
// (the key TTL has lapsed), or already owned by the requesting holder.
var acquireScript = redis.NewScript(`
local h = redis.call('HGET', KEYS[1], 'holder')
if h == false or h == ARGV[1] then
  redis.call('HSET', KEYS[1], 'holder', ARGV[1], 'acquiredAt', ARGV[2], 'expiresAt', ARGV[3])
  redis.call('PEXPIRE', KEYS[1], ARGV[4])
  return 1
end
return 0
`)

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'holder') == ARGV[1] then
  redis.call('DEL', KEYS[1])
end
return 1
`)

// RedisStorage keeps the queue state in a single Redis key and the lock
// in a hash whose key TTL is the lock TTL, so expiry is native to the
// backend.
type RedisStorage struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStorage creates a Redis backend. An empty prefix defaults to
// "remedyq".
func NewRedisStorage(rdb redis.UniversalClient, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = "remedyq"
	}
	return &RedisStorage{rdb: rdb, prefix: prefix}
}

func (r *RedisStorage) stateKey() string { return r.prefix + ":state" }
func (r *RedisStorage) lockKey() string  { return r.prefix + ":lock" }

func (r *RedisStorage) Read() (*model.QueueState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := r.rdb.Get(ctx, r.stateKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		state := model.NewQueueState()
		state.Lock, err = r.GetLock()
		return state, err
	}
	if err != nil {
		return nil, fmt.Errorf("read queue state: %w", err)
	}

	var state model.QueueState
	if err := sonic.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode queue state: %w", err)
	}
	if state.Version != model.SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, state.Version, model.SchemaVersion)
	}
	if state.Stats.ByStatus == nil {
		state.Stats.ByStatus = map[model.ItemStatus]int{}
	}
	if state.Items == nil {
		state.Items = []model.QueueItem{}
	}

	state.Lock, err = r.GetLock()
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *RedisStorage) Write(state *model.QueueState) error {
	next := cloneState(state)
	next.Version = model.SchemaVersion
	next.UpdatedAt = time.Now().UTC()
	// The lock lives in its own key; never persist it into the document.
	next.Lock = nil

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode queue state: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.rdb.Set(ctx, r.stateKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("write queue state: %w", err)
	}
	return nil
}

func (r *RedisStorage) AcquireLock(holder string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	now := time.Now().UTC()
	res, err := acquireScript.Run(ctx, r.rdb, []string{r.lockKey()},
		holder,
		now.Format(time.RFC3339Nano),
		now.Add(ttl).Format(time.RFC3339Nano),
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return res == 1, nil
}

func (r *RedisStorage) ReleaseLock(holder string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := releaseScript.Run(ctx, r.rdb, []string{r.lockKey()}, holder).Err(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func (r *RedisStorage) IsLocked() (bool, error) {
	lock, err := r.GetLock()
	if err != nil {
		return false, err
	}
	return lock != nil && !lock.Expired(time.Now().UTC()), nil
}

func (r *RedisStorage) GetLock() (*model.QueueLock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	fields, err := r.rdb.HGetAll(ctx, r.lockKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("read lock: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	acquiredAt, err := time.Parse(time.RFC3339Nano, fields["acquiredAt"])
	if err != nil {
		return nil, fmt.Errorf("parse lock acquiredAt: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expiresAt"])
	if err != nil {
		return nil, fmt.Errorf("parse lock expiresAt: %w", err)
	}
	return &model.QueueLock{
		Holder:     fields["holder"],
		AcquiredAt: acquiredAt,
		ExpiresAt:  expiresAt,
	}, nil
}
