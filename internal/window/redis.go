package window

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares window entries between server instances.
// Keys are namespaced so lessons and reservations never collide.
type RedisStore struct {
	client    redis.Cmdable
	namespace string
	ttl       time.Duration
}

func NewRedisStore(client redis.Cmdable, namespace string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisStore{client: client, namespace: namespace, ttl: ttl}
}

// putIfCurrent sets KEYS[1] only while the generation in KEYS[2] equals ARGV[1].
const putIfCurrent = `
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`

func (s *RedisStore) key(resourceID string) string {
	return fmt.Sprintf("window:%s:%s", s.namespace, resourceID)
}

func (s *RedisStore) genKey(resourceID string) string {
	return fmt.Sprintf("window:%s:gen:%s", s.namespace, resourceID)
}

func (s *RedisStore) Get(ctx context.Context, resourceID string) (*Entry, bool, error) {
	const op = "window.RedisStore.Get"

	data, err := s.client.Get(ctx, s.key(resourceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("%s: decode entry: %w", op, err)
	}
	return &entry, true, nil
}

func (s *RedisStore) Generation(ctx context.Context, resourceID string) (uint64, error) {
	const op = "window.RedisStore.Generation"

	gen, err := s.client.Get(ctx, s.genKey(resourceID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return gen, nil
}

func (s *RedisStore) Put(ctx context.Context, entry Entry, gen uint64) (bool, error) {
	const op = "window.RedisStore.Put"

	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("%s: encode entry: %w", op, err)
	}

	keys := []string{s.key(entry.ResourceID), s.genKey(entry.ResourceID)}
	stored, err := s.client.Eval(ctx, putIfCurrent, keys,
		strconv.FormatUint(gen, 10), data, s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return stored == 1, nil
}

func (s *RedisStore) Invalidate(ctx context.Context, resourceID string) error {
	const op = "window.RedisStore.Invalidate"

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(resourceID))
		pipe.Incr(ctx, s.genKey(resourceID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
