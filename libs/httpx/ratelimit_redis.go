package httpx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindowStore is a WindowStore shared by every instance of the service.
type RedisWindowStore struct {
	rdb redis.Scripter
}

// Returns the post-increment count and the remaining TTL in milliseconds.
var redisFixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

func NewRedisWindowStore(rdb redis.Scripter) *RedisWindowStore {
	return &RedisWindowStore{rdb: rdb}
}

func (s *RedisWindowStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = int64(time.Minute / time.Millisecond)
	}
	res, err := redisFixedWindowScript.Run(ctx, s.rdb, []string{key}, ms).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	vals, ok := res.([]any)
	if !ok || len(vals) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected redis script result %T", res)
	}
	count, err := toInt64(vals[0])
	if err != nil {
		return 0, time.Time{}, err
	}
	ttl, err := toInt64(vals[1])
	if err != nil {
		return 0, time.Time{}, err
	}
	if ttl < 0 {
		ttl = ms
	}
	return count, time.Now().Add(time.Duration(ttl) * time.Millisecond), nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		// Lua sometimes returns strings depending on Redis config/driver conversions.
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected redis value type %T", v)
	}
}
