package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"jobwatch-engine/internal/seen"
)

// RedisSeenStore keeps the seen set in one hash: field = identifier,
// value = first-seen date. It satisfies seen.Store.
type RedisSeenStore struct {
	rdb       *redis.Client
	key       string
	retention time.Duration
	now       func() time.Time
}

func NewRedisSeenStore(rdb *redis.Client, key string, retention time.Duration, now func() time.Time) *RedisSeenStore {
	if key == "" {
		key = "jobwatch:seen"
	}
	if retention <= 0 {
		retention = seen.DefaultRetention
	}
	if now == nil {
		now = time.Now
	}
	return &RedisSeenStore{rdb: rdb, key: key, retention: retention, now: now}
}

// DialRedis connects to addr and pings it.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *RedisSeenStore) Load(ctx context.Context) (*seen.Set, error) {
	m, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("seen redis: hgetall %s: %w", s.key, err)
	}

	today := seen.Today(s.now())
	set := seen.NewSet()
	for id, raw := range m {
		day, ok := seen.ParseDate(raw)
		if !ok {
			day = today
		}
		set.MarkIfNew(id, day)
	}

	pruned := set.Prune(today, s.retention)
	log.Printf("[seen] loaded backend=redis key=%q entries=%d pruned=%d", s.key, set.Len(), pruned)
	return set, nil
}

// Save swaps the hash for the content of set atomically.
func (s *RedisSeenStore) Save(ctx context.Context, set *seen.Set) error {
	enc := set.Encode()
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.key)
		if len(enc) > 0 {
			fields := make(map[string]any, len(enc))
			for id, day := range enc {
				fields[id] = day
			}
			p.HSet(ctx, s.key, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seen redis: save %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisSeenStore) Close() error {
	return s.rdb.Close()
}
