package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zzy10151020/MBTI-System-sub000/internal/services"
)

const defaultKeyPrefix = "mbti:stats:"

// StatisticsCache stores aggregation results in Redis as JSON with a TTL, next to a
// per-questionnaire generation counter. Every Redis error is logged and treated as a miss.
type StatisticsCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ services.StatisticsCache = (*StatisticsCache)(nil)

type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

func NewClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

func NewStatisticsCache(client *redis.Client, opts Options) *StatisticsCache {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StatisticsCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *StatisticsCache) key(questionnaireID string) string { return c.prefix + questionnaireID }

func (c *StatisticsCache) genKey(questionnaireID string) string {
	return c.prefix + questionnaireID + ":gen"
}

// errStale aborts a fill whose generation was overtaken by an invalidation.
var errStale = errors.New("stale statistics generation")

func (c *StatisticsCache) GetStatistics(ctx context.Context, questionnaireID string) (*services.Statistics, int64, bool) {
	key := c.key(questionnaireID)
	vals, err := c.client.MGet(ctx, key, c.genKey(questionnaireID)).Result()
	if err != nil {
		log.Printf("redis mget %s: %v", key, err)
		return nil, -1, false
	}
	gen, err := parseGen(vals[1])
	if err != nil {
		log.Printf("redis gen %s: %v", key, err)
		return nil, -1, false
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, false
	}
	var st services.Statistics
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		log.Printf("redis decode %s: %v", key, err)
		return nil, gen, false
	}
	if st.Distribution == nil {
		st.Distribution = map[string]int{}
	}
	return &st, gen, true
}

func parseGen(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected generation value %T", v)
	}
	return strconv.ParseInt(s, 10, 64)
}

// SetStatistics stores st only while the generation is still gen. The generation key is
// watched so an invalidation landing between the check and the write aborts the write.
func (c *StatisticsCache) SetStatistics(ctx context.Context, questionnaireID string, gen int64, st *services.Statistics) {
	if gen < 0 {
		return
	}
	key, genKey := c.key(questionnaireID), c.genKey(questionnaireID)
	val, err := json.Marshal(st)
	if err != nil {
		log.Printf("redis encode %s: %v", key, err)
		return
	}
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, val, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil, errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
	default:
		log.Printf("redis set %s: %v", key, err)
	}
}

// InvalidateStatistics drops the cached value and advances the generation.
func (c *StatisticsCache) InvalidateStatistics(ctx context.Context, questionnaireID string) {
	key, genKey := c.key(questionnaireID), c.genKey(questionnaireID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		log.Printf("redis invalidate %s: %v", key, err)
	}
}
