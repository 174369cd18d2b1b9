package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisPrefix = "newshub:fetch:"

// Redis 多实例部署时共享的响应缓存；Redis 不可用时按未命中处理
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

type redisEnvelope struct {
	StoredAt time.Time            `json:"storedAt"`
	Items    []collector.NewsItem `json:"items"`
}

func NewRedis(addr string, ttl time.Duration) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})
	return NewRedisWithClient(client, ttl)
}

func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		log:    logger.Component("cache"),
	}
}

// Ping 启动时探测连通性，失败仅告警
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key Key) ([]collector.NewsItem, bool) {
	bs, err := r.client.Get(ctx, redisPrefix+key.String()).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.Warn().Err(err).Str("key", key.String()).Msg("redis get failed")
		}
		return nil, false
	}
	var env redisEnvelope
	if err := json.Unmarshal(bs, &env); err != nil {
		return nil, false
	}
	// Redis 过期之外再按写入时间校验一次，避免时钟偏差导致返回旧数据
	if r.now().Sub(env.StoredAt) >= r.ttl {
		return nil, false
	}
	return env.Items, true
}

func (r *Redis) Set(ctx context.Context, key Key, items []collector.NewsItem) {
	bs, err := json.Marshal(redisEnvelope{StoredAt: r.now(), Items: items})
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, redisPrefix+key.String(), bs, r.ttl).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", key.String()).Msg("redis set failed")
	}
}
