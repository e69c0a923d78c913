package photos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"travel-geo/internal/logger"

	"github.com/redis/go-redis/v9"
)

// 文档注释：按国家代码缓存图片列表到 Redis（键 photos:<CODE>）
// 约束：只缓存非空结果；Redis 不可用时直接透传到下游。
type Cached struct {
	next Enricher
	rc   *redis.Client
	ttl  time.Duration
}

func NewCached(next Enricher, rc *redis.Client, ttl time.Duration) Enricher {
	if rc == nil {
		return next
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cached{next: next, rc: rc, ttl: ttl}
}

func (c *Cached) FetchPhotos(ctx context.Context, name, code string) ([]string, error) {
	key := "photos:" + strings.ToUpper(code)
	if s, err := c.rc.Get(ctx, key).Result(); err == nil {
		var urls []string
		if json.Unmarshal([]byte(s), &urls) == nil && len(urls) > 0 {
			return urls, nil
		}
	} else if err != redis.Nil {
		logger.L().Debug("photo_cache_redis_error", "err", err)
	}
	urls, err := c.next.FetchPhotos(ctx, name, code)
	if err != nil || len(urls) == 0 {
		return urls, err
	}
	b, _ := json.Marshal(urls)
	if err := c.rc.Set(ctx, key, string(b), c.ttl).Err(); err != nil {
		logger.L().Debug("photo_cache_redis_set_error", "err", err)
	}
	return urls, nil
}
