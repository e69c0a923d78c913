package geocode

import (
	"context"
	"encoding/json"
	"time"

	"travel-geo/internal/logger"
	"travel-geo/internal/metrics"
	"travel-geo/internal/revgeo"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// 文档注释：反地理结果两级缓存（进程内 LRU → Redis → 上游）
// 背景：旅行中连续定位点高度聚集，缓存可显著降低上游请求量；键为 geohash 网格。
// 约束：仅缓存成功结果，失败不缓存以免把短暂网络问题固化；rc 为 nil 时只使用进程内缓存。
type Cached struct {
	next      Geocoder
	lru       *expirable.LRU[string, Result]
	rc        *redis.Client
	ttl       time.Duration
	precision int
}

func NewCached(next Geocoder, size int, ttl time.Duration, precision int, rc *redis.Client) *Cached {
	if size <= 0 {
		size = 4096
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cached{
		next:      next,
		lru:       expirable.NewLRU[string, Result](size, nil, ttl),
		rc:        rc,
		ttl:       ttl,
		precision: precision,
	}
}

func (c *Cached) Lookup(ctx context.Context, lat, lng float64) (Result, error) {
	key := "revgeo:" + revgeo.Geohash(lat, lng, c.precision)
	if r, ok := c.lru.Get(key); ok {
		metrics.GeocodeCacheTotal.WithLabelValues("memory", "hit").Inc()
		return r, nil
	}
	metrics.GeocodeCacheTotal.WithLabelValues("memory", "miss").Inc()
	if c.rc != nil {
		if s, err := c.rc.Get(ctx, key).Result(); err == nil && s != "" {
			var r Result
			if json.Unmarshal([]byte(s), &r) == nil && r.CountryCode != "" {
				metrics.GeocodeCacheTotal.WithLabelValues("redis", "hit").Inc()
				c.lru.Add(key, r)
				return r, nil
			}
		} else if err != nil && err != redis.Nil {
			logger.L().Debug("geocode_cache_redis_error", "err", err)
		}
		metrics.GeocodeCacheTotal.WithLabelValues("redis", "miss").Inc()
	}
	r, err := c.next.Lookup(ctx, lat, lng)
	if err != nil {
		return Result{}, err
	}
	c.lru.Add(key, r)
	if c.rc != nil {
		b, _ := json.Marshal(r)
		if err := c.rc.Set(ctx, key, string(b), c.ttl).Err(); err != nil {
			logger.L().Debug("geocode_cache_redis_set_error", "err", err)
		}
	}
	return r, nil
}
