package middleware

import (
	"net/http"
	"sync"
	"time"

	"travel-geo/internal/logger"
)

// 文档注释：令牌桶限流（每秒）
// 背景：定位点上报在弱网恢复时可能突发，入口限速保护上游反地理服务（公共 Nominatim 有严格配额）。
// 约束：简化实现，不排队，仅丢弃并返回 429。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	mu       sync.Mutex
	now      func() time.Time
}

func NewTokenBucket(qps int) *TokenBucket {
	if qps <= 0 {
		qps = 200
	}
	tb := &TokenBucket{capacity: qps, tokens: qps, now: time.Now}
	tb.lastSec = tb.now().Unix()
	return tb
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// RateLimit 包装处理器；enabled 为 false 时原样返回
func RateLimit(next http.Handler, enabled bool, qps int) http.Handler {
	if !enabled {
		return next
	}
	tb := NewTokenBucket(qps)
	logger.L().Info("rate_limit_enabled", "qps", tb.capacity)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.Allow() {
			logger.L().Debug("rate_limited", "path", r.URL.Path, "ip", r.RemoteAddr)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
