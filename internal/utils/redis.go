// 包 utils：Postgres/Redis 连接与自签证书工具，统一环境变量读取
package utils

import (
	"os"
	"strconv"
	"time"

	"travel-geo/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedisFromEnv：从 REDIS_HOST/REDIS_PORT/REDIS_PASS/REDIS_DB 打开客户端
// 约束：REDIS_DB 解析失败时回退到 0；读写超时较短，缓存不可用时不拖慢检测
func OpenRedisFromEnv() *redis.Client {
	addr := env("REDIS_HOST", "127.0.0.1") + ":" + env("REDIS_PORT", "6379")
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			db = n
		}
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     os.Getenv("REDIS_PASS"),
		DB:           db,
		DialTimeout:  time.Second,
		ReadTimeout:  300 * time.Millisecond,
		WriteTimeout: 300 * time.Millisecond,
	})
}
