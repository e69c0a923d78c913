// 包 config：从 .env 与环境变量读取服务配置；非法数值回退为默认值
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr    string
	APIBase string

	GeocoderBaseURL   string
	GeocoderUserAgent string
	GeocoderTimeout   time.Duration
	GeocodeCacheSize  int
	GeocodeCacheTTL   time.Duration

	PhotosEnabled bool
	PhotosBaseURL string
	PhotosTimeout time.Duration

	ConfirmThreshold int
	ConfirmTimeout   time.Duration
	SessionIdle      time.Duration

	// CatalogSource 为 embedded 或 postgres
	CatalogSource string
	CatalogPath   string

	RedisEnabled bool
	PGEnabled    bool

	RateLimitEnabled bool
	RateLimitQPS     int

	TLSEnable   bool
	TLSCertPath string
	TLSKeyPath  string
}

// LoadDotEnv 依次加载 .env 与 data/env/.env；文件不存在时忽略，已存在的环境变量不被覆盖
func LoadDotEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// 文档注释：读取配置
// 背景：所有参数均有默认值，零配置即可在本地运行（内嵌目录、无 Redis/Postgres、公共 Nominatim 与 Wikipedia）。
// 约束：Postgres 仅在 CATALOG_SOURCE=postgres 时启用；Redis 需显式 REDIS_ENABLED=true。
func Load() Config {
	c := Config{
		Addr:              str("ADDR", ":8080"),
		APIBase:           strings.TrimRight(str("API_BASE", "/api"), "/"),
		GeocoderBaseURL:   str("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent: str("GEOCODER_USER_AGENT", "travel-geo/1.0"),
		GeocoderTimeout:   millis("GEOCODER_TIMEOUT_MS", 5000),
		GeocodeCacheSize:  integer("GEOCODE_CACHE_SIZE", 4096),
		GeocodeCacheTTL:   seconds("GEOCODE_CACHE_TTL_S", 3600),
		PhotosEnabled:     boolean("PHOTOS_ENABLED", true),
		PhotosBaseURL:     str("PHOTOS_BASE_URL", "https://es.wikipedia.org/w/api.php"),
		PhotosTimeout:     millis("PHOTOS_TIMEOUT_MS", 8000),
		ConfirmThreshold:  integer("CONFIRM_THRESHOLD", 3),
		ConfirmTimeout:    seconds("CONFIRM_TIMEOUT_S", 30),
		SessionIdle:       seconds("SESSION_IDLE_TIMEOUT_S", 3600),
		CatalogSource:     strings.ToLower(str("CATALOG_SOURCE", "embedded")),
		CatalogPath:       os.Getenv("CATALOG_PATH"),
		RedisEnabled:      boolean("REDIS_ENABLED", false),
		RateLimitEnabled:  boolean("RATE_LIMIT_ENABLED", false),
		RateLimitQPS:      integer("RATE_LIMIT_QPS", 200),
		TLSEnable:         boolean("TLS_ENABLE", false),
		TLSCertPath:       str("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		TLSKeyPath:        str("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
	}
	c.PGEnabled = c.CatalogSource == "postgres"
	if c.APIBase == "" {
		c.APIBase = "/api"
	}
	return c
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func integer(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func boolean(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func millis(key string, def int) time.Duration {
	return time.Duration(integer(key, def)) * time.Millisecond
}

func seconds(key string, def int) time.Duration {
	return time.Duration(integer(key, def)) * time.Second
}
