// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travel-geo/internal/api"
	"travel-geo/internal/catalog"
	"travel-geo/internal/config"
	"travel-geo/internal/detector"
	"travel-geo/internal/geocode"
	"travel-geo/internal/logger"
	"travel-geo/internal/metrics"
	"travel-geo/internal/middleware"
	"travel-geo/internal/migrate"
	"travel-geo/internal/observability"
	"travel-geo/internal/photos"
	"travel-geo/internal/revgeo"
	"travel-geo/internal/session"
	"travel-geo/internal/store"
	"travel-geo/internal/utils"
	"travel-geo/internal/version"

	"github.com/redis/go-redis/v9"
)

func main() {
	config.LoadDotEnv()
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg := config.Load()
	l.Info("config_loaded", "addr", cfg.Addr, "base", cfg.APIBase, "catalog", cfg.CatalogSource, "commit", version.Commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), l)
	if err != nil {
		l.Error("tracing_init_error", "err", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, l)

	// 目录：内嵌（默认）/ JSON 文件 / Postgres；校验失败直接退出
	cat, err := loadCatalog(ctx, cfg)
	if err != nil {
		l.Error("catalog_load_error", "err", err)
		os.Exit(1)
	}
	l.Info("catalog_ready", "countries", cat.Len(), "currencies", len(cat.Currencies()))

	var rc *redis.Client
	if cfg.RedisEnabled {
		rc = utils.OpenRedisFromEnv()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
		defer rc.Close()
	} else {
		l.Info("redis_disabled")
	}

	httpClient := &http.Client{Timeout: cfg.PhotosTimeout}
	var g geocode.Geocoder = geocode.NewNominatim(cfg.GeocoderBaseURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout, nil)
	g = geocode.NewCached(g, cfg.GeocodeCacheSize, cfg.GeocodeCacheTTL, 7, rc)
	det := detector.New(cat, revgeo.NewResolver(cat), g, cfg.GeocoderTimeout)

	opts := session.Options{
		Threshold:    cfg.ConfirmThreshold,
		Timeout:      cfg.ConfirmTimeout,
		PhotoTimeout: cfg.PhotosTimeout,
	}
	if cfg.PhotosEnabled {
		opts.Photos = photos.NewCached(photos.NewWikipedia(cfg.PhotosBaseURL, cfg.GeocoderUserAgent, cfg.PhotosTimeout, httpClient), rc, 24*time.Hour)
		l.Info("photos_enabled", "base", cfg.PhotosBaseURL)
	}
	mgr := session.NewManager(det, opts, cfg.SessionIdle)
	mgr.Start(ctx)

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(det, mgr)
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	mux.HandleFunc(cfg.APIBase+"/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"status":"ok","commit":"` + version.Commit + `"}`))
	})

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.RateLimit(handler, cfg.RateLimitEnabled, cfg.RateLimitQPS)
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		l.Info("shutdown_begin")
		mgr.StopAll()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(sctx)
	}()

	if cfg.TLSEnable {
		if err := utils.EnsureSelfSignedCert(cfg.TLSCertPath, cfg.TLSKeyPath, "travel-geo.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCertPath)
		err = s.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
	} else {
		l.Info("listening", "addr", cfg.Addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
	l.Info("shutdown_done")
}

func loadCatalog(ctx context.Context, cfg config.Config) (*catalog.Catalog, error) {
	if cfg.PGEnabled {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			return nil, err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return nil, err
		}
		if err := migrate.EnsureSchema(db); err != nil {
			return nil, err
		}
		return store.AttachDB(db).LoadCatalog(ctx)
	}
	if cfg.CatalogPath != "" {
		return catalog.LoadFile(cfg.CatalogPath)
	}
	return catalog.Load()
}
