package main

import (
	"context"
	"os"
	"time"

	"travel-geo/internal/catalog"
	"travel-geo/internal/logger"
	"travel-geo/internal/migrate"
	"travel-geo/internal/store"
	"travel-geo/internal/utils"

	"github.com/joho/godotenv"
)

// 文档注释：目录初始化工具
// 背景：CATALOG_SOURCE=postgres 时服务从数据库读取国家目录；本工具建表并写入内嵌目录或 CATALOG_PATH 指定的 JSON。
// 约束：先完整校验再写库；重复执行只更新字段，不删除库中多出的国家。
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	l.Info("catalog_seed_start")

	var (
		cat *catalog.Catalog
		err error
	)
	if p := os.Getenv("CATALOG_PATH"); p != "" {
		cat, err = catalog.LoadFile(p)
	} else {
		cat, err = catalog.Load()
	}
	if err != nil {
		l.Error("catalog_invalid", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		l.Error("db_ping_error", "err", err)
		os.Exit(1)
	}
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("db_migrate_error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := store.AttachDB(db).SeedCatalog(ctx, cat); err != nil {
		l.Error("catalog_seed_error", "err", err)
		os.Exit(1)
	}
	l.Info("catalog_seed_done", "countries", cat.Len())
}
