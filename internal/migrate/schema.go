package migrate

import (
	"database/sql"

	"travel-geo/internal/logger"
)

// 背景：首次运行自动创建目录表与货币表，供 CATALOG_SOURCE=postgres 时加载
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；包围盒约束在库内同样校验 min<=max
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _country_catalog (
			code CHAR(2) PRIMARY KEY,
			ord INT NOT NULL,
			name TEXT NOT NULL,
			flag TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			continent TEXT NOT NULL DEFAULT '',
			capital TEXT NOT NULL DEFAULT '',
			population TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			lat_min DOUBLE PRECISION NOT NULL,
			lat_max DOUBLE PRECISION NOT NULL,
			lng_min DOUBLE PRECISION NOT NULL,
			lng_max DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (lat_min <= lat_max AND lng_min <= lng_max)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_country_catalog_ord ON _country_catalog(ord)`,
		`CREATE TABLE IF NOT EXISTS _country_currency (
			country CHAR(2) PRIMARY KEY,
			code CHAR(3) NOT NULL,
			symbol TEXT NOT NULL DEFAULT ''
		)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
