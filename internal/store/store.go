// 包 store: PostgreSQL 数据访问层，持久化国家目录与货币表
package store

import (
	"context"
	"database/sql"
	"fmt"

	"travel-geo/internal/catalog"
	"travel-geo/internal/logger"

	_ "github.com/lib/pq"
)

// Store: 数据库访问入口
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// 文档注释：从数据库加载目录
// 背景：允许运营侧在库中维护目录数据，无需重新构建二进制；按 ord 保持目录顺序（面积相同时的决胜顺序）。
// 约束：加载结果经过与内嵌数据相同的校验，非法包围盒或重复代码直接返回错误（启动失败）。
func (s *Store) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, name, flag, description, continent, capital, population, language,
		lat_min, lat_max, lng_min, lng_max FROM _country_catalog ORDER BY ord ASC, code ASC`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()
	var recs []catalog.CountryRecord
	for rows.Next() {
		var r catalog.CountryRecord
		if err := rows.Scan(&r.Code, &r.Name, &r.Flag, &r.Description, &r.Continent, &r.Capital, &r.Population, &r.Language,
			&r.BBox.Lat[0], &r.BBox.Lat[1], &r.BBox.Lng[0], &r.BBox.Lng[1]); err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crow, err := s.db.QueryContext(ctx, `SELECT country, code, symbol FROM _country_currency`)
	if err != nil {
		return nil, fmt.Errorf("query currency: %w", err)
	}
	defer crow.Close()
	var curs []catalog.Currency
	for crow.Next() {
		var c catalog.Currency
		if err := crow.Scan(&c.Country, &c.Code, &c.Symbol); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		curs = append(curs, c)
	}
	if err := crow.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("db_catalog_loaded", "countries", len(recs), "currencies", len(curs))
	return catalog.New(recs, curs)
}

// 文档注释：写入目录（幂等 upsert，单事务）
// 背景：catalog-seed 工具用内嵌或指定 JSON 初始化数据库；重复执行只更新字段。
func (s *Store) SeedCatalog(ctx context.Context, c *catalog.Catalog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for i, r := range c.Records() {
		_, err := tx.ExecContext(ctx, `INSERT INTO _country_catalog(code, ord, name, flag, description, continent, capital, population, language, lat_min, lat_max, lng_min, lng_max)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (code) DO UPDATE SET ord=EXCLUDED.ord, name=EXCLUDED.name, flag=EXCLUDED.flag, description=EXCLUDED.description,
				continent=EXCLUDED.continent, capital=EXCLUDED.capital, population=EXCLUDED.population, language=EXCLUDED.language,
				lat_min=EXCLUDED.lat_min, lat_max=EXCLUDED.lat_max, lng_min=EXCLUDED.lng_min, lng_max=EXCLUDED.lng_max, updated_at=now()`,
			r.Code, i, r.Name, r.Flag, r.Description, r.Continent, r.Capital, r.Population, r.Language,
			r.BBox.Lat[0], r.BBox.Lat[1], r.BBox.Lng[0], r.BBox.Lng[1])
		if err != nil {
			return fmt.Errorf("upsert %s: %w", r.Code, err)
		}
	}
	for _, cu := range c.Currencies() {
		_, err := tx.ExecContext(ctx, `INSERT INTO _country_currency(country, code, symbol) VALUES($1,$2,$3)
			ON CONFLICT (country) DO UPDATE SET code=EXCLUDED.code, symbol=EXCLUDED.symbol`, cu.Country, cu.Code, cu.Symbol)
		if err != nil {
			return fmt.Errorf("upsert currency %s: %w", cu.Country, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.L().Info("db_catalog_seeded", "countries", c.Len(), "currencies", len(c.Currencies()))
	return nil
}
