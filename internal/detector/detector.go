// 包 detector：混合在线/离线国家检测（远程反地理优先，目录包围盒兜底）
package detector

import (
	"context"
	"errors"
	"strings"
	"time"

	"travel-geo/internal/catalog"
	"travel-geo/internal/geocode"
	"travel-geo/internal/logger"
	"travel-geo/internal/metrics"
	"travel-geo/internal/revgeo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// 文档注释：国家检测器
// 背景：远程源全球覆盖但缺少富元数据；离线目录有富元数据但只覆盖约 50 个国家。
// 优先级：远程命中目录 → 目录富信息；远程命中目录外 → 最小信息；远程失败 → 包围盒；都未命中 → nil。
// 约束：远程调用失败不会作为错误返回，只影响来源；geocoder 为 nil 时只使用离线路径。
type Detector struct {
	cat      *catalog.Catalog
	resolver *revgeo.Resolver
	geocoder geocode.Geocoder
	timeout  time.Duration
}

func New(cat *catalog.Catalog, resolver *revgeo.Resolver, g geocode.Geocoder, timeout time.Duration) *Detector {
	if resolver == nil {
		resolver = revgeo.NewResolver(cat)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Detector{cat: cat, resolver: resolver, geocoder: g, timeout: timeout}
}

// Detect 执行一次检测；返回 nil 表示本轮无检测结果（非错误）
func (d *Detector) Detect(ctx context.Context, c Coordinates) (*CountryInfo, Source) {
	ctx, span := otel.Tracer("travel-geo/detector").Start(ctx, "detector.detect")
	defer span.End()

	info, src := d.detect(ctx, c)
	metrics.DetectionsTotal.WithLabelValues(string(src)).Inc()
	span.SetAttributes(attribute.String("source", string(src)))
	if info != nil {
		span.SetAttributes(attribute.String("country_code", info.Code))
	}
	return info, src
}

func (d *Detector) detect(ctx context.Context, c Coordinates) (*CountryInfo, Source) {
	if !revgeo.ValidPoint(c.Latitude, c.Longitude) {
		logger.L().Debug("detect_invalid_point", "lat", c.Latitude, "lng", c.Longitude)
		return nil, SourceNone
	}
	if d.geocoder != nil {
		gctx, cancel := context.WithTimeout(ctx, d.timeout)
		res, err := d.geocoder.Lookup(gctx, c.Latitude, c.Longitude)
		cancel()
		switch {
		case err == nil:
			if info, ok := d.ByCode(res.CountryCode); ok {
				return &info, SourceRemoteCatalog
			}
			info := d.minimal(res, c)
			return &info, SourceRemoteMinimal
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			return nil, SourceNone
		default:
			logger.L().Debug("detect_remote_fallback", "err", err)
		}
	}
	rec, ok := d.resolver.Resolve(c.Latitude, c.Longitude)
	if !ok {
		return nil, SourceNone
	}
	info := d.enrich(rec)
	return &info, SourceBoundary
}

// ByCode 按代码返回目录富信息（含货币），代码不在目录中时返回 false
func (d *Detector) ByCode(code string) (CountryInfo, bool) {
	rec, ok := d.cat.Lookup(code)
	if !ok {
		return CountryInfo{}, false
	}
	return d.enrich(rec), true
}

// All 按目录顺序返回全部国家的富信息
func (d *Detector) All() []CountryInfo {
	recs := d.cat.Records()
	out := make([]CountryInfo, 0, len(recs))
	for _, r := range recs {
		out = append(out, d.enrich(r))
	}
	return out
}

func (d *Detector) enrich(rec catalog.CountryRecord) CountryInfo {
	info := fromRecord(rec)
	if cu, ok := d.cat.Currency(rec.Code); ok {
		info.Currency = cu.Code
		info.CurrencySymbol = cu.Symbol
	}
	return info
}

// minimal 为目录外国家构造最小信息：名称、旗帜、货币、大洲估计与通用描述
func (d *Detector) minimal(res geocode.Result, c Coordinates) CountryInfo {
	code := strings.ToUpper(res.CountryCode)
	name := strings.TrimSpace(res.CountryName)
	if name == "" {
		name = catalog.DisplayName(code)
	}
	if name == "" {
		name = code
	}
	info := CountryInfo{
		Code:        code,
		Name:        name,
		Flag:        catalog.FlagEmoji(code),
		Description: name + " - descubre este increíble destino.",
		Continent:   revgeo.GuessContinent(c.Latitude, c.Longitude),
	}
	if cu, ok := d.cat.Currency(code); ok {
		info.Currency = cu.Code
		info.CurrencySymbol = cu.Symbol
	}
	return info
}
