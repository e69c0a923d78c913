package revgeo

import (
	"math"

	"travel-geo/internal/catalog"
	"travel-geo/internal/logger"

	"github.com/paulmach/orb"
)

// 文档注释：离线包围盒解析器
// 背景：远程反地理不可用时按目录包围盒判定国家；多个包围盒重叠（共享边境、小国位于大国包围盒内）时取面积最小者，
// 面积更小代表更具体的地理声明。
// 约束：面积相同按目录顺序取先出现者；这不是测地计算，边境附近不保证精确。
type Resolver struct {
	boxes []box
}

type box struct {
	rec   catalog.CountryRecord
	bound orb.Bound
	area  float64
}

func NewResolver(c *catalog.Catalog) *Resolver {
	recs := c.Records()
	r := &Resolver{boxes: make([]box, 0, len(recs))}
	for _, rec := range recs {
		r.boxes = append(r.boxes, box{rec: rec, bound: rec.BBox.Bound(), area: rec.BBox.Area()})
	}
	return r
}

// Resolve 返回包含该点的最具体目录条目
func (r *Resolver) Resolve(lat, lng float64) (catalog.CountryRecord, bool) {
	matches := r.Candidates(lat, lng)
	if len(matches) == 0 {
		logger.L().Debug("boundary_miss", "lat", lat, "lng", lng)
		return catalog.CountryRecord{}, false
	}
	best := matches[0]
	if len(matches) > 1 {
		rejected := make([]string, 0, len(matches)-1)
		for _, m := range matches[1:] {
			rejected = append(rejected, m.Code)
		}
		logger.L().Debug("boundary_overlap", "lat", lat, "lng", lng, "selected", best.Code, "rejected", rejected)
	}
	return best, true
}

// Candidates 返回所有命中的条目，按面积升序，面积相同保持目录顺序
func (r *Resolver) Candidates(lat, lng float64) []catalog.CountryRecord {
	if !ValidPoint(lat, lng) {
		return nil
	}
	pt := orb.Point{lng, lat}
	var hit []box
	for _, b := range r.boxes {
		if b.bound.Contains(pt) {
			hit = append(hit, b)
		}
	}
	// 插入排序：稳定，且候选通常不超过三个
	for i := 1; i < len(hit); i++ {
		for j := i; j > 0 && hit[j].area < hit[j-1].area; j-- {
			hit[j], hit[j-1] = hit[j-1], hit[j]
		}
	}
	out := make([]catalog.CountryRecord, len(hit))
	for i, b := range hit {
		out[i] = b.rec
	}
	return out
}

// ValidPoint 过滤 NaN 与超出 WGS84 范围的坐标
func ValidPoint(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
