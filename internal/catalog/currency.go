package catalog

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// 文档注释：按国家代码查询货币
// 背景：优先使用货币表（带本地符号）；表中缺失时由 CLDR 区域数据推导 ISO 4217 代码，符号留空。
// 约束：代码无法识别或该地区无现行货币时返回 false。
func (c *Catalog) Currency(code string) (Currency, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if cu, ok := c.currencies[code]; ok {
		return cu, true
	}
	r, err := language.ParseRegion(code)
	if err != nil {
		return Currency{}, false
	}
	u, ok := currency.FromRegion(r)
	if !ok {
		return Currency{}, false
	}
	return Currency{Country: code, Code: u.String()}, true
}

var regionNamer = display.Regions(language.English)

// DisplayName 返回国家英文名；无数据时返回空串
func DisplayName(code string) string {
	r, err := language.ParseRegion(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil || regionNamer == nil {
		return ""
	}
	return regionNamer.Name(r)
}
