// 包 catalog：国家目录与货币表（只读静态数据），进程启动时加载并校验，之后可被任意数量的读者共享
package catalog

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"golang.org/x/text/language"
)

//go:embed data/countries.json data/currencies.json
var dataFS embed.FS

var (
	ErrInvalidBBox   = errors.New("catalog: invalid bounding box")
	ErrInvalidCode   = errors.New("catalog: invalid country code")
	ErrDuplicateCode = errors.New("catalog: duplicate country code")
	ErrMissingName   = errors.New("catalog: missing country name")
)

// BBox：经纬度轴对齐矩形，Lat/Lng 均为 [min, max]
type BBox struct {
	Lat [2]float64 `json:"lat"`
	Lng [2]float64 `json:"lng"`
}

// Bound 转为 orb 包围盒（X 为经度，Y 为纬度）
func (b BBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Lng[0], b.Lat[0]},
		Max: orb.Point{b.Lng[1], b.Lat[1]},
	}
}

// Area 返回包围盒面积（平方度），仅用于重叠时的特异性比较，不是地理面积
func (b BBox) Area() float64 {
	return (b.Lat[1] - b.Lat[0]) * (b.Lng[1] - b.Lng[0])
}

// 文档注释：国家目录条目
// 背景：离线兜底与富元数据来源；code 为 ISO 3166-1 alpha-2 唯一键。
// 约束：加载后不可变；Flag 为空时在校验阶段由 code 推导。
type CountryRecord struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Flag        string `json:"flag"`
	Description string `json:"description"`
	Continent   string `json:"continent"`
	Capital     string `json:"capital,omitempty"`
	Population  string `json:"population,omitempty"`
	Language    string `json:"language,omitempty"`
	BBox        BBox   `json:"bbox"`
}

// Currency：国家代码 → 货币代码/符号
type Currency struct {
	Country string `json:"country"`
	Code    string `json:"code"`
	Symbol  string `json:"symbol"`
}

// 文档注释：目录快照
// 背景：records 保持数据文件中的顺序，面积相同时以此顺序决胜；byCode 用于 O(1) 查找。
type Catalog struct {
	records    []CountryRecord
	byCode     map[string]int
	currencies map[string]Currency
}

// Load 读取内嵌的国家与货币数据
func Load() (*Catalog, error) {
	cf, err := dataFS.Open("data/countries.json")
	if err != nil {
		return nil, err
	}
	defer cf.Close()
	return loadWithCountries(cf)
}

// LoadFile 以外部 JSON 文件替换内嵌国家数据，货币表仍使用内嵌版本
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()
	return loadWithCountries(f)
}

func loadWithCountries(countries io.Reader) (*Catalog, error) {
	uf, err := dataFS.Open("data/currencies.json")
	if err != nil {
		return nil, err
	}
	defer uf.Close()
	return Decode(countries, uf)
}

// Decode 解析两份 JSON 数组并构建目录
func Decode(countries, currencies io.Reader) (*Catalog, error) {
	var recs []CountryRecord
	if err := json.NewDecoder(countries).Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode countries: %w", err)
	}
	var curs []Currency
	if currencies != nil {
		if err := json.NewDecoder(currencies).Decode(&curs); err != nil {
			return nil, fmt.Errorf("decode currencies: %w", err)
		}
	}
	return New(recs, curs)
}

// 文档注释：构建并校验目录
// 背景：数据编写错误（min>max、重复代码、非法代码）属于启动期缺陷，在此直接失败，不延迟到检测期。
func New(records []CountryRecord, currencies []Currency) (*Catalog, error) {
	c := &Catalog{
		records:    make([]CountryRecord, 0, len(records)),
		byCode:     make(map[string]int, len(records)),
		currencies: make(map[string]Currency, len(currencies)),
	}
	for i, r := range records {
		r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
		if err := Validate(r); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := c.byCode[r.Code]; dup {
			return nil, fmt.Errorf("record %d (%s): %w", i, r.Code, ErrDuplicateCode)
		}
		if r.Flag == "" {
			r.Flag = FlagEmoji(r.Code)
		}
		c.byCode[r.Code] = len(c.records)
		c.records = append(c.records, r)
	}
	for _, cu := range currencies {
		code := strings.ToUpper(strings.TrimSpace(cu.Country))
		if !ValidCode(code) {
			return nil, fmt.Errorf("currency %q: %w", cu.Country, ErrInvalidCode)
		}
		cu.Country = code
		c.currencies[code] = cu
	}
	return c, nil
}

// Validate 校验单条记录
func Validate(r CountryRecord) error {
	if !ValidCode(r.Code) {
		return fmt.Errorf("%q: %w", r.Code, ErrInvalidCode)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%s: %w", r.Code, ErrMissingName)
	}
	b := r.BBox
	if b.Lat[0] > b.Lat[1] || b.Lng[0] > b.Lng[1] {
		return fmt.Errorf("%s lat=%v lng=%v: %w", r.Code, b.Lat, b.Lng, ErrInvalidBBox)
	}
	if b.Lat[0] < -90 || b.Lat[1] > 90 || b.Lng[0] < -180 || b.Lng[1] > 180 {
		return fmt.Errorf("%s out of range lat=%v lng=%v: %w", r.Code, b.Lat, b.Lng, ErrInvalidBBox)
	}
	return nil
}

// ValidCode 判断是否为两位大写且被 CLDR 识别为国家/地区的代码
func ValidCode(code string) bool {
	if len(code) != 2 || code != strings.ToUpper(code) {
		return false
	}
	r, err := language.ParseRegion(code)
	if err != nil {
		return false
	}
	return r.IsCountry()
}

// Lookup 按代码查找（大小写不敏感）
func (c *Catalog) Lookup(code string) (CountryRecord, bool) {
	i, ok := c.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return CountryRecord{}, false
	}
	return c.records[i], true
}

// Records 返回按目录顺序排列的副本
func (c *Catalog) Records() []CountryRecord {
	out := make([]CountryRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Currencies 返回货币表副本（无序）
func (c *Catalog) Currencies() []Currency {
	out := make([]Currency, 0, len(c.currencies))
	for _, cu := range c.currencies {
		out = append(out, cu)
	}
	return out
}

func (c *Catalog) Len() int { return len(c.records) }

// FlagEmoji 由两位代码生成区域指示符旗帜
func FlagEmoji(code string) string {
	code = strings.ToUpper(code)
	if len(code) != 2 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < 2; i++ {
		ch := code[i]
		if ch < 'A' || ch > 'Z' {
			return ""
		}
		b.WriteRune(rune(0x1F1E6 + int(ch-'A')))
	}
	return b.String()
}
