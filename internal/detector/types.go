package detector

import "travel-geo/internal/catalog"

// Coordinates：定位点（WGS84 十进制度）
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Source 标识一次检测结果的来源
type Source string

const (
	SourceRemoteCatalog Source = "remote_catalog"
	SourceRemoteMinimal Source = "remote_minimal"
	SourceBoundary      Source = "boundary"
	SourceNone          Source = "none"
)

// 文档注释：单次检测输出
// 背景：目录字段加上货币与可选图片；由创建它的检测调用独占，构造后不再修改。
// 约束：Rich 为 true 表示来自目录（含描述/首都/人口），只有这类结果会触发图片补充。
type CountryInfo struct {
	Code           string   `json:"code"`
	Name           string   `json:"name"`
	Flag           string   `json:"flag"`
	Description    string   `json:"description"`
	Continent      string   `json:"continent"`
	Capital        string   `json:"capital,omitempty"`
	Population     string   `json:"population,omitempty"`
	Language       string   `json:"language,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	CurrencySymbol string   `json:"currencySymbol,omitempty"`
	Photos         []string `json:"photos,omitempty"`
	Rich           bool     `json:"-"`
}

// WithPhotos 返回附带图片的新副本，原值保持不变
func (c CountryInfo) WithPhotos(urls []string) CountryInfo {
	if len(urls) > 0 {
		c.Photos = append([]string(nil), urls...)
	} else {
		c.Photos = nil
	}
	return c
}

func fromRecord(r catalog.CountryRecord) CountryInfo {
	return CountryInfo{
		Code:        r.Code,
		Name:        r.Name,
		Flag:        r.Flag,
		Description: r.Description,
		Continent:   r.Continent,
		Capital:     r.Capital,
		Population:  r.Population,
		Language:    r.Language,
		Rich:        true,
	}
}
