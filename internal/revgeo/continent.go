package revgeo

import "github.com/paulmach/orb"

const UnknownContinent = "Desconocido"

// 大洲近似矩形。矩形之间存在重叠（如地中海、中东），按列表顺序取第一个命中者。
var continents = []struct {
	name  string
	bound orb.Bound
}{
	{"Europa", orb.Bound{Min: orb.Point{-10, 35}, Max: orb.Point{40, 71}}},
	{"Asia", orb.Bound{Min: orb.Point{25, -10}, Max: orb.Point{180, 75}}},
	{"África", orb.Bound{Min: orb.Point{-18, -35}, Max: orb.Point{52, 37}}},
	{"América del Norte", orb.Bound{Min: orb.Point{-168, 15}, Max: orb.Point{-50, 72}}},
	{"América del Sur", orb.Bound{Min: orb.Point{-82, -56}, Max: orb.Point{-34, 13}}},
	{"Oceanía", orb.Bound{Min: orb.Point{110, -47}, Max: orb.Point{180, -10}}},
}

// GuessContinent 用于目录外国家的大洲估计，无命中返回 UnknownContinent
func GuessContinent(lat, lng float64) string {
	pt := orb.Point{lng, lat}
	for _, c := range continents {
		if c.bound.Contains(pt) {
			return c.name
		}
	}
	return UnknownContinent
}
