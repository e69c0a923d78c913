package revgeo

// 文档注释：geohash 编码（base32）
// 背景：作为反地理结果的缓存键；精度 7 约 150m，边境附近仍能区分相邻网格。
// 约束：只用于缓存键，不参与国家判定。
const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

func Geohash(lat, lng float64, precision int) string {
	if precision <= 0 {
		precision = 7
	}
	latLo, latHi := -90.0, 90.0
	lngLo, lngHi := -180.0, 180.0
	out := make([]byte, 0, precision)
	even := true
	bit, ch := 0, 0
	for len(out) < precision {
		ch <<= 1
		if even {
			mid := (lngLo + lngHi) / 2
			if lng >= mid {
				ch |= 1
				lngLo = mid
			} else {
				lngHi = mid
			}
		} else {
			mid := (latLo + latHi) / 2
			if lat >= mid {
				ch |= 1
				latLo = mid
			} else {
				latHi = mid
			}
		}
		even = !even
		if bit++; bit == 5 {
			out = append(out, geohashAlphabet[ch])
			bit, ch = 0, 0
		}
	}
	return string(out)
}
