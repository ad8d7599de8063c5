package geocell

import (
	"math"

	"github.com/paulmach/orb"

	"geonear/internal/geoerr"
)

// 文档注释：geohash 网格编码（base32）
// 约束：奇偶位交替切分经度/纬度，经度优先；同精度下相邻格子的边界坐标按二分得到，
// 在 MaxPrecision 以内为 float64 精确值，邻接判定与边界追踪依赖这一点。
const MaxPrecision = 12

var base32 = []byte("0123456789bcdefghjkmnpqrstuvwxyz")

var base32Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i, ch := range base32 {
		idx[ch] = int8(i)
	}
	return idx
}()

// Cell：定长网格标识，长度即精度；共享前缀的格子在空间上嵌套
type Cell string

func (c Cell) Precision() int { return len(c) }

func (c Cell) String() string { return string(c) }

// Box：格子的包围盒（度）
type Box struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Center：包围盒中心（纬度、经度）
func (b Box) Center() (float64, float64) {
	return (b.North + b.South) / 2, (b.East + b.West) / 2
}

func (b Box) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// Bound：转换为 orb 包围盒，点坐标为 [经度, 纬度]
func (b Box) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.West, b.South}, Max: orb.Point{b.East, b.North}}
}

// Ring：逆时针闭合矩形，从西南角开始
func (b Box) Ring() orb.Ring {
	return orb.Ring{
		{b.West, b.South},
		{b.East, b.South},
		{b.East, b.North},
		{b.West, b.North},
		{b.West, b.South},
	}
}

// 文档注释：坐标编码为格子
// 约束：lat ∈ [-90,90]，lon ∈ [-180,180]，1 ≤ precision ≤ MaxPrecision；NaN 视为越界。
func Encode(lat, lon float64, precision int) (Cell, error) {
	if !(lat >= -90 && lat <= 90) {
		return "", geoerr.Invalid("latitude %v out of range", lat)
	}
	if !(lon >= -180 && lon <= 180) {
		return "", geoerr.Invalid("longitude %v out of range", lon)
	}
	if precision < 1 || precision > MaxPrecision {
		return "", geoerr.Invalid("precision %d not in [1,%d]", precision, MaxPrecision)
	}
	latInt := [2]float64{-90, 90}
	lonInt := [2]float64{-180, 180}
	bits := [5]int{16, 8, 4, 2, 1}
	bit := 0
	ch := 0
	even := true
	out := make([]byte, 0, precision)
	for len(out) < precision {
		if even {
			mid := (lonInt[0] + lonInt[1]) / 2
			if lon >= mid {
				ch |= bits[bit]
				lonInt[0] = mid
			} else {
				lonInt[1] = mid
			}
		} else {
			mid := (latInt[0] + latInt[1]) / 2
			if lat >= mid {
				ch |= bits[bit]
				latInt[0] = mid
			} else {
				latInt[1] = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
		} else {
			out = append(out, base32[ch])
			bit = 0
			ch = 0
		}
	}
	return Cell(out), nil
}

// Validate：检查格子字符集与长度
func Validate(c Cell) error {
	if len(c) < 1 || len(c) > MaxPrecision {
		return geoerr.Invalid("cell %q has precision %d, want [1,%d]", string(c), len(c), MaxPrecision)
	}
	for i := 0; i < len(c); i++ {
		if base32Index[c[i]] < 0 {
			return geoerr.Invalid("cell %q has invalid character %q", string(c), c[i])
		}
	}
	return nil
}

// BBox：格子包围盒，纯函数
func BBox(c Cell) (Box, error) {
	if err := Validate(c); err != nil {
		return Box{}, err
	}
	latInt := [2]float64{-90, 90}
	lonInt := [2]float64{-180, 180}
	even := true
	for i := 0; i < len(c); i++ {
		v := int(base32Index[c[i]])
		for mask := 16; mask > 0; mask >>= 1 {
			set := v&mask != 0
			if even {
				mid := (lonInt[0] + lonInt[1]) / 2
				if set {
					lonInt[0] = mid
				} else {
					lonInt[1] = mid
				}
			} else {
				mid := (latInt[0] + latInt[1]) / 2
				if set {
					latInt[0] = mid
				} else {
					latInt[1] = mid
				}
			}
			even = !even
		}
	}
	return Box{North: latInt[1], South: latInt[0], East: lonInt[1], West: lonInt[0]}, nil
}

// Decode：返回格子中心点（纬度、经度）
func Decode(c Cell) (float64, float64, error) {
	b, err := BBox(c)
	if err != nil {
		return math.NaN(), math.NaN(), err
	}
	lat, lon := b.Center()
	return lat, lon, nil
}

// Reencode：把任意精度的格子吸附到目标精度的网格
func Reencode(c Cell, precision int) (Cell, error) {
	lat, lon, err := Decode(c)
	if err != nil {
		return "", err
	}
	return Encode(lat, lon, precision)
}
