package geocell

import "geonear/internal/geoerr"

// Direction：八邻域方向
type Direction int

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

var directionNames = [...]string{"n", "ne", "e", "se", "s", "sw", "w", "nw"}

// 纬度、经度方向上的格子偏移量
var directionOffsets = [...][2]float64{
	North:     {1, 0},
	NorthEast: {1, 1},
	East:      {0, 1},
	SouthEast: {-1, 1},
	South:     {-1, 0},
	SouthWest: {-1, -1},
	West:      {0, -1},
	NorthWest: {1, -1},
}

func (d Direction) String() string {
	if d < North || d > NorthWest {
		return "?"
	}
	return directionNames[d]
}

// Opposite：反方向
func (d Direction) Opposite() Direction { return (d + 4) % 8 }

// 文档注释：同精度下指定方向的相邻格子
// 约束：跨越极点或 ±180° 经线时不存在相邻格子，返回 ok=false 且无错误。
func Adjacent(c Cell, d Direction) (Cell, bool, error) {
	if d < North || d > NorthWest {
		return "", false, geoerr.Invalid("unknown direction %d", int(d))
	}
	b, err := BBox(c)
	if err != nil {
		return "", false, err
	}
	lat, lon := b.Center()
	off := directionOffsets[d]
	lat += off[0] * (b.North - b.South)
	lon += off[1] * (b.East - b.West)
	if lat > 90 || lat < -90 || lon > 180 || lon < -180 {
		return "", false, nil
	}
	n, err := Encode(lat, lon, len(c))
	if err != nil {
		return "", false, err
	}
	return n, true, nil
}

// 文档注释：八邻域（不含自身）
// 约束：精确计算；任一方向跨越极点或 ±180° 经线时返回 InvalidArgument，不做环绕猜测。
func Neighbors(c Cell) (Set, error) {
	out := make(Set, 8)
	for d := North; d <= NorthWest; d++ {
		n, ok, err := Adjacent(c, d)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, geoerr.Invalid("cell %q touches a pole or the antimeridian", string(c))
		}
		out.Add(n)
	}
	return out, nil
}
