// 包 boundary：由格子集合还原闭合边界多边形（外环与洞），供调试渲染与 GeoJSON 输出
package boundary

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"geonear/internal/geocell"
	"geonear/internal/geoerr"
)

// Edge：有向边界边，区域内部始终位于行进方向左侧
type Edge struct {
	From orb.Point
	To   orb.Point
}

type side struct {
	dir  geocell.Direction
	from func(geocell.Box) orb.Point
	to   func(geocell.Box) orb.Point
}

func sw(b geocell.Box) orb.Point { return orb.Point{b.West, b.South} }
func se(b geocell.Box) orb.Point { return orb.Point{b.East, b.South} }
func ne(b geocell.Box) orb.Point { return orb.Point{b.East, b.North} }
func nw(b geocell.Box) orb.Point { return orb.Point{b.West, b.North} }

// 每个格子按逆时针方向的四条边
var sides = [4]side{
	{geocell.South, sw, se},
	{geocell.East, se, ne},
	{geocell.North, ne, nw},
	{geocell.West, nw, sw},
}

// 文档注释：收集边界边
// 约束：某一侧的相邻格子不在集合内（或越过极点/±180° 经线）时才输出该侧的边，
// 内部共享边不会被任何一方输出；只看四边，不看对角。集合精度必须一致。
func CellEdges(cells geocell.Set) ([]Edge, error) {
	if _, err := cells.Precision(); err != nil {
		return nil, err
	}
	var edges []Edge
	for _, c := range cells.Sorted() {
		b, err := geocell.BBox(c)
		if err != nil {
			return nil, err
		}
		for _, s := range sides {
			n, ok, err := geocell.Adjacent(c, s.dir)
			if err != nil {
				return nil, err
			}
			if ok && cells.Has(n) {
				continue
			}
			edges = append(edges, Edge{From: s.from(b), To: s.to(b)})
		}
	}
	return edges, nil
}

// Trace：格子集合 → 闭合环列表（外环逆时针，洞顺时针）
func Trace(cells geocell.Set) ([]orb.Ring, error) {
	edges, err := CellEdges(cells)
	if err != nil {
		return nil, err
	}
	return Walk(edges)
}

// 文档注释：把有向边串成闭合环
// 约束：按起点建立出边索引后逐条消费；在多出边的顶点（对角相接处）优先左转，
// 使仅以角点相接的区域保持为独立的环；无法闭合时返回 MalformedShape。
// 共线的中间顶点被合并，每个环首尾点相同。
func Walk(edges []Edge) ([]orb.Ring, error) {
	if len(edges) == 0 {
		return nil, nil
	}
	outgoing := make(map[orb.Point][]int, len(edges))
	for i, e := range edges {
		if e.From == e.To {
			return nil, geoerr.Malformed("degenerate edge at %v", e.From)
		}
		outgoing[e.From] = append(outgoing[e.From], i)
	}
	used := make([]bool, len(edges))
	var rings []orb.Ring
	for first := range edges {
		if used[first] {
			continue
		}
		used[first] = true
		start := edges[first].From
		path := []orb.Point{start}
		prev := edges[first]
		for {
			cur := prev.To
			next, best := -1, math.MinInt
			for _, j := range outgoing[cur] {
				if used[j] && j != first {
					continue
				}
				if s := turnScore(prev, edges[j]); s > best {
					next, best = j, s
				}
			}
			if next < 0 {
				return nil, geoerr.Malformed("boundary path left open at %v", cur)
			}
			if next == first {
				break
			}
			used[next] = true
			path = append(path, cur)
			prev = edges[next]
		}
		for _, cycle := range splitAtRepeats(path) {
			ring := simplify(cycle)
			if len(ring) < 5 {
				return nil, geoerr.Malformed("boundary ring with %d corners at %v", len(ring)-1, start)
			}
			rings = append(rings, ring)
		}
	}
	return rings, nil
}

// 路径多次经过同一顶点时（洞与外环在角点相接）拆成各自不重复顶点的环
func splitAtRepeats(path []orb.Point) [][]orb.Point {
	var cycles [][]orb.Point
	stack := make([]orb.Point, 0, len(path))
	pos := make(map[orb.Point]int, len(path))
	for _, p := range path {
		k, seen := pos[p]
		if !seen {
			pos[p] = len(stack)
			stack = append(stack, p)
			continue
		}
		cycles = append(cycles, append([]orb.Point(nil), stack[k:]...))
		for _, q := range stack[k+1:] {
			delete(pos, q)
		}
		stack = stack[:k+1]
	}
	return append(cycles, stack)
}

// 转向打分：左转 > 直行 > 右转 > 掉头
func turnScore(in, out Edge) int {
	ax, ay := in.To[0]-in.From[0], in.To[1]-in.From[1]
	bx, by := out.To[0]-out.From[0], out.To[1]-out.From[1]
	cross := ax*by - ay*bx
	switch {
	case cross > 0:
		return 2
	case cross < 0:
		return 0
	case ax*bx+ay*by > 0:
		return 1
	}
	return -1
}

// 去掉共线中间点，从最小点（先经度后纬度）开始并闭合
func simplify(path []orb.Point) orb.Ring {
	n := len(path)
	var corners []orb.Point
	for i, p := range path {
		a := path[(i+n-1)%n]
		b := path[(i+1)%n]
		cross := (p[0]-a[0])*(b[1]-p[1]) - (p[1]-a[1])*(b[0]-p[0])
		if cross != 0 {
			corners = append(corners, p)
		}
	}
	if len(corners) == 0 {
		return orb.Ring{}
	}
	lo := 0
	for i, p := range corners {
		if p[0] < corners[lo][0] || (p[0] == corners[lo][0] && p[1] < corners[lo][1]) {
			lo = i
		}
	}
	ring := make(orb.Ring, 0, len(corners)+1)
	ring = append(ring, corners[lo:]...)
	ring = append(ring, corners[:lo]...)
	return append(ring, ring[0])
}

// 文档注释：把环组装为多面（每个外环附带其洞）
// 约束：逆时针环为外环，顺时针环为洞；洞归属到包含其首条边中点的最小外环。
func Assemble(rings []orb.Ring) orb.MultiPolygon {
	var mp orb.MultiPolygon
	var holes []orb.Ring
	for _, r := range rings {
		if r.Orientation() == orb.CW {
			holes = append(holes, r)
			continue
		}
		mp = append(mp, orb.Polygon{r})
	}
	for _, h := range holes {
		probe := orb.Point{(h[0][0] + h[1][0]) / 2, (h[0][1] + h[1][1]) / 2}
		owner, ownerArea := -1, math.Inf(1)
		for i, p := range mp {
			if !planar.RingContains(p[0], probe) {
				continue
			}
			if a := math.Abs(planar.Area(p[0])); a < ownerArea {
				owner, ownerArea = i, a
			}
		}
		if owner >= 0 {
			mp[owner] = append(mp[owner], h)
		}
	}
	return mp
}
