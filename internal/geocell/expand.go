package geocell

import "geonear/internal/geoerr"

// 文档注释：方形邻域扩展
// 约束：depth=0 返回 {c}；depth=n 返回以 c 为中心的 (2n+1)×(2n+1) 格子。
// 每轮只扩展上一轮新加入的外圈，内圈的邻居已全部收录。
// 扩展触及极点或 ±180° 经线时返回 InvalidArgument。
func Expand(c Cell, depth int) (Set, error) {
	if depth < 0 {
		return nil, geoerr.Invalid("negative depth %d", depth)
	}
	if err := Validate(c); err != nil {
		return nil, err
	}
	out := NewSet(c)
	frontier := []Cell{c}
	for range depth {
		var next []Cell
		for _, cell := range frontier {
			ns, err := Neighbors(cell)
			if err != nil {
				return nil, err
			}
			for n := range ns {
				if !out.Has(n) {
					out.Add(n)
					next = append(next, n)
				}
			}
		}
		frontier = next
	}
	return out, nil
}
