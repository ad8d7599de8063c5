package pinindex

import "geonear/internal/geocell"

// Keys：命名空间下的存储键，格式 globe:<ns>:pins / globe:<ns>:data / globe:<ns>:gh:<cell>
type Keys struct {
	prefix string
	Pins   string
	Data   string
}

func NewKeys(ns string) Keys {
	p := "globe:" + ns + ":"
	return Keys{prefix: p, Pins: p + "pins", Data: p + "data"}
}

func (k Keys) Cell(c geocell.Cell) string { return k.prefix + "gh:" + string(c) }

// Cells：按给定顺序生成格子集合键
func (k Keys) Cells(cells []geocell.Cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = k.Cell(c)
	}
	return out
}

// Scoped：同命名空间下的附属键（如地理编码缓存）
func (k Keys) Scoped(parts ...string) string {
	s := k.prefix[:len(k.prefix)-1]
	for _, p := range parts {
		s += ":" + p
	}
	return s
}
