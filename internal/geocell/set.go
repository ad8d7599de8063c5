package geocell

import (
	"maps"
	"slices"

	"geonear/internal/geoerr"
)

// Set：格子集合，值语义由调用方保证（组合操作总是返回新集合）
type Set map[Cell]struct{}

func NewSet(cells ...Cell) Set {
	s := make(Set, len(cells))
	s.Add(cells...)
	return s
}

func (s Set) Add(cells ...Cell) {
	for _, c := range cells {
		s[c] = struct{}{}
	}
}

func (s Set) Has(c Cell) bool {
	_, ok := s[c]
	return ok
}

func (s Set) Len() int { return len(s) }

// Sorted：按字典序输出
func (s Set) Sorted() []Cell {
	return slices.Sorted(maps.Keys(s))
}

func (s Set) Clone() Set { return maps.Clone(s) }

func (s Set) Union(o Set) Set {
	out := make(Set, len(s)+len(o))
	for c := range s {
		out[c] = struct{}{}
	}
	for c := range o {
		out[c] = struct{}{}
	}
	return out
}

func (s Set) Intersect(o Set) Set {
	small, big := s, o
	if len(big) < len(small) {
		small, big = big, small
	}
	out := make(Set)
	for c := range small {
		if big.Has(c) {
			out[c] = struct{}{}
		}
	}
	return out
}

func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for c := range s {
		if !o.Has(c) {
			return false
		}
	}
	return true
}

// 文档注释：集合的统一精度
// 约束：空集合返回 0；存在非法格子或精度不一致时返回 InvalidArgument。
func (s Set) Precision() (int, error) {
	p := 0
	for _, c := range s.Sorted() {
		if err := Validate(c); err != nil {
			return 0, err
		}
		if p == 0 {
			p = len(c)
			continue
		}
		if len(c) != p {
			return 0, geoerr.Invalid("mixed precision: %d and %d", p, len(c))
		}
	}
	return p, nil
}
