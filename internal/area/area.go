// 包 area：格子集合上的查询。Area 是不可变值，组合操作返回新值，不修改索引。
package area

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/paulmach/orb"

	"geonear/internal/boundary"
	"geonear/internal/geocell"
	"geonear/internal/geoerr"
	"geonear/internal/pinindex"
)

// Area：绑定到某个索引的格子集合
type Area struct {
	ix    *pinindex.Index
	cells geocell.Set
}

// New：复制传入集合，调用方之后的修改不影响 Area
func New(ix *pinindex.Index, cells geocell.Set) Area {
	if cells == nil {
		cells = geocell.NewSet()
	}
	return Area{ix: ix, cells: cells.Clone()}
}

// Around：以 center 为中心扩展 depth 圈
func Around(ix *pinindex.Index, center geocell.Cell, depth int) (Area, error) {
	cells, err := geocell.Expand(center, depth)
	if err != nil {
		return Area{}, err
	}
	return Area{ix: ix, cells: cells}, nil
}

func (a Area) Index() *pinindex.Index { return a.ix }

// Cells：按字典序返回格子
func (a Area) Cells() []geocell.Cell { return a.cells.Sorted() }

// CellSet：返回副本
func (a Area) CellSet() geocell.Set { return a.cells.Clone() }

func (a Area) Len() int { return a.cells.Len() }

// Members：各格子成员的并集，去重后按 pin 排序
func (a Area) Members(ctx context.Context) ([]string, error) {
	if a.cells.Len() == 0 {
		return nil, nil
	}
	return a.ix.Members(ctx, a.Cells())
}

// All：Members 的惰性形式
func (a Area) All(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ms, err := a.Members(ctx)
		if err != nil {
			yield("", err)
			return
		}
		for _, m := range ms {
			if !yield(m, nil) {
				return
			}
		}
	}
}

// 文档注释：各格子成员数之和
// 约束：索引保证每个 pin 只在一个格子，因此与 len(Members) 相等。
func (a Area) Size(ctx context.Context) (int64, error) {
	if a.cells.Len() == 0 {
		return 0, nil
	}
	sizes, err := a.ix.Sizes(ctx, a.Cells())
	if err != nil {
		return 0, err
	}
	var n int64
	for _, s := range sizes {
		n += s
	}
	return n, nil
}

// Contains：pin 是否属于任一格子
func (a Area) Contains(ctx context.Context, pin string) (bool, error) {
	if a.cells.Len() == 0 {
		return false, nil
	}
	return a.ix.InAny(ctx, pin, a.Cells())
}

func (a Area) sameIndex(o Area) error {
	if a.ix != o.ix && (a.ix == nil || o.ix == nil || a.ix.Namespace() != o.ix.Namespace() || a.ix.Store() != o.ix.Store()) {
		return geoerr.Invalid("areas are bound to different indexes")
	}
	return nil
}

// Union：格子并集；两个 Area 必须绑定同一索引
func (a Area) Union(o Area) (Area, error) {
	if err := a.sameIndex(o); err != nil {
		return Area{}, err
	}
	return Area{ix: a.ix, cells: a.cells.Union(o.cells)}, nil
}

// Intersect：格子交集；两个 Area 必须绑定同一索引
func (a Area) Intersect(o Area) (Area, error) {
	if err := a.sameIndex(o); err != nil {
		return Area{}, err
	}
	return Area{ix: a.ix, cells: a.cells.Intersect(o.cells)}, nil
}

// Equal：按格子集合判等，与构造方式无关
func (a Area) Equal(o Area) bool { return a.cells.Equal(o.cells) }

// BBoxes：按 Cells 顺序的格子包围盒
func (a Area) BBoxes() ([]geocell.Box, error) {
	out := make([]geocell.Box, 0, a.cells.Len())
	for _, c := range a.Cells() {
		b, err := geocell.BBox(c)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Bound：全部格子的外包矩形，空集合返回零值
func (a Area) Bound() (orb.Bound, error) {
	boxes, err := a.BBoxes()
	if err != nil || len(boxes) == 0 {
		return orb.Bound{}, err
	}
	b := boxes[0].Bound()
	for _, x := range boxes[1:] {
		b = b.Union(x.Bound())
	}
	return b, nil
}

// Polygons：边界环（外环逆时针，洞顺时针）
func (a Area) Polygons() ([]orb.Ring, error) {
	return boundary.Trace(a.cells)
}

// MultiPolygon：外环及其洞组装后的多面
func (a Area) MultiPolygon() (orb.MultiPolygon, error) {
	rings, err := a.Polygons()
	if err != nil {
		return nil, err
	}
	return boundary.Assemble(rings), nil
}

func (a Area) String() string {
	cells := a.Cells()
	if len(cells) > 4 {
		return fmt.Sprintf("Area(%s, ... %d cells)", strings.Join(toStrings(cells[:4]), ","), len(cells))
	}
	return fmt.Sprintf("Area(%s)", strings.Join(toStrings(cells), ","))
}

func toStrings(cells []geocell.Cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = string(c)
	}
	return out
}
