package pinindex

import (
	"context"
	"slices"

	"geonear/internal/geocell"
)

// 文档注释：多个格子的成员并集
// 约束：结果去重并按 pin 字典序排序，保证跨次运行可复现。
func (ix *Index) Members(ctx context.Context, cells []geocell.Cell) ([]string, error) {
	var members []string
	err := ix.retry(ctx, "members", func() (err error) {
		members, err = ix.st.SUnion(ctx, ix.keys.Cells(cells)...)
		return err
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(members)
	return members, nil
}

// Sizes：各格子的成员数，与 cells 顺序一致
func (ix *Index) Sizes(ctx context.Context, cells []geocell.Cell) ([]int64, error) {
	var sizes []int64
	err := ix.retry(ctx, "sizes", func() (err error) {
		sizes, err = ix.st.SCard(ctx, ix.keys.Cells(cells)...)
		return err
	})
	return sizes, err
}

// InAny：pin 是否属于任一格子
func (ix *Index) InAny(ctx context.Context, pin string, cells []geocell.Cell) (bool, error) {
	var ok bool
	err := ix.retry(ctx, "in_any", func() (err error) {
		ok, err = ix.st.SIsMemberAny(ctx, pin, ix.keys.Cells(cells)...)
		return err
	})
	return ok, err
}
