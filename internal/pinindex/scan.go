package pinindex

import (
	"context"
	"iter"

	"geonear/internal/geocell"
	"geonear/internal/store"
)

// Placement：pin 与其格子
type Placement struct {
	Pin  string       `json:"pin"`
	Cell geocell.Cell `json:"cell"`
}

// 文档注释：分页遍历哈希
// 约束：每一页单独经过有界重试，从当前游标继续；重试耗尽时产出一次 BackendUnavailable 后结束。
func (ix *Index) scanHash(ctx context.Context, op, key string) iter.Seq2[store.Field, error] {
	return func(yield func(store.Field, error) bool) {
		var cursor uint64
		for {
			var fields []store.Field
			var next uint64
			err := ix.retry(ctx, op, func() (err error) {
				fields, next, err = ix.st.HScanPage(ctx, key, cursor, ix.opt.ScanPage)
				return err
			})
			if err != nil {
				yield(store.Field{}, err)
				return
			}
			for _, f := range fields {
				if !yield(f, nil) {
					return
				}
			}
			if next == 0 {
				return
			}
			cursor = next
		}
	}
}

// 文档注释：遍历全部 (pin, 格子)
// 约束：按 ScanPage 分页，非原子；并发修改期间同一 pin 可能出现 0 次、1 次或多次。
func (ix *Index) Scan(ctx context.Context) iter.Seq2[Placement, error] {
	return func(yield func(Placement, error) bool) {
		for f, err := range ix.scanHash(ctx, "scan", ix.keys.Pins) {
			if err != nil {
				yield(Placement{}, err)
				return
			}
			if !yield(Placement{Pin: f.Name, Cell: geocell.Cell(f.Value)}, nil) {
				return
			}
		}
	}
}

// ScanData：遍历全部 (pin, 数据)
func (ix *Index) ScanData(ctx context.Context) iter.Seq2[PinData, error] {
	return func(yield func(PinData, error) bool) {
		for f, err := range ix.scanHash(ctx, "scan_data", ix.keys.Data) {
			if err != nil {
				yield(PinData{}, err)
				return
			}
			if !yield(PinData{Pin: f.Name, Data: []byte(f.Value)}, nil) {
				return
			}
		}
	}
}

// Located：pin 与其格子中心点、包围盒
type Located struct {
	Pin  string       `json:"pin"`
	Cell geocell.Cell `json:"cell"`
	Lat  float64      `json:"lat"`
	Lon  float64      `json:"lon"`
	Box  geocell.Box  `json:"bbox"`
}

// ScanLocated：在 Scan 基础上解码格子；存储中的非法格子作为错误产出
func (ix *Index) ScanLocated(ctx context.Context) iter.Seq2[Located, error] {
	return func(yield func(Located, error) bool) {
		for p, err := range ix.Scan(ctx) {
			if err != nil {
				yield(Located{}, err)
				return
			}
			b, err := geocell.BBox(p.Cell)
			if err != nil {
				yield(Located{}, err)
				return
			}
			lat, lon := b.Center()
			if !yield(Located{Pin: p.Pin, Cell: p.Cell, Lat: lat, Lon: lon, Box: b}, nil) {
				return
			}
		}
	}
}
