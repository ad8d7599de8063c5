// 包 pinindex：原子格子索引。每个 pin 同一时刻只属于一个格子，
// 数据布局为 pins 哈希（pin→格子）、data 哈希（pin→数据）与每个格子一个成员集合。
package pinindex

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"geonear/internal/geocell"
	"geonear/internal/geoerr"
	"geonear/internal/logger"
	"geonear/internal/metrics"
	"geonear/internal/store"
)

const (
	DefaultMaxRetries = 50
	DefaultScanPage   = 50
)

// Options：索引配置；零值字段取默认值
type Options struct {
	Namespace  string
	MaxRetries uint
	ScanPage   int64
	// 重试退避的初始与最大间隔
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Index：存储之上的无状态门面，可被多个进程共享同一存储
type Index struct {
	st   store.Store
	keys Keys
	opt  Options
	log  *slog.Logger
}

func New(st store.Store, opt Options) *Index {
	if opt.MaxRetries == 0 {
		opt.MaxRetries = DefaultMaxRetries
	}
	if opt.ScanPage <= 0 {
		opt.ScanPage = DefaultScanPage
	}
	if opt.MinBackoff <= 0 {
		opt.MinBackoff = 2 * time.Millisecond
	}
	if opt.MaxBackoff <= 0 {
		opt.MaxBackoff = 250 * time.Millisecond
	}
	return &Index{
		st:   st,
		keys: NewKeys(opt.Namespace),
		opt:  opt,
		log:  logger.Component("pinindex").With("ns", opt.Namespace),
	}
}

func (ix *Index) Namespace() string { return ix.opt.Namespace }

func (ix *Index) Keys() Keys { return ix.keys }

func (ix *Index) Store() store.Store { return ix.st }

// 文档注释：带退避的有界重试
// 约束：只重试 store.ErrConflict / store.ErrTransient；其它错误（NotFound、InvalidArgument、
// 上下文取消）立即返回。重试耗尽后返回包装了最后一次错误的 BackendUnavailable。
func (ix *Index) retry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ix.opt.MinBackoff
	b.MaxInterval = ix.opt.MaxBackoff
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn()
		if err == nil {
			return struct{}{}, nil
		}
		if store.Retryable(err) {
			metrics.TxRetriesTotal.WithLabelValues(op).Inc()
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(ix.opt.MaxRetries),
		backoff.WithMaxElapsedTime(0),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	if err != nil && store.Retryable(err) {
		metrics.BackendUnavailableTotal.WithLabelValues(op).Inc()
		ix.log.Warn("store_retries_exhausted", "op", op, "err", err)
		return geoerr.Unavailable(err)
	}
	return err
}

func (ix *Index) atomic(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx) error) error {
	return ix.retry(ctx, op, func() error {
		return ix.st.Atomic(ctx, []string{ix.keys.Pins}, fn)
	})
}

func validPin(pin string) error {
	if pin == "" {
		return geoerr.Invalid("empty pin id")
	}
	return nil
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, geoerr.ErrNotFound):
		return "not_found"
	case errors.Is(err, geoerr.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, geoerr.ErrBackendUnavailable):
		return "unavailable"
	}
	return "error"
}

// 文档注释：放置或移动 pin
// 约束：读取当前格子，若不同则在同一事务内从旧格子集合移除并加入新格子集合，
// 无条件更新 pin→格子指针；data 非 nil 时在同一事务内覆盖数据，nil 表示不改动。
// 重复以相同参数调用结果不变。
func (ix *Index) Place(ctx context.Context, pin string, cell geocell.Cell, data []byte) (err error) {
	defer func() { metrics.PinOpsTotal.WithLabelValues("place", result(err)).Inc() }()
	if err := validPin(pin); err != nil {
		return err
	}
	if err := geocell.Validate(cell); err != nil {
		return err
	}
	var moved bool
	var from string
	err = ix.atomic(ctx, "place", func(ctx context.Context, tx store.Tx) error {
		old, ok, err := tx.HGet(ctx, ix.keys.Pins, pin)
		if err != nil {
			return err
		}
		moved, from = ok && old != string(cell), old
		if moved {
			tx.SRem(ix.keys.Cell(geocell.Cell(old)), pin)
		}
		tx.SAdd(ix.keys.Cell(cell), pin)
		tx.HSet(ix.keys.Pins, pin, string(cell))
		if data != nil {
			tx.HSet(ix.keys.Data, pin, string(data))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if moved {
		ix.log.Debug("pin_move", "pin", pin, "from", from, "to", cell)
	} else {
		ix.log.Debug("pin_place", "pin", pin, "cell", cell, "with_data", data != nil)
	}
	return nil
}

// 文档注释：删除 pin
// 约束：pin 不存在时返回 NotFound（不重试）；否则在同一事务内删除指针、数据与集合成员。
func (ix *Index) Remove(ctx context.Context, pin string) (err error) {
	defer func() { metrics.PinOpsTotal.WithLabelValues("remove", result(err)).Inc() }()
	if err := validPin(pin); err != nil {
		return err
	}
	err = ix.atomic(ctx, "remove", func(ctx context.Context, tx store.Tx) error {
		old, ok, err := tx.HGet(ctx, ix.keys.Pins, pin)
		if err != nil {
			return err
		}
		if !ok {
			return geoerr.NotFound("pin %q", pin)
		}
		tx.SRem(ix.keys.Cell(geocell.Cell(old)), pin)
		tx.HDel(ix.keys.Pins, pin)
		tx.HDel(ix.keys.Data, pin)
		return nil
	})
	if err != nil {
		if errors.Is(err, geoerr.ErrNotFound) {
			ix.log.Debug("pin_remove_notfound", "pin", pin)
		}
		return err
	}
	ix.log.Debug("pin_remove", "pin", pin)
	return nil
}

// Lookup：pin 当前所在格子，不存在时返回 NotFound
func (ix *Index) Lookup(ctx context.Context, pin string) (geocell.Cell, error) {
	if err := validPin(pin); err != nil {
		return "", err
	}
	var cell string
	var ok bool
	err := ix.retry(ctx, "lookup", func() (err error) {
		cell, ok, err = ix.st.HGet(ctx, ix.keys.Pins, pin)
		return err
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", geoerr.NotFound("pin %q", pin)
	}
	return geocell.Cell(cell), nil
}

// Contains：pin 是否存在于索引中
func (ix *Index) Contains(ctx context.Context, pin string) (bool, error) {
	_, err := ix.Lookup(ctx, pin)
	if errors.Is(err, geoerr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// LatLon：pin 所在格子的中心点
func (ix *Index) LatLon(ctx context.Context, pin string) (float64, float64, error) {
	cell, err := ix.Lookup(ctx, pin)
	if err != nil {
		return 0, 0, err
	}
	return geocell.Decode(cell)
}

// BBox：pin 所在格子的包围盒
func (ix *Index) BBox(ctx context.Context, pin string) (geocell.Box, error) {
	cell, err := ix.Lookup(ctx, pin)
	if err != nil {
		return geocell.Box{}, err
	}
	return geocell.BBox(cell)
}

// Count：当前有格子的 pin 数
func (ix *Index) Count(ctx context.Context) (int64, error) {
	var n int64
	err := ix.retry(ctx, "count", func() (err error) {
		n, err = ix.st.HLen(ctx, ix.keys.Pins)
		return err
	})
	return n, err
}
