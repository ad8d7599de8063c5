// 包 store：键值存储访问层。索引只依赖这里的接口（事务、哈希、集合、带 TTL 的字符串），
// 不依赖具体存储的脚本能力。
package store

import (
	"context"
	"errors"
	"iter"
	"time"
)

// 文档注释：可重试的存储错误
// 约束：ErrConflict 表示乐观事务因被观察的键变化而放弃，整个事务没有生效；
// ErrTransient 表示连接级故障。其它错误（含上下文取消）不应重试。
var (
	ErrConflict  = errors.New("store: transaction conflict")
	ErrTransient = errors.New("store: transient failure")
)

// Retryable：是否属于可重试的存储错误
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrTransient)
}

// Field：哈希表中的一项
type Field struct {
	Name  string
	Value string
}

// 文档注释：事务句柄
// 约束：读操作立即执行并参与冲突检测；写操作只入队，在回调返回 nil 后一次性原子提交。
// 回调返回错误时所有已入队的写操作被丢弃。
type Tx interface {
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HSet(key, field, value string)
	HDel(key string, fields ...string)
	SAdd(key string, members ...string)
	SRem(key string, members ...string)
}

// Store：索引所需的存储能力
type Store interface {
	// Atomic：在 watch 列出的键上执行读-判断-写事务，冲突时返回 ErrConflict
	Atomic(ctx context.Context, watch []string, fn func(ctx context.Context, tx Tx) error) error

	HGet(ctx context.Context, key, field string) (string, bool, error)
	// HMGet：只返回存在的字段
	HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error)
	HLen(ctx context.Context, key string) (int64, error)
	// HScan：分页遍历，非原子；出错时产出一次错误后结束
	HScan(ctx context.Context, key string, page int64) iter.Seq2[Field, error]
	// HScanPage：单页读取，next 为 0 表示遍历结束
	HScanPage(ctx context.Context, key string, cursor uint64, page int64) (fields []Field, next uint64, err error)

	SUnion(ctx context.Context, keys ...string) ([]string, error)
	// SCard：按 keys 顺序返回各集合大小
	SCard(ctx context.Context, keys ...string) ([]int64, error)
	SIsMemberAny(ctx context.Context, member string, keys ...string) (bool, error)

	Get(ctx context.Context, key string) (string, bool, error)
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error

	Ping(ctx context.Context) error
}
