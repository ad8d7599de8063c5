package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore：基于 go-redis 的 Store 实现，事务使用 WATCH + MULTI/EXEC
type RedisStore struct {
	rdb redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

func NewRedis(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Client() redis.UniversalClient { return s.rdb }

// 文档注释：把 go-redis 错误归类为 ErrConflict / ErrTransient
// 约束：redis.Nil 不应到达这里；回调自身返回的错误原样透传。
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

type redisTx struct {
	ctx context.Context
	tx  *redis.Tx
	ops []func(p redis.Pipeliner)
}

func (t *redisTx) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := t.tx.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (t *redisTx) HSet(key, field, value string) {
	t.ops = append(t.ops, func(p redis.Pipeliner) { p.HSet(t.ctx, key, field, value) })
}

func (t *redisTx) HDel(key string, fields ...string) {
	t.ops = append(t.ops, func(p redis.Pipeliner) { p.HDel(t.ctx, key, fields...) })
}

func (t *redisTx) SAdd(key string, members ...string) {
	args := toAny(members)
	t.ops = append(t.ops, func(p redis.Pipeliner) { p.SAdd(t.ctx, key, args...) })
}

func (t *redisTx) SRem(key string, members ...string) {
	args := toAny(members)
	t.ops = append(t.ops, func(p redis.Pipeliner) { p.SRem(t.ctx, key, args...) })
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// 文档注释：WATCH 指定键后执行回调，再以 MULTI/EXEC 提交入队的写操作
// 约束：EXEC 被放弃（被观察键在期间被修改）时返回 ErrConflict，写操作均未生效。
func (s *RedisStore) Atomic(ctx context.Context, watch []string, fn func(ctx context.Context, tx Tx) error) error {
	err := s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
		t := &redisTx{ctx: ctx, tx: rtx}
		if err := fn(ctx, t); err != nil {
			return err
		}
		if len(t.ops) == 0 {
			return nil
		}
		_, err := rtx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for _, op := range t.ops {
				op(p)
			}
			return nil
		})
		return err
	}, watch...)
	return classify(err)
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify(err)
	}
	return v, true, nil
}

func (s *RedisStore) HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	if len(fields) == 0 {
		return out, nil
	}
	vals, err := s.rdb.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, classify(err)
	}
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[fields[i]] = str
		}
	}
	return out, nil
}

func (s *RedisStore) HLen(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.HLen(ctx, key).Result()
	return n, classify(err)
}

func (s *RedisStore) HScan(ctx context.Context, key string, page int64) iter.Seq2[Field, error] {
	return func(yield func(Field, error) bool) {
		var cursor uint64
		for {
			fields, next, err := s.HScanPage(ctx, key, cursor, page)
			if err != nil {
				yield(Field{}, err)
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

func (s *RedisStore) HScanPage(ctx context.Context, key string, cursor uint64, page int64) ([]Field, uint64, error) {
	kvs, next, err := s.rdb.HScan(ctx, key, cursor, "", page).Result()
	if err != nil {
		return nil, 0, classify(err)
	}
	fields := make([]Field, 0, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		fields = append(fields, Field{Name: kvs[i], Value: kvs[i+1]})
	}
	return fields, next, nil
}

func (s *RedisStore) SUnion(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	members, err := s.rdb.SUnion(ctx, keys...).Result()
	return members, classify(err)
}

func (s *RedisStore) SCard(ctx context.Context, keys ...string) ([]int64, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.IntCmd, len(keys))
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.SCard(ctx, k)
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	out := make([]int64, len(keys))
	for i, c := range cmds {
		out[i] = c.Val()
	}
	return out, nil
}

func (s *RedisStore) SIsMemberAny(ctx context.Context, member string, keys ...string) (bool, error) {
	if len(keys) == 0 {
		return false, nil
	}
	cmds := make([]*redis.BoolCmd, len(keys))
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.SIsMember(ctx, k, member)
		}
		return nil
	})
	if err != nil {
		return false, classify(err)
	}
	for _, c := range cmds {
		if c.Val() {
			return true, nil
		}
	}
	return false, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify(err)
	}
	return v, true, nil
}

func (s *RedisStore) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	return classify(s.rdb.Set(ctx, key, value, ttl).Err())
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return classify(s.rdb.Ping(ctx).Err())
}
