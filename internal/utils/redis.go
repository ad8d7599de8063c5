// 包 utils：Redis 连接与环境变量读取工具
package utils

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"geonear/internal/logger"
)

// OpenRedis：直接按地址、密码、DB 打开客户端，供测试与 CLI 手工注入
func OpenRedis(addr, pass string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

// 文档注释：从环境变量打开 Redis 客户端
// 约束：REDIS_HOST 默认 127.0.0.1，REDIS_PORT 默认 6379；REDIS_DB 非法时回退到 0。
func OpenRedisFromEnv() *redis.Client {
	host := EnvString("REDIS_HOST", "127.0.0.1")
	port := EnvString("REDIS_PORT", "6379")
	addr := host + ":" + port
	db := EnvInt("REDIS_DB", 0)
	if db < 0 {
		db = 0
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return OpenRedis(addr, os.Getenv("REDIS_PASS"), db)
}

// PingRedis：启动时连通性检查，失败只记录日志
func PingRedis(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.L().Warn("redis_ping_fail", "addr", rdb.Options().Addr, "err", err)
		return err
	}
	logger.L().Info("redis_ping_ok", "addr", rdb.Options().Addr)
	return nil
}

func EnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt：解析失败时返回默认值
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func EnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
