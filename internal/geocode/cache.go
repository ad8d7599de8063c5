package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"geonear/internal/geocell"
	"geonear/internal/logger"
	"geonear/internal/metrics"
	"geonear/internal/pinindex"
	"geonear/internal/store"
)

const (
	DefaultCacheTTL  = 20 * time.Second
	DefaultCacheSize = 4096
)

// 文档注释：文本 → 格子缓存（进程内 LRU + 存储 SET EX 两级）
// 约束：键由命名空间、精度与文本的 SHA-256 组成；ttl<=0 时不缓存。
// 存储层读写失败只记录日志并按未命中处理。
type CellCache struct {
	st    store.Store
	keys  pinindex.Keys
	ttl   time.Duration
	local *expirable.LRU[string, geocell.Cell]
}

func NewCellCache(st store.Store, namespace string, ttl time.Duration, size int) *CellCache {
	c := &CellCache{st: st, keys: pinindex.NewKeys(namespace), ttl: ttl}
	if ttl > 0 {
		if size <= 0 {
			size = DefaultCacheSize
		}
		c.local = expirable.NewLRU[string, geocell.Cell](size, nil, ttl)
	}
	return c
}

func (c *CellCache) Enabled() bool { return c != nil && c.ttl > 0 }

// Key：缓存键，格式 globe:<ns>:geocode:<precision>:<sha256(text)>
func (c *CellCache) Key(precision int, text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.keys.Scoped("geocode", strconv.Itoa(precision), hex.EncodeToString(sum[:]))
}

func (c *CellCache) Get(ctx context.Context, precision int, text string) (geocell.Cell, bool) {
	if !c.Enabled() {
		return "", false
	}
	key := c.Key(precision, text)
	if cell, ok := c.local.Get(key); ok {
		metrics.GeocodeCacheTotal.WithLabelValues("local", "hit").Inc()
		return cell, true
	}
	metrics.GeocodeCacheTotal.WithLabelValues("local", "miss").Inc()
	if c.st == nil {
		return "", false
	}
	v, ok, err := c.st.Get(ctx, key)
	if err != nil {
		logger.L().Warn("geocode_cache_get_error", "err", err)
		return "", false
	}
	if !ok || geocell.Validate(geocell.Cell(v)) != nil {
		metrics.GeocodeCacheTotal.WithLabelValues("store", "miss").Inc()
		return "", false
	}
	metrics.GeocodeCacheTotal.WithLabelValues("store", "hit").Inc()
	logger.L().Debug("geocode_cache_hit", "precision", precision, "cell", v)
	c.local.Add(key, geocell.Cell(v))
	return geocell.Cell(v), true
}

func (c *CellCache) Put(ctx context.Context, precision int, text string, cell geocell.Cell) {
	if !c.Enabled() {
		return
	}
	key := c.Key(precision, text)
	c.local.Add(key, cell)
	if c.st == nil {
		return
	}
	if err := c.st.SetEX(ctx, key, string(cell), c.ttl); err != nil {
		logger.L().Warn("geocode_cache_put_error", "err", err)
	}
}
