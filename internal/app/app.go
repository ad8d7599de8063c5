// 包 app：按环境变量装配 Redis、索引、地理编码与渲染配置，服务端与 CLI 共用
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"geonear/internal/geocode"
	"geonear/internal/globe"
	"geonear/internal/logger"
	"geonear/internal/pinindex"
	"geonear/internal/render"
	"geonear/internal/store"
	"geonear/internal/utils"
)

// App：已装配的依赖集合
type App struct {
	Redis  *redis.Client
	Index  *pinindex.Index
	Globe  *globe.Globe
	Render render.Options
	geoip  *geocode.GeoIP
}

// 文档注释：从环境变量装配
// 约束：Redis 不可达时返回错误；GEOIP_DB_PATH 未设置时不启用 IP 定位，
// 设置了但无法打开时记录错误并继续。
func FromEnv(ctx context.Context, l *slog.Logger) (*App, error) {
	rdb := utils.OpenRedisFromEnv()
	if err := utils.PingRedis(ctx, rdb); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	return Build(rdb, l)
}

// Build：在已有 Redis 客户端上装配其余依赖
func Build(rdb *redis.Client, l *slog.Logger) (*App, error) {
	if l == nil {
		l = logger.L()
	}
	st := store.NewRedis(rdb)
	ns := utils.EnvString("GEONEAR_NAMESPACE", "")
	ix := pinindex.New(st, pinindex.Options{
		Namespace:  ns,
		MaxRetries: uint(max(utils.EnvInt("GEONEAR_MAX_RETRIES", pinindex.DefaultMaxRetries), 0)),
		ScanPage:   int64(utils.EnvInt("GEONEAR_SCAN_PAGE", pinindex.DefaultScanPage)),
	})
	nom := geocode.NewNominatimFromEnv()
	opt := globe.Options{
		Precision: utils.EnvInt("GEONEAR_PRECISION", globe.DefaultPrecision),
		MaxReach:  globe.Reach(utils.EnvInt("GEONEAR_MAX_REACH", int(globe.DefaultMaxReach))),
		Geocoder:  nom,
		Reverse:   nom,
		Cache: geocode.NewCellCache(st, ns,
			time.Duration(utils.EnvInt("GEOCODE_CACHE_TTL_S", 20))*time.Second,
			utils.EnvInt("GEOCODE_CACHE_SIZE", 4096)),
	}
	a := &App{Redis: rdb, Index: ix, Render: render.OptionsFromEnv()}
	if p := utils.EnvString("GEOIP_DB_PATH", ""); p != "" {
		if g, err := geocode.OpenGeoIP(p); err == nil {
			a.geoip = g
			opt.IPLocator = g
		} else {
			l.Error("geoip_open_error", "path", p, "err", err)
		}
	}
	g, err := globe.New(ix, opt)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Globe = g
	l.Info("app_ready", "ns", ns, "precision", g.Precision(), "geoip", a.geoip != nil, "geocode_cache", opt.Cache.Enabled())
	return a, nil
}

func (a *App) Close() {
	if a.geoip != nil {
		_ = a.geoip.Close()
	}
	_ = a.Redis.Close()
}
