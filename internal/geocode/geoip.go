package geocode

import (
	"net"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"

	"geonear/internal/geoerr"
	"geonear/internal/logger"
)

// IPLocator：IP 地址 → 坐标
type IPLocator interface {
	LocateIP(ip net.IP) (lat, lon float64, err error)
}

// GeoIP：基于 MaxMind City 库的定位
type GeoIP struct {
	db *geoip2.Reader
}

// OpenGeoIP：打开 mmdb 文件并记录库元数据
func OpenGeoIP(path string) (*GeoIP, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	logger.L().Info("geoip_open", append([]any{"path", path}, describe(db.Metadata())...)...)
	return &GeoIP{db: db}, nil
}

func describe(m maxminddb.Metadata) []any {
	return []any{
		"database_type", m.DatabaseType,
		"ip_version", m.IPVersion,
		"node_count", m.NodeCount,
		"build", time.Unix(int64(m.BuildEpoch), 0).UTC().Format(time.DateOnly),
	}
}

// 文档注释：按 IP 查城市坐标
// 约束：非法 IP 为 InvalidArgument；库中没有坐标（经纬度均为 0）时返回 NotFound。
func (g *GeoIP) LocateIP(ip net.IP) (float64, float64, error) {
	if ip == nil {
		return 0, 0, geoerr.Invalid("missing ip address")
	}
	rec, err := g.db.City(ip)
	if err != nil {
		return 0, 0, err
	}
	lat, lon := rec.Location.Latitude, rec.Location.Longitude
	if lat == 0 && lon == 0 {
		return 0, 0, geoerr.NotFound("no location for %s", ip)
	}
	logger.L().Debug("geoip_hit", "ip", ip.String(), "city", rec.City.Names["en"], "radius_km", rec.Location.AccuracyRadius)
	return lat, lon, nil
}

func (g *GeoIP) Close() error { return g.db.Close() }
