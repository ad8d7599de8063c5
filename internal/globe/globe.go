// 包 globe：对外门面。把各种定位请求解析为索引精度下的格子，再交给索引与区域查询。
package globe

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"geonear/internal/area"
	"geonear/internal/geocell"
	"geonear/internal/geocode"
	"geonear/internal/geoerr"
	"geonear/internal/logger"
	"geonear/internal/pinindex"
)

const DefaultPrecision = 8

// Options：可选协作方为 nil 时对应的定位形式返回 InvalidArgument
type Options struct {
	Precision int
	Geocoder  geocode.Geocoder
	Reverse   geocode.ReverseGeocoder
	Cache     *geocode.CellCache
	IPLocator geocode.IPLocator
	// Near 允许的最大圈数，零值取 DefaultMaxReach，不得超过 MaxReach
	MaxReach Reach
}

type Globe struct {
	ix    *pinindex.Index
	opt   Options
	group singleflight.Group
	log   *slog.Logger
}

func New(ix *pinindex.Index, opt Options) (*Globe, error) {
	if opt.Precision == 0 {
		opt.Precision = DefaultPrecision
	}
	if opt.Precision < 1 || opt.Precision > geocell.MaxPrecision {
		return nil, geoerr.Invalid("precision %d not in [1,%d]", opt.Precision, geocell.MaxPrecision)
	}
	if opt.MaxReach == 0 {
		opt.MaxReach = DefaultMaxReach
	}
	if opt.MaxReach < 0 || opt.MaxReach > MaxReach {
		return nil, geoerr.Invalid("max reach %d not in [0,%d]", int(opt.MaxReach), int(MaxReach))
	}
	return &Globe{ix: ix, opt: opt, log: logger.Component("globe")}, nil
}

func (g *Globe) Index() *pinindex.Index { return g.ix }

func (g *Globe) Precision() int { return g.opt.Precision }

func (g *Globe) MaxReach() Reach { return g.opt.MaxReach }

// Resolve：按定位形式分派到对应的解析函数
func (g *Globe) Resolve(ctx context.Context, loc LocationSpec) (geocell.Cell, error) {
	switch v := loc.(type) {
	case Coordinates:
		return g.resolveCoordinates(v)
	case Text:
		return g.resolveText(ctx, v)
	case CellRef:
		return g.resolveCell(v)
	case SameAsPin:
		return g.resolvePin(ctx, v)
	case IPAddress:
		return g.resolveIP(v)
	case nil:
		return "", geoerr.Invalid("missing location")
	}
	return "", geoerr.Invalid("unsupported location %T", loc)
}

func (g *Globe) resolveCoordinates(c Coordinates) (geocell.Cell, error) {
	return geocell.Encode(c.Lat, c.Lon, g.opt.Precision)
}

func (g *Globe) snap(c geocell.Cell) (geocell.Cell, error) {
	if err := geocell.Validate(c); err != nil {
		return "", err
	}
	if c.Precision() == g.opt.Precision {
		return c, nil
	}
	return geocell.Reencode(c, g.opt.Precision)
}

func (g *Globe) resolveCell(c CellRef) (geocell.Cell, error) {
	return g.snap(c.Cell)
}

func (g *Globe) resolvePin(ctx context.Context, s SameAsPin) (geocell.Cell, error) {
	c, err := g.ix.Lookup(ctx, s.PinID)
	if err != nil {
		return "", err
	}
	return g.snap(c)
}

func (g *Globe) resolveIP(a IPAddress) (geocell.Cell, error) {
	if g.opt.IPLocator == nil {
		return "", geoerr.Invalid("ip locations are not configured")
	}
	lat, lon, err := g.opt.IPLocator.LocateIP(a.IP)
	if err != nil {
		return "", err
	}
	return geocell.Encode(lat, lon, g.opt.Precision)
}

// 文档注释：文本定位
// 约束：先查缓存；同一文本的并发请求只发起一次地理编码；无结果为 NotFound 且不缓存。
func (g *Globe) resolveText(ctx context.Context, t Text) (geocell.Cell, error) {
	q := strings.TrimSpace(t.Query)
	if q == "" {
		return "", geoerr.Invalid("empty text location")
	}
	if g.opt.Geocoder == nil {
		return "", geoerr.Invalid("text locations are not configured")
	}
	if c, ok := g.opt.Cache.Get(ctx, g.opt.Precision, q); ok {
		return c, nil
	}
	v, err, shared := g.group.Do(strconv.Itoa(g.opt.Precision)+"\x00"+q, func() (any, error) {
		lat, lon, err := g.opt.Geocoder.Geocode(ctx, q)
		if err != nil {
			return geocell.Cell(""), err
		}
		c, err := geocell.Encode(lat, lon, g.opt.Precision)
		if err != nil {
			return geocell.Cell(""), err
		}
		g.opt.Cache.Put(ctx, g.opt.Precision, q, c)
		return c, nil
	})
	if err != nil {
		if errors.Is(err, geoerr.ErrNotFound) {
			g.log.Debug("geocode_not_found", "q", q)
		}
		return "", err
	}
	g.log.Debug("geocode_resolved", "q", q, "cell", v, "shared", shared)
	return v.(geocell.Cell), nil
}

// Pin：解析位置后放置（或移动）pin；data 为 nil 时保留已有数据
func (g *Globe) Pin(ctx context.Context, pin string, loc LocationSpec, data []byte) (geocell.Cell, error) {
	c, err := g.Resolve(ctx, loc)
	if err != nil {
		return "", err
	}
	if err := g.ix.Place(ctx, pin, c, data); err != nil {
		return "", err
	}
	return c, nil
}

func (g *Globe) Delete(ctx context.Context, pin string) error {
	return g.ix.Remove(ctx, pin)
}

func (g *Globe) Where(ctx context.Context, pin string) (geocell.Cell, error) {
	return g.ix.Lookup(ctx, pin)
}

// Near：位置所在格子向外扩展 reach 圈的区域
func (g *Globe) Near(ctx context.Context, loc LocationSpec, reach Reach) (area.Area, error) {
	if reach < 0 {
		return area.Area{}, geoerr.Invalid("negative reach %d", int(reach))
	}
	if reach > g.opt.MaxReach {
		return area.Area{}, geoerr.Invalid("reach %d exceeds %d", int(reach), int(g.opt.MaxReach))
	}
	c, err := g.Resolve(ctx, loc)
	if err != nil {
		return area.Area{}, err
	}
	return area.Around(g.ix, c, int(reach))
}

// Area：由显式格子构造区域，格子先吸附到索引精度
func (g *Globe) Area(cells ...geocell.Cell) (area.Area, error) {
	set := geocell.NewSet()
	for _, c := range cells {
		s, err := g.snap(c)
		if err != nil {
			return area.Area{}, err
		}
		set.Add(s)
	}
	return area.New(g.ix, set), nil
}

// Describe：pin 所在格子中心的地址描述
func (g *Globe) Describe(ctx context.Context, pin string) (string, error) {
	if g.opt.Reverse == nil {
		return "", geoerr.Invalid("reverse geocoding is not configured")
	}
	lat, lon, err := g.ix.LatLon(ctx, pin)
	if err != nil {
		return "", err
	}
	return g.opt.Reverse.Reverse(ctx, lat, lon)
}
