// 包 render：调试用静态地图 URL。区域画成填充多边形，pin 画成格子轮廓加标记。
// 颜色与标签只在一次调用内分配，不保留进程级状态。
package render

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-polyline"

	"geonear/internal/geocell"
	"geonear/internal/geoerr"
	"geonear/internal/utils"
)

const (
	DefaultEndpoint = "https://maps.googleapis.com/maps/api/staticmap"
	DefaultSize     = "640x640"
	// 静态地图服务接受的 URL 长度上限
	MaxURLLength = 8192
)

var mapTypes = map[string]bool{"roadmap": true, "satellite": true, "hybrid": true, "terrain": true}

var palette = []struct{ Name, Hex string }{
	{"red", "0xff0000"},
	{"blue", "0x0000ff"},
	{"green", "0x00a000"},
	{"purple", "0x800080"},
	{"orange", "0xff8c00"},
	{"brown", "0x8b4513"},
	{"black", "0x000000"},
	{"gray", "0x808080"},
}

const labels = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Options：端点、密钥、地图类型与尺寸；空值取默认
type Options struct {
	Endpoint string
	Key      string
	MapType  string
	Size     string
}

// OptionsFromEnv：STATIC_MAP_ENDPOINT / STATIC_MAP_KEY
func OptionsFromEnv() Options {
	return Options{
		Endpoint: utils.EnvString("STATIC_MAP_ENDPOINT", DefaultEndpoint),
		Key:      utils.EnvString("STATIC_MAP_KEY", ""),
	}
}

// Item：要画的一项
type Item struct {
	Description string
	Rings       []orb.Ring
	Fill        bool
	Marker      *orb.Point
}

// AreaItem：区域边界，填充绘制
func AreaItem(desc string, rings []orb.Ring) Item {
	return Item{Description: desc, Rings: rings, Fill: true}
}

// CellItem：单个格子轮廓，中心放标记
func CellItem(desc string, b geocell.Box) Item {
	lat, lon := b.Center()
	return Item{Description: desc, Rings: []orb.Ring{b.Ring()}, Marker: &orb.Point{lon, lat}}
}

// LegendEntry：标签、颜色与描述
type LegendEntry struct {
	Label       string `json:"label"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// Map：生成结果
type Map struct {
	URL    string        `json:"url"`
	Length int           `json:"length"`
	Legend []LegendEntry `json:"legend"`
}

// TooLong：URL 是否超出服务上限
func (m Map) TooLong() bool { return m.Length > MaxURLLength }

// 文档注释：生成静态地图 URL
// 约束：maptype 只接受 roadmap/satellite/hybrid/terrain；每项按顺序分配颜色与标签，超出后循环使用颜色。
// 点坐标为 [经度, 纬度]，编码为折线时转换为 (纬度, 经度)。
func Build(opt Options, items ...Item) (Map, error) {
	if opt.Endpoint == "" {
		opt.Endpoint = DefaultEndpoint
	}
	if opt.MapType == "" {
		opt.MapType = "roadmap"
	}
	if !mapTypes[opt.MapType] {
		return Map{}, geoerr.Invalid("unsupported map type %q", opt.MapType)
	}
	if opt.Size == "" {
		opt.Size = DefaultSize
	}
	q := url.Values{}
	q.Set("size", opt.Size)
	q.Set("maptype", opt.MapType)
	if opt.Key != "" {
		q.Set("key", opt.Key)
	}
	var legend []LegendEntry
	for i, it := range items {
		color := palette[i%len(palette)]
		label := ""
		if i < len(labels) {
			label = string(labels[i])
		}
		for _, r := range it.Rings {
			if len(r) == 0 {
				continue
			}
			style := []string{"color:" + color.Hex + "ff", "weight:2"}
			if it.Fill {
				style = append(style, "fillcolor:"+color.Hex+"40")
			}
			q.Add("path", strings.Join(append(style, "enc:"+encode(r)), "|"))
		}
		if it.Marker != nil {
			m := []string{"color:" + color.Name}
			if label != "" {
				m = append(m, "label:"+label)
			}
			m = append(m, coord(it.Marker[1])+","+coord(it.Marker[0]))
			q.Add("markers", strings.Join(m, "|"))
		}
		legend = append(legend, LegendEntry{Label: label, Color: color.Name, Description: it.Description})
	}
	u := opt.Endpoint + "?" + q.Encode()
	return Map{URL: u, Length: len(u), Legend: legend}, nil
}

func encode(r orb.Ring) string {
	coords := make([][]float64, len(r))
	for i, p := range r {
		coords[i] = []float64{p[1], p[0]}
	}
	return string(polyline.EncodeCoords(coords))
}

func coord(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// Legend 文本形式，供 CLI 输出
func (m Map) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", m.URL)
	for _, e := range m.Legend {
		fmt.Fprintf(&b, "  %-2s %-7s %s\n", e.Label, e.Color, e.Description)
	}
	return b.String()
}
