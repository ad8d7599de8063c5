package globe

import (
	"fmt"
	"net"

	"geonear/internal/geocell"
)

// LocationSpec：定位请求的几种形式，每种对应一个解析函数
type LocationSpec interface {
	fmt.Stringer
	isLocation()
}

// Coordinates：纬度、经度
type Coordinates struct {
	Lat float64
	Lon float64
}

// Text：需要地理编码的自由文本
type Text struct {
	Query string
}

// CellRef：已有格子，按索引精度重新吸附
type CellRef struct {
	Cell geocell.Cell
}

// SameAsPin：与某个 pin 当前位置相同
type SameAsPin struct {
	PinID string
}

// IPAddress：按 GeoIP 定位
type IPAddress struct {
	IP net.IP
}

func (Coordinates) isLocation() {}
func (Text) isLocation()        {}
func (CellRef) isLocation()     {}
func (SameAsPin) isLocation()   {}
func (IPAddress) isLocation()   {}

func (c Coordinates) String() string { return fmt.Sprintf("coords(%g,%g)", c.Lat, c.Lon) }
func (t Text) String() string        { return fmt.Sprintf("text(%q)", t.Query) }
func (c CellRef) String() string     { return "cell(" + string(c.Cell) + ")" }
func (s SameAsPin) String() string   { return "pin(" + s.PinID + ")" }
func (a IPAddress) String() string   { return "ip(" + a.IP.String() + ")" }
