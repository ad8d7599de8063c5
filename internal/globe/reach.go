package globe

import (
	"strconv"
	"strings"

	"geonear/internal/geoerr"
)

// Reach：邻域扩展圈数
type Reach int

const (
	Here Reach = iota
	Near
	AlmostNear
	AlmostAlmostNear
	AlmostAlmostAlmostNear
)

// 扩展圈数上限；(2n+1)² 个格子都要进入内存并逐个发往存储
const (
	DefaultMaxReach Reach = 32
	MaxReach        Reach = 256
)

var reachNames = map[string]Reach{
	"here":                      Here,
	"near":                      Near,
	"almost_near":               AlmostNear,
	"almost_almost_near":        AlmostAlmostNear,
	"almost_almost_almost_near": AlmostAlmostAlmostNear,
}

func (r Reach) String() string {
	for name, v := range reachNames {
		if v == r {
			return name
		}
	}
	return strconv.Itoa(int(r))
}

// ParseReach：接受名称（near、almost_near…）或不超过 MaxReach 的非负整数
func ParseReach(s string) (Reach, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Near, nil
	}
	if r, ok := reachNames[strings.ReplaceAll(s, "-", "_")]; ok {
		return r, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, geoerr.Invalid("bad reach %q", s)
	}
	if Reach(n) > MaxReach {
		return 0, geoerr.Invalid("reach %d exceeds %d", n, MaxReach)
	}
	return Reach(n), nil
}
