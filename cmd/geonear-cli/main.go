// 管理 CLI：逐行读取命令，直接操作 Redis 上的索引
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/paulmach/orb/encoding/wkt"

	"geonear/internal/app"
	"geonear/internal/geocell"
	"geonear/internal/globe"
	"geonear/internal/logger"
	"geonear/internal/render"
	"geonear/internal/utils"
)

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  pin <id> <location> [data]")
	fmt.Fprintln(w, "  get <id>")
	fmt.Fprintln(w, "  del <id>")
	fmt.Fprintln(w, "  near <location> [depth]")
	fmt.Fprintln(w, "  shape <location> [depth]")
	fmt.Fprintln(w, "  map <location> [depth] [maptype]")
	fmt.Fprintln(w, "  count")
	fmt.Fprintln(w, "  scan [limit]")
	fmt.Fprintln(w, "  help")
	fmt.Fprintln(w, "  exit")
	fmt.Fprintln(w, "location: <lat>,<lon> | cell:<geohash> | pin:<id> | ip:<addr> | \"free text\"")
	fmt.Fprintln(w, "depth: here | near | almost-near | ... | <n>")
}

// splitArgs：按空白切分，双引号内的空白保留
func splitArgs(line string) ([]string, error) {
	var out []string
	var cur strings.Builder
	quoted, have := false, false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			have = true
		case !quoted && (r == ' ' || r == '\t'):
			if have {
				out = append(out, cur.String())
				cur.Reset()
				have = false
			}
		default:
			cur.WriteRune(r)
			have = true
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote")
	}
	if have {
		out = append(out, cur.String())
	}
	return out, nil
}

// parseLocation：CLI 定位写法 → 定位形式
func parseLocation(s string) (globe.LocationSpec, error) {
	switch {
	case strings.HasPrefix(s, "cell:"):
		return globe.CellRef{Cell: geocell.Cell(strings.TrimPrefix(s, "cell:"))}, nil
	case strings.HasPrefix(s, "pin:"):
		return globe.SameAsPin{PinID: strings.TrimPrefix(s, "pin:")}, nil
	case strings.HasPrefix(s, "ip:"):
		ip := net.ParseIP(strings.TrimPrefix(s, "ip:"))
		if ip == nil {
			return nil, fmt.Errorf("bad ip %q", s)
		}
		return globe.IPAddress{IP: ip}, nil
	}
	if a, b, ok := strings.Cut(s, ","); ok {
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(a), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(b), 64)
		if err1 == nil && err2 == nil {
			return globe.Coordinates{Lat: lat, Lon: lon}, nil
		}
	}
	return globe.Text{Query: s}, nil
}

type repl struct {
	a   *app.App
	out io.Writer
}

func (r *repl) near(parts []string) (globe.Reach, globe.LocationSpec, error) {
	loc, err := parseLocation(parts[1])
	if err != nil {
		return 0, nil, err
	}
	reach := globe.Near
	if len(parts) >= 3 {
		if reach, err = globe.ParseReach(parts[2]); err != nil {
			return 0, nil, err
		}
	}
	return reach, loc, nil
}

// exec：执行一行命令；返回 false 表示退出
func (r *repl) exec(ctx context.Context, line string) bool {
	parts, err := splitArgs(line)
	if err != nil {
		fmt.Fprintln(r.out, "error:", err)
		return true
	}
	if len(parts) == 0 {
		return true
	}
	g := r.a.Globe
	switch strings.ToLower(parts[0]) {
	case "exit", "quit":
		return false
	case "help":
		printHelp(r.out)
	case "pin", "set":
		if len(parts) < 3 {
			fmt.Fprintln(r.out, "usage: pin <id> <location> [data]")
			return true
		}
		loc, err := parseLocation(parts[2])
		if err != nil {
			fmt.Fprintln(r.out, "error:", err)
			return true
		}
		var data []byte
		if len(parts) >= 4 {
			data = []byte(parts[3])
		}
		c, err := g.Pin(ctx, parts[1], loc, data)
		if err != nil {
			fmt.Fprintln(r.out, "error:", err)
			return true
		}
		fmt.Fprintln(r.out, "ok", c)
	case "get":
		if len(parts) < 2 {
			fmt.Fprintln(r.out, "usage: get <id>")
			return true
		}
		c, err := g.Where(ctx, parts[1])
		if err != nil {
			fmt.Fprintln(r.out, "error:", err)
			return true
		}
		lat, lon, _ := geocell.Decode(c)
		data, _, err := g.Index().Data(ctx, parts[1])
		if err != nil {
			fmt.Fprintln(r.out, "error:", err)
			return true
		}
		fmt.Fprintf(r.out, "%s | %.6f,%.6f | %s\n", c, lat, lon, data)
	case "del":
		if len(parts) < 2 {
			fmt.Fprintln(r.out, "usage: del <id>")
			return true
		}
		if err := g.Delete(ctx, parts[1]); err != nil {
			fmt.Fprintln(r.out, "error:", err)
			return true
		}
		fmt.Fprintln(r.out, "ok")
	case "count":
		n, err := g.Index().Count(ctx)
		if err != nil {
			fmt.Fprintln(r.out, "error:", err)
			return true
		}
		fmt.Fprintln(r.out, n)
	case "scan", "list":
		limit := 20
		if len(parts) >= 2 {
			if n, e := strconv.Atoi(parts[1]); e == nil && n > 0 {
				limit = n
			}
		}
		i := 0
		for p, err := range g.Index().ScanLocated(ctx) {
			if err != nil {
				fmt.Fprintln(r.out, "error:", err)
				break
			}
			fmt.Fprintf(r.out, "%s -> %s | %.6f,%.6f\n", p.Pin, p.Cell, p.Lat, p.Lon)
			if i++; i >= limit {
				break
			}
		}
		if i == 0 {
			fmt.Fprintln(r.out, "none")
		}
	case "near", "shape", "map":
		if len(parts) < 2 {
			fmt.Fprintf(r.out, "usage: %s <location> [depth]\n", parts[0])
			return true
		}
		reach, loc, err := r.near(parts)
		if err != nil {
			fmt.Fprintln(r.out, "error:", err)
			return true
		}
		a, err := g.Near(ctx, loc, reach)
		if err != nil {
			fmt.Fprintln(r.out, "error:", err)
			return true
		}
		switch strings.ToLower(parts[0]) {
		case "near":
			members, err := a.Members(ctx)
			if err != nil {
				fmt.Fprintln(r.out, "error:", err)
				return true
			}
			fmt.Fprintf(r.out, "%s: %d pins\n", a, len(members))
			for _, m := range members {
				fmt.Fprintln(r.out, " ", m)
			}
		case "shape":
			mp, err := a.MultiPolygon()
			if err != nil {
				fmt.Fprintln(r.out, "error:", err)
				return true
			}
			fmt.Fprintln(r.out, wkt.MarshalString(mp))
		case "map":
			rings, err := a.Polygons()
			if err != nil {
				fmt.Fprintln(r.out, "error:", err)
				return true
			}
			opt := r.a.Render
			if len(parts) >= 4 {
				opt.MapType = parts[3]
			}
			m, err := render.Build(opt, render.AreaItem(a.String(), rings))
			if err != nil {
				fmt.Fprintln(r.out, "error:", err)
				return true
			}
			fmt.Fprintln(r.out, m)
		}
	default:
		fmt.Fprintln(r.out, "unknown command")
	}
	return true
}

func main() {
	var envFile string
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "--env" && i+1 < len(os.Args) {
			envFile = os.Args[i+1]
			i++
		} else if strings.HasSuffix(os.Args[i], ".env") {
			envFile = os.Args[i]
		}
	}
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load(".env")
	}
	l := logger.SetupWriter(os.Stderr, utils.EnvString("LOG_LEVEL", "warn"), "text")
	a, err := app.FromEnv(context.Background(), l)
	if err != nil {
		fmt.Println("init error:", err)
		os.Exit(1)
	}
	defer a.Close()
	fmt.Println("geonear cli ready, ns:", a.Index.Namespace())
	printHelp(os.Stdout)
	r := &repl{a: a, out: os.Stdout}
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			break
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		more := r.exec(ctx, strings.TrimSpace(in.Text()))
		cancel()
		if !more {
			return
		}
	}
}
