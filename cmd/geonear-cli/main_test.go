package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geonear/internal/app"
	"geonear/internal/globe"
)

func TestSplitArgs(t *testing.T) {
	got, err := splitArgs(`pin home "Aalborg, Denmark"  {"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"pin", "home", "Aalborg, Denmark", "{a:1}"}, got)

	_, err = splitArgs(`near "open`)
	assert.Error(t, err)
}

func TestParseLocation(t *testing.T) {
	cases := map[string]globe.LocationSpec{
		"57.6,10.4":     globe.Coordinates{Lat: 57.6, Lon: 10.4},
		"cell:u4pru":    globe.CellRef{Cell: "u4pru"},
		"pin:home":      globe.SameAsPin{PinID: "home"},
		"Aalborg":       globe.Text{Query: "Aalborg"},
		"Aalborg, Nord": globe.Text{Query: "Aalborg, Nord"},
	}
	for in, want := range cases {
		got, err := parseLocation(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	got, err := parseLocation("ip:81.2.69.142")
	require.NoError(t, err)
	assert.True(t, got.(globe.IPAddress).IP.Equal(net.ParseIP("81.2.69.142")))

	_, err = parseLocation("ip:nope")
	assert.Error(t, err)
}

func TestReplCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	a, err := app.Build(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	r := &repl{a: a, out: &out}
	ctx := context.Background()
	run := func(line string) string {
		out.Reset()
		assert.True(t, r.exec(ctx, line))
		return out.String()
	}

	assert.Equal(t, "ok u4pruydq\n", run("pin home 57.64911,10.40744 hello"))
	assert.Contains(t, run("get home"), "u4pruydq |")
	assert.Contains(t, run("get home"), "| hello")
	assert.Equal(t, "1\n", run("count"))
	assert.True(t, strings.HasPrefix(run("scan"), "home -> u4pruydq | "))
	assert.Contains(t, run("near pin:home"), "1 pins\n  home\n")
	assert.Contains(t, run("shape cell:u4pruydq here"), "MULTIPOLYGON")
	assert.Contains(t, run("map cell:u4pruydq 1 terrain"), "maptype=terrain")
	assert.Contains(t, run("map cell:u4pruydq 1 blueprint"), "error:")
	assert.Contains(t, run("near pin:ghost"), "error:")
	assert.Equal(t, "ok\n", run("del home"))
	assert.Contains(t, run("del home"), "not found")
	assert.Equal(t, "none\n", run("scan"))
	assert.Equal(t, "unknown command\n", run("frobnicate"))
	assert.False(t, r.exec(ctx, "exit"))
}
