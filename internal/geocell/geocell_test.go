package geocell

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geonear/internal/geoerr"
)

func TestEncodeKnownValues(t *testing.T) {
	cases := []struct {
		lat, lon  float64
		precision int
		want      Cell
	}{
		{57.64911, 10.40744, 11, "u4pruydqqvj"},
		{42.6, -5.6, 5, "ezs42"},
		{-90, -180, 4, "0000"},
		{90, 180, 4, "zzzz"},
	}
	for _, c := range cases {
		got, err := Encode(c.lat, c.lon, c.precision)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "encode(%v, %v, %d)", c.lat, c.lon, c.precision)
	}
}

func TestEncodeInvalidArguments(t *testing.T) {
	cases := []struct {
		name      string
		lat, lon  float64
		precision int
	}{
		{"lat too high", 90.0001, 0, 5},
		{"lat too low", -91, 0, 5},
		{"lon too high", 0, 180.5, 5},
		{"lon too low", 0, -181, 5},
		{"lat NaN", math.NaN(), 0, 5},
		{"zero precision", 0, 0, 0},
		{"precision too high", 0, 0, MaxPrecision + 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Encode(c.lat, c.lon, c.precision)
			assert.ErrorIs(t, err, geoerr.ErrInvalidArgument)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, c := range []Cell{"", "abc!", "ai", "u4pruydqqvjzz"} {
		_, _, err := Decode(c)
		assert.ErrorIs(t, err, geoerr.ErrInvalidArgument, "decode(%q)", c)
	}
}

func TestDecodeLiesInsideBBox(t *testing.T) {
	for lat := -89.5; lat <= 89.5; lat += 7.3 {
		for lon := -179.5; lon <= 179.5; lon += 11.1 {
			for p := 1; p <= MaxPrecision; p += 3 {
				c, err := Encode(lat, lon, p)
				require.NoError(t, err)
				b, err := BBox(c)
				require.NoError(t, err)
				assert.True(t, b.Contains(lat, lon), "input point outside bbox of %s", c)
				dlat, dlon, err := Decode(c)
				require.NoError(t, err)
				assert.True(t, b.Contains(dlat, dlon), "centroid outside bbox of %s", c)
				assert.Less(t, b.South, b.North)
				assert.Less(t, b.West, b.East)

				again, err := Encode(dlat, dlon, p)
				require.NoError(t, err)
				assert.Equal(t, c, again, "round trip of %s", c)
			}
		}
	}
}

func TestReencodeSnapsToNewGrid(t *testing.T) {
	c, err := Reencode("u4pruydqqvj", 5)
	require.NoError(t, err)
	assert.Equal(t, Cell("u4pru"), c)

	c, err = Reencode("u4pru", 7)
	require.NoError(t, err)
	assert.Len(t, c, 7)
	assert.Equal(t, Cell("u4pru"), c[:5])
}

func TestNeighborsOfInteriorCell(t *testing.T) {
	ns, err := Neighbors("bg4r")
	require.NoError(t, err)
	assert.Equal(t,
		[]Cell{"bg4n", "bg4p", "bg4q", "bg4w", "bg4x", "bg60", "bg62", "bg68"},
		ns.Sorted())
	assert.False(t, ns.Has("bg4r"))
}

func TestAdjacencyIsSymmetric(t *testing.T) {
	for _, c := range []Cell{"bg4r", "u4pruy", "ezs42", "9q8yy", "s0000"} {
		for d := North; d <= NorthWest; d++ {
			n, ok, err := Adjacent(c, d)
			require.NoError(t, err)
			require.True(t, ok)
			back, ok, err := Adjacent(n, d.Opposite())
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, c, back, "%s -%s-> %s", c, d, n)
		}
	}
}

func TestAdjacentCellsShareExactEdge(t *testing.T) {
	c := Cell("u4pruyd")
	b, err := BBox(c)
	require.NoError(t, err)

	e, _, err := Adjacent(c, East)
	require.NoError(t, err)
	eb, err := BBox(e)
	require.NoError(t, err)
	assert.Equal(t, b.East, eb.West)
	assert.Equal(t, b.North, eb.North)

	n, _, err := Adjacent(c, North)
	require.NoError(t, err)
	nb, err := BBox(n)
	require.NoError(t, err)
	assert.Equal(t, b.North, nb.South)
	assert.Equal(t, b.West, nb.West)
}

func TestNeighborsAtPoleAndAntimeridian(t *testing.T) {
	polar, err := Encode(89.99, 10, 3)
	require.NoError(t, err)
	_, ok, err := Adjacent(polar, North)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = Neighbors(polar)
	assert.ErrorIs(t, err, geoerr.ErrInvalidArgument)

	dateline, err := Encode(10, 179.99, 4)
	require.NoError(t, err)
	_, ok, err = Adjacent(dateline, East)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = Expand(dateline, 1)
	assert.ErrorIs(t, err, geoerr.ErrInvalidArgument)
}

func TestExpand(t *testing.T) {
	s, err := Expand("bg4r", 0)
	require.NoError(t, err)
	assert.True(t, s.Equal(NewSet("bg4r")))

	s, err = Expand("bg4r", 1)
	require.NoError(t, err)
	assert.Equal(t,
		[]Cell{"bg4n", "bg4p", "bg4q", "bg4r", "bg4w", "bg4x", "bg60", "bg62", "bg68"},
		s.Sorted())

	s, err = Expand("bg4r", 2)
	require.NoError(t, err)
	assert.Equal(t, []Cell{
		"bg1v", "bg1y", "bg1z", "bg3b", "bg3c", "bg4j", "bg4m", "bg4n", "bg4p",
		"bg4q", "bg4r", "bg4t", "bg4v", "bg4w", "bg4x", "bg4y", "bg4z", "bg60",
		"bg61", "bg62", "bg63", "bg68", "bg69", "bg6b", "bg6c",
	}, s.Sorted())

	for depth := 0; depth <= 4; depth++ {
		s, err := Expand("u4pruyd", depth)
		require.NoError(t, err)
		side := 2*depth + 1
		assert.Equal(t, side*side, s.Len(), "depth %d", depth)
	}

	_, err = Expand("bg4r", -1)
	assert.ErrorIs(t, err, geoerr.ErrInvalidArgument)
}

func TestSetAlgebra(t *testing.T) {
	a := NewSet("aa", "ab", "ac")
	b := NewSet("ab", "ac", "ad")
	assert.Equal(t, []Cell{"aa", "ab", "ac", "ad"}, a.Union(b).Sorted())
	assert.Equal(t, []Cell{"ab", "ac"}, a.Intersect(b).Sorted())
	assert.True(t, a.Equal(NewSet("ac", "ab", "aa")))
	assert.False(t, a.Equal(b))
	assert.Equal(t, 3, a.Len(), "operands are not mutated")

	p, err := a.Precision()
	require.NoError(t, err)
	assert.Equal(t, 2, p)

	_, err = NewSet("aa", "abc").Precision()
	assert.ErrorIs(t, err, geoerr.ErrInvalidArgument)

	p, err = NewSet().Precision()
	require.NoError(t, err)
	assert.Equal(t, 0, p)
}
