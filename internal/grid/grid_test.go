package grid

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var standard = Dims{Rings: 4, Angles: 12}

func newGrid(t *testing.T, d Dims, markers ...Position) *Grid {
	t.Helper()
	g, err := New(d)
	require.NoError(t, err)
	for _, p := range markers {
		require.NoError(t, g.SetMarker(p, true))
	}
	return g
}

func randomGrid(t *testing.T, d Dims, seed int64) *Grid {
	t.Helper()
	g := newGrid(t, d)
	rng := rand.New(rand.NewSource(seed))
	for r := 0; r < d.Rings; r++ {
		for th := 0; th < d.Angles; th++ {
			if rng.Intn(3) == 0 {
				require.NoError(t, g.SetMarker(Position{R: r, Th: th}, true))
			}
		}
	}
	return g
}

func TestNewRejectsBadShapes(t *testing.T) {
	for _, d := range []Dims{{0, 12}, {4, 11}, {4, 0}, {-1, 4}, {3, 1}} {
		_, err := New(d)
		assert.ErrorIs(t, err, ErrInvalidShape, "dims %+v", d)
	}
	g, err := New(Dims{Rings: 1, Angles: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, g.MarkerCount())
}

func TestMarkerAccessBounds(t *testing.T) {
	g := newGrid(t, standard)
	for _, p := range []Position{{-1, 0}, {4, 0}, {0, -1}, {0, 12}} {
		_, err := g.Cell(p)
		assert.ErrorIs(t, err, ErrIndex, "position %v", p)
		assert.ErrorIs(t, g.SetMarker(p, true), ErrIndex)
		_, err = g.ToggleMarker(p)
		assert.ErrorIs(t, err, ErrIndex)
	}

	on, err := g.ToggleMarker(Position{R: 2, Th: 5})
	require.NoError(t, err)
	assert.True(t, on)
	has, err := g.HasMarker(Position{R: 2, Th: 5})
	require.NoError(t, err)
	assert.True(t, has)
	on, err = g.ToggleMarker(Position{R: 2, Th: 5})
	require.NoError(t, err)
	assert.False(t, on)
	has, err = g.HasMarker(Position{R: 2, Th: 5})
	require.NoError(t, err)
	assert.False(t, has)

	_, err = g.HasMarker(Position{R: 0, Th: 12})
	assert.ErrorIs(t, err, ErrIndex)
}

func TestRotateRingMovesMarkerClockwise(t *testing.T) {
	g := newGrid(t, standard, Position{R: 0, Th: 0})
	require.NoError(t, g.RotateRing(0, true))
	assert.Equal(t, []Position{{R: 0, Th: 1}}, g.Markers())

	require.NoError(t, g.RotateRing(0, false))
	require.NoError(t, g.RotateRing(0, false))
	assert.Equal(t, []Position{{R: 0, Th: 11}}, g.Markers())
}

func TestRotateRingOnlyTouchesItsRing(t *testing.T) {
	g := newGrid(t, standard, Position{R: 1, Th: 3}, Position{R: 2, Th: 3})
	require.NoError(t, g.RotateRing(1, true))
	assert.Equal(t, []Position{{R: 1, Th: 4}, {R: 2, Th: 3}}, g.Markers())
}

func TestRotateRingRoundTrip(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		g := randomGrid(t, standard, seed)
		orig := g.Clone()
		for r := 0; r < standard.Rings; r++ {
			for i := 0; i < standard.Angles; i++ {
				require.NoError(t, g.RotateRing(r, true))
			}
			assert.True(t, orig.Equal(g), "full clockwise cycle of ring %d", r)
			for i := 0; i < standard.Angles; i++ {
				require.NoError(t, g.RotateRing(r, true))
				require.NoError(t, g.RotateRing(r, false))
			}
			assert.True(t, orig.Equal(g), "clockwise/anticlockwise pairs on ring %d", r)
		}
	}
}

func TestRotateRingBadIndex(t *testing.T) {
	g := newGrid(t, standard)
	assert.ErrorIs(t, g.RotateRing(4, true), ErrIndex)
	assert.ErrorIs(t, g.RotateRing(-1, false), ErrIndex)
}

func TestShiftRowOutward(t *testing.T) {
	g := newGrid(t, standard, Position{R: 0, Th: 0})
	require.NoError(t, g.ShiftRow(0, true))
	assert.Equal(t, []Position{{R: 1, Th: 0}}, g.Markers())
}

func TestShiftRowCyclesWholeLine(t *testing.T) {
	g := newGrid(t, standard, Position{R: 0, Th: 0})
	want := []Position{
		{1, 0}, {2, 0}, {3, 0},
		{3, 6}, {2, 6}, {1, 6}, {0, 6},
		{0, 0},
	}
	require.Len(t, want, 2*standard.Rings)
	for i, p := range want {
		require.NoError(t, g.ShiftRow(0, true))
		assert.Equal(t, []Position{p}, g.Markers(), "after %d shifts", i+1)
	}

	// Twelve shifts are one full cycle plus four.
	for range 4 {
		require.NoError(t, g.ShiftRow(0, true))
	}
	assert.Equal(t, []Position{want[3]}, g.Markers())
}

func TestShiftRowInwardCrossesCenter(t *testing.T) {
	g := newGrid(t, standard, Position{R: 0, Th: 2})
	require.NoError(t, g.ShiftRow(2, false))
	assert.Equal(t, []Position{{R: 0, Th: 8}}, g.Markers())
}

func TestShiftRowOppositeHalfIsMirrored(t *testing.T) {
	g := newGrid(t, standard, Position{R: 0, Th: 6})
	require.NoError(t, g.ShiftRow(6, true))
	assert.Equal(t, []Position{{R: 1, Th: 6}}, g.Markers())

	a := randomGrid(t, standard, 7)
	b := a.Clone()
	require.NoError(t, a.ShiftRow(9, true))
	require.NoError(t, b.ShiftRow(3, false))
	assert.True(t, a.Equal(b))
}

func TestShiftRowRoundTrip(t *testing.T) {
	shapes := []Dims{standard, {Rings: 3, Angles: 8}, {Rings: 1, Angles: 2}, {Rings: 5, Angles: 6}}
	for _, d := range shapes {
		g := randomGrid(t, d, int64(d.Rings*100+d.Angles))
		orig := g.Clone()
		for th := 0; th < d.Angles; th++ {
			require.NoError(t, g.ShiftRow(th, true))
			require.NoError(t, g.ShiftRow(th, false))
			assert.True(t, orig.Equal(g), "dims %+v row %d", d, th)
		}
		for i := 0; i < 2*d.Rings; i++ {
			require.NoError(t, g.ShiftRow(1%d.Angles, true))
		}
		assert.True(t, orig.Equal(g), "full outward cycle, dims %+v", d)
	}
}

func TestShiftRowOnlyTouchesItsLine(t *testing.T) {
	g := newGrid(t, standard, Position{R: 0, Th: 1}, Position{R: 3, Th: 7}, Position{R: 2, Th: 0})
	require.NoError(t, g.ShiftRow(1, true))
	assert.ElementsMatch(t, []Position{{R: 1, Th: 1}, {R: 2, Th: 7}, {R: 2, Th: 0}}, g.Markers())
}

func TestShiftRowBadIndex(t *testing.T) {
	g := newGrid(t, standard)
	assert.ErrorIs(t, g.ShiftRow(12, true), ErrIndex)
	assert.ErrorIs(t, g.ShiftRow(-1, true), ErrIndex)
}

func TestEncodeDecode(t *testing.T) {
	g := newGrid(t, standard, Position{R: 0, Th: 0}, Position{R: 0, Th: 11}, Position{R: 3, Th: 4})
	rings, err := g.Encode()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1 | 1<<11, 0, 0, 1 << 4}, rings)

	back, err := Decode(standard, rings)
	require.NoError(t, err)
	assert.True(t, g.Equal(back))
}

func TestLoadRejectsBadEncodings(t *testing.T) {
	g := newGrid(t, standard, Position{R: 1, Th: 1})
	before := g.Clone()

	assert.ErrorIs(t, g.Load([]uint64{0, 0, 0}), ErrEncoding)
	assert.ErrorIs(t, g.Load([]uint64{0, 1 << 12, 0, 0}), ErrEncoding)
	assert.True(t, before.Equal(g), "failed load must not modify the grid")

	wide := newGrid(t, Dims{Rings: 1, Angles: 66})
	_, err := wide.Encode()
	assert.ErrorIs(t, err, ErrEncodingWidth)
}

func TestFormat(t *testing.T) {
	g := newGrid(t, Dims{Rings: 2, Angles: 4}, Position{R: 0, Th: 1}, Position{R: 1, Th: 3})
	assert.Equal(t, "r1  ...x\nr0  .x..\n", g.Format())
}
