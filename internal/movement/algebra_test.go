package movement

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/rings/internal/grid"
)

var dims = grid.Dims{Rings: 4, Angles: 12}

// allMoves enumerates every move with amounts up to two full periods.
func allMoves() []Move {
	var out []Move
	for r := 0; r < dims.Rings; r++ {
		for a := 1; a <= 2*dims.Angles; a++ {
			out = append(out, Rotate{Ring: r, Clockwise: true, Amount: a}, Rotate{Ring: r, Clockwise: false, Amount: a})
		}
	}
	for th := 0; th < dims.Angles; th++ {
		for a := 1; a <= 4*dims.Rings; a++ {
			out = append(out, Shift{Row: th, Outward: true, Amount: a}, Shift{Row: th, Outward: false, Amount: a})
		}
	}
	return out
}

// TestCombineWithReverseIsNoMove checks combine(m, reverse(m)) == nil for every move.
func TestCombineWithReverseIsNoMove(t *testing.T) {
	for _, m := range allMoves() {
		got, err := Combine(m, Reverse(m), dims)
		require.NoError(t, err, "move %s", m)
		assert.Nil(t, got, "move %s", m)
	}
}

func TestCombineWithNil(t *testing.T) {
	for _, m := range allMoves() {
		got, err := Combine(nil, m, dims)
		require.NoError(t, err)
		assert.Equal(t, m, got)

		got, err = Combine(m, nil, dims)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	got, err := Combine(nil, nil, dims)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSimplifyRange(t *testing.T) {
	for _, m := range allMoves() {
		s, err := Simplify(m, dims)
		require.NoError(t, err, "move %s", m)
		if m.Steps()%Period(m, dims) == 0 {
			assert.Nil(t, s, "move %s is whole cycles", m)
			continue
		}
		require.NotNil(t, s, "move %s", m)
		p := Period(m, dims)
		assert.Greater(t, s.Steps(), 0, "move %s", m)
		assert.LessOrEqual(t, s.Steps(), p/2, "move %s", m)
		assert.Equal(t, GroupOf(m, dims), GroupOf(s, dims))

		again, err := Simplify(s, dims)
		require.NoError(t, err)
		assert.Equal(t, s, again, "simplify must be idempotent for %s", m)
	}
}

func TestSimplifyTakesShorterPath(t *testing.T) {
	s, err := Simplify(Rotate{Ring: 1, Clockwise: true, Amount: 7}, dims)
	require.NoError(t, err)
	assert.Equal(t, Rotate{Ring: 1, Clockwise: false, Amount: 5}, s)

	s, err = Simplify(Rotate{Ring: 1, Clockwise: false, Amount: 6}, dims)
	require.NoError(t, err)
	assert.Equal(t, Rotate{Ring: 1, Clockwise: false, Amount: 6}, s, "half a period keeps its direction")

	s, err = Simplify(Shift{Row: 2, Outward: false, Amount: 11}, dims)
	require.NoError(t, err)
	assert.Equal(t, Shift{Row: 2, Outward: false, Amount: 3}, s)

	s, err = Simplify(Shift{Row: 2, Outward: true, Amount: 5}, dims)
	require.NoError(t, err)
	assert.Equal(t, Shift{Row: 2, Outward: false, Amount: 3}, s)
}

func TestSimplifyRejectsNonPositive(t *testing.T) {
	_, err := Simplify(Rotate{Ring: 0, Clockwise: true, Amount: 0}, dims)
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
	_, err = Simplify(Shift{Row: 0, Outward: true, Amount: -3}, dims)
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
	_, err = Simplify(nil, dims)
	assert.ErrorIs(t, err, ErrNoMove)
}

func TestCombineNetEffect(t *testing.T) {
	got, err := Combine(Rotate{Ring: 2, Clockwise: true, Amount: 3}, Rotate{Ring: 2, Clockwise: false, Amount: 1}, dims)
	require.NoError(t, err)
	assert.Equal(t, Rotate{Ring: 2, Clockwise: true, Amount: 2}, got)

	got, err = Combine(Rotate{Ring: 2, Clockwise: true, Amount: 4}, Rotate{Ring: 2, Clockwise: true, Amount: 4}, dims)
	require.NoError(t, err)
	assert.Equal(t, Rotate{Ring: 2, Clockwise: false, Amount: 4}, got)

	got, err = Combine(Shift{Row: 1, Outward: false, Amount: 2}, Shift{Row: 1, Outward: false, Amount: 1}, dims)
	require.NoError(t, err)
	assert.Equal(t, Shift{Row: 1, Outward: false, Amount: 3}, got)

	got, err = Combine(Rotate{Ring: 0, Clockwise: true, Amount: 5}, Rotate{Ring: 0, Clockwise: true, Amount: 7}, dims)
	require.NoError(t, err)
	assert.Nil(t, got, "a full turn is no move")
}

func TestCombineOppositeHalfRow(t *testing.T) {
	got, err := Combine(Shift{Row: 0, Outward: true, Amount: 1}, Shift{Row: 6, Outward: true, Amount: 1}, dims)
	require.NoError(t, err)
	assert.Nil(t, got, "outward on th+half undoes outward on th")

	got, err = Combine(Shift{Row: 7, Outward: true, Amount: 2}, Shift{Row: 1, Outward: false, Amount: 1}, dims)
	require.NoError(t, err)
	assert.Equal(t, Shift{Row: 7, Outward: true, Amount: 3}, got)
}

func TestCombineMatchesSequentialApplication(t *testing.T) {
	pairs := [][2]Move{
		{Rotate{Ring: 3, Clockwise: true, Amount: 5}, Rotate{Ring: 3, Clockwise: true, Amount: 4}},
		{Shift{Row: 4, Outward: true, Amount: 3}, Shift{Row: 10, Outward: false, Amount: 2}},
		{Shift{Row: 2, Outward: false, Amount: 7}, Shift{Row: 2, Outward: true, Amount: 1}},
	}
	for _, pair := range pairs {
		seq := seededGrid(t)
		viaCombine := seq.Clone()

		applyAll(t, seq, pair[0])
		applyAll(t, seq, pair[1])

		net, err := Combine(pair[0], pair[1], dims)
		require.NoError(t, err)
		if net != nil {
			applyAll(t, viaCombine, net)
		}
		assert.True(t, seq.Equal(viaCombine), "combine(%s, %s) = %v", pair[0], pair[1], net)
	}
}

func TestCombineIncompatible(t *testing.T) {
	_, err := Combine(Rotate{Ring: 0, Clockwise: true, Amount: 1}, Rotate{Ring: 1, Clockwise: true, Amount: 1}, dims)
	assert.ErrorIs(t, err, ErrIncompatibleMove)
	_, err = Combine(Rotate{Ring: 0, Clockwise: true, Amount: 1}, Shift{Row: 0, Outward: true, Amount: 1}, dims)
	assert.ErrorIs(t, err, ErrIncompatibleMove)
	_, err = Combine(Shift{Row: 1, Outward: true, Amount: 1}, Shift{Row: 2, Outward: true, Amount: 1}, dims)
	assert.ErrorIs(t, err, ErrIncompatibleMove)

	assert.True(t, SameGroup(Shift{Row: 1, Outward: true, Amount: 1}, Shift{Row: 7, Outward: true, Amount: 2}, dims))
	assert.True(t, SameGroup(nil, Rotate{Ring: 2, Clockwise: true, Amount: 1}, dims))
	assert.False(t, SameGroup(Rotate{Ring: 0, Clockwise: true, Amount: 1}, Rotate{Ring: 1, Clockwise: true, Amount: 1}, dims))
}

func TestReverseAndIsNegative(t *testing.T) {
	m := Rotate{Ring: 1, Clockwise: true, Amount: 3}
	assert.Equal(t, Rotate{Ring: 1, Clockwise: false, Amount: 3}, Reverse(m))
	assert.Equal(t, m, Reverse(Reverse(m)))
	assert.False(t, IsNegative(m))
	assert.True(t, IsNegative(Reverse(m)))

	s := Shift{Row: 5, Outward: false, Amount: 2}
	assert.True(t, IsNegative(s))
	assert.False(t, IsNegative(Reverse(s)))
	assert.Nil(t, Reverse(nil))
	assert.False(t, IsNegative(nil))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Rotate{Ring: 3, Amount: 1}, dims))
	assert.ErrorIs(t, Validate(Rotate{Ring: 4, Amount: 1}, dims), grid.ErrIndex)
	assert.ErrorIs(t, Validate(Shift{Row: 12, Amount: 1}, dims), grid.ErrIndex)
	assert.ErrorIs(t, Validate(Shift{Row: 0, Amount: 0}, dims), ErrNonPositiveAmount)
	assert.ErrorIs(t, Validate(nil, dims), ErrNoMove)
}

func TestWireRoundTrip(t *testing.T) {
	b, err := json.Marshal(Rotate{Ring: 0, Clockwise: false, Amount: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ring","r":0,"amount":2,"clockwise":false}`, string(b))

	b, err = json.Marshal(Shift{Row: 3, Outward: true, Amount: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"row","th":3,"amount":1,"outward":true}`, string(b))

	m, err := Unmarshal([]byte(`{"type":"row","th":3,"amount":1,"outward":true}`))
	require.NoError(t, err)
	assert.Equal(t, Shift{Row: 3, Outward: true, Amount: 1}, m)

	_, err = Unmarshal([]byte(`{"type":"spin","amount":1}`))
	assert.ErrorIs(t, err, ErrMalformedMove)
	_, err = Unmarshal([]byte(`{"type":"ring","amount":1}`))
	assert.ErrorIs(t, err, ErrMalformedMove)
	_, err = Unmarshal([]byte(`{"type":"ring","r":0,"amount":1}`))
	assert.ErrorIs(t, err, ErrMalformedMove, "ring move needs a direction")
	_, err = Unmarshal([]byte(`{"type":"row","th":2,"amount":1,"clockwise":true}`))
	assert.ErrorIs(t, err, ErrMalformedMove, "row move needs outward, not clockwise")
	_, err = Unmarshal([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedMove)
}

func TestHistoryStack(t *testing.T) {
	var h History
	_, ok := h.Pop()
	assert.False(t, ok)

	h.Push(Rotate{Ring: 0, Clockwise: true, Amount: 1})
	h.Push(nil)
	h.Push(Shift{Row: 1, Outward: true, Amount: 2})
	assert.Equal(t, 3, h.Len())

	top, ok := h.Peek()
	require.True(t, ok)
	assert.Equal(t, Shift{Row: 1, Outward: true, Amount: 2}, top)

	m, ok := h.Pop()
	require.True(t, ok)
	assert.Equal(t, top, m)
	m, ok = h.Pop()
	require.True(t, ok)
	assert.Nil(t, m)
	assert.Equal(t, []Move{Rotate{Ring: 0, Clockwise: true, Amount: 1}}, h.Moves())
}

func seededGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.New(dims)
	require.NoError(t, err)
	for _, p := range []grid.Position{{R: 0, Th: 4}, {R: 1, Th: 2}, {R: 2, Th: 10}, {R: 3, Th: 4}, {R: 0, Th: 10}} {
		require.NoError(t, g.SetMarker(p, true))
	}
	return g
}

func applyAll(t *testing.T, g *grid.Grid, m Move) {
	t.Helper()
	for i := 0; i < m.Steps(); i++ {
		require.NoError(t, m.Apply(g))
	}
}
