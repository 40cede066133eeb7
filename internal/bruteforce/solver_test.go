package bruteforce

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/rings/internal/grid"
	"github.com/robalobadob/rings/internal/movement"
)

var dims = grid.Dims{Rings: 4, Angles: 12}

func encode(t *testing.T, markers ...grid.Position) []uint64 {
	t.Helper()
	g, err := grid.New(dims)
	require.NoError(t, err)
	for _, p := range markers {
		require.NoError(t, g.SetMarker(p, true))
	}
	rings, err := g.Encode()
	require.NoError(t, err)
	return rings
}

func newSolver(t *testing.T, maxMoves int) *Solver {
	t.Helper()
	s, err := New(dims, &Options{MaxMoves: maxMoves})
	require.NoError(t, err)
	return s
}

func TestEmptyBoardIsSolved(t *testing.T) {
	sol, err := newSolver(t, 3).Solve(context.Background(), make([]uint64, 4))
	require.NoError(t, err)
	assert.Empty(t, sol.Moves)
	assert.Equal(t, 0, sol.JumpRows)
}

func TestAlreadySolvedLayout(t *testing.T) {
	rings := encode(t, grid.Position{R: 0, Th: 0}, grid.Position{R: 1, Th: 0}, grid.Position{R: 2, Th: 0}, grid.Position{R: 3, Th: 0})
	sol, err := newSolver(t, 0).Solve(context.Background(), rings)
	require.NoError(t, err)
	assert.Empty(t, sol.Moves)
	assert.Equal(t, 1, sol.JumpRows)
	assert.Equal(t, 0, sol.HammerGroups)
	assert.Equal(t, rings, sol.Result)
}

func TestOneMoveSolution(t *testing.T) {
	rings := encode(t, grid.Position{R: 0, Th: 0}, grid.Position{R: 1, Th: 0}, grid.Position{R: 2, Th: 0}, grid.Position{R: 3, Th: 1})

	_, err := newSolver(t, 0).Solve(context.Background(), rings)
	assert.ErrorIs(t, err, ErrNoSolution)

	sol, err := newSolver(t, 3).Solve(context.Background(), rings)
	require.NoError(t, err)
	assert.Equal(t, []movement.Move{movement.Rotate{Ring: 3, Clockwise: false, Amount: 1}}, sol.Moves)
	assert.Equal(t, []uint64{1, 1, 1, 1}, sol.Result)
}

func TestSolutionReplaysOnGrid(t *testing.T) {
	rings := encode(t,
		grid.Position{R: 0, Th: 3}, grid.Position{R: 1, Th: 9}, grid.Position{R: 3, Th: 5},
		grid.Position{R: 2, Th: 0}, grid.Position{R: 0, Th: 4},
	)
	sol, err := newSolver(t, 3).Solve(context.Background(), rings)
	if err != nil {
		require.ErrorIs(t, err, ErrNoSolution)
		return
	}
	g, err := grid.Decode(dims, rings)
	require.NoError(t, err)
	for _, m := range sol.Moves {
		for i := 0; i < m.Steps(); i++ {
			require.NoError(t, m.Apply(g))
		}
	}
	got, err := g.Encode()
	require.NoError(t, err)
	assert.Equal(t, sol.Result, got)
}

func TestHammerGroupsWrapAround(t *testing.T) {
	s := newSolver(t, 0)
	sol := s.evaluate(encode(t, grid.Position{R: 0, Th: 11}, grid.Position{R: 1, Th: 0}))
	require.NotNil(t, sol, "angles 11 and 0 are adjacent")
	assert.Equal(t, 1, sol.HammerGroups)

	assert.Nil(t, s.evaluate(encode(t, grid.Position{R: 0, Th: 2}, grid.Position{R: 0, Th: 7})))
}

func TestRowAndRotateMatchGrid(t *testing.T) {
	s := newSolver(t, 0)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		state := make([]uint64, dims.Rings)
		for r := range state {
			state[r] = uint64(rng.Intn(1 << 12))
		}
		g, err := grid.Decode(dims, state)
		require.NoError(t, err)

		th := rng.Intn(dims.Half())
		outward := rng.Intn(2) == 0
		amount := 1
		if !outward {
			amount = -1
		}

		want := g.Clone()
		require.NoError(t, want.ShiftRow(th, outward))
		wantRings, err := want.Encode()
		require.NoError(t, err)

		got := append([]uint64(nil), state...)
		s.setRow(got, th, rotate(s.row(state, th), amount, 2*dims.Rings))
		assert.Equal(t, wantRings, got, "shift row %d outward=%v", th, outward)

		r := rng.Intn(dims.Rings)
		require.NoError(t, g.RotateRing(r, outward))
		wantRings, err = g.Encode()
		require.NoError(t, err)
		got = append([]uint64(nil), state...)
		got[r] = rotate(state[r], amount, dims.Angles)
		assert.Equal(t, wantRings, got, "rotate ring %d clockwise=%v", r, outward)
	}
}

func TestSolveRejectsBadBoards(t *testing.T) {
	s := newSolver(t, 1)
	_, err := s.Solve(context.Background(), []uint64{0, 0})
	assert.ErrorIs(t, err, ErrInvalidBoard)
	_, err = s.Solve(context.Background(), []uint64{1 << 12, 0, 0, 0})
	assert.ErrorIs(t, err, ErrInvalidBoard)

	_, err = New(grid.Dims{Rings: 4, Angles: 13}, nil)
	assert.ErrorIs(t, err, grid.ErrInvalidShape)
}

func TestSolveHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	full := []uint64{0, 0, 0, 1<<12 - 1}
	_, err := newSolver(t, 3).Solve(ctx, full)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestZigzagOrder(t *testing.T) {
	var got []int
	for n := 0; n < 6; n++ {
		got = append(got, zigzag(n))
	}
	assert.Equal(t, []int{1, -1, 2, -2, 3, -3}, got)
}
