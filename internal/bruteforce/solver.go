// internal/bruteforce/solver.go
//
// Reference solver service for the ring puzzle.
// Responsibilities:
//   - Iterative deepening search over ring rotations and row shifts, up to
//     a move budget.
//   - The goal predicate: whether a layout can be cleared by jump attacks on
//     the outer rings and hammer attacks on pairs of inner cells within the
//     available number of actions.
//
// The puzzle core never sees this package; it talks to it through the
// solver gateway's wire format.

package bruteforce

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/robalobadob/rings/internal/grid"
	"github.com/robalobadob/rings/internal/movement"
)

var (
	ErrNoSolution   = errors.New("no solution within move budget")
	ErrInvalidBoard = errors.New("invalid board encoding")
	ErrTimeout      = errors.New("solver timeout exceeded")
)

const (
	DefaultMaxMoves = 3
	// MarkersPerAction is how many markers one attack is expected to clear.
	MarkersPerAction = 4
	checkEvery       = 1024
)

// Options configures a search.
type Options struct {
	MaxMoves int           // deepest move count tried
	Timeout  time.Duration // 0 means no limit beyond the caller's context
}

// DefaultOptions returns the stock search budget.
func DefaultOptions() *Options {
	return &Options{MaxMoves: DefaultMaxMoves, Timeout: 10 * time.Second}
}

// Solution is a winning move sequence and the layout it leads to.
type Solution struct {
	Moves        []movement.Move
	Result       []uint64
	JumpRows     int
	HammerGroups int
}

// Solver searches layouts of one shape.
type Solver struct {
	dims    grid.Dims
	options *Options
	nodes   int
}

// New creates a solver for grids of shape d.
func New(d grid.Dims, options *Options) (*Solver, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.Angles > grid.MaxEncodedAngles || 2*d.Rings > grid.MaxEncodedAngles {
		return nil, fmt.Errorf("%w: %dx%d does not fit 64-bit rows", ErrInvalidBoard, d.Rings, d.Angles)
	}
	if options == nil {
		options = DefaultOptions()
	}
	return &Solver{dims: d, options: options}, nil
}

// Nodes returns how many layouts the last Solve evaluated.
func (s *Solver) Nodes() int { return s.nodes }

// Solve finds the shortest move sequence, up to MaxMoves, after which the
// layout satisfies the goal predicate.
func (s *Solver) Solve(ctx context.Context, rings []uint64) (*Solution, error) {
	if len(rings) != s.dims.Rings {
		return nil, fmt.Errorf("%w: got %d rings, want %d", ErrInvalidBoard, len(rings), s.dims.Rings)
	}
	mask := s.dims.RingMask()
	for r, v := range rings {
		if v&^mask != 0 {
			return nil, fmt.Errorf("%w: ring %d has bits outside %d angles", ErrInvalidBoard, r, s.dims.Angles)
		}
	}

	if s.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.options.Timeout)
		defer cancel()
	}

	s.nodes = 0
	state := append([]uint64(nil), rings...)
	for turn := 0; turn <= s.options.MaxMoves; turn++ {
		sol, err := s.solveAt(ctx, state, turn)
		if err != nil {
			return nil, err
		}
		if sol != nil {
			return sol, nil
		}
	}
	return nil, ErrNoSolution
}

// solveAt looks for a solution using exactly turn moves.
func (s *Solver) solveAt(ctx context.Context, state []uint64, turn int) (*Solution, error) {
	s.nodes++
	if s.nodes%checkEvery == 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
	}
	if turn == 0 {
		return s.evaluate(state), nil
	}

	var found *Solution
	var searchErr error
	s.candidates(state, func(next []uint64, m movement.Move) bool {
		sol, err := s.solveAt(ctx, next, turn-1)
		if err != nil {
			searchErr = err
			return false
		}
		if sol != nil {
			sol.Moves = append([]movement.Move{m}, sol.Moves...)
			found = sol
			return false
		}
		return true
	})
	return found, searchErr
}

// candidates visits every layout one move away from state. Amounts are
// tried in zig-zag order (+1, -1, +2, -2, ...), rings before rows at each
// amount, so shorter moves are found first. Empty rings and rows are skipped.
// visit returns false to stop.
func (s *Solver) candidates(state []uint64, visit func(next []uint64, m movement.Move) bool) {
	rowWidth := 2 * s.dims.Rings
	for n := 0; n < s.dims.Angles; n++ {
		amount := zigzag(n)
		for r, ring := range state {
			if ring == 0 {
				continue
			}
			next := append([]uint64(nil), state...)
			next[r] = rotate(ring, amount, s.dims.Angles)
			if !visit(next, movement.Rotate{Ring: r, Clockwise: amount > 0, Amount: abs(amount)}) {
				return
			}
		}
		if n >= rowWidth {
			continue
		}
		for th := 0; th < s.dims.Half(); th++ {
			row := s.row(state, th)
			if row == 0 {
				continue
			}
			next := append([]uint64(nil), state...)
			s.setRow(next, th, rotate(row, amount, rowWidth))
			if !visit(next, movement.Shift{Row: th, Outward: amount > 0, Amount: abs(amount)}) {
				return
			}
		}
	}
}

// row gathers the diametral line through th (th < half) into 2*Rings bits:
// bit r is (r, th), bit 2R-1-r is (r, th+half).
func (s *Solver) row(state []uint64, th int) uint64 {
	half := s.dims.Half()
	n := s.dims.Rings
	var out uint64
	for r, ring := range state {
		out |= (ring >> uint(th) & 1) << uint(r)
		out |= (ring >> uint(th+half) & 1) << uint(2*n-1-r)
	}
	return out
}

// setRow scatters a row produced by row back into state.
func (s *Solver) setRow(state []uint64, th int, row uint64) {
	half := s.dims.Half()
	n := s.dims.Rings
	for r := range state {
		low := row >> uint(r) & 1
		high := row >> uint(2*n-1-r) & 1
		state[r] = state[r]&^(1<<uint(th)) | low<<uint(th)
		state[r] = state[r]&^(1<<uint(th+half)) | high<<uint(th+half)
	}
}

// evaluate applies the goal predicate. The outer half of the rings is
// cleared one angle at a time by jumps; markers only on inner rings are
// cleared two adjacent angles at a time by hammers.
func (s *Solver) evaluate(state []uint64) *Solution {
	var markers int
	var inner, outer uint64
	split := s.dims.Rings / 2
	for r, ring := range state {
		markers += bits.OnesCount64(ring)
		if r < split {
			inner |= ring
		} else {
			outer |= ring
		}
	}
	inner &^= outer
	// Rotate a run that wraps past angle 0 to the top so pairs start cleanly.
	inner = rotate(inner, -(bits.TrailingZeros64(^inner) % s.dims.Angles), s.dims.Angles)

	actions := (markers + MarkersPerAction - 1) / MarkersPerAction
	jumps := bits.OnesCount64(outer)
	groups := 0
	for inner != 0 {
		inner &^= 3 << uint(bits.TrailingZeros64(inner))
		groups++
	}
	if groups+jumps > actions {
		return nil
	}
	return &Solution{
		Result:       append([]uint64(nil), state...),
		JumpRows:     jumps,
		HammerGroups: groups,
	}
}

// rotate moves bit i of a width-bit value to i+amount (mod width).
func rotate(x uint64, amount, width int) uint64 {
	n := ((amount % width) + width) % width
	if n == 0 {
		return x
	}
	var mask uint64 = ^uint64(0)
	if width < 64 {
		mask = 1<<uint(width) - 1
	}
	return (x<<uint(n) | x>>uint(width-n)) & mask
}

func zigzag(n int) int {
	k := n/2 + 1
	if n%2 == 1 {
		return -k
	}
	return k
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
