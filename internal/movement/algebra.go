// internal/movement/algebra.go
//
// Pure functions over Move values: Simplify, Combine, Reverse, IsNegative.
//
// Sign convention used while combining: clockwise and outward count as
// positive distances, anticlockwise and inward as negative.

package movement

import (
	"errors"
	"fmt"

	"github.com/robalobadob/rings/internal/grid"
)

var (
	ErrNoMove            = errors.New("no move")
	ErrNonPositiveAmount = errors.New("move amount must be >= 1")
	ErrIncompatibleMove  = errors.New("moves act on different groups")
	ErrMalformedMove     = errors.New("malformed move")
)

// Period is the number of single steps after which m's group returns to its
// starting layout: Angles for rotations, 2*Rings for shifts.
func Period(m Move, d grid.Dims) int {
	switch m.(type) {
	case Rotate:
		return d.Angles
	case Shift:
		return 2 * d.Rings
	default:
		panic(fmt.Sprintf("movement: unknown move type %T", m))
	}
}

// Simplify reduces m to the shortest equivalent path around its cycle.
// The result has 0 < Amount <= Period/2. A move made only of whole cycles
// simplifies to nil. Amounts <= 0 are rejected with ErrNonPositiveAmount.
func Simplify(m Move, d grid.Dims) (Move, error) {
	if m == nil {
		return nil, ErrNoMove
	}
	if m.Steps() <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNonPositiveAmount, m.Steps())
	}
	p := Period(m, d)
	amount := m.Steps() % p
	if amount == 0 {
		return nil, nil
	}
	flip := amount > p/2
	if flip {
		amount = p - amount
	}
	switch m := m.(type) {
	case Rotate:
		m.Amount = amount
		m.Clockwise = m.Clockwise != flip
		return m, nil
	case Shift:
		m.Amount = amount
		m.Outward = m.Outward != flip
		return m, nil
	default:
		panic(fmt.Sprintf("movement: unknown move type %T", m))
	}
}

// Combine returns the single move equivalent to applying a then b.
// Both moves must belong to the same group. A nil result means the two moves
// cancel out. Combine(nil, b) is b and Combine(a, nil) is a.
func Combine(a, b Move, d grid.Dims) (Move, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}
	if GroupOf(a, d) != GroupOf(b, d) {
		return nil, fmt.Errorf("%w: %s and %s", ErrIncompatibleMove, a, b)
	}

	net := signed(a) + signed(b)
	switch a := a.(type) {
	case Rotate:
		if net%Period(a, d) == 0 {
			return nil, nil
		}
		return Simplify(Rotate{Ring: a.Ring, Clockwise: net > 0, Amount: abs(net)}, d)
	case Shift:
		// b may address the opposite half of the same row; express it in a's frame.
		if bs := b.(Shift); bs.Row != a.Row {
			net = signed(a) - signed(bs)
		}
		if net%Period(a, d) == 0 {
			return nil, nil
		}
		return Simplify(Shift{Row: a.Row, Outward: net > 0, Amount: abs(net)}, d)
	default:
		panic(fmt.Sprintf("movement: unknown move type %T", a))
	}
}

// Reverse returns the move that undoes m. Reverse(nil) is nil.
func Reverse(m Move) Move {
	switch m := m.(type) {
	case nil:
		return nil
	case Rotate:
		m.Clockwise = !m.Clockwise
		return m
	case Shift:
		m.Outward = !m.Outward
		return m
	default:
		panic(fmt.Sprintf("movement: unknown move type %T", m))
	}
}

// IsNegative reports whether m is an anticlockwise rotation or an inward
// shift. It only orients animations; it has no effect on grid state.
func IsNegative(m Move) bool {
	switch m := m.(type) {
	case Rotate:
		return !m.Clockwise
	case Shift:
		return !m.Outward
	default:
		return false
	}
}

// signed returns m's amount with its direction as the sign.
func signed(m Move) int {
	if IsNegative(m) {
		return -m.Steps()
	}
	return m.Steps()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
