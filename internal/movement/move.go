// internal/movement/move.go
//
// Move descriptors for the rotating-ring puzzle.
// Defines:
//   - Move: sealed sum type with exactly two variants, Rotate and Shift.
//   - Group: the ring or diametral row a move acts on.
//
// A nil Move means "no move". A Move that is about to be applied always has
// Amount >= 1; signed amounts only exist inside Combine.

package movement

import (
	"fmt"

	"github.com/robalobadob/rings/internal/grid"
)

// Move is either a Rotate or a Shift.
type Move interface {
	// Steps returns how many primitive applications the move takes.
	Steps() int
	// Apply runs one primitive step of the move on g.
	Apply(g *grid.Grid) error
	String() string

	sealed()
}

// Rotate turns ring Ring by Amount single steps.
type Rotate struct {
	Ring      int  `json:"r"`
	Clockwise bool `json:"clockwise"`
	Amount    int  `json:"amount"`
}

// Shift moves the diametral row through angle Row by Amount single steps.
type Shift struct {
	Row     int  `json:"th"`
	Outward bool `json:"outward"`
	Amount  int  `json:"amount"`
}

func (Rotate) sealed() {}
func (Shift) sealed()  {}

func (m Rotate) Steps() int { return m.Amount }
func (m Shift) Steps() int  { return m.Amount }

func (m Rotate) Apply(g *grid.Grid) error { return g.RotateRing(m.Ring, m.Clockwise) }
func (m Shift) Apply(g *grid.Grid) error  { return g.ShiftRow(m.Row, m.Outward) }

func (m Rotate) String() string {
	dir := "cw"
	if !m.Clockwise {
		dir = "ccw"
	}
	return fmt.Sprintf("rotate r%d %s x%d", m.Ring, dir, m.Amount)
}

func (m Shift) String() string {
	dir := "out"
	if !m.Outward {
		dir = "in"
	}
	return fmt.Sprintf("shift th%d %s x%d", m.Row, dir, m.Amount)
}

// Kind distinguishes the two move variants.
type Kind string

const (
	KindRing Kind = "ring"
	KindRow  Kind = "row"
)

// Group identifies the set of moves that can be combined with each other.
type Group struct {
	Kind  Kind
	Index int
}

// GroupOf returns the group m acts on. Rows are compared by their canonical
// half, so th and th+half belong to the same group.
func GroupOf(m Move, d grid.Dims) Group {
	switch m := m.(type) {
	case Rotate:
		return Group{Kind: KindRing, Index: m.Ring}
	case Shift:
		return Group{Kind: KindRow, Index: canonicalRow(m, d).Row}
	default:
		panic(fmt.Sprintf("movement: unknown move type %T", m))
	}
}

// SameGroup reports whether a and b can be combined. Nil moves combine
// with anything.
func SameGroup(a, b Move, d grid.Dims) bool {
	if a == nil || b == nil {
		return true
	}
	return GroupOf(a, d) == GroupOf(b, d)
}

// KindOf returns the variant of m.
func KindOf(m Move) Kind {
	switch m.(type) {
	case Rotate:
		return KindRing
	case Shift:
		return KindRow
	default:
		panic(fmt.Sprintf("movement: unknown move type %T", m))
	}
}

// canonicalRow rewrites a shift on the second half of the angles to the
// equivalent shift on the first half.
func canonicalRow(m Shift, d grid.Dims) Shift {
	half := d.Half()
	if half > 0 && m.Row >= half && m.Row < d.Angles {
		m.Row -= half
		m.Outward = !m.Outward
	}
	return m
}

// Validate checks that m can be applied to a grid of shape d.
func Validate(m Move, d grid.Dims) error {
	switch m := m.(type) {
	case nil:
		return ErrNoMove
	case Rotate:
		if m.Ring < 0 || m.Ring >= d.Rings {
			return fmt.Errorf("%w: ring %d must be in range [0, %d)", grid.ErrIndex, m.Ring, d.Rings)
		}
		if m.Amount < 1 {
			return fmt.Errorf("%w: got %d", ErrNonPositiveAmount, m.Amount)
		}
	case Shift:
		if m.Row < 0 || m.Row >= d.Angles {
			return fmt.Errorf("%w: row %d must be in range [0, %d)", grid.ErrIndex, m.Row, d.Angles)
		}
		if m.Amount < 1 {
			return fmt.Errorf("%w: got %d", ErrNonPositiveAmount, m.Amount)
		}
	}
	return nil
}
