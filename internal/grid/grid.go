// internal/grid/grid.go
//
// Cell storage for the rotating-ring puzzle.
// Responsibilities:
//   - Hold num_rings * num_angles cells addressed by (ring, angle).
//   - Expose the two permutation primitives: RotateRing and ShiftRow.
//   - Bounds-checked marker access for the UI (place/remove marker).
//
// Notes:
//   - Cells are stored densely, index = angle + ring*angles.
//   - Angles must be even: a row and its opposite row both have length Rings.
//   - The grid is not safe for concurrent use; a session owns exactly one
//     scheduler which is the only mutator apart from marker toggles.

package grid

import (
	"fmt"
	"strings"
)

// Dims is the fixed shape of a grid.
type Dims struct {
	Rings  int `json:"rings" yaml:"rings"`
	Angles int `json:"angles" yaml:"angles"`
}

// Half returns the angular distance between a row and its opposite row.
func (d Dims) Half() int { return d.Angles / 2 }

// Size is the total number of cells.
func (d Dims) Size() int { return d.Rings * d.Angles }

// Validate reports whether d describes a constructible grid.
func (d Dims) Validate() error {
	if d.Rings < 1 {
		return fmt.Errorf("%w: rings must be >= 1, got %d", ErrInvalidShape, d.Rings)
	}
	if d.Angles < 2 || d.Angles%2 != 0 {
		return fmt.Errorf("%w: angles must be even and >= 2, got %d", ErrInvalidShape, d.Angles)
	}
	return nil
}

// Cell is a single slot of the puzzle.
type Cell struct {
	HasMarker bool `json:"hasMarker"`
}

// Position addresses a cell by ring (radial) and angle index.
type Position struct {
	R  int `json:"r"`
	Th int `json:"th"`
}

func (p Position) String() string { return fmt.Sprintf("(r=%d, th=%d)", p.R, p.Th) }

// Grid holds the cells of one puzzle.
type Grid struct {
	dims  Dims
	cells []Cell
}

// New builds an empty grid. All markers start cleared.
func New(d Dims) (*Grid, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Grid{dims: d, cells: make([]Cell, d.Size())}, nil
}

// Dims returns the grid's shape.
func (g *Grid) Dims() Dims { return g.dims }

// Clone creates an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	if g == nil {
		return nil
	}
	c := &Grid{dims: g.dims, cells: make([]Cell, len(g.cells))}
	copy(c.cells, g.cells)
	return c
}

// Equal reports whether both grids have the same shape and marker layout.
func (g *Grid) Equal(o *Grid) bool {
	if g == nil || o == nil {
		return g == o
	}
	if g.dims != o.dims {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// Cell returns the cell at p.
func (g *Grid) Cell(p Position) (Cell, error) {
	i, err := g.index(p)
	if err != nil {
		return Cell{}, err
	}
	return g.cells[i], nil
}

// HasMarker reports whether a marker occupies p.
func (g *Grid) HasMarker(p Position) (bool, error) {
	c, err := g.Cell(p)
	return c.HasMarker, err
}

// SetMarker places or removes the marker at p.
func (g *Grid) SetMarker(p Position, on bool) error {
	i, err := g.index(p)
	if err != nil {
		return err
	}
	g.cells[i].HasMarker = on
	return nil
}

// ToggleMarker flips the marker at p and returns its new state.
func (g *Grid) ToggleMarker(p Position) (bool, error) {
	i, err := g.index(p)
	if err != nil {
		return false, err
	}
	g.cells[i].HasMarker = !g.cells[i].HasMarker
	return g.cells[i].HasMarker, nil
}

// Markers lists occupied positions ring by ring, in angle order.
func (g *Grid) Markers() []Position {
	var out []Position
	for i, c := range g.cells {
		if c.HasMarker {
			out = append(out, Position{R: i / g.dims.Angles, Th: i % g.dims.Angles})
		}
	}
	return out
}

// MarkerCount returns the number of occupied cells.
func (g *Grid) MarkerCount() int {
	n := 0
	for _, c := range g.cells {
		if c.HasMarker {
			n++
		}
	}
	return n
}

// RotateRing moves every cell of ring r one angle step.
// Clockwise carries the content at th to th+1.
//
// The rotation is a walk of adjacent swaps from one end of the ring to the
// other; anticlockwise is the mirrored walk.
func (g *Grid) RotateRing(r int, clockwise bool) error {
	if err := g.checkRing(r); err != nil {
		return err
	}
	base := r * g.dims.Angles
	last := base + g.dims.Angles - 1
	if clockwise {
		for i := last; i > base; i-- {
			g.swap(i, i-1)
		}
	} else {
		for i := base; i < last; i++ {
			g.swap(i, i+1)
		}
	}
	return nil
}

// ShiftRow moves every cell on the diametral line through angle th one step.
//
// The line is treated as one cycle of 2*Rings cells: (0..R-1, th) followed by
// (R-1..0, th+half). Outward carries each cell one step along that order, so
// the outermost cell of th wraps onto the outermost cell of the opposite row
// and the innermost cell of the opposite row crosses the center onto (0, th).
func (g *Grid) ShiftRow(th int, outward bool) error {
	if err := g.checkAngle(th); err != nil {
		return err
	}
	half := g.dims.Half()
	if th >= half {
		return g.ShiftRow(th-half, !outward)
	}

	n := 2 * g.dims.Rings
	if outward {
		for k := n - 1; k > 0; k-- {
			g.swap(g.lineIndex(th, k), g.lineIndex(th, k-1))
		}
	} else {
		for k := 0; k < n-1; k++ {
			g.swap(g.lineIndex(th, k), g.lineIndex(th, k+1))
		}
	}
	return nil
}

// lineIndex maps step k of the diametral cycle through th (th < half) to a
// cell index. Steps past the midpoint walk back toward the center on the
// opposite row.
func (g *Grid) lineIndex(th, k int) int {
	step := g.dims.Angles
	if k < g.dims.Rings {
		return th + k*step
	}
	r := 2*g.dims.Rings - 1 - k
	return th + step/2 + r*step
}

func (g *Grid) swap(i, j int) {
	g.cells[i], g.cells[j] = g.cells[j], g.cells[i]
}

// Format renders one line per ring, outermost first: 'x' for a marker, '.' otherwise.
func (g *Grid) Format() string {
	var sb strings.Builder
	for r := g.dims.Rings - 1; r >= 0; r-- {
		fmt.Fprintf(&sb, "r%-2d ", r)
		for th := 0; th < g.dims.Angles; th++ {
			if g.cells[th+r*g.dims.Angles].HasMarker {
				sb.WriteByte('x')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
