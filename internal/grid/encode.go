// internal/grid/encode.go
//
// Compact ring encoding shared with the solver: one integer per ring,
// bit th set iff a marker sits at (r, th).

package grid

import "fmt"

// MaxEncodedAngles is the widest ring that fits the encoding.
const MaxEncodedAngles = 64

// RingMask returns the mask of valid bits for a ring of d.Angles cells.
func (d Dims) RingMask() uint64 {
	if d.Angles >= MaxEncodedAngles {
		return ^uint64(0)
	}
	return 1<<uint(d.Angles) - 1
}

// Encode packs the marker layout into one integer per ring.
func (g *Grid) Encode() ([]uint64, error) {
	if g.dims.Angles > MaxEncodedAngles {
		return nil, fmt.Errorf("%w: %d > %d", ErrEncodingWidth, g.dims.Angles, MaxEncodedAngles)
	}
	out := make([]uint64, g.dims.Rings)
	for r := range out {
		for th := 0; th < g.dims.Angles; th++ {
			if g.cells[th+r*g.dims.Angles].HasMarker {
				out[r] |= 1 << uint(th)
			}
		}
	}
	return out, nil
}

// Load replaces the marker layout with an encoded one.
// On error the grid is left untouched.
func (g *Grid) Load(rings []uint64) error {
	if g.dims.Angles > MaxEncodedAngles {
		return fmt.Errorf("%w: %d > %d", ErrEncodingWidth, g.dims.Angles, MaxEncodedAngles)
	}
	if len(rings) != g.dims.Rings {
		return fmt.Errorf("%w: got %d rings, want %d", ErrEncoding, len(rings), g.dims.Rings)
	}
	mask := g.dims.RingMask()
	for r, bits := range rings {
		if bits&^mask != 0 {
			return fmt.Errorf("%w: ring %d has bits outside %d angles", ErrEncoding, r, g.dims.Angles)
		}
	}
	for r, bits := range rings {
		for th := 0; th < g.dims.Angles; th++ {
			g.cells[th+r*g.dims.Angles].HasMarker = bits&(1<<uint(th)) != 0
		}
	}
	return nil
}

// Decode builds a grid of shape d from an encoded layout.
func Decode(d Dims, rings []uint64) (*Grid, error) {
	g, err := New(d)
	if err != nil {
		return nil, err
	}
	if err := g.Load(rings); err != nil {
		return nil, err
	}
	return g, nil
}
