package grid

import (
	"errors"
	"fmt"
)

var (
	ErrIndex         = errors.New("index out of range")
	ErrInvalidShape  = errors.New("invalid grid shape")
	ErrEncoding      = errors.New("invalid ring encoding")
	ErrEncodingWidth = errors.New("too many angles for ring encoding")
)

// index converts p to a cell index.
func (g *Grid) index(p Position) (int, error) {
	if err := g.checkRing(p.R); err != nil {
		return 0, err
	}
	if err := g.checkAngle(p.Th); err != nil {
		return 0, err
	}
	return p.Th + p.R*g.dims.Angles, nil
}

func (g *Grid) checkRing(r int) error {
	if r < 0 || r >= g.dims.Rings {
		return fmt.Errorf("%w: ring %d must be in range [0, %d)", ErrIndex, r, g.dims.Rings)
	}
	return nil
}

func (g *Grid) checkAngle(th int) error {
	if th < 0 || th >= g.dims.Angles {
		return fmt.Errorf("%w: angle %d must be in range [0, %d)", ErrIndex, th, g.dims.Angles)
	}
	return nil
}
