package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robalobadob/rings/internal/movement"
)

// Mode selects how a submitted move is played.
type Mode int

const (
	ModeNone   Mode = iota // apply every step at once, no animation
	ModeNormal             // animate at the normal speed
	ModeUndo               // animate at the undo speed
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeNormal:
		return "normal"
	case ModeUndo:
		return "undo"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "none", "normal" and "undo"; empty means normal.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return ModeNormal, nil
	case "none", "instant":
		return ModeNone, nil
	case "undo":
		return ModeUndo, nil
	default:
		return ModeNone, fmt.Errorf("unknown animation mode %q", s)
	}
}

// Speed is the duration of one animated step, per mode.
type Speed struct {
	Normal time.Duration `yaml:"normal" validate:"gt=0"`
	Undo   time.Duration `yaml:"undo" validate:"gt=0"`
}

// Speeds holds one Speed per move group.
type Speeds struct {
	Ring Speed `yaml:"ring"`
	Row  Speed `yaml:"row"`
}

// DefaultSpeeds returns the stock animation speeds. Undo plays faster.
func DefaultSpeeds() Speeds {
	return Speeds{
		Ring: Speed{Normal: 250 * time.Millisecond, Undo: 100 * time.Millisecond},
		Row:  Speed{Normal: 300 * time.Millisecond, Undo: 120 * time.Millisecond},
	}
}

// Step returns how long one step of m takes in mode.
func (s Speeds) Step(m movement.Move, mode Mode) time.Duration {
	sp := s.Ring
	if movement.KindOf(m) == movement.KindRow {
		sp = s.Row
	}
	if mode == ModeUndo {
		return sp.Undo
	}
	return sp.Normal
}
