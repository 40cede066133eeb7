// internal/movement/wire.go
//
// JSON shape of a move as exchanged with the solver and HTTP clients:
//
//	{"type":"ring","r":0,"amount":2,"clockwise":true}
//	{"type":"row","th":3,"amount":1,"outward":false}

package movement

import (
	"encoding/json"
	"fmt"
)

// Wire is the tagged JSON form of a Move.
type Wire struct {
	Type      Kind  `json:"type"`
	R         *int  `json:"r,omitempty"`
	Th        *int  `json:"th,omitempty"`
	Amount    int   `json:"amount"`
	Clockwise *bool `json:"clockwise,omitempty"`
	Outward   *bool `json:"outward,omitempty"`
}

// ToWire converts m into its tagged form. ToWire(nil) returns nil.
func ToWire(m Move) *Wire {
	switch m := m.(type) {
	case nil:
		return nil
	case Rotate:
		r, cw := m.Ring, m.Clockwise
		return &Wire{Type: KindRing, R: &r, Amount: m.Amount, Clockwise: &cw}
	case Shift:
		th, out := m.Row, m.Outward
		return &Wire{Type: KindRow, Th: &th, Amount: m.Amount, Outward: &out}
	default:
		panic(fmt.Sprintf("movement: unknown move type %T", m))
	}
}

// FromWire converts a tagged move back into a Move. The index and the
// direction flag of the move's type are both required.
func FromWire(w Wire) (Move, error) {
	switch w.Type {
	case KindRing:
		if w.R == nil {
			return nil, fmt.Errorf("%w: ring move without \"r\"", ErrMalformedMove)
		}
		if w.Clockwise == nil {
			return nil, fmt.Errorf("%w: ring move without \"clockwise\"", ErrMalformedMove)
		}
		return Rotate{Ring: *w.R, Clockwise: *w.Clockwise, Amount: w.Amount}, nil
	case KindRow:
		if w.Th == nil {
			return nil, fmt.Errorf("%w: row move without \"th\"", ErrMalformedMove)
		}
		if w.Outward == nil {
			return nil, fmt.Errorf("%w: row move without \"outward\"", ErrMalformedMove)
		}
		return Shift{Row: *w.Th, Outward: *w.Outward, Amount: w.Amount}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMove, w.Type)
	}
}

// ToWireList converts a move list, skipping nil entries.
func ToWireList(ms []Move) []Wire {
	out := make([]Wire, 0, len(ms))
	for _, m := range ms {
		if w := ToWire(m); w != nil {
			out = append(out, *w)
		}
	}
	return out
}

// FromWireList converts a tagged move list, failing on the first bad entry.
func FromWireList(ws []Wire) ([]Move, error) {
	out := make([]Move, 0, len(ws))
	for i, w := range ws {
		m, err := FromWire(w)
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (m Rotate) MarshalJSON() ([]byte, error) { return json.Marshal(ToWire(m)) }
func (m Shift) MarshalJSON() ([]byte, error)  { return json.Marshal(ToWire(m)) }

// Unmarshal decodes one tagged move.
func Unmarshal(data []byte) (Move, error) {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMove, err)
	}
	return FromWire(w)
}
