package movement

// History is the stack of moves applied to a session, newest last.
// Entries may be nil when a committed plan had no net effect.
type History struct {
	moves []Move
}

// Push records an applied move.
func (h *History) Push(m Move) { h.moves = append(h.moves, m) }

// Pop removes and returns the newest entry.
// ok is false when the history is empty.
func (h *History) Pop() (m Move, ok bool) {
	if len(h.moves) == 0 {
		return nil, false
	}
	last := len(h.moves) - 1
	m = h.moves[last]
	h.moves[last] = nil
	h.moves = h.moves[:last]
	return m, true
}

// Peek returns the newest entry without removing it.
func (h *History) Peek() (m Move, ok bool) {
	if len(h.moves) == 0 {
		return nil, false
	}
	return h.moves[len(h.moves)-1], true
}

func (h *History) Len() int { return len(h.moves) }

// Moves returns a copy of the entries, oldest first.
func (h *History) Moves() []Move {
	out := make([]Move, len(h.moves))
	copy(out, h.moves)
	return out
}
