// internal/session/events.go
//
// Fan-out of session events to subscribers (websocket streams, tests).
// Publishing never blocks: a subscriber whose buffer is full misses events.

package session

import (
	"sync"

	"github.com/robalobadob/rings/internal/movement"
)

// Event types.
const (
	EventFrame    = "frame"
	EventStep     = "step"
	EventIdle     = "idle"
	EventMarker   = "marker"
	EventPlan     = "plan"
	EventSolution = "solution"
	EventPlayDone = "play_done"
)

// Event is one notification about a session.
type Event struct {
	Type      string          `json:"type"`
	Move      *movement.Wire  `json:"move,omitempty"`
	Moves     []movement.Wire `json:"moves,omitempty"`
	Mode      string          `json:"mode,omitempty"`
	Remaining int             `json:"remaining,omitempty"`
	Progress  float64         `json:"progress,omitempty"`
	Rings     []uint64        `json:"rings,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe(buffer int) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch
	subscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
				subscribers.Dec()
			}
		})
	}
}

func (h *hub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			droppedEvents.Inc()
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
		subscribers.Dec()
	}
}
