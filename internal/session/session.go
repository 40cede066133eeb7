// internal/session/session.go
//
// A single puzzle session.
// Responsibilities:
//   - Own one event loop, grid, scheduler and move history.
//   - Marshal every operation onto the loop goroutine, so callers on any
//     goroutine (HTTP handlers, CLI) see a serialized puzzle.
//   - Keep a planned move that is previewed but not yet committed; it can be
//     grown with Plan, dropped with Rewind, or played with Commit.
//   - Ask the solver gateway for a solution and replay move lists.
//   - Publish frames, steps and state changes to subscribers.
//
// Notes:
//   - Completions returned here may be waited on from the caller's goroutine.
//   - The grid is only mutated by the scheduler, except for marker toggles
//     and layout loads which are refused while a move animates. A locked
//     session refuses them altogether.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/rings/internal/grid"
	"github.com/robalobadob/rings/internal/movement"
	"github.com/robalobadob/rings/internal/scheduler"
	"github.com/robalobadob/rings/internal/solver"
)

var (
	ErrClosed         = errors.New("session closed")
	ErrNothingPlanned = errors.New("no planned move")
	ErrNoSolver       = errors.New("no solver configured")
	ErrLocked         = errors.New("session layout is locked")
)

const subscriberBuffer = 64

// Options configures a new session.
type Options struct {
	Dims          grid.Dims
	Speeds        scheduler.Speeds
	FrameInterval time.Duration
	Gateway       *solver.Gateway
	Owner         string
	// Locked sessions only change through moves.
	Locked bool
}

// Snapshot is a consistent view of a session.
type Snapshot struct {
	ID        string          `json:"id"`
	Dims      grid.Dims       `json:"dims"`
	Rings     []uint64        `json:"rings,omitempty"`
	Markers   []grid.Position `json:"markers"`
	Busy      bool            `json:"busy"`
	Current   *movement.Wire  `json:"current,omitempty"`
	Remaining int             `json:"remaining,omitempty"`
	Planning  bool            `json:"planning"`
	Planned   *movement.Wire  `json:"planned,omitempty"`
	History   int             `json:"history"`
	Moves     int             `json:"moves"`
	Locked    bool            `json:"locked"`
	Board     string          `json:"board"`
}

// Session is safe for concurrent use.
type Session struct {
	ID      string
	Owner   string
	Created time.Time

	loop    *scheduler.Loop
	gateway *solver.Gateway
	hub     *hub
	locked  bool

	lastActive atomic.Int64
	closeOnce  sync.Once
	closed     chan struct{}

	// Loop goroutine only.
	grid     *grid.Grid
	sched    *scheduler.Scheduler
	history  movement.History
	planned  movement.Move
	planning bool
	moves    int
}

// New starts a session on an empty grid of opts.Dims, or on the encoded
// layout rings when it is not nil.
func New(opts Options, rings []uint64) (*Session, error) {
	g, err := grid.New(opts.Dims)
	if err != nil {
		return nil, err
	}
	if rings != nil {
		if err := g.Load(rings); err != nil {
			return nil, err
		}
	}
	speeds := opts.Speeds
	if speeds == (scheduler.Speeds{}) {
		speeds = scheduler.DefaultSpeeds()
	}

	s := &Session{
		ID:      uuid.NewString(),
		Owner:   opts.Owner,
		Created: time.Now().UTC(),
		loop:    scheduler.NewLoop(opts.FrameInterval),
		gateway: opts.Gateway,
		hub:     newHub(),
		locked:  opts.Locked,
		closed:  make(chan struct{}),
		grid:    g,
	}
	s.sched = scheduler.New(g, s.loop, scheduler.WithSpeeds(speeds), scheduler.WithObserver(s.observer()))
	s.touch()
	s.loop.Start()
	activeSessions.Inc()
	return s, nil
}

func (s *Session) observer() scheduler.Observer {
	return scheduler.ObserverFuncs{
		OnFrame: func(f scheduler.Frame) {
			s.hub.publish(Event{
				Type:      EventFrame,
				Move:      movement.ToWire(f.Move),
				Mode:      f.Mode.String(),
				Remaining: f.Remaining,
				Progress:  f.Progress,
			})
		},
		OnStep: func(m movement.Move, remaining int) {
			stepsApplied.WithLabelValues(string(movement.KindOf(m))).Inc()
			s.hub.publish(Event{Type: EventStep, Move: movement.ToWire(m), Remaining: remaining, Rings: s.rings()})
		},
		OnIdle: func() {
			s.hub.publish(Event{Type: EventIdle, Rings: s.rings()})
		},
	}
}

// LastActive returns when the session last served an operation.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() { s.lastActive.Store(time.Now().UnixNano()) }

// do runs fn on the loop goroutine.
func (s *Session) do(ctx context.Context, fn func() error) error {
	var err error
	if lerr := s.loop.Do(ctx, func() { err = fn() }); lerr != nil {
		if errors.Is(lerr, scheduler.ErrLoopStopped) {
			return ErrClosed
		}
		return lerr
	}
	s.touch()
	if err != nil {
		rejected.WithLabelValues(reason(err)).Inc()
	}
	return err
}

func reason(err error) string {
	switch {
	case errors.Is(err, scheduler.ErrBusy):
		return "busy"
	case errors.Is(err, scheduler.ErrNothingToUndo):
		return "nothing_to_undo"
	case errors.Is(err, ErrNothingPlanned):
		return "nothing_planned"
	case errors.Is(err, ErrLocked):
		return "locked"
	default:
		return "invalid"
	}
}

// rings encodes the grid for events; nil when the grid is too wide.
func (s *Session) rings() []uint64 {
	r, err := s.grid.Encode()
	if err != nil {
		return nil
	}
	return r
}

// Dims returns the session's grid shape.
func (s *Session) Dims() grid.Dims { return s.grid.Dims() }

// Marker reports whether a marker occupies p.
func (s *Session) Marker(ctx context.Context, p grid.Position) (bool, error) {
	var on bool
	err := s.do(ctx, func() error {
		var err error
		on, err = s.grid.HasMarker(p)
		return err
	})
	return on, err
}

// ToggleMarker flips the marker at p and returns its new state.
func (s *Session) ToggleMarker(ctx context.Context, p grid.Position) (bool, error) {
	var on bool
	err := s.do(ctx, func() error {
		if s.locked {
			return ErrLocked
		}
		if s.sched.Busy() {
			return scheduler.ErrBusy
		}
		var err error
		if on, err = s.grid.ToggleMarker(p); err != nil {
			return err
		}
		s.hub.publish(Event{Type: EventMarker, Rings: s.rings()})
		return nil
	})
	return on, err
}

// Load replaces the marker layout. Refused while a move animates.
func (s *Session) Load(ctx context.Context, rings []uint64) error {
	return s.do(ctx, func() error {
		if s.locked {
			return ErrLocked
		}
		if s.sched.Busy() {
			return scheduler.ErrBusy
		}
		if err := s.grid.Load(rings); err != nil {
			return err
		}
		s.hub.publish(Event{Type: EventMarker, Rings: s.rings()})
		return nil
	})
}

// Move submits m and records it in the history once accepted.
func (s *Session) Move(ctx context.Context, m movement.Move, mode scheduler.Mode) (*scheduler.Completion, error) {
	var c *scheduler.Completion
	err := s.do(ctx, func() error {
		var err error
		c, err = s.submit(m, mode)
		return err
	})
	return c, err
}

func (s *Session) submit(m movement.Move, mode scheduler.Mode) (*scheduler.Completion, error) {
	c, err := s.sched.Submit(m, mode)
	if err != nil {
		return nil, err
	}
	s.history.Push(m)
	s.moves++
	return c, nil
}

// Undo plays the reverse of the newest history entry at undo speed.
func (s *Session) Undo(ctx context.Context) (*scheduler.Completion, error) {
	var c *scheduler.Completion
	err := s.do(ctx, func() error {
		var err error
		c, err = s.sched.Undo(&s.history)
		return err
	})
	return c, err
}

// Plan folds m into the planned move and returns the new plan. A nil plan
// with planning still in progress means the planned moves cancel out.
func (s *Session) Plan(ctx context.Context, m movement.Move) (movement.Move, error) {
	var planned movement.Move
	err := s.do(ctx, func() error {
		if err := movement.Validate(m, s.grid.Dims()); err != nil {
			return err
		}
		next, err := movement.Combine(s.planned, m, s.grid.Dims())
		if err != nil {
			return err
		}
		s.planned, s.planning = next, true
		planned = next
		s.hub.publish(Event{Type: EventPlan, Move: movement.ToWire(next)})
		return nil
	})
	return planned, err
}

// Rewind drops the planned move and returns the move that undoes its
// preview. The grid is not touched.
func (s *Session) Rewind(ctx context.Context) (movement.Move, error) {
	var rev movement.Move
	err := s.do(ctx, func() error {
		if !s.planning {
			return ErrNothingPlanned
		}
		rev = movement.Reverse(s.planned)
		s.planned, s.planning = nil, false
		s.hub.publish(Event{Type: EventPlan})
		return nil
	})
	return rev, err
}

// Commit plays the planned move and returns it. A plan that cancelled out
// records a nil history entry so that undo stays aligned with user actions,
// and the returned move is nil.
func (s *Session) Commit(ctx context.Context, mode scheduler.Mode) (*scheduler.Completion, movement.Move, error) {
	var (
		c         *scheduler.Completion
		committed movement.Move
	)
	err := s.do(ctx, func() error {
		if !s.planning {
			return ErrNothingPlanned
		}
		if s.sched.Busy() {
			return scheduler.ErrBusy
		}
		if s.planned == nil {
			s.history.Push(nil)
			c = s.sched.WaitUntilReady()
		} else {
			var err error
			if c, err = s.submit(s.planned, mode); err != nil {
				return err
			}
			committed = s.planned
		}
		s.planned, s.planning = nil, false
		s.hub.publish(Event{Type: EventPlan})
		return nil
	})
	return c, committed, err
}

// PlayResult reports how a Play ended: how many moves were submitted and
// the error that stopped it, if any.
type PlayResult struct {
	Played int
	Err    error
}

// Play submits moves one after another, each once the previous one has
// finished. The returned channel yields one PlayResult, after the first
// submission error or once every move has been played.
func (s *Session) Play(ctx context.Context, moves []movement.Move, mode scheduler.Mode) (<-chan PlayResult, error) {
	done := make(chan PlayResult, 1)
	err := s.do(ctx, func() error {
		for i, m := range moves {
			if err := movement.Validate(m, s.grid.Dims()); err != nil {
				return fmt.Errorf("move %d: %w", i, err)
			}
		}
		finish := func(played int, err error) {
			e := Event{Type: EventPlayDone, Moves: movement.ToWireList(moves[:played])}
			if err != nil {
				e.Error = err.Error()
			}
			s.hub.publish(e)
			done <- PlayResult{Played: played, Err: err}
		}
		var next func(i int)
		next = func(i int) {
			if i == len(moves) {
				finish(i, nil)
				return
			}
			if _, err := s.submit(moves[i], mode); err != nil {
				finish(i, fmt.Errorf("move %d: %w", i, err))
				return
			}
			s.sched.OnReady(func() { next(i + 1) })
		}
		s.sched.OnReady(func() { next(0) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// Solve asks the solver for at most budget moves from the current layout.
func (s *Session) Solve(ctx context.Context, budget int) (*solver.Solution, error) {
	if s.gateway == nil {
		return nil, ErrNoSolver
	}
	var snap *grid.Grid
	if err := s.do(ctx, func() error {
		snap = s.grid.Clone()
		return nil
	}); err != nil {
		return nil, err
	}

	sol, err := s.gateway.Solve(ctx, snap, budget)
	if err != nil {
		s.hub.publish(Event{Type: EventSolution, Error: err.Error()})
		return nil, err
	}
	s.hub.publish(Event{Type: EventSolution, Moves: movement.ToWireList(sol.Moves)})
	return sol, nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	err := s.do(ctx, func() error {
		cur, remaining := s.sched.Current()
		snap = &Snapshot{
			ID:        s.ID,
			Dims:      s.grid.Dims(),
			Rings:     s.rings(),
			Markers:   s.grid.Markers(),
			Busy:      s.sched.Busy(),
			Current:   movement.ToWire(cur),
			Remaining: remaining,
			Planning:  s.planning,
			Planned:   movement.ToWire(s.planned),
			History:   s.history.Len(),
			Moves:     s.moves,
			Locked:    s.locked,
			Board:     s.grid.Format(),
		}
		return nil
	})
	return snap, err
}

// Subscribe returns a stream of session events and a function that ends
// the subscription. The stream is closed when the session closes.
func (s *Session) Subscribe() (<-chan Event, func()) {
	return s.hub.subscribe(subscriberBuffer)
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Close stops the loop. An animating move is abandoned mid-way and its
// completion never fulfils.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.loop.Stop()
		s.hub.close()
		activeSessions.Dec()
	})
}
