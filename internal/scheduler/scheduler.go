// internal/scheduler/scheduler.go
//
// Serialized execution of moves over animation frames.
// Responsibilities:
//   - Play one move at a time: each of its Amount steps is animated for one
//     cycle, then applied to the grid as a single primitive.
//   - Reject (not queue) submissions while a move is playing.
//   - Hand out Completions and run queued continuations once idle.
//   - Undo the newest history entry by playing its reverse at undo speed.
//
// State machine:
//   Idle --Submit(animated)--> Animating(move, remaining)
//   Animating --cycle done, remaining > 1--> Animating(move, remaining-1)
//   Animating --cycle done, remaining == 1--> Idle (completion, drain)
//
// A Scheduler is not safe for concurrent use. It must be driven from the
// goroutine that runs its FrameSource callbacks.

package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robalobadob/rings/internal/grid"
	"github.com/robalobadob/rings/internal/movement"
)

var (
	ErrBusy          = errors.New("scheduler busy")
	ErrNothingToUndo = errors.New("nothing to undo")
)

// Frame describes one rendered animation frame.
type Frame struct {
	Move      movement.Move
	Mode      Mode
	Remaining int
	// Progress interpolates from Remaining to Remaining-1 over the cycle and
	// is negated for anticlockwise rotations and inward shifts.
	Progress float64
}

// Observer receives animation frames and grid steps.
type Observer interface {
	Frame(f Frame)
	Step(m movement.Move, remaining int)
	Idle()
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnFrame func(Frame)
	OnStep  func(m movement.Move, remaining int)
	OnIdle  func()
}

func (o ObserverFuncs) Frame(f Frame) {
	if o.OnFrame != nil {
		o.OnFrame(f)
	}
}

func (o ObserverFuncs) Step(m movement.Move, remaining int) {
	if o.OnStep != nil {
		o.OnStep(m, remaining)
	}
}

func (o ObserverFuncs) Idle() {
	if o.OnIdle != nil {
		o.OnIdle()
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSpeeds overrides the animation speeds.
func WithSpeeds(sp Speeds) Option { return func(s *Scheduler) { s.speeds = sp } }

// WithObserver attaches an observer for frames and steps.
func WithObserver(o Observer) Option { return func(s *Scheduler) { s.observer = o } }

// Scheduler owns a grid and plays moves on it.
type Scheduler struct {
	grid     *grid.Grid
	frames   FrameSource
	speeds   Speeds
	observer Observer

	// Animating state; current is nil while idle.
	current    movement.Move
	mode       Mode
	remaining  int
	cycleStart time.Time
	started    bool
	done       *Completion

	pending []func()
}

// New builds an idle scheduler for g driven by frames.
func New(g *grid.Grid, frames FrameSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		grid:     g,
		frames:   frames,
		speeds:   DefaultSpeeds(),
		observer: ObserverFuncs{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grid returns the grid the scheduler mutates.
func (s *Scheduler) Grid() *grid.Grid { return s.grid }

// Busy reports whether a move is animating.
func (s *Scheduler) Busy() bool { return s.current != nil }

// Current returns the animating move and its remaining steps, or nil while idle.
func (s *Scheduler) Current() (movement.Move, int) { return s.current, s.remaining }

// Submit plays m. A busy scheduler drops the request and returns ErrBusy
// without touching the grid. With ModeNone all steps are applied before
// Submit returns and the completion is already fulfilled.
func (s *Scheduler) Submit(m movement.Move, mode Mode) (*Completion, error) {
	if s.Busy() {
		return nil, ErrBusy
	}
	if err := movement.Validate(m, s.grid.Dims()); err != nil {
		return nil, err
	}

	if mode == ModeNone {
		for remaining := m.Steps(); remaining > 0; {
			if err := m.Apply(s.grid); err != nil {
				return nil, err
			}
			remaining--
			s.observer.Step(m, remaining)
		}
		return completed(), nil
	}

	s.current, s.mode, s.remaining = m, mode, m.Steps()
	s.started = false
	s.done = newCompletion()
	s.frames.RequestFrame(s.frame)
	return s.done, nil
}

// OnReady runs fn now if idle, otherwise once the current move finishes and
// every continuation queued before fn has run.
func (s *Scheduler) OnReady(fn func()) {
	if !s.Busy() {
		fn()
		return
	}
	s.pending = append(s.pending, fn)
}

// WaitUntilReady returns a completion fulfilled under the same rules as OnReady.
func (s *Scheduler) WaitUntilReady() *Completion {
	if !s.Busy() {
		return completed()
	}
	c := newCompletion()
	s.pending = append(s.pending, c.resolve)
	return c
}

// Pending returns the number of queued continuations.
func (s *Scheduler) Pending() int { return len(s.pending) }

// Undo pops the newest entry of h and plays its reverse at undo speed.
// A nil entry is popped and fulfilled immediately. While busy nothing is popped.
func (s *Scheduler) Undo(h *movement.History) (*Completion, error) {
	if s.Busy() {
		return nil, ErrBusy
	}
	m, ok := h.Pop()
	if !ok {
		return nil, ErrNothingToUndo
	}
	if m == nil {
		return completed(), nil
	}
	c, err := s.Submit(movement.Reverse(m), ModeUndo)
	if err != nil {
		h.Push(m)
		return nil, err
	}
	return c, nil
}

func (s *Scheduler) frame(now time.Time) {
	if s.current == nil {
		return
	}
	if !s.started {
		s.cycleStart, s.started = now, true
	}

	step := s.speeds.Step(s.current, s.mode)
	elapsed := now.Sub(s.cycleStart)
	if elapsed < step {
		t := float64(elapsed) / float64(step)
		s.observer.Frame(Frame{
			Move:      s.current,
			Mode:      s.mode,
			Remaining: s.remaining,
			Progress:  s.progress(t),
		})
		s.frames.RequestFrame(s.frame)
		return
	}

	if err := s.current.Apply(s.grid); err != nil {
		// Submit validated the move against this grid's shape.
		panic(fmt.Sprintf("scheduler: applying validated move %s: %v", s.current, err))
	}
	s.remaining--
	s.observer.Step(s.current, s.remaining)

	if s.remaining > 0 {
		s.cycleStart = now
		s.frames.RequestFrame(s.frame)
		return
	}
	s.finish()
}

func (s *Scheduler) progress(t float64) float64 {
	p := float64(s.remaining) - t
	if movement.IsNegative(s.current) {
		return -p
	}
	return p
}

// finish returns to idle, fulfils the move's completion and drains the
// continuation queue in order. Draining stops as soon as a continuation
// starts a new animated move; the rest stay queued for the next idle.
func (s *Scheduler) finish() {
	done := s.done
	s.current, s.remaining, s.done, s.started = nil, 0, nil, false

	s.observer.Idle()
	done.resolve()

	for len(s.pending) > 0 && !s.Busy() {
		fn := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		fn()
	}
}
