// internal/scheduler/frames.go
//
// Frame sources drive animations, one callback batch per display refresh.
// Responsibilities:
//   - FrameSource: the injected time source a Scheduler asks for frames.
//   - Loop: a cooperative event loop owned by one puzzle session. Every
//     scheduler and grid access of that session runs on the loop goroutine.
//   - ManualFrames: a deterministic frame source for tests and offline replay.

package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrLoopStopped = errors.New("loop stopped")

// FrameSource schedules fn to run on the next frame with that frame's time.
type FrameSource interface {
	RequestFrame(fn func(now time.Time))
}

// ManualFrames is a FrameSource whose clock only moves when told to.
type ManualFrames struct {
	now   time.Time
	queue []func(time.Time)
}

// NewManualFrames starts a manual clock at start.
func NewManualFrames(start time.Time) *ManualFrames {
	return &ManualFrames{now: start}
}

func (f *ManualFrames) RequestFrame(fn func(now time.Time)) {
	f.queue = append(f.queue, fn)
}

// Now returns the current manual time.
func (f *ManualFrames) Now() time.Time { return f.now }

// Pending returns the number of callbacks waiting for the next frame.
func (f *ManualFrames) Pending() int { return len(f.queue) }

// Advance moves the clock by d and runs one frame: every callback queued
// before the call. Callbacks requested during the frame wait for the next one.
func (f *ManualFrames) Advance(d time.Duration) int {
	f.now = f.now.Add(d)
	batch := f.queue
	f.queue = nil
	for _, fn := range batch {
		fn(f.now)
	}
	return len(batch)
}

// Drain advances frame by frame until nothing is queued or max frames ran.
// It returns the number of frames run.
func (f *ManualFrames) Drain(interval time.Duration, max int) int {
	n := 0
	for len(f.queue) > 0 && n < max {
		f.Advance(interval)
		n++
	}
	return n
}

// Loop is a single-goroutine event loop with frame callbacks.
//
// Work posted with Do or Post runs on the loop goroutine in order. Frame
// callbacks requested from the loop goroutine run on the next tick; the
// ticker only runs while frames are pending.
type Loop struct {
	interval time.Duration
	tasks    chan func()
	frames   []func(time.Time)

	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop that ticks every interval while animating.
func NewLoop(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Loop{
		interval: interval,
		tasks:    make(chan func(), 64),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start launches the loop goroutine.
func (l *Loop) Start() { go l.run() }

// Stop ends the loop and waits for the goroutine to exit. Pending frames are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
	<-l.stopped
}

// RequestFrame must only be called from the loop goroutine.
func (l *Loop) RequestFrame(fn func(now time.Time)) {
	l.frames = append(l.frames, fn)
}

// Post queues fn to run on the loop goroutine without waiting for it.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.quit:
		return ErrLoopStopped
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.quit:
		return ErrLoopStopped
	}
}

// Do runs fn on the loop goroutine and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := l.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-l.stopped:
		// The loop may have run fn right before exiting.
		select {
		case <-done:
			return nil
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run() {
	defer close(l.stopped)

	var ticker *time.Ticker
	var tick <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		if len(l.frames) > 0 && ticker == nil {
			ticker = time.NewTicker(l.interval)
			tick = ticker.C
		}
		select {
		case <-l.quit:
			return
		case fn := <-l.tasks:
			fn()
		case now := <-tick:
			batch := l.frames
			l.frames = nil
			for _, fn := range batch {
				fn(now)
			}
			if len(l.frames) == 0 {
				ticker.Stop()
				ticker, tick = nil, nil
			}
		}
	}
}
