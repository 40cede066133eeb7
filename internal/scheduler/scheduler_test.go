package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/rings/internal/grid"
	"github.com/robalobadob/rings/internal/movement"
)

const frame = 16 * time.Millisecond

var dims = grid.Dims{Rings: 4, Angles: 12}

type harness struct {
	grid   *grid.Grid
	frames *ManualFrames
	sched  *Scheduler
	seen   []Frame
	steps  int
	idles  int
}

func newHarness(t *testing.T, markers ...grid.Position) *harness {
	t.Helper()
	g, err := grid.New(dims)
	require.NoError(t, err)
	for _, p := range markers {
		require.NoError(t, g.SetMarker(p, true))
	}
	h := &harness{grid: g, frames: NewManualFrames(time.Unix(0, 0))}
	h.sched = New(g, h.frames, WithObserver(ObserverFuncs{
		OnFrame: func(f Frame) { h.seen = append(h.seen, f) },
		OnStep:  func(movement.Move, int) { h.steps++ },
		OnIdle:  func() { h.idles++ },
	}))
	return h
}

// finishCycle advances past one full step at the normal ring speed.
func (h *harness) finishCycle() {
	h.frames.Advance(DefaultSpeeds().Ring.Normal)
}

func TestSubmitWithoutAnimation(t *testing.T) {
	h := newHarness(t, grid.Position{R: 0, Th: 0})
	c, err := h.sched.Submit(movement.Rotate{Ring: 0, Clockwise: true, Amount: 3}, ModeNone)
	require.NoError(t, err)
	assert.True(t, c.Resolved())
	assert.False(t, h.sched.Busy())
	assert.Equal(t, 0, h.frames.Pending())
	assert.Equal(t, []grid.Position{{R: 0, Th: 3}}, h.grid.Markers())
	assert.Equal(t, 3, h.steps)
}

func TestAnimatedMoveAppliesOneStepPerCycle(t *testing.T) {
	h := newHarness(t, grid.Position{R: 0, Th: 0})
	c, err := h.sched.Submit(movement.Rotate{Ring: 0, Clockwise: true, Amount: 2}, ModeNormal)
	require.NoError(t, err)
	assert.True(t, h.sched.Busy())
	assert.False(t, c.Resolved())

	h.frames.Advance(frame)
	h.frames.Advance(frame)
	assert.Equal(t, []grid.Position{{R: 0, Th: 0}}, h.grid.Markers(), "no step before the cycle ends")
	require.NotEmpty(t, h.seen)
	for _, f := range h.seen {
		assert.Equal(t, 2, f.Remaining)
		assert.LessOrEqual(t, f.Progress, 2.0)
		assert.Greater(t, f.Progress, 1.0)
	}

	h.finishCycle()
	assert.Equal(t, []grid.Position{{R: 0, Th: 1}}, h.grid.Markers())
	m, remaining := h.sched.Current()
	assert.NotNil(t, m)
	assert.Equal(t, 1, remaining)

	h.finishCycle()
	assert.Equal(t, []grid.Position{{R: 0, Th: 2}}, h.grid.Markers())
	assert.False(t, h.sched.Busy())
	assert.True(t, c.Resolved())
	assert.Equal(t, 1, h.idles)
	assert.Equal(t, 0, h.frames.Pending())
}

func TestNegativeMovesAnimateWithNegativeProgress(t *testing.T) {
	h := newHarness(t)
	_, err := h.sched.Submit(movement.Shift{Row: 1, Outward: false, Amount: 1}, ModeNormal)
	require.NoError(t, err)
	h.frames.Advance(frame)
	h.frames.Advance(100 * time.Millisecond)
	require.Len(t, h.seen, 2)
	assert.Equal(t, -1.0, h.seen[0].Progress)
	assert.InDelta(t, -(1.0 - 100.0/300.0), h.seen[1].Progress, 1e-9)
}

func TestSubmitWhileAnimatingIsDropped(t *testing.T) {
	h := newHarness(t, grid.Position{R: 1, Th: 1})
	_, err := h.sched.Submit(movement.Rotate{Ring: 1, Clockwise: true, Amount: 1}, ModeNormal)
	require.NoError(t, err)
	h.frames.Advance(frame)
	before := h.grid.Clone()

	c, err := h.sched.Submit(movement.Shift{Row: 1, Outward: true, Amount: 1}, ModeNone)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Nil(t, c)
	assert.True(t, before.Equal(h.grid), "grid must be unchanged")
	assert.Equal(t, 1, h.frames.Pending(), "no new animation may start")

	m, _ := h.sched.Current()
	assert.Equal(t, movement.Rotate{Ring: 1, Clockwise: true, Amount: 1}, m)
}

func TestSubmitContractErrors(t *testing.T) {
	h := newHarness(t)
	_, err := h.sched.Submit(movement.Rotate{Ring: 0, Clockwise: true, Amount: 0}, ModeNormal)
	assert.ErrorIs(t, err, movement.ErrNonPositiveAmount)
	_, err = h.sched.Submit(movement.Shift{Row: 40, Outward: true, Amount: 1}, ModeNormal)
	assert.ErrorIs(t, err, grid.ErrIndex)
	_, err = h.sched.Submit(nil, ModeNormal)
	assert.ErrorIs(t, err, movement.ErrNoMove)
	assert.False(t, h.sched.Busy())
}

func TestContinuationsRunInOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.sched.Submit(movement.Rotate{Ring: 0, Clockwise: true, Amount: 1}, ModeNormal)
	require.NoError(t, err)

	var order []int
	for i := 1; i <= 3; i++ {
		h.sched.OnReady(func() { order = append(order, i) })
	}
	assert.Empty(t, order)
	assert.Equal(t, 3, h.sched.Pending())

	h.frames.Advance(frame)
	h.finishCycle()
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, h.sched.Pending())
}

func TestContinuationThatSubmitsStopsDraining(t *testing.T) {
	h := newHarness(t)
	_, err := h.sched.Submit(movement.Rotate{Ring: 0, Clockwise: true, Amount: 1}, ModeNormal)
	require.NoError(t, err)

	var order []string
	h.sched.OnReady(func() {
		order = append(order, "first")
		_, err := h.sched.Submit(movement.Rotate{Ring: 2, Clockwise: false, Amount: 1}, ModeNormal)
		require.NoError(t, err)
	})
	h.sched.OnReady(func() { order = append(order, "second") })
	h.sched.OnReady(func() { order = append(order, "third") })

	h.frames.Advance(frame)
	h.finishCycle()
	assert.Equal(t, []string{"first"}, order)
	assert.True(t, h.sched.Busy())
	assert.Equal(t, 2, h.sched.Pending())

	h.frames.Advance(frame)
	h.finishCycle()
	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.False(t, h.sched.Busy())
}

func TestOnReadyWhenIdleRunsSynchronously(t *testing.T) {
	h := newHarness(t)
	ran := false
	h.sched.OnReady(func() { ran = true })
	assert.True(t, ran)
	assert.True(t, h.sched.WaitUntilReady().Resolved())
}

func TestWaitUntilReady(t *testing.T) {
	h := newHarness(t)
	first, err := h.sched.Submit(movement.Shift{Row: 0, Outward: true, Amount: 1}, ModeNormal)
	require.NoError(t, err)
	ready := h.sched.WaitUntilReady()
	assert.False(t, ready.Resolved())

	h.frames.Drain(frame, 100)
	assert.True(t, first.Resolved())
	assert.True(t, ready.Resolved())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, ready.Wait(ctx))
}

func TestUndoPlaysReverseAtUndoSpeed(t *testing.T) {
	h := newHarness(t, grid.Position{R: 0, Th: 0})
	var hist movement.History

	m := movement.Shift{Row: 0, Outward: true, Amount: 2}
	_, err := h.sched.Submit(m, ModeNone)
	require.NoError(t, err)
	hist.Push(m)
	assert.Equal(t, []grid.Position{{R: 2, Th: 0}}, h.grid.Markers())

	c, err := h.sched.Undo(&hist)
	require.NoError(t, err)
	assert.Equal(t, 0, hist.Len())

	h.frames.Advance(frame)
	h.frames.Advance(DefaultSpeeds().Row.Undo)
	assert.Equal(t, []grid.Position{{R: 1, Th: 0}}, h.grid.Markers(), "undo step completes at undo speed")
	h.frames.Advance(DefaultSpeeds().Row.Undo)
	assert.True(t, c.Resolved())
	assert.Equal(t, []grid.Position{{R: 0, Th: 0}}, h.grid.Markers())

	_, err = h.sched.Undo(&hist)
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestUndoWhileBusyKeepsHistory(t *testing.T) {
	h := newHarness(t)
	var hist movement.History
	hist.Push(movement.Rotate{Ring: 0, Clockwise: true, Amount: 1})
	hist.Push(nil)

	_, err := h.sched.Submit(movement.Rotate{Ring: 1, Clockwise: true, Amount: 1}, ModeNormal)
	require.NoError(t, err)
	_, err = h.sched.Undo(&hist)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 2, hist.Len())

	h.frames.Drain(frame, 100)
	c, err := h.sched.Undo(&hist)
	require.NoError(t, err)
	assert.True(t, c.Resolved(), "a nil entry undoes instantly")
	assert.Equal(t, 1, hist.Len())
}

func TestLoopDrivesScheduler(t *testing.T) {
	loop := NewLoop(time.Millisecond)
	loop.Start()
	defer loop.Stop()

	g, err := grid.New(dims)
	require.NoError(t, err)
	require.NoError(t, g.SetMarker(grid.Position{R: 3, Th: 11}, true))
	fast := Speed{Normal: 2 * time.Millisecond, Undo: time.Millisecond}
	sched := New(g, loop, WithSpeeds(Speeds{Ring: fast, Row: fast}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var c *Completion
	require.NoError(t, loop.Do(ctx, func() {
		c, err = sched.Submit(movement.Rotate{Ring: 3, Clockwise: true, Amount: 3}, ModeNormal)
	}))
	require.NoError(t, err)
	require.NoError(t, c.Wait(ctx))

	var markers []grid.Position
	require.NoError(t, loop.Do(ctx, func() { markers = g.Markers() }))
	assert.Equal(t, []grid.Position{{R: 3, Th: 2}}, markers)
}

func TestLoopStopRejectsWork(t *testing.T) {
	loop := NewLoop(time.Millisecond)
	loop.Start()
	loop.Stop()
	assert.ErrorIs(t, loop.Post(func() {}), ErrLoopStopped)
	assert.ErrorIs(t, loop.Do(context.Background(), func() {}), ErrLoopStopped)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeNormal, "normal": ModeNormal, "none": ModeNone, "UNDO": ModeUndo} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("sideways")
	assert.Error(t, err)
}
