package render

import (
	"time"

	"github.com/roelfdiedericks/wavi/internal/state"

	. "github.com/roelfdiedericks/wavi/internal/logging"
)

// Renderer is the drawing boundary: a frame buffer with a flush, plus
// its current size. Implemented by the tcell screen in internal/term.
type Renderer interface {
	Render(f Frame) error
	Size() (width, height int)
}

// Scheduler debounces frame production: state changes render at most
// once per minimum interval, render ticks pick up anything deferred or
// failed. It runs entirely on the reducer loop goroutine, so it needs
// no locking.
type Scheduler struct {
	renderer Renderer
	minGap   time.Duration

	now          func() time.Time
	last         time.Time
	lastW, lastH int             // dimensions of the last drawn frame
	dirty        *state.AppState // deferred snapshot awaiting its slot
	lastErr      error
	failures     int
}

// NewScheduler creates a scheduler with the given debounce floor. A
// non-positive gap disables debouncing.
func NewScheduler(r Renderer, minGap time.Duration) *Scheduler {
	return &Scheduler{renderer: r, minGap: minGap, now: time.Now}
}

// SetClock replaces the clock, for tests.
func (sc *Scheduler) SetClock(now func() time.Time) { sc.now = now }

// OnChange is called after every reducer mutation with a fresh
// snapshot. Inside the debounce window the snapshot is parked; the next
// tick (or the next change outside the window) flushes it.
func (sc *Scheduler) OnChange(snap *state.AppState) {
	if sc.now().Sub(sc.last) < sc.minGap {
		sc.dirty = snap
		return
	}
	sc.render(snap)
}

// OnTick is called on every render clock beat. It flushes a parked
// snapshot, retries after a failed draw, and re-projects after a resize
// (a resize reaches the loop as a pushed tick, not a state change).
func (sc *Scheduler) OnTick(snap *state.AppState) {
	if sc.dirty != nil {
		snap = sc.dirty
	} else if sc.lastErr == nil && !sc.sizeChanged() {
		// nothing changed, same dimensions, last draw succeeded
		return
	}
	sc.render(snap)
}

func (sc *Scheduler) sizeChanged() bool {
	w, h := sc.renderer.Size()
	return w != sc.lastW || h != sc.lastH
}

// Failures reports consecutive render failures; the caller treats a
// long streak as an unusable terminal.
func (sc *Scheduler) Failures() int { return sc.failures }

func (sc *Scheduler) render(snap *state.AppState) {
	w, h := sc.renderer.Size()
	f := Project(snap, w, h, sc.now())
	if err := sc.renderer.Render(f); err != nil {
		// transient (e.g. resize mid-draw): keep the snapshot and let
		// the next tick retry
		sc.lastErr = err
		sc.failures++
		sc.dirty = snap
		L_warn("render: draw failed, will retry on tick", "error", err, "failures", sc.failures)
		return
	}
	sc.lastErr = nil
	sc.failures = 0
	sc.dirty = nil
	sc.last = sc.now()
	sc.lastW, sc.lastH = w, h
}
