// Package mux merges the three independent event sources (protocol
// updates, keyboard input and the render clock) into one ordered stream
// consumed by exactly one reducer loop.
//
// Updates and keys ride bounded channels and block their producer when
// the consumer falls behind: chat history correctness beats render
// smoothness, so nothing is dropped. Ticks are idempotent redraw
// triggers and ride a capacity-1 channel that coalesces instead.
package mux

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/roelfdiedericks/wavi/internal/types"

	. "github.com/roelfdiedericks/wavi/internal/logging"
)

type muxError string

func (e muxError) Error() string { return string(e) }

// ErrClosed is returned by Push* after Close.
const ErrClosed muxError = "multiplexer closed"

// Stats counts backpressure episodes and coalesced ticks.
type Stats struct {
	UpdatesBlocked uint64 // producer had to wait on a full update buffer
	KeysBlocked    uint64
	TicksDropped   uint64
}

// Multiplexer fans three sources into one Event stream.
type Multiplexer struct {
	updates chan types.Update
	keys    chan types.KeyEvent
	ticks   chan time.Time
	out     chan types.Event

	done      chan struct{}
	closeOnce sync.Once

	updatesBlocked atomic.Uint64
	keysBlocked    atomic.Uint64
	ticksDropped   atomic.Uint64
}

// New creates a multiplexer with the given per-source capacities and
// starts its merge goroutine.
func New(updateCap, keyCap int) *Multiplexer {
	if updateCap <= 0 {
		updateCap = 256
	}
	if keyCap <= 0 {
		keyCap = 64
	}
	m := &Multiplexer{
		updates: make(chan types.Update, updateCap),
		keys:    make(chan types.KeyEvent, keyCap),
		ticks:   make(chan time.Time, 1),
		out:     make(chan types.Event),
		done:    make(chan struct{}),
	}
	go m.run()
	return m
}

// Events returns the merged stream. It is closed after Close.
func (m *Multiplexer) Events() <-chan types.Event {
	return m.out
}

// PushUpdate enqueues a protocol update. Blocks when the buffer is
// full; the backpressure episode is counted and logged, never dropped.
func (m *Multiplexer) PushUpdate(u types.Update) error {
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	select {
	case m.updates <- u:
		return nil
	default:
	}

	// Buffer full: count the episode, then wait.
	n := m.updatesBlocked.Add(1)
	L_warn("mux: update producer blocked on full buffer", "episodes", n)
	select {
	case m.updates <- u:
		return nil
	case <-m.done:
		return ErrClosed
	}
}

// PushKey enqueues a keyboard event. Same blocking policy as updates:
// a keystroke must never be lost.
func (m *Multiplexer) PushKey(k types.KeyEvent) error {
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	select {
	case m.keys <- k:
		return nil
	default:
	}

	n := m.keysBlocked.Add(1)
	L_warn("mux: key producer blocked on full buffer", "episodes", n)
	select {
	case m.keys <- k:
		return nil
	case <-m.done:
		return ErrClosed
	}
}

// PushTick offers a render tick. Ticks coalesce: if one is already
// pending the new one is dropped, which is safe because a tick carries
// no information beyond "redraw soon".
func (m *Multiplexer) PushTick(at time.Time) {
	select {
	case <-m.done:
		return
	default:
	}
	select {
	case m.ticks <- at:
	default:
		m.ticksDropped.Add(1)
	}
}

// Close stops intake and ends the output stream. Safe to call more
// than once. Events still buffered when Close is called are discarded;
// the caller closes only after the consumer has processed Quit, at
// which point nothing may be consumed anyway.
func (m *Multiplexer) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}

// Stats returns a snapshot of the backpressure counters.
func (m *Multiplexer) Stats() Stats {
	return Stats{
		UpdatesBlocked: m.updatesBlocked.Load(),
		KeysBlocked:    m.keysBlocked.Load(),
		TicksDropped:   m.ticksDropped.Load(),
	}
}

// run is the merge loop: first-arrived-first-delivered across sources,
// per-source order preserved by the source channels themselves.
func (m *Multiplexer) run() {
	defer close(m.out)
	for {
		select {
		case <-m.done:
			return
		case u := <-m.updates:
			if !m.emit(types.UpdateEvent{Update: u}) {
				return
			}
		case k := <-m.keys:
			if !m.emit(types.KeyPressed{Key: k}) {
				return
			}
		case at := <-m.ticks:
			if !m.emit(types.Tick{At: at}) {
				return
			}
		}
	}
}

func (m *Multiplexer) emit(ev types.Event) bool {
	select {
	case m.out <- ev:
		return true
	case <-m.done:
		return false
	}
}
