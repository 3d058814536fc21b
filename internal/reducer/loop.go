package reducer

import (
	"github.com/roelfdiedericks/wavi/internal/modes"
	"github.com/roelfdiedericks/wavi/internal/mux"
	"github.com/roelfdiedericks/wavi/internal/state"
	"github.com/roelfdiedericks/wavi/internal/types"

	. "github.com/roelfdiedericks/wavi/internal/logging"
)

// Observer receives state snapshots from the loop. OnChange fires after
// every applied mutation, OnTick on every render clock beat; both get a
// snapshot taken between reducer steps, never a live state.
type Observer interface {
	OnChange(snap *state.AppState)
	OnTick(snap *state.AppState)
}

// Loop is the single consumer of the multiplexed event stream and the
// only goroutine that writes AppState.
type Loop struct {
	mux      *mux.Multiplexer
	engine   *modes.Engine
	reducer  *Reducer
	state    *state.AppState
	observer Observer
}

// NewLoop wires the consumer side of the core together.
func NewLoop(m *mux.Multiplexer, eng *modes.Engine, r *Reducer, st *state.AppState, obs Observer) *Loop {
	return &Loop{mux: m, engine: eng, reducer: r, state: st, observer: obs}
}

// Run consumes events until a Quit action has been fully processed,
// then closes the multiplexer and returns. It never returns an error:
// the reducer is total, and adapter failures arrive as updates that
// become state.
func (l *Loop) Run() {
	L_info("core: event loop started")
	for ev := range l.mux.Events() {
		switch e := ev.(type) {
		case types.KeyPressed:
			actions := l.engine.Handle(l.state.Mode, e.Key)
			for _, a := range actions {
				l.reducer.ApplyAction(l.state, a)
			}
			if len(actions) > 0 && l.observer != nil {
				l.observer.OnChange(l.state.Snapshot())
			}
		case types.UpdateEvent:
			l.reducer.ApplyUpdate(l.state, e.Update)
			if l.observer != nil {
				l.observer.OnChange(l.state.Snapshot())
			}
		case types.Tick:
			if l.observer != nil {
				l.observer.OnTick(l.state.Snapshot())
			}
		}

		if l.state.Quitting {
			L_info("core: quit processed, stopping intake")
			SetShuttingDown()
			l.mux.Close()
			break
		}
	}
	L_info("core: event loop finished")
}
