package engine

import (
	"sync/atomic"

	"github.com/ehrlich-b/silk/internal/queue"
	"github.com/ehrlich-b/silk/internal/swctx"
)

// EntryFunc is the body of a silk. It runs to completion (or calls Kill on
// itself) on the worker goroutine, reached through the trampoline's cgo
// callback; Yield is the only way it surrenders the worker thread without
// terminating.
type EntryFunc func(arg any)

// record is one slot in the engine's fixed-size silk table. Its index is
// permanent for the life of the engine; only the contents are recycled.
type record struct {
	id    queue.SilkID
	state int32 // atomic, holds a State value

	ctx swctx.Context

	entry EntryFunc
	arg   any

	// contextBuilt is false for a slot whose swctx.Context has never been
	// initialized (fresh BOOT) or has been recycled. The next time some
	// other silk's yield() dispatches a message to this id, it lazily
	// rebuilds the context before switching in — see yield's handling
	// of the current-stack hazard.
	contextBuilt bool

	// generation is bumped on every recycle. It is not currently exposed
	// or consulted anywhere; it exists so a future caller-visible "stale
	// handle" check has somewhere to live without another layout change.
	generation uint32
}

func (r *record) loadState() State {
	return State(atomic.LoadInt32(&r.state))
}

func (r *record) storeState(s State) {
	atomic.StoreInt32(&r.state, int32(s))
}

func (r *record) compareAndSwapState(old, new State) bool {
	return atomic.CompareAndSwapInt32(&r.state, int32(old), int32(new))
}
