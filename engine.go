package silk

import (
	"github.com/ehrlich-b/silk/internal/engine"
	"github.com/ehrlich-b/silk/internal/interfaces"
	"github.com/ehrlich-b/silk/internal/logging"
)

// EntryFunc is the body of a silk.
type EntryFunc = engine.EntryFunc

// Engine is one running silk scheduler.
type Engine struct {
	inner *engine.Engine
}

// Init validates p, builds the stack arena and message queue, and starts
// the pinned worker thread. It blocks until every silk has completed its
// BOOT handshake.
func Init(p Params) (*Engine, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	logger := p.Logger
	if logger == nil {
		logger = logging.Default()
	}
	observer := p.Observer
	if observer == nil {
		observer = NoOpObserver{}
	}

	var idle interfaces.IdleCallback
	if p.IdleCallback != nil {
		idle = interfaces.IdleCallback(p.IdleCallback)
	}

	inner, err := engine.Init(engine.Params{
		NumSilk:                p.NumSilk,
		NumStackPages:          p.NumStackPages,
		NumStackSeparatorPages: p.NumStackSeparatorPages,
		PageSize:               4096,
		BaseAddr:               p.StackAddr,
		LockPages:              p.LockStackMem,
		QueueCapacity:          p.QueueCapacity,
		Logger:                 logger,
		Observer:               observer,
		Idle:                   idle,
		UserCtx:                p.Ctx,
	})
	if err != nil {
		return nil, WrapError("Init", StatusStackAllocFailed, err)
	}
	return &Engine{inner: inner}, nil
}

// Terminate asks the worker to stop once it finishes whatever is queued.
func (e *Engine) Terminate() error {
	if err := e.inner.Terminate(); err != nil {
		return WrapError("Terminate", StatusThreadError, err)
	}
	return nil
}

// Join blocks until the worker has stopped and releases the stack arena.
func (e *Engine) Join() error {
	if err := e.inner.Join(); err != nil {
		return WrapError("Join", StatusStackFreeFailed, err)
	}
	return nil
}

// Alloc reserves a free silk and installs its entry function and argument.
func (e *Engine) Alloc(entry EntryFunc, arg any) (SilkID, error) {
	id, err := e.inner.Alloc(entry, arg)
	if err != nil {
		return 0, WrapError("Alloc", statusFor(err), err)
	}
	return id, nil
}

// Dispatch enqueues a START for an allocated silk.
func (e *Engine) Dispatch(id SilkID) error {
	if err := e.inner.Dispatch(id); err != nil {
		return WrapError("Dispatch", statusFor(err), err)
	}
	return nil
}

// Kill asynchronously marks id for termination, from any goroutine.
func (e *Engine) Kill(id SilkID) error {
	if err := e.inner.Kill(id); err != nil {
		return WrapError("Kill", statusFor(err), err)
	}
	return nil
}

// KillSelf kills the silk currently running, for use within its own entry
// function. On success it does not return; the entry is unwound once the
// kill is delivered.
func (e *Engine) KillSelf() error {
	if err := e.inner.KillSelf(); err != nil {
		return WrapError("Kill", statusFor(err), err)
	}
	return nil
}

// KillByID is an alias for Kill, for use from within a silk's own entry
// function where "kill by id" (as opposed to an external caller's Kill)
// reads more naturally at the call site.
func (e *Engine) KillByID(id SilkID) error {
	return e.Kill(id)
}

// Yield surrenders the worker thread until the calling silk's next
// message arrives. Must be called from within a running silk.
func (e *Engine) Yield() Message {
	return e.inner.Yield()
}

// Send enqueues an application-defined message.
func (e *Engine) Send(msg Message) error {
	if err := e.inner.Send(msg); err != nil {
		return WrapError("Send", statusFor(err), err)
	}
	return nil
}

// SendCode is a convenience wrapper around Send for messages with no Ctx.
func (e *Engine) SendCode(code MsgCode, target SilkID) error {
	if err := e.inner.SendCode(code, target); err != nil {
		return WrapError("Send", statusFor(err), err)
	}
	return nil
}

// MyID returns the id of the silk currently running on the worker thread.
func (e *Engine) MyID() SilkID {
	return e.inner.MyID()
}

// MyCtrl returns the id of the engine's control silk — silk 0, which
// performs the initial BOOT fan-out for every other slot.
func (e *Engine) MyCtrl() SilkID {
	return 0
}

// FreeCount returns the number of silks currently on the free list.
func (e *Engine) FreeCount() int {
	return e.inner.FreeCount()
}

func statusFor(err error) Status {
	switch err {
	case engine.ErrNoFreeSilk:
		return StatusNoFreeSilk
	case engine.ErrQueueFull:
		return StatusQFull
	case engine.ErrBadSilkID, engine.ErrNotAlloc, engine.ErrNotFree, engine.ErrNotBoot:
		return StatusAllocFail
	case engine.ErrNotRunning, engine.ErrAlreadyRunning:
		return StatusThreadError
	default:
		return StatusThreadError
	}
}
