// Package engine implements the silk scheduler's core: the fixed silk
// table, the single pinned worker thread, the stackful trampoline that
// bridges a raw context switch back onto Go, and the public-shaped
// operations (Alloc/Dispatch/Kill/Yield/Send) the silk package exports.
//
// Grounded on the original engine's silk.h/silk_sched_vanilla.c state
// machine and on the teacher's internal/queue/runner.go ioLoop for the
// single-pinned-worker-thread shape (runtime.LockOSThread, a select-free
// tight dispatch loop instead of io_uring completions).
package engine

import (
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/ehrlich-b/silk/internal/arena"
	"github.com/ehrlich-b/silk/internal/interfaces"
	"github.com/ehrlich-b/silk/internal/pool"
	"github.com/ehrlich-b/silk/internal/queue"
	"github.com/ehrlich-b/silk/internal/swctx"
)

// Params configures a new Engine. internal/engine applies no defaults and
// no validation, so every field here must already be resolved; the public
// silk package validates its own Params (whose defaults come from
// DefaultParams) before calling Init.
type Params struct {
	NumSilk                 int
	NumStackPages           int
	NumStackSeparatorPages  int
	PageSize                int
	BaseAddr                uintptr
	LockPages               bool
	QueueCapacity           int

	Logger   interfaces.Logger
	Observer interfaces.Observer
	Idle     interfaces.IdleCallback
	UserCtx  any
}

// Engine is one running silk scheduler: one stack arena, one message
// queue, one free list, one pinned worker thread. An Engine is not meant
// to be shared across process-wide swctx trampoline hooks; only one
// Engine may be active (Init'd and not yet Terminated+Joined) at a time
// per process, since the context-switch trampoline hook swctx.SetTrampoline
// installs is process-global. The original engine made the same
// single-instance assumption implicitly, via its own global scheduler
// pointer.
type Engine struct {
	arena   *arena.Arena
	queue   *queue.Queue
	free    *pool.FreeList
	records []*record

	logger   interfaces.Logger
	observer interfaces.Observer
	idle     interfaces.IdleCallback
	userCtx  any

	// lastMsg is the handoff slot a dequeuing yield() writes to just
	// before switching into the target silk's context, and the resuming
	// silk's own yield() call reads immediately after control returns.
	// Valid only across a single switch; never read without having just
	// performed (or skipped, for a self-targeted message) the matching
	// switch.
	lastMsg queue.Message

	// current holds the id of whichever silk is presently running on
	// the worker thread. Only the worker thread advances it in the
	// steady state; it is exposed (atomically) so MyID can be called
	// from within a silk's own entry function.
	current atomic.Uint32

	workerCtx swctx.Context

	freeCount  atomic.Int32
	started    atomic.Bool
	bootDoneCh chan struct{}
	doneCh     chan struct{}

	initErr error
}

// Init constructs the arena, queue and free list, installs the trampoline,
// and starts the pinned worker goroutine. It blocks until every silk has
// completed its BOOT handshake and is sitting on the free list, mirroring
// the original engine's synchronous init().
func Init(p Params) (*Engine, error) {
	a, err := arena.Allocate(arena.Config{
		BaseAddr:       p.BaseAddr,
		NumSilk:        p.NumSilk,
		NumUsablePages: p.NumStackPages,
		NumGuardPages:  p.NumStackSeparatorPages,
		PageSize:       p.PageSize,
		Lock:           p.LockPages,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		arena:      a,
		queue:      queue.New(p.QueueCapacity),
		free:       pool.New(),
		records:    make([]*record, p.NumSilk),
		logger:     p.Logger,
		observer:   p.Observer,
		idle:       p.Idle,
		userCtx:    p.UserCtx,
		bootDoneCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for i := range e.records {
		e.records[i] = &record{id: queue.SilkID(i)}
		e.records[i].storeState(StateBoot)
	}

	// Seed one BOOT message per silk, in id order. Silk 0's is consumed
	// directly by workerLoop to perform the very first switch; the rest
	// are consumed the same way any other message is — by whichever
	// silk's yield() happens to dequeue them, which lazily builds and
	// switches into each not-yet-booted context in turn. Silk 0's own
	// runLoop ends up performing that bootstrap fan-out the first few
	// times it calls yield(), before the free list has anything on it.
	for i := 0; i < p.NumSilk; i++ {
		e.queue.Send(queue.Message{Target: queue.SilkID(i), Code: queue.MsgBoot})
	}

	swctx.SetTrampoline(e.trampolineEntry)

	e.started.Store(true)
	go e.workerLoop()

	<-e.bootDoneCh
	if e.initErr != nil {
		e.started.Store(false)
		a.Release()
		return nil, e.initErr
	}
	return e, nil
}

// workerLoop is the pinned worker thread. It consumes silk 0's own BOOT
// message directly (the one dispatch hand-off with no prior dispatcher),
// builds silk 0's initial context, and switches in. Every other silk is
// booted transitively, as a side effect of silk 0's own dispatch loop
// encountering their queued BOOT messages. workerLoop does not return
// until runLoop has observed MsgTermThread and switched back out.
func (e *Engine) workerLoop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	msg, ok := e.queue.TryNext()
	if !ok || msg.Code != queue.MsgBoot || msg.Target != 0 {
		e.initErr = errors.New("engine: expected silk 0's own BOOT message first")
		close(e.bootDoneCh)
		close(e.doneCh)
		return
	}
	e.lastMsg = msg

	rec0 := e.records[0]
	swctx.BuildInitial(&rec0.ctx, e.arena.Top(0))
	rec0.contextBuilt = true
	e.current.Store(0)
	swctx.Switch(&e.workerCtx, &rec0.ctx)

	close(e.doneCh)
}

// Terminate asks the worker to stop after it finishes processing whatever
// is currently queued. Safe to call from any goroutine; idempotent.
func (e *Engine) Terminate() error {
	if !e.started.Load() {
		return ErrNotRunning
	}
	e.queue.Send(queue.Message{Code: queue.MsgTermThread})
	return nil
}

// Join blocks until the worker thread has fully stopped after Terminate.
func (e *Engine) Join() error {
	if !e.started.Load() {
		return ErrNotRunning
	}
	<-e.doneCh
	if err := e.arena.Release(); err != nil {
		return err
	}
	return nil
}

// FreeCount returns the number of silks currently on the free list.
func (e *Engine) FreeCount() int {
	return int(e.freeCount.Load())
}

// MyID returns the id of the silk currently executing on the worker
// thread. Only meaningful when called from within a silk's own entry
// function (or from code it calls); calling it from an unrelated
// goroutine returns a stale/meaningless value.
func (e *Engine) MyID() queue.SilkID {
	return queue.SilkID(e.current.Load())
}

// Yield surrenders the worker thread until the calling silk receives its
// next message. Must be called from within a silk's own entry function (or
// something it calls); calling it from an unrelated goroutine panics, since
// there is no "current silk" to block as.
func (e *Engine) Yield() queue.Message {
	rec := e.records[e.MyID()]
	if rec.loadState() != StateRun {
		panic(errors.New("engine: Yield called from outside a running silk"))
	}
	return e.yield(rec)
}

// Alloc reserves a free silk and installs entry/arg, moving it from FREE
// to ALLOC. The silk does not run until Dispatch is called.
func (e *Engine) Alloc(entry EntryFunc, arg any) (queue.SilkID, error) {
	id, ok := e.free.Pop()
	if !ok {
		e.observeAlloc(false)
		return 0, ErrNoFreeSilk
	}
	rec := e.records[id]
	if !rec.compareAndSwapState(StateFree, StateAlloc) {
		// Lost a race with a concurrent recycle; put it back and fail
		// rather than silently allocate a silk in an unknown state.
		e.free.Push(id)
		e.observeAlloc(false)
		return 0, ErrNotFree
	}
	e.freeCount.Add(-1)
	rec.entry = entry
	rec.arg = arg
	e.observeAlloc(true)
	return rec.id, nil
}

// Dispatch enqueues a START message for an allocated silk.
func (e *Engine) Dispatch(id queue.SilkID) error {
	rec, err := e.recordFor(id)
	if err != nil {
		e.observeDispatch(false)
		return err
	}
	if rec.loadState() != StateAlloc {
		e.observeDispatch(false)
		return ErrNotAlloc
	}
	if !e.queue.Send(queue.Message{Target: id, Code: queue.MsgStart}) {
		e.observeDispatch(false)
		return ErrQueueFull
	}
	e.observeDispatch(true)
	return nil
}

// Kill terminates id, branching on its current state per the state
// machine's kill transition: FREE/TERM is an idempotent no-op, ALLOC
// recycles immediately without ever touching the queue, and RUN enqueues a
// TERM for the worker to deliver. The ALLOC case matters: a never-dispatched
// silk's only call chain is parked inside its own post-BOOT yield() call,
// which runLoop invoked directly rather than from within runEntry — there is
// no recover() on that stack, so a queued TERM delivered there would panic
// past the one place that knows how to catch it. Recycling it synchronously
// here, before it is ever switched back into, sidesteps that entirely.
func (e *Engine) Kill(id queue.SilkID) error {
	rec, err := e.recordFor(id)
	if err != nil {
		e.observeKill(false)
		return err
	}

	for {
		switch rec.loadState() {
		case StateFree, StateTerm:
			e.observeKill(true)
			return nil
		case StateAlloc:
			if !rec.compareAndSwapState(StateAlloc, StateFree) {
				continue // raced with Dispatch/recycle; re-read and retry
			}
			e.recycle(rec)
			e.observeKill(true)
			return nil
		default: // StateBoot, StateRun
			if !e.queue.Send(queue.Message{Target: id, Code: queue.MsgTerm}) {
				e.observeKill(false)
				return ErrQueueFull
			}
			e.observeKill(true)
			return nil
		}
	}
}

// KillSelf is Kill(MyID()), for use from within a silk's own entry
// function. On success it does not return: it keeps yielding, discarding
// whatever else arrives for this silk, until the queued TERM is delivered
// and unwinds the entry.
func (e *Engine) KillSelf() error {
	if err := e.Kill(e.MyID()); err != nil {
		return err
	}
	for {
		e.Yield()
	}
}

// Send enqueues an application-defined message.
func (e *Engine) Send(msg queue.Message) error {
	if _, err := e.recordFor(msg.Target); err != nil {
		return err
	}
	if !e.queue.Send(msg) {
		return ErrQueueFull
	}
	return nil
}

// SendCode is a convenience wrapper around Send for messages with no Ctx.
func (e *Engine) SendCode(code queue.MsgCode, target queue.SilkID) error {
	return e.Send(queue.Message{Target: target, Code: code})
}

func (e *Engine) recordFor(id queue.SilkID) (*record, error) {
	if int(id) < 0 || int(id) >= len(e.records) {
		return nil, ErrBadSilkID
	}
	return e.records[id], nil
}

func (e *Engine) observeAlloc(ok bool) {
	if e.observer != nil {
		e.observer.ObserveAlloc(ok)
	}
}

func (e *Engine) observeDispatch(ok bool) {
	if e.observer != nil {
		e.observer.ObserveDispatch(ok)
	}
}

func (e *Engine) observeKill(ok bool) {
	if e.observer != nil {
		e.observer.ObserveKill(ok)
	}
}

func (e *Engine) logf(level string, msg string, args ...any) {
	if e.logger == nil {
		return
	}
	switch level {
	case "debug":
		e.logger.Debug(msg, args...)
	case "info":
		e.logger.Info(msg, args...)
	case "warn":
		e.logger.Warn(msg, args...)
	case "error":
		e.logger.Error(msg, args...)
	}
}
