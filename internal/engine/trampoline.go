package engine

import (
	"errors"
	"time"

	"github.com/ehrlich-b/silk/internal/queue"
	"github.com/ehrlich-b/silk/internal/swctx"
)

// killSignal unwinds a silk's own (possibly deeply recursive) call chain
// back up to runLoop when it has been killed while running or yielded.
// Recovered only by runLoop's own entry wrapper (runEntry), which also
// recovers any other panic value, logs it as an application error, and
// recycles the silk the same way.
type killSignal struct {
	id queue.SilkID
}

// trampolineEntry is installed as the swctx trampoline hook. It runs once
// per silk *life*: at genuine first boot, and again every time a recycled
// slot is redispatched, since a recycled slot's context is rebuilt from
// scratch rather than resumed (see recycle). It derives its own identity
// from spHint (an address on its own raw stack) and hands the message that
// caused this very switch straight to runLoop, rather than dequeuing a new
// one — that message is consumed exactly once, by whichever silk was
// switched in to receive it.
func (e *Engine) trampolineEntry(spHint uintptr) {
	id := queue.SilkID(e.arena.IDOf(spHint))
	rec := e.records[id]
	rec.contextBuilt = true

	e.runLoop(rec, e.lastMsg)

	// runLoop only returns once MsgTermThread has been observed; switch
	// back to the worker's own context so workerLoop can unwind and close
	// doneCh. This switch, like every other, does not return.
	swctx.Switch(&rec.ctx, &e.workerCtx)
}

func (e *Engine) finishBoot(rec *record) {
	rec.storeState(StateFree)
	e.free.Push(uint16(rec.id))
	n := e.freeCount.Add(1)
	if int(n) == len(e.records) {
		close(e.bootDoneCh)
	}
}

// runLoop is the body every silk executes for its entire life, starting
// from whatever message its context was most recently switched in to
// receive (first is that message; every message after is whatever the next
// e.yield(rec) call returns). Both a genuinely fresh BOOT and a recycled
// redispatch land here the same way — the only difference is which code
// the first message carries.
func (e *Engine) runLoop(rec *record, first queue.Message) {
	msg := first
	for {
		switch msg.Code {
		case queue.MsgBoot:
			if msg.Target != rec.id {
				panic(errors.New("engine: BOOT delivered to the wrong silk"))
			}
			e.finishBoot(rec)
		case queue.MsgStart:
			if msg.Target != rec.id {
				panic(errors.New("engine: START delivered to the wrong silk"))
			}
			e.runEntry(rec)
		case queue.MsgTerm:
			// Reached when a TERM is the very first message delivered into
			// a freshly (re)built context — e.g. an application Send of a
			// raw MsgTerm landing before the silk's own entry ever ran. A
			// TERM arriving mid-run is instead caught by deliverOrPanic and
			// unwound via killSignal; Kill itself never reaches this path,
			// since it recycles an ALLOC target synchronously rather than
			// enqueuing for it.
			if msg.Target == rec.id {
				rec.storeState(StateTerm)
				e.recycle(rec)
			}
		case queue.MsgTermThread:
			return
		}
		msg = e.yield(rec)
	}
}

// runEntry invokes rec's allocated entry function, recovering a killSignal aimed at rec (the silk killed itself, or was
// killed while yielded somewhere inside its own call chain) without
// letting it escape as an application-visible panic. Any other panic is
// logged and swallowed the same way the original engine would log an
// entry that terminated abnormally, rather than taking the whole worker
// down with it.
func (e *Engine) runEntry(rec *record) {
	rec.storeState(StateRun)
	defer func() {
		if r := recover(); r != nil {
			if ks, ok := r.(killSignal); !ok || ks.id != rec.id {
				e.logf("error", "silk entry panicked", "silk", rec.id, "panic", r)
			}
		}
		e.recycle(rec)
	}()
	rec.entry(rec.arg)
}

// recycle returns rec to the free list. The slot's swctx.Context is not
// rebuilt here — only marked stale (contextBuilt = false) — because rec
// may still be the context physically executing this very call (the
// suicide and kill-while-yielded paths both recycle from inside rec's own
// call chain). Rebuilding happens lazily, on the next dispatch that
// switches into this id, by which point this call chain is safely frozen
// inside its own yield() rather than still running.
func (e *Engine) recycle(rec *record) {
	rec.entry = nil
	rec.arg = nil
	rec.contextBuilt = false
	rec.generation++
	rec.storeState(StateFree)
	e.free.Push(uint16(rec.id))
	e.freeCount.Add(1)
}

// yield is the heart of the scheduler: dequeue the next message, and if it
// targets a different silk, switch the worker thread onto that silk's
// context. Control returns from this exact call only when some later
// dispatch switches back into rec — at which point e.lastMsg holds
// whatever message caused that switch.
func (e *Engine) yield(rec *record) queue.Message {
	start := time.Now()
	defer func() { e.observeYield(time.Since(start)) }()
	for {
		msg, ok := e.queue.TryNext()
		if !ok {
			e.observeQueueDepth()
			if e.idle != nil {
				e.idle(e.userCtx)
			}
			continue
		}
		e.observeQueueDepth()

		if msg.Code == queue.MsgTermThread {
			e.lastMsg = msg
			return e.deliverOrPanic(rec)
		}

		target := e.records[msg.Target]
		if !deliverableTo(msg.Code, target.loadState()) {
			continue // stale or mistimed message for this slot's current state
		}

		e.lastMsg = msg
		if msg.Target != rec.id {
			if !target.contextBuilt {
				swctx.BuildInitial(&target.ctx, e.arena.Top(int(target.id)))
				target.contextBuilt = true
			}
			e.current.Store(uint32(target.id))
			swctx.Switch(&rec.ctx, &target.ctx)
			// Control resumes here only when something later switches
			// back into rec; e.lastMsg now holds whatever message that
			// later dispatch delivered. rec.id is unchanged (it is this
			// call's own parameter), so deliverOrPanic below evaluates
			// against the message that woke *this* silk, not the one it
			// sent on its way out.
		}
		return e.deliverOrPanic(rec)
	}
}

// deliverableTo reports whether a message of the given code may still be
// delivered to a silk currently in state s. A silk's state can change
// between the moment a message was enqueued for it and the moment it is
// dequeued (it may have since been recycled, or never got as far as
// running), and delivering a stale message to the wrong state would wake a
// context that is not expecting it — most dangerously, waking an idle FREE
// slot via a leftover application message meant for its previous life.
func deliverableTo(code queue.MsgCode, s State) bool {
	switch code {
	case queue.MsgBoot:
		return s == StateBoot
	case queue.MsgStart:
		return s == StateAlloc
	case queue.MsgTerm:
		return s == StateAlloc || s == StateRun
	default:
		return s == StateRun
	}
}

// deliverOrPanic returns e.lastMsg, unless it is a TERM addressed to rec
// itself, in which case it marks rec TERM — the state machine's RUN-to-
// recycle transition passes through TERM on its way to FREE, per the state
// diagram — and unwinds rec's call chain via killSignal instead of ever
// handing the message to application code.
func (e *Engine) deliverOrPanic(rec *record) queue.Message {
	if e.lastMsg.Code == queue.MsgTerm && e.lastMsg.Target == rec.id {
		rec.storeState(StateTerm)
		panic(killSignal{id: rec.id})
	}
	return e.lastMsg
}

func (e *Engine) observeQueueDepth() {
	if e.observer != nil {
		e.observer.ObserveQueueDepth(e.queue.Size())
	}
}

func (e *Engine) observeYield(d time.Duration) {
	if e.observer != nil {
		e.observer.ObserveYield(uint64(d.Nanoseconds()))
	}
}
