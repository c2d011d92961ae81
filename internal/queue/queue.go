// Package queue implements the engine's bounded FIFO message queue: a
// fixed-capacity ring buffer of (target silk id, code, ctx) records behind
// a single mutex, matching the "vanilla" scheduler design in the original
// source (fixed array, strict FIFO, locked enqueue/dequeue with both locked
// and unlocked variants of the predicate checks).
package queue

import "sync"

// MsgCode identifies the kind of a queued message.
type MsgCode int32

const (
	// MsgInvalid is the zero value and never a valid queued message.
	MsgInvalid MsgCode = iota
	// MsgBoot is delivered once to every silk before it first becomes
	// allocatable.
	MsgBoot
	// MsgStart dispatches an allocated silk's entry function.
	MsgStart
	// MsgTerm asynchronously kills the target silk.
	MsgTerm
	// MsgTermThread halts the worker loop.
	MsgTermThread
)

// SilkID identifies a silk slot. Dense, 0..N-1.
type SilkID uint16

// Message is the tagged-union record flowing through the queue: a target
// silk id, a code, and an opaque application-owned context pointer.
type Message struct {
	Target SilkID
	Code   MsgCode
	Ctx    any
}

// Queue is a fixed-capacity ring buffer of Message, protected by a single
// mutex. Capacity is fixed at construction; Send never blocks or retries —
// a Send into a full queue returns false and the caller decides what to do.
type Queue struct {
	mu        sync.Mutex
	msgs      []Message
	nextRead  uint32
	nextWrite uint32
	count     uint32
}

// New constructs a Queue with room for capacity messages. capacity must be
// at least 1.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{msgs: make([]Message, capacity)}
}

// Cap returns the queue's fixed capacity.
func (q *Queue) Cap() int {
	return len(q.msgs)
}

func (q *Queue) isFullLocked() bool {
	return int(q.count) == len(q.msgs)
}

func (q *Queue) isEmptyLocked() bool {
	return q.count == 0
}

// Send enqueues msg at the tail. Returns false if the queue is at capacity;
// the caller is responsible for backpressure (retry, drop, or surface
// Q_FULL to the application).
func (q *Queue) Send(msg Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isFullLocked() {
		return false
	}
	q.msgs[q.nextWrite] = msg
	q.nextWrite = q.advance(q.nextWrite)
	q.count++
	return true
}

// TryNext dequeues the message at the head. Returns the zero Message and
// false if the queue is empty.
func (q *Queue) TryNext() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isEmptyLocked() {
		return Message{}, false
	}
	msg := q.msgs[q.nextRead]
	q.msgs[q.nextRead] = Message{}
	q.nextRead = q.advance(q.nextRead)
	q.count--
	return msg, true
}

// IsEmpty reports whether the queue currently holds no messages.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isEmptyLocked()
}

// IsFull reports whether the queue is at capacity.
func (q *Queue) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isFullLocked()
}

// Size returns the current number of queued messages.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int(q.count)
}

func (q *Queue) advance(idx uint32) uint32 {
	idx++
	if int(idx) == len(q.msgs) {
		idx = 0
	}
	return idx
}
