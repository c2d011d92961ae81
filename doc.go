// Package silk implements a stackful, single-worker-thread cooperative
// micro-thread scheduler: fixed-size guard-paged stacks carved out of one
// mmap'd arena, a bounded message queue as the only way work moves between
// silks, and a BOOT→FREE→ALLOC→RUN→TERM lifecycle per slot.
//
// A silk is not a goroutine: there is exactly one OS thread driving the
// whole engine, context switches are cooperative (a silk keeps the worker
// until it calls Yield or returns), and the number of silks is fixed at
// Init time. Reach for silk when you want the original engine's scheduling
// discipline — predictable, single-threaded, no GC pauses mid-switch,
// guard-page-enforced stack isolation — not as a general replacement for
// goroutines.
package silk
