// Package constants holds the default tunables and fixed magic numbers for
// the silk engine.
package constants

// Pool and stack sizing defaults
const (
	// PageSize is the architecture page size assumed by the stack arena.
	// The engine only targets platforms with a 4KB page (x86-64 Linux).
	PageSize = 4096

	// DefaultNumSilk is the pool size DefaultParams sets.
	DefaultNumSilk = 8

	// MinNumSilk is the minimum usable pool size. Below this, the ring
	// tests in the scenario suite (every silk sends to its neighbor) can't
	// form a cycle of more than one hop.
	MinNumSilk = 2

	// DefaultNumStackPages is the default number of usable (read/write)
	// pages per silk slot.
	DefaultNumStackPages = 16

	// DefaultNumStackSeparatorPages is the default number of unmapped
	// guard pages trailing each silk's usable region.
	//
	// More than one guard page is used by default because a silk that
	// overflows by a small amount (a few hundred bytes past the first
	// guard page, e.g. during a deep but not wildly out-of-bounds
	// recursion) should still reliably fault rather than land back in the
	// next guard region's unmapped-but-adjacent slot arithmetic.
	DefaultNumStackSeparatorPages = 4
)

// Message queue sizing
const (
	// DefaultQueueCapacity is the default number of message slots in the
	// engine's ring buffer.
	DefaultQueueCapacity = 8 * 1024

	// AppCodeFirst is the first message code available to application
	// code; codes below this are reserved for the engine (BOOT, START,
	// TERM, TERM_THREAD).
	AppCodeFirst = 1000
)

// FirstFrameBudget is a conservative lower bound, in bytes, on how close to
// the top of its stack slot a freshly-recycled silk's first frame must land
// for the stack-hygiene property (§8 of the design notes) to hold. It is not
// an enforced limit, and no code or test in this module reads it.
const FirstFrameBudget = 256
