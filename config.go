package silk

import (
	"strconv"

	"github.com/ehrlich-b/silk/internal/constants"
	"github.com/ehrlich-b/silk/internal/interfaces"
)

// IdleCallback is invoked with Params.Ctx whenever the message queue is
// observed empty. It runs on whichever silk is currently yielding; it must
// not block indefinitely, since doing so stalls the entire engine.
type IdleCallback func(ctx any)

// Params configures a new Engine, mirroring the teacher's own
// DeviceParams/DefaultParams shape.
type Params struct {
	// StackAddr requests a fixed arena base address, for reproducible
	// slot<->id arithmetic across runs. Zero lets the kernel choose.
	StackAddr uintptr

	// NumSilk is the fixed pool size. Must be at least MinNumSilk.
	NumSilk int

	// NumStackPages is the number of usable (read/write) pages per silk.
	NumStackPages int

	// NumStackSeparatorPages is the number of trailing unmapped guard
	// pages per silk slot.
	NumStackSeparatorPages int

	// LockStackMem requests the usable pages be locked into physical
	// memory (mlock), trading startup latency for eliminating page-in
	// stalls mid-switch.
	LockStackMem bool

	// QueueCapacity is the fixed message queue size.
	QueueCapacity int

	// IdleCallback, if set, runs whenever the queue is found empty.
	IdleCallback IdleCallback

	// Ctx is an opaque value threaded through to IdleCallback.
	Ctx any

	// Logger receives engine lifecycle and error logging. Defaults to
	// the package logger if nil.
	Logger Logger

	// Observer receives alloc/dispatch/kill/yield/queue-depth events.
	// Defaults to a no-op observer if nil.
	Observer Observer
}

// Logger is the logging interface the engine depends on; *logging.Logger
// from the package logger satisfies it, as does any caller-supplied
// implementation.
type Logger = interfaces.Logger

// DefaultParams returns sensible defaults for every field, validated by
// Init.
func DefaultParams() Params {
	return Params{
		NumSilk:                constants.DefaultNumSilk,
		NumStackPages:          constants.DefaultNumStackPages,
		NumStackSeparatorPages: constants.DefaultNumStackSeparatorPages,
		QueueCapacity:          constants.DefaultQueueCapacity,
	}
}

func (p Params) validate() error {
	if p.NumSilk < constants.MinNumSilk {
		return NewError("Init", StatusInvalidNumSilk, "NumSilk must be >= "+strconv.Itoa(constants.MinNumSilk))
	}
	if p.NumStackPages < 1 {
		return NewError("Init", StatusInvalidStackSize, "NumStackPages must be >= 1")
	}
	if p.NumStackSeparatorPages < 0 {
		return NewError("Init", StatusInvalidStackSize, "NumStackSeparatorPages must be >= 0")
	}
	if p.QueueCapacity < 1 {
		return NewError("Init", StatusInvalidStackSize, "QueueCapacity must be >= 1")
	}
	return nil
}
