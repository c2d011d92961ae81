package engine

// State is a silk's position in the BOOT→FREE→ALLOC→RUN→TERM lifecycle.
type State int32

const (
	// StateBoot is the initial state of every silk after engine init. The
	// silk has never executed.
	StateBoot State = iota
	// StateFree means the silk is on the free list, available to Alloc.
	StateFree
	// StateAlloc means the silk is reserved by Alloc: entry/arg are
	// installed but the entry function has not yet been invoked.
	StateAlloc
	// StateRun means the entry function has been invoked — it may
	// currently be executing or currently yielded awaiting a message.
	StateRun
	// StateTerm means the silk has been asynchronously marked for death;
	// any further queued messages targeting it are dropped until it is
	// recycled back to StateFree.
	StateTerm
)

func (s State) String() string {
	switch s {
	case StateBoot:
		return "BOOT"
	case StateFree:
		return "FREE"
	case StateAlloc:
		return "ALLOC"
	case StateRun:
		return "RUN"
	case StateTerm:
		return "TERM"
	default:
		return "UNKNOWN"
	}
}
