package engine

import "errors"

// Sentinel errors returned by engine operations. Callers that need an Op/
// SilkID/Status-shaped error (matching the original engine's status codes)
// should consult the public silk package, which wraps these with that
// richer structure; internal/engine itself stays on plain errors so it has
// no dependency on the public package's error type.
var (
	ErrNotBoot        = errors.New("engine: silk is not in BOOT state")
	ErrNotFree        = errors.New("engine: silk is not FREE")
	ErrNotAlloc       = errors.New("engine: silk is not ALLOC")
	ErrBadSilkID      = errors.New("engine: silk id out of range")
	ErrQueueFull      = errors.New("engine: message queue is full")
	ErrAlreadyRunning = errors.New("engine: already initialized")
	ErrNotRunning     = errors.New("engine: worker is not running")
	ErrNoFreeSilk     = errors.New("engine: no free silk available")
)
