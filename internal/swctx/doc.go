// Package swctx implements the silk engine's stackful context-switch
// primitive. Only linux/amd64 with cgo enabled is supported; this mirrors
// the original engine, which likewise specialized its context primitive
// per architecture behind a compile-time selector rather than providing a
// portable fallback.
package swctx
