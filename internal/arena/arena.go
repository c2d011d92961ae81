// Package arena implements the silk stack arena: one contiguous anonymous
// mapping holding N fixed-size silk stacks, each followed by unmapped
// guard pages so an overflowing silk faults instead of corrupting its
// neighbor.
//
// Grounded on the original engine's mmap/mprotect sequence (reserve the
// whole region PROT_NONE, then grant PROT_READ|PROT_WRITE to exactly the
// usable pages of each slot) and on the teacher's own raw-mmap idiom in
// its queue runner, here expressed through golang.org/x/sys/unix instead
// of a bare syscall.Syscall6 call.
package arena

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Config describes the arena's geometry.
type Config struct {
	// BaseAddr, if non-zero, requests a fixed mapping address so that
	// slot<->id arithmetic is reproducible across runs (mirrors the
	// original ping-pong sample's fixed stack_addr).
	BaseAddr uintptr
	// NumSilk is the number of stack slots to carve out of the region.
	NumSilk int
	// NumUsablePages is the number of read/write pages per slot.
	NumUsablePages int
	// NumGuardPages is the number of trailing unmapped pages per slot.
	NumGuardPages int
	// PageSize is the platform page size (bytes).
	PageSize int
	// Lock requests the usable pages be locked into physical memory.
	Lock bool
}

// Arena is a mapped, per-slot-protected stack region.
type Arena struct {
	base      uintptr
	slotSize  uintptr
	usableLen uintptr
	numSilk   int
	raw       []byte
}

// Allocate reserves the arena and applies per-slot protection. On success
// the caller must call Release to unmap it.
func Allocate(cfg Config) (*Arena, error) {
	if cfg.NumSilk < 1 {
		return nil, fmt.Errorf("arena: NumSilk must be >= 1, got %d", cfg.NumSilk)
	}
	if cfg.NumUsablePages < 1 {
		return nil, fmt.Errorf("arena: NumUsablePages must be >= 1, got %d", cfg.NumUsablePages)
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("arena: PageSize must be > 0, got %d", cfg.PageSize)
	}

	usableLen := uintptr(cfg.NumUsablePages) * uintptr(cfg.PageSize)
	guardLen := uintptr(cfg.NumGuardPages) * uintptr(cfg.PageSize)
	slotSize := usableLen + guardLen
	totalLen := slotSize * uintptr(cfg.NumSilk)

	raw, err := mmapReserve(cfg.BaseAddr, totalLen)
	if err != nil {
		return nil, fmt.Errorf("arena: mmap reserve failed: %w", err)
	}

	a := &Arena{
		base:      uintptr(unsafe.Pointer(&raw[0])),
		slotSize:  slotSize,
		usableLen: usableLen,
		numSilk:   cfg.NumSilk,
		raw:       raw,
	}

	for i := 0; i < cfg.NumSilk; i++ {
		slot := raw[uintptr(i)*slotSize : uintptr(i)*slotSize+usableLen]
		if err := unix.Mprotect(slot, unix.PROT_READ|unix.PROT_WRITE); err != nil {
			unix.Munmap(raw)
			return nil, fmt.Errorf("arena: mprotect slot %d failed: %w", i, err)
		}
		if cfg.Lock {
			if err := unix.Mlock(slot); err != nil {
				unix.Munmap(raw)
				return nil, fmt.Errorf("arena: mlock slot %d failed: %w", i, err)
			}
		}
	}

	return a, nil
}

// Release unmaps the arena. The arena must not be used afterward.
func (a *Arena) Release() error {
	if err := unix.Munmap(a.raw); err != nil {
		return fmt.Errorf("arena: munmap failed: %w", err)
	}
	return nil
}

// SlotOf returns the [start, start+usable) byte range owned by silk id.
func (a *Arena) SlotOf(id int) (start, end uintptr) {
	start = a.base + uintptr(id)*a.slotSize
	return start, start + a.usableLen
}

// Top returns the exclusive end of id's usable region (one past its
// highest usable byte), i.e. the initial stack pointer a fresh context
// should be built with (x86-64 stacks grow down).
func (a *Arena) Top(id int) uintptr {
	_, end := a.SlotOf(id)
	return end
}

// IDOf returns the silk id owning the slot containing addr. Works for any
// address within a slot's usable region (not the trailing guard pages,
// which are never dereferenced by definition).
func (a *Arena) IDOf(addr uintptr) int {
	return int((addr - a.base) / a.slotSize)
}

// NumSilk returns the number of slots in the arena.
func (a *Arena) NumSilk() int {
	return a.numSilk
}

// mmapReserve reserves a PROT_NONE anonymous mapping of length len, at
// baseAddr if non-zero (MAP_FIXED). Like the teacher's own mmapQueues, this
// drops to the raw syscall instead of the golang.org/x/sys/unix.Mmap
// wrapper because that wrapper does not expose a caller-chosen address —
// needed here for the arena's optional deterministic base address.
func mmapReserve(baseAddr uintptr, length uintptr) ([]byte, error) {
	flags := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS
	if baseAddr != 0 {
		flags |= unix.MAP_FIXED
	}

	addr, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		baseAddr,
		length,
		unix.PROT_NONE,
		uintptr(flags),
		^uintptr(0), // fd = -1
		0,
	)
	if errno != 0 {
		return nil, errno
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(length)), nil
}
