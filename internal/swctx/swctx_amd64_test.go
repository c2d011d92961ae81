//go:build linux && amd64 && cgo

package swctx

import (
	"runtime"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"
)

// TestSwitchRoundTrip exercises the full life of one synthesized context:
// build it, switch into it (landing in the trampoline), and have the
// trampoline switch straight back. This is the minimal proof that the
// "switch looks like an ordinary call that returns on another stack" trick
// actually round-trips.
func TestSwitchRoundTrip(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	const stackSize = 64 * 1024
	stack, err := unix.Mmap(-1, 0, stackSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		t.Fatalf("mmap scratch stack: %v", err)
	}
	defer unix.Munmap(stack)

	var worker, silk Context
	var entered bool
	var sawSPHint uintptr

	SetTrampoline(func(spHint uintptr) {
		entered = true
		sawSPHint = spHint
		Switch(&silk, &worker)
		t.Fatal("trampoline resumed after yielding back; switch did not round-trip")
	})

	top := uintptr(unsafe.Pointer(&stack[len(stack)-1])) + 1
	BuildInitial(&silk, top)

	Switch(&worker, &silk)

	if !entered {
		t.Fatal("trampoline was never entered by the first switch")
	}
	base := uintptr(unsafe.Pointer(&stack[0]))
	if sawSPHint < base || sawSPHint >= base+stackSize {
		t.Errorf("trampoline's local-variable address %x is outside the stack region [%x, %x)", sawSPHint, base, base+stackSize)
	}
}
