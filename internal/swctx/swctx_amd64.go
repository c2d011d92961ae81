//go:build linux && amd64 && cgo

// Package swctx implements the silk engine's context-switch primitive for
// x86-64/SysV: saving and restoring the callee-preserved registers and the
// stack pointer across a cooperative switch between two raw stacks.
//
// This follows the one place the teacher repo itself drops below pure Go —
// internal/uring/barrier.go's cgo + inline-assembly memory fences — rather
// than introducing a technique absent from the corpus. The actual
// register-shuffling trick (treat the switch as an ordinary call that
// returns on a different stack) is lifted from the original engine's own
// silk_context.c.
package swctx

/*
#include <stdint.h>

typedef struct silk_context_t {
    uint64_t rbx;
    uint64_t rsp;
    uint64_t rbp;
    uint64_t r12;
    uint64_t r13;
    uint64_t r14;
    uint64_t r15;
} silk_context_t;

// silk_swap_stack_context saves the caller's callee-preserved registers
// into *from, restores *to's, and returns on to's stack. From the C/ABI
// caller's point of view this is an ordinary function call; the fact that
// it "returns" on a different stack is exactly the point.
static void silk_swap_stack_context(silk_context_t *from, silk_context_t *to) {
    __asm__ __volatile__(
        "movq %%rbx, 0(%%rdi)\n\t"
        "movq %%rsp, 8(%%rdi)\n\t"
        "movq %%rbp, 16(%%rdi)\n\t"
        "movq %%r12, 24(%%rdi)\n\t"
        "movq %%r13, 32(%%rdi)\n\t"
        "movq %%r14, 40(%%rdi)\n\t"
        "movq %%r15, 48(%%rdi)\n\t"
        "xchgq %%rdi, %%rsi\n\t"
        "movq 0(%%rdi), %%rbx\n\t"
        "movq 8(%%rdi), %%rsp\n\t"
        "movq 16(%%rdi), %%rbp\n\t"
        "movq 24(%%rdi), %%r12\n\t"
        "movq 32(%%rdi), %%r13\n\t"
        "movq 40(%%rdi), %%r14\n\t"
        "movq 48(%%rdi), %%r15\n\t"
        :
        : "D"(from), "S"(to)
        : "memory", "rbx", "rbp", "r12", "r13", "r14", "r15"
    );
}

// silk_trampoline_entry is the landing point of every silk's first switch.
// It takes no arguments on purpose: a silk discovers its own identity from
// the address of a local variable (passed to the Go trampoline as spHint,
// which the engine maps to a slot id), not from an argument threaded
// through the call.
extern void goSilkTrampoline(uint64_t spHint);

static void silk_trampoline_entry(void) {
    uint64_t local;
    goSilkTrampoline((uint64_t)(uintptr_t)&local);
}

static void silk_build_initial_context(silk_context_t *ctx, uint64_t stackTop) {
    uint64_t sp = stackTop & ~((uint64_t)15);
    sp -= 16;
    *(uint64_t *)(uintptr_t)sp = (uint64_t)(uintptr_t)&silk_trampoline_entry;

    ctx->rbx = 0;
    ctx->rsp = sp;
    ctx->rbp = 0;
    ctx->r12 = 0;
    ctx->r13 = 0;
    ctx->r14 = 0;
    ctx->r15 = 0;
}
*/
import "C"

// Context is an opaque saved execution context: callee-preserved registers
// plus the stack pointer. The zero value is not a valid context and must
// not be switched to before BuildInitial has run.
type Context struct {
	c C.silk_context_t
}

// BuildInitial prepares ctx so that the first Switch into it begins
// executing the engine's trampoline, using stackTop as the initial stack
// pointer (stacks grow down on x86-64, so stackTop should be the high end
// of the silk's usable stack region).
func BuildInitial(ctx *Context, stackTop uintptr) {
	C.silk_build_initial_context(&ctx.c, C.uint64_t(stackTop))
}

// Switch saves the caller's context into from and resumes to. Control
// returns to the caller of Switch(from, to) only when some later call
// switches back into from — from the caller's point of view, Switch
// behaves like an ordinary function call that happens to return on a
// different stack the first time. Treat it as a full compiler barrier:
// no local variable held in a register survives across it except via the
// saved context itself.
func Switch(from, to *Context) {
	C.silk_swap_stack_context(&from.c, &to.c)
}

// trampolineEntry is set once by the engine before the worker thread ever
// switches into a freshly built context. It is reached from the C landing
// function running on the silk's own raw stack through a cgo callback,
// which runs the Go side on the calling goroutine's Go-managed stack; Go
// code itself does not execute directly on the manually managed stack.
var trampolineEntry func(stackHint uintptr)

// SetTrampoline installs the function invoked every time a silk's initial
// context is entered for the first time. It replaces any previously
// installed function and must be called before the first Switch into a
// built context; the engine calls it once per Init.
func SetTrampoline(fn func(stackHint uintptr)) {
	trampolineEntry = fn
}

//export goSilkTrampoline
func goSilkTrampoline(spHint C.uint64_t) {
	if trampolineEntry == nil {
		panic("swctx: trampoline entered before SetTrampoline was called")
	}
	trampolineEntry(uintptr(spHint))
}
