package silk

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Error is the silk engine's structured error type: an operation name, the
// silk it concerns (if any), a high-level Status, an optional kernel errno,
// a human message, and a wrapped cause. Mirrors the teacher's own *Error
// shape (Op/DevID/Queue/Code/Errno/Msg/Inner) field-for-field, with SilkID
// standing in for DevID/Queue since a silk engine has no device or queue
// concept of its own.
type Error struct {
	Op     string
	SilkID SilkID
	Status Status
	Errno  syscall.Errno
	Msg    string
	Inner  error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.SilkID != invalidSilkID {
		parts = append(parts, fmt.Sprintf("silk=%d", e.SilkID))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Status)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("silk: %s (%s)", msg, strings.Join(parts, " "))
	}
	return fmt.Sprintf("silk: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Status == te.Status
}

// invalidSilkID marks the zero-value-but-unset case for Error.SilkID, so
// "silk 0" (a real, valid id) doesn't get silently dropped from Error().
const invalidSilkID SilkID = ^SilkID(0)

// NewError constructs an *Error with no associated silk.
func NewError(op string, status Status, msg string) *Error {
	return &Error{Op: op, SilkID: invalidSilkID, Status: status, Msg: msg}
}

// NewSilkError constructs an *Error naming the silk it concerns.
func NewSilkError(op string, id SilkID, status Status, msg string) *Error {
	return &Error{Op: op, SilkID: id, Status: status, Msg: msg}
}

// WrapError wraps inner with op and status, preserving it as the cause.
func WrapError(op string, status Status, inner error) *Error {
	if inner == nil {
		return nil
	}
	if se, ok := inner.(*Error); ok {
		return &Error{Op: op, SilkID: se.SilkID, Status: status, Errno: se.Errno, Msg: se.Msg, Inner: se}
	}
	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{Op: op, SilkID: invalidSilkID, Status: status, Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, SilkID: invalidSilkID, Status: status, Msg: inner.Error(), Inner: inner}
}

// IsStatus reports whether err is a *Error with the given Status.
func IsStatus(err error, status Status) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Status == status
	}
	return false
}

// IsErrno reports whether err is a *Error carrying the given errno.
func IsErrno(err error, errno syscall.Errno) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Errno == errno
	}
	return false
}
