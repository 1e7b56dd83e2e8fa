// Package rtos is the public entry point for the cooperative kernel: it
// wires internal/sched, internal/cond, internal/sleep, and internal/palloc
// together into a bootable Kernel, and re-exports the structured error and
// metrics types every internal package reports through.
package rtos

import (
	"errors"
	"fmt"

	"github.com/ehrlich-b/rtos-core/internal/constants"
)

// Error is a structured kernel error carrying the operation that failed,
// the status-code taxonomy from §7 of the spec, and enough context
// (task/FD name) to diagnose it without parsing the message string.
//
// Grounded on the teacher's root Error{Op, DevID, Queue, Code, Errno, Msg,
// Inner}: DevID/Queue (block-device addressing) become Task/FD (kernel
// addressing), Code's UblkErrorCode string enum becomes constants.Status,
// and Errno is dropped — this domain has no syscall errno to carry, the
// Status value already is the wire-stable numeric code.
type Error struct {
	Op     string          // Operation that failed, e.g. "SuspendCondition", "Alloc".
	Task   string          // Task name (empty if not applicable).
	FD     string          // FD name (empty if not applicable).
	Status constants.Status
	Msg    string
	Inner  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	if e.Task != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.Task))
	}
	if e.FD != "" {
		parts = append(parts, fmt.Sprintf("fd=%s", e.FD))
	}
	if e.Status != constants.StatusSuccess {
		parts = append(parts, fmt.Sprintf("status=%s", e.Status))
	}

	msg := e.Msg
	if msg == "" {
		msg = e.Status.String()
	}

	if len(parts) > 0 {
		return fmt.Sprintf("rtos: %s: %s (%s)", e.Op, msg, parts[0])
	}
	return fmt.Sprintf("rtos: %s: %s", e.Op, msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support comparing by status code, so callers can
// write errors.Is(err, rtos.NewError("", constants.StatusConditionTimeout, ""))
// or more simply use IsStatus below.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Status == te.Status
}

// NewError creates a plain structured error with no task/FD context.
func NewError(op string, status constants.Status, msg string) *Error {
	return &Error{Op: op, Status: status, Msg: msg}
}

// NewTaskError creates an error attributed to a named task.
func NewTaskError(op, task string, status constants.Status, msg string) *Error {
	return &Error{Op: op, Task: task, Status: status, Msg: msg}
}

// NewFDError creates an error attributed to a named FD.
func NewFDError(op, fdName string, status constants.Status, msg string) *Error {
	return &Error{Op: op, FD: fdName, Status: status, Msg: msg}
}

// WrapError wraps an existing error with kernel operation context,
// preserving Task/FD/Status if inner is already a structured *Error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ie, ok := inner.(*Error); ok {
		return &Error{
			Op:     op,
			Task:   ie.Task,
			FD:     ie.FD,
			Status: ie.Status,
			Msg:    ie.Msg,
			Inner:  ie.Inner,
		}
	}
	return &Error{Op: op, Msg: inner.Error(), Inner: inner}
}

// IsStatus reports whether err is (or wraps) a structured *Error carrying
// the given status code.
func IsStatus(err error, status constants.Status) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Status == status
	}
	return false
}

// IsTransient reports whether status names a condition that is not truly
// an error — a retry-later or ownership-transfer signal rather than a
// fault, per §7's taxonomy.
func IsTransient(status constants.Status) bool {
	switch status {
	case constants.StatusConditionTimeout, constants.StatusNetBufferConsumed, constants.StatusNetThreshold:
		return true
	default:
		return false
	}
}
