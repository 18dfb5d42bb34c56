// internal/errors/errors.go
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// ErrorType represents the type of error
type ErrorType string

const (
	CompileError ErrorType = "CompileError"
	RuntimeError ErrorType = "RuntimeError"
	FatalError   ErrorType = "FatalError"
)

// SourceLocation represents a location in source code
type SourceLocation struct {
	Function string
	Line     int
}

// LevyError is every error the engine reports about a program
type LevyError struct {
	Type      ErrorType
	Message   string
	Location  SourceLocation
	CallStack []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	Line     int
}

// Error implements the error interface
func (e *LevyError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s", e.Type, e.Message))
	if e.Location.Line > 0 {
		if e.Location.Function != "" {
			sb.WriteString(fmt.Sprintf("\n  at %s line %d", e.Location.Function, e.Location.Line))
		} else {
			sb.WriteString(fmt.Sprintf("\n  at line %d", e.Location.Line))
		}
	}

	if len(e.CallStack) > 0 {
		sb.WriteString("\nCall Stack:")
		for _, frame := range e.CallStack {
			sb.WriteString(fmt.Sprintf("\n  at %s (line %d)", frame.Function, frame.Line))
		}
	}
	return sb.String()
}

// NewCompileError creates a compile error at line
func NewCompileError(line int, format string, args ...any) *LevyError {
	return &LevyError{
		Type:     CompileError,
		Message:  fmt.Sprintf(format, args...),
		Location: SourceLocation{Line: line},
	}
}

// NewRuntimeError creates a language-level error a try block can catch
func NewRuntimeError(message string) *LevyError {
	return &LevyError{Type: RuntimeError, Message: message}
}

// NewFatalError creates a VM invariant violation. These are never caught by
// user code.
func NewFatalError(format string, args ...any) *LevyError {
	return &LevyError{Type: FatalError, Message: fmt.Sprintf(format, args...)}
}

// At sets the location
func (e *LevyError) At(function string, line int) *LevyError {
	e.Location = SourceLocation{Function: function, Line: line}
	return e
}

// WithStack adds a call stack to the error
func (e *LevyError) WithStack(stack []StackFrame) *LevyError {
	e.CallStack = stack
	return e
}

// AddStackFrame adds a single stack frame
func (e *LevyError) AddStackFrame(function string, line int) *LevyError {
	e.CallStack = append(e.CallStack, StackFrame{Function: function, Line: line})
	return e
}

func is(err error, t ErrorType) bool {
	var list List
	if pkgerrors.As(err, &list) {
		for _, le := range list {
			if le.Type == t {
				return true
			}
		}
		return false
	}
	var le *LevyError
	if pkgerrors.As(err, &le) {
		return le.Type == t
	}
	return false
}

// IsFatal reports whether err is or wraps a FatalError.
func IsFatal(err error) bool { return is(err, FatalError) }

// IsRuntime reports whether err is or wraps a RuntimeError.
func IsRuntime(err error) bool { return is(err, RuntimeError) }

// IsCompile reports whether err is or wraps a CompileError.
func IsCompile(err error) bool { return is(err, CompileError) }

// List collects errors reported for independent statements.
type List []*LevyError

func (l List) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Err returns nil for an empty list.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Wrap annotates err with a message, keeping the cause reachable.
func Wrap(err error, message string) error { return pkgerrors.Wrap(err, message) }

// Wrapf is Wrap with formatting.
func Wrapf(err error, format string, args ...any) error {
	return pkgerrors.Wrapf(err, format, args...)
}

// Cause unwraps to the innermost error.
func Cause(err error) error { return pkgerrors.Cause(err) }

// New returns a plain error with a stack trace, for sentinels.
func New(message string) error { return pkgerrors.New(message) }
