package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestClassification(t *testing.T) {
	fatal := NewFatalError("stack overflow (limit %d)", 64)
	runtime := NewRuntimeError("Division by zero.")
	compile := NewCompileError(3, "break outside of a loop")

	if !IsFatal(fatal) || IsRuntime(fatal) {
		t.Fatal("fatal error misclassified")
	}
	if !IsRuntime(runtime) || IsFatal(runtime) {
		t.Fatal("runtime error misclassified")
	}
	if !IsCompile(List{compile}) {
		t.Fatal("compile list misclassified")
	}

	wrapped := Wrap(fatal, "running main")
	if !IsFatal(wrapped) {
		t.Fatal("wrapping hid the fatal error")
	}
	if Cause(wrapped) != error(fatal) {
		t.Fatal("Cause did not unwrap")
	}
	if !IsRuntime(fmt.Errorf("outer: %w", runtime)) {
		t.Fatal("fmt wrapping hid the runtime error")
	}
}

func TestErrorFormatting(t *testing.T) {
	err := NewRuntimeError("Index out of range.").At("main", 7).
		AddStackFrame("inner", 3).
		AddStackFrame("main", 7)
	msg := err.Error()
	for _, want := range []string{"RuntimeError: Index out of range.", "at main line 7", "Call Stack:", "at inner (line 3)"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestListErr(t *testing.T) {
	var l List
	if l.Err() != nil {
		t.Fatal("empty list should be nil")
	}
	l = append(l, NewCompileError(1, "a"), NewCompileError(2, "b"))
	if got := l.Err().Error(); !strings.Contains(got, "a") || !strings.Contains(got, "b") {
		t.Fatalf("joined message = %q", got)
	}
}
