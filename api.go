// Package ember embeds a small dynamically typed scripting language:
// closures, single-inheritance classes, and a stack-based bytecode VM.
// It is the library the cmd/ember CLI is itself built on.
package ember

import (
	"io"

	"github.com/emberlang/ember/internal/compiler"
	"github.com/emberlang/ember/internal/vm"
)

// Result reports how a call to Interpret finished.
type Result int

const (
	OK Result = iota
	CompileError
	RuntimeError
)

// VM runs Ember source against a persistent global environment: two
// calls to Interpret on the same VM see each other's top-level var and
// fun declarations, matching a REPL session.
type VM struct {
	m *vm.VM

	lastCompileErr error
	lastRuntimeErr *vm.RuntimeError
}

// NewVM constructs a VM that writes the output of `print` statements
// to out.
func NewVM(out io.Writer) *VM {
	return &VM{m: vm.New(out)}
}

// Interpret compiles and runs source. A non-OK Result means the
// caller should consult LastCompileError or LastRuntimeError for
// detail instead of parsing Result alone.
func (v *VM) Interpret(source string) Result {
	v.lastCompileErr = nil
	v.lastRuntimeErr = nil

	fn, err := compiler.Compile(source)
	if err != nil {
		v.lastCompileErr = err
		return CompileError
	}

	if err := v.m.Interpret(fn); err != nil {
		if rerr, ok := err.(*vm.RuntimeError); ok {
			v.lastRuntimeErr = rerr
		}
		return RuntimeError
	}
	return OK
}

// LastCompileError returns the diagnostics from the most recent
// Interpret call that failed to compile, or nil if it compiled (or
// none has run yet).
func (v *VM) LastCompileError() error {
	return v.lastCompileErr
}

// LastRuntimeError returns the error the most recent Interpret call
// raised while running, or nil if it ran to completion (or none has
// run yet).
func (v *VM) LastRuntimeError() *vm.RuntimeError {
	return v.lastRuntimeErr
}
