package compiler

import "github.com/emberlang/ember/internal/bytecode"

// FunctionType tells the compiler what kind of callable it is currently
// emitting code for, which changes how slot 0 and `return` behave.
type FunctionType int

const (
	TypeScript FunctionType = iota
	TypeFunction
	TypeMethod
	TypeInitializer
)

// Local is a lexically scoped variable tracked at compile time. depth
// is -1 between a local's declaration and the point its initializer
// finishes, so references inside that window are caught as errors.
type Local struct {
	name       string
	depth      int
	isCaptured bool
}

type upvalueRef struct {
	index   byte
	isLocal bool
}

// funcScope is one compile-time activation of the compiler, one per
// nested function/method/script body being compiled. It mirrors the
// runtime's call frame but exists only during compilation, and chains
// through enclosing to form a cactus stack matching the static nesting
// of function declarations.
type funcScope struct {
	enclosing *funcScope

	fn     *bytecode.Function
	fnType FunctionType

	locals   []Local
	upvalues []upvalueRef
	depth    int
}

// newFuncScope starts a fresh compile scope. Slot 0 is reserved ahead
// of any user-declared local: it holds the receiver ("this") for
// methods and initializers, or an unnamed placeholder otherwise so
// user locals never collide with the calling convention's slot 0.
func newFuncScope(enclosing *funcScope, fnType FunctionType, name string) *funcScope {
	slot0 := ""
	if fnType == TypeMethod || fnType == TypeInitializer {
		slot0 = "this"
	}
	return &funcScope{
		enclosing: enclosing,
		fn:        &bytecode.Function{Name: name},
		fnType:    fnType,
		locals:    []Local{{name: slot0, depth: 0}},
	}
}

// classScope tracks the class currently being compiled, so `this` and
// `super` can be rejected outside of one and superclass invocations
// can be emitted correctly inside one.
type classScope struct {
	enclosing     *classScope
	hasSuperclass bool
}
