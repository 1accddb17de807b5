package vm

import "github.com/emberlang/ember/internal/bytecode"

// Closure is a runtime callable: a compiled function plus the upvalues
// it captured from enclosing scopes. Every call frame's slot 0 holds
// either a closure or, for methods, the instance bound to it.
type Closure struct {
	Function *bytecode.Function
	Upvalues []*Upvalue
}

// Upvalue is a capture cell shared between a closure and the stack
// slot it closed over. While open it aliases a live slot in the VM's
// pre-reserved stack by index; closing copies the value out so it
// survives the owning frame's return. Indexing by stack slot (rather
// than a raw interior pointer) is the indexing scheme the data model
// explicitly allows as an alternative to pointer capture.
type Upvalue struct {
	stack []Value
	slot  int
	open  bool

	closed Value
	next   *Upvalue
}

func newOpenUpvalue(stack []Value, slot int) *Upvalue {
	return &Upvalue{stack: stack, slot: slot, open: true}
}

// Get returns the upvalue's current value, open or closed.
func (u *Upvalue) Get() Value {
	if u.open {
		return u.stack[u.slot]
	}
	return u.closed
}

// Set assigns through the upvalue, open or closed.
func (u *Upvalue) Set(v Value) {
	if u.open {
		u.stack[u.slot] = v
		return
	}
	u.closed = v
}

// Close copies the aliased slot's value into the upvalue itself and
// severs the alias.
func (u *Upvalue) Close() {
	u.closed = u.stack[u.slot]
	u.open = false
	u.stack = nil
}

// NativeFunction is a host-implemented callable, such as clock.
type NativeFunction struct {
	Name string
	Fn   func(args []Value) (Value, error)
}

// Class holds a name and its method table. Methods are Closures so
// that a method body can itself capture upvalues from the enclosing
// scope in which the class was declared.
type Class struct {
	Name    string
	Methods map[string]*Closure
}

// Instance is a live object of some Class: the class it was made from
// plus its own field table.
type Instance struct {
	Class  *Class
	Fields map[string]Value
}

// BoundMethod pairs a receiver with one of its class's methods,
// produced by property access on a method name (OP_GET_PROPERTY /
// OP_GET_SUPER) and consumed by OP_CALL like any other callable.
type BoundMethod struct {
	Receiver Value
	Method   *Closure
}
