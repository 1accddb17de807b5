package vm

import (
	"fmt"
	"io"

	"github.com/emberlang/ember/internal/bytecode"
	"github.com/sirupsen/logrus"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// initName is the interned method name that makes a class method an
// initializer. It is cached once rather than re-allocated per call.
const initName = "init"

type frame struct {
	closure *Closure
	ip      int
	base    int
}

// VM executes compiled chunks. The operand stack is reserved once, up
// front, to its maximum size so that open upvalues can alias stack
// slots by stable index for the whole run.
type VM struct {
	stack    []Value
	stackTop int

	frames []frame

	globals      map[string]Value
	openUpvalues *Upvalue

	out io.Writer
}

// New constructs a VM that writes `print` output to out.
func New(out io.Writer) *VM {
	vm := &VM{
		stack:   make([]Value, stackMax),
		frames:  make([]frame, 0, framesMax),
		globals: make(map[string]Value),
		out:     out,
	}
	vm.defineNatives()
	return vm
}

// Interpret runs a freshly compiled top-level script function to
// completion.
func (vm *VM) Interpret(script *bytecode.Function) error {
	closure := &Closure{Function: script, Upvalues: nil}
	vm.push(ClosureVal(closure))
	if err := vm.call(closure, 0); err != nil {
		return err
	}
	_, err := vm.run()
	return err
}

func (vm *VM) push(v Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frames = vm.frames[:0]
	vm.openUpvalues = nil
}

func (vm *VM) run() (Value, error) {
	for {
		fr := &vm.frames[len(vm.frames)-1]
		op := bytecode.OpCode(vm.readByte(fr))

		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			logrus.Debugf("%04d %s", fr.ip-1, op)
		}

		switch op {
		case bytecode.OpConstant:
			vm.push(constantValue(vm.readConstant(fr)))

		case bytecode.OpNil:
			vm.push(Nil())
		case bytecode.OpTrue:
			vm.push(BoolVal(true))
		case bytecode.OpFalse:
			vm.push(BoolVal(false))
		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpGetLocal:
			slot := int(vm.readByte(fr))
			vm.push(vm.stack[fr.base+slot])
		case bytecode.OpSetLocal:
			slot := int(vm.readByte(fr))
			vm.stack[fr.base+slot] = vm.peek(0)

		case bytecode.OpGetGlobal:
			name := vm.readString(fr)
			v, ok := vm.globals[name]
			if !ok {
				return Nil(), vm.runtimeError("Undefined variable '%s'.", name)
			}
			vm.push(v)
		case bytecode.OpDefineGlobal:
			name := vm.readString(fr)
			vm.globals[name] = vm.peek(0)
			vm.pop()
		case bytecode.OpSetGlobal:
			name := vm.readString(fr)
			if _, ok := vm.globals[name]; !ok {
				return Nil(), vm.runtimeError("Undefined variable '%s'.", name)
			}
			vm.globals[name] = vm.peek(0)

		case bytecode.OpGetUpvalue:
			slot := vm.readByte(fr)
			vm.push(fr.closure.Upvalues[slot].Get())
		case bytecode.OpSetUpvalue:
			slot := vm.readByte(fr)
			fr.closure.Upvalues[slot].Set(vm.peek(0))

		case bytecode.OpGetProperty:
			name := vm.readString(fr)
			if vm.peek(0).Kind != KindInstance {
				return Nil(), vm.runtimeError("Only instances have properties.")
			}
			instance := vm.peek(0).Instance
			if v, ok := instance.Fields[name]; ok {
				vm.pop()
				vm.push(v)
				break
			}
			if err := vm.bindMethod(instance.Class, name); err != nil {
				return Nil(), err
			}
		case bytecode.OpSetProperty:
			name := vm.readString(fr)
			if vm.peek(1).Kind != KindInstance {
				return Nil(), vm.runtimeError("Only instances have fields.")
			}
			instance := vm.peek(1).Instance
			value := vm.peek(0)
			instance.Fields[name] = value
			vm.pop()
			vm.pop()
			vm.push(value)
		case bytecode.OpGetSuper:
			name := vm.readString(fr)
			super := vm.pop()
			if err := vm.bindMethod(super.Class, name); err != nil {
				return Nil(), err
			}

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolVal(Equal(a, b)))
		case bytecode.OpGreater:
			if err := vm.numericBinary(func(a, b float64) Value { return BoolVal(a > b) }); err != nil {
				return Nil(), err
			}
		case bytecode.OpLess:
			if err := vm.numericBinary(func(a, b float64) Value { return BoolVal(a < b) }); err != nil {
				return Nil(), err
			}
		case bytecode.OpAdd:
			if err := vm.add(); err != nil {
				return Nil(), err
			}
		case bytecode.OpSubtract:
			if err := vm.numericBinary(func(a, b float64) Value { return Number(a - b) }); err != nil {
				return Nil(), err
			}
		case bytecode.OpMultiply:
			if err := vm.numericBinary(func(a, b float64) Value { return Number(a * b) }); err != nil {
				return Nil(), err
			}
		case bytecode.OpDivide:
			if err := vm.numericBinary(func(a, b float64) Value { return Number(a / b) }); err != nil {
				return Nil(), err
			}
		case bytecode.OpNot:
			vm.push(BoolVal(IsFalsy(vm.pop())))
		case bytecode.OpNegate:
			if vm.peek(0).Kind != KindNumber {
				return Nil(), vm.runtimeError("Operand must be a number.")
			}
			vm.push(Number(-vm.pop().Number))

		case bytecode.OpPrint:
			fmt.Fprintln(vm.out, vm.pop().String())

		case bytecode.OpJump:
			offset := vm.readShort(fr)
			fr.ip += offset
		case bytecode.OpJumpIfFalse:
			offset := vm.readShort(fr)
			if IsFalsy(vm.peek(0)) {
				fr.ip += offset
			}
		case bytecode.OpLoop:
			offset := vm.readShort(fr)
			fr.ip -= offset

		case bytecode.OpCall:
			argCount := int(vm.readByte(fr))
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return Nil(), err
			}
		case bytecode.OpInvoke:
			name := vm.readString(fr)
			argCount := int(vm.readByte(fr))
			if err := vm.invoke(name, argCount); err != nil {
				return Nil(), err
			}
		case bytecode.OpSuperInvoke:
			name := vm.readString(fr)
			argCount := int(vm.readByte(fr))
			super := vm.pop()
			if super.Kind != KindClass {
				return Nil(), vm.runtimeError("Superclass must be a class.")
			}
			if err := vm.invokeFromClass(super.Class, name, argCount); err != nil {
				return Nil(), err
			}

		case bytecode.OpClosure:
			fn := vm.readConstant(fr).(*bytecode.Function)
			closure := &Closure{Function: fn, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := vm.readByte(fr)
				index := int(vm.readByte(fr))
				if isLocal == 1 {
					closure.Upvalues[i] = vm.captureUpvalue(fr.base + index)
				} else {
					closure.Upvalues[i] = fr.closure.Upvalues[index]
				}
			}
			vm.push(ClosureVal(closure))
		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case bytecode.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(fr.base)
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.pop()
				return result, nil
			}
			vm.stackTop = fr.base
			vm.push(result)

		case bytecode.OpClass:
			name := vm.readString(fr)
			vm.push(ClassVal(&Class{Name: name, Methods: make(map[string]*Closure)}))
		case bytecode.OpInherit:
			super := vm.peek(1)
			if super.Kind != KindClass {
				return Nil(), vm.runtimeError("Superclass must be a class.")
			}
			sub := vm.peek(0).Class
			for name, method := range super.Class.Methods {
				sub.Methods[name] = method
			}
			vm.pop()
		case bytecode.OpMethod:
			name := vm.readString(fr)
			method := vm.pop().Closure
			class := vm.peek(0).Class
			class.Methods[name] = method

		default:
			return Nil(), vm.runtimeError("Unknown opcode 0x%02x.", byte(op))
		}
	}
}

func constantValue(c interface{}) Value {
	switch v := c.(type) {
	case float64:
		return Number(v)
	case string:
		return StringVal(v)
	case *bytecode.Function:
		return FunctionVal(v)
	default:
		return Nil()
	}
}

func (vm *VM) readByte(fr *frame) byte {
	b := fr.closure.Function.Chunk.Code[fr.ip]
	fr.ip++
	return b
}

func (vm *VM) readShort(fr *frame) int {
	hi := vm.readByte(fr)
	lo := vm.readByte(fr)
	return int(hi)<<8 | int(lo)
}

func (vm *VM) readConstant(fr *frame) interface{} {
	idx := vm.readByte(fr)
	return fr.closure.Function.Chunk.Constants[idx]
}

func (vm *VM) readString(fr *frame) string {
	return vm.readConstant(fr).(string)
}

func (vm *VM) numericBinary(op func(a, b float64) Value) error {
	if vm.peek(0).Kind != KindNumber || vm.peek(1).Kind != KindNumber {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().Number
	a := vm.pop().Number
	vm.push(op(a, b))
	return nil
}

func (vm *VM) add() error {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case a.Kind == KindNumber && b.Kind == KindNumber:
		vm.pop()
		vm.pop()
		vm.push(Number(a.Number + b.Number))
		return nil
	case a.Kind == KindString && b.Kind == KindString:
		vm.pop()
		vm.pop()
		vm.push(StringVal(a.Str + b.Str))
		return nil
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}

func (vm *VM) callValue(callee Value, argCount int) error {
	switch callee.Kind {
	case KindClosure:
		return vm.call(callee.Closure, argCount)
	case KindNative:
		args := vm.stack[vm.stackTop-argCount : vm.stackTop]
		result, err := callee.Native.Fn(args)
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		vm.stackTop -= argCount + 1
		vm.push(result)
		return nil
	case KindClass:
		instance := &Instance{Class: callee.Class, Fields: make(map[string]Value)}
		vm.stack[vm.stackTop-argCount-1] = InstanceVal(instance)
		if init, ok := callee.Class.Methods[initName]; ok {
			return vm.call(init, argCount)
		}
		if argCount != 0 {
			return vm.runtimeError("Expected 0 arguments but got %d.", argCount)
		}
		return nil
	case KindBoundMethod:
		vm.stack[vm.stackTop-argCount-1] = callee.Bound.Receiver
		return vm.call(callee.Bound.Method, argCount)
	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

func (vm *VM) call(closure *Closure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if len(vm.frames) == framesMax {
		return vm.runtimeError("Stack overflow.")
	}
	vm.frames = append(vm.frames, frame{
		closure: closure,
		base:    vm.stackTop - argCount - 1,
	})
	return nil
}

func (vm *VM) bindMethod(class *Class, name string) error {
	method, ok := class.Methods[name]
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name)
	}
	bound := &BoundMethod{Receiver: vm.peek(0), Method: method}
	vm.pop()
	vm.push(BoundMethodVal(bound))
	return nil
}

func (vm *VM) invoke(name string, argCount int) error {
	receiver := vm.peek(argCount)
	if receiver.Kind != KindInstance {
		return vm.runtimeError("Only instances have properties.")
	}
	instance := receiver.Instance
	if field, ok := instance.Fields[name]; ok {
		vm.stack[vm.stackTop-argCount-1] = field
		return vm.callValue(field, argCount)
	}
	return vm.invokeFromClass(instance.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *Class, name string, argCount int) error {
	method, ok := class.Methods[name]
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name)
	}
	return vm.call(method, argCount)
}

// captureUpvalue returns the open upvalue for the given absolute stack
// slot, creating and inserting one into the descending-by-slot list if
// none exists yet. Reusing an existing open upvalue for the same slot
// is required so sibling closures share the same captured variable.
func (vm *VM) captureUpvalue(slot int) *Upvalue {
	var prev *Upvalue
	cur := vm.openUpvalues
	for cur != nil && cur.slot > slot {
		prev = cur
		cur = cur.next
	}
	if cur != nil && cur.slot == slot {
		return cur
	}

	created := newOpenUpvalue(vm.stack, slot)
	created.next = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above the given slot,
// as happens when a scope exits or a frame returns.
func (vm *VM) closeUpvalues(from int) {
	for vm.openUpvalues != nil && vm.openUpvalues.slot >= from {
		up := vm.openUpvalues
		up.Close()
		vm.openUpvalues = up.next
	}
}

func (vm *VM) runtimeError(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)

	stack := make([]FrameTrace, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		line := 0
		if fr.ip-1 >= 0 && fr.ip-1 < len(fr.closure.Function.Chunk.Lines) {
			line = fr.closure.Function.Chunk.Lines[fr.ip-1]
		}
		stack = append(stack, FrameTrace{Name: fr.closure.Function.Name, Line: line})
	}

	vm.resetStack()
	return &RuntimeError{Message: msg, Stack: stack}
}
