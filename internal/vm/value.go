// Package vm executes compiled chunks: an operand stack, a call-frame
// stack, a global table, and the open-upvalue list that lets closures
// alias live stack slots.
package vm

import (
	"fmt"
	"strconv"

	"github.com/emberlang/ember/internal/bytecode"
)

// Kind discriminates the variants of Value.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindFunction
	KindNative
	KindClosure
	KindClass
	KindInstance
	KindBoundMethod
)

// Value is the tagged union of every runtime value. Only the field
// matching Kind is meaningful.
type Value struct {
	Kind     Kind
	Number   float64
	Bool     bool
	Str      string
	Fn       *bytecode.Function
	Native   *NativeFunction
	Closure  *Closure
	Class    *Class
	Instance *Instance
	Bound    *BoundMethod
}

func Nil() Value                { return Value{Kind: KindNil} }
func BoolVal(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func Number(n float64) Value    { return Value{Kind: KindNumber, Number: n} }
func StringVal(s string) Value  { return Value{Kind: KindString, Str: s} }
func FunctionVal(f *bytecode.Function) Value { return Value{Kind: KindFunction, Fn: f} }
func NativeVal(n *NativeFunction) Value      { return Value{Kind: KindNative, Native: n} }
func ClosureVal(c *Closure) Value            { return Value{Kind: KindClosure, Closure: c} }
func ClassVal(c *Class) Value                { return Value{Kind: KindClass, Class: c} }
func InstanceVal(i *Instance) Value          { return Value{Kind: KindInstance, Instance: i} }
func BoundMethodVal(b *BoundMethod) Value    { return Value{Kind: KindBoundMethod, Bound: b} }

// IsFalsy implements Ember's truthiness rule: nil and false are falsy,
// everything else (including 0 and "") is truthy.
func IsFalsy(v Value) bool {
	return v.Kind == KindNil || (v.Kind == KindBool && !v.Bool)
}

// Equal implements the equality rules of the data model: numeric
// values compare by IEEE equality, bool/nil/string structurally, and
// every heap-object variant by handle identity. Values of different
// kinds are never equal.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindNumber:
		return a.Number == b.Number
	case KindString:
		return a.Str == b.Str
	case KindFunction:
		return a.Fn == b.Fn
	case KindNative:
		return a.Native == b.Native
	case KindClosure:
		return a.Closure == b.Closure
	case KindClass:
		return a.Class == b.Class
	case KindInstance:
		return a.Instance == b.Instance
	case KindBoundMethod:
		return a.Bound == b.Bound
	default:
		return false
	}
}

// String renders v the way the PRINT instruction and the REPL do.
func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindFunction:
		if v.Fn.Name == "" {
			return "<script>"
		}
		return fmt.Sprintf("<fn %s>", v.Fn.Name)
	case KindNative:
		return "<native fn>"
	case KindClosure:
		if v.Closure.Function.Name == "" {
			return "<script>"
		}
		return fmt.Sprintf("<fn %s>", v.Closure.Function.Name)
	case KindClass:
		return v.Class.Name
	case KindInstance:
		return v.Instance.Class.Name + " instance"
	case KindBoundMethod:
		return fmt.Sprintf("<fn %s>", v.Bound.Method.Function.Name)
	default:
		return "<unknown>"
	}
}

// TypeName names v's dynamic type for diagnostics.
func TypeName(v Value) string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindFunction, KindClosure, KindNative:
		return "function"
	case KindClass:
		return "class"
	case KindInstance:
		return "instance"
	case KindBoundMethod:
		return "bound method"
	default:
		return "value"
	}
}
