package compiler

import (
	"strings"
	"testing"

	"github.com/emberlang/ember/internal/bytecode"
)

func findFunctionConstant(t *testing.T, chunk *bytecode.Chunk, name string) *bytecode.Function {
	t.Helper()
	for _, c := range chunk.Constants {
		if fn, ok := c.(*bytecode.Function); ok && fn.Name == name {
			return fn
		}
	}
	t.Fatalf("no function constant named %q in %+v", name, chunk.Constants)
	return nil
}

func TestCompileArithmeticEmitsExpectedBytecode(t *testing.T) {
	fn, err := Compile("1 + 2;")
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	want := []bytecode.OpCode{
		bytecode.OpConstant,
		bytecode.OpConstant,
		bytecode.OpAdd,
		bytecode.OpPop,
		bytecode.OpNil,
		bytecode.OpReturn,
	}

	got := opsOnly(fn.Chunk.Code)
	if len(got) != len(want) {
		t.Fatalf("op sequence length mismatch: got %v want %v", got, want)
	}
	for i, op := range want {
		if got[i] != op {
			t.Fatalf("op %d: got %s want %s", i, got[i], op)
		}
	}
}

// opsOnly walks a code stream and extracts the opcodes, skipping over
// each instruction's fixed-width operand bytes. The (isLocal, index)
// pairs that follow an OP_CLOSURE are not skipped, since their count
// lives in the constant pool, so they are read as opcodes.
func opsOnly(code []byte) []bytecode.OpCode {
	var ops []bytecode.OpCode
	for i := 0; i < len(code); {
		op := bytecode.OpCode(code[i])
		ops = append(ops, op)
		i++
		switch op {
		case bytecode.OpConstant, bytecode.OpGetLocal, bytecode.OpSetLocal,
			bytecode.OpGetGlobal, bytecode.OpDefineGlobal, bytecode.OpSetGlobal,
			bytecode.OpGetUpvalue, bytecode.OpSetUpvalue,
			bytecode.OpGetProperty, bytecode.OpSetProperty, bytecode.OpGetSuper,
			bytecode.OpCall, bytecode.OpClass, bytecode.OpMethod:
			i++
		case bytecode.OpInvoke, bytecode.OpSuperInvoke:
			i += 2
		case bytecode.OpJump, bytecode.OpJumpIfFalse, bytecode.OpLoop:
			i += 2
		case bytecode.OpClosure:
			i++ // constant index only; upvalue pairs are not skipped
		}
	}
	return ops
}

func TestCompileVarDeclarationDefinesGlobal(t *testing.T) {
	fn, err := Compile("var x = 5; print x;")
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	found := false
	for _, op := range opsOnly(fn.Chunk.Code) {
		if op == bytecode.OpDefineGlobal {
			found = true
		}
	}
	if !found {
		t.Fatal("expected OP_DEFINE_GLOBAL in compiled output")
	}

	hasName := false
	for _, c := range fn.Chunk.Constants {
		if s, ok := c.(string); ok && s == "x" {
			hasName = true
		}
	}
	if !hasName {
		t.Fatal("expected constant table to contain global name \"x\"")
	}
}

func TestCompileIfElseEmitsJumps(t *testing.T) {
	fn, err := Compile(`if (true) { print 1; } else { print 2; }`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	ops := opsOnly(fn.Chunk.Code)

	var jumpIfFalse, jump int
	for _, op := range ops {
		if op == bytecode.OpJumpIfFalse {
			jumpIfFalse++
		}
		if op == bytecode.OpJump {
			jump++
		}
	}
	if jumpIfFalse != 1 || jump != 1 {
		t.Fatalf("expected exactly one JUMP_IF_FALSE and one JUMP, got %d and %d", jumpIfFalse, jump)
	}
}

func TestCompileClosureCapturesEnclosingLocal(t *testing.T) {
	fn, err := Compile(`
		fun outer() {
			var x = 1;
			fun inner() {
				return x;
			}
			return inner;
		}
	`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	outer := findFunctionConstant(t, &fn.Chunk, "outer")
	inner := findFunctionConstant(t, &outer.Chunk, "inner")

	if inner.UpvalueCount != 1 {
		t.Fatalf("expected inner to capture exactly one upvalue, got %d", inner.UpvalueCount)
	}
}

func TestCompileClassWithSuperclassEmitsInherit(t *testing.T) {
	fn, err := Compile(`
		class Animal {
			speak() {
				print "...";
			}
		}
		class Dog < Animal {
			speak() {
				super.speak();
			}
		}
	`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	var hasInherit, hasSuperInvoke bool
	for _, op := range opsOnly(fn.Chunk.Code) {
		if op == bytecode.OpInherit {
			hasInherit = true
		}
	}
	for _, c := range fn.Chunk.Constants {
		if m, ok := c.(*bytecode.Function); ok {
			for _, op := range opsOnly(m.Chunk.Code) {
				if op == bytecode.OpSuperInvoke {
					hasSuperInvoke = true
				}
			}
		}
	}
	if !hasInherit {
		t.Fatal("expected OP_INHERIT when compiling a subclass")
	}
	if !hasSuperInvoke {
		t.Fatal("expected OP_SUPER_INVOKE when compiling super.speak()")
	}
}

func TestCompileReturnOutsideFunctionIsError(t *testing.T) {
	_, err := Compile("return 1;")
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "Can't return from top-level code.") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompileDuplicateLocalIsError(t *testing.T) {
	_, err := Compile("{ var a = 1; var a = 2; }")
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "Already a variable with this name in this scope.") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompileSuperOutsideClassIsError(t *testing.T) {
	_, err := Compile("fun f() { super.speak(); }")
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "Can't use 'super' outside of a class.") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompileMissingSemicolonIsError(t *testing.T) {
	_, err := Compile("var x = 1")
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "Expect ';' after variable declaration.") {
		t.Fatalf("unexpected error: %v", err)
	}
}
