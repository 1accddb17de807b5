package bytecode

import (
	"bytes"
	"strings"
	"testing"
)

func TestDisassembleConstant(t *testing.T) {
	c := &Chunk{}
	idx := c.AddConstant(1.2)
	c.WriteOp(OpConstant, 1)
	c.Write(byte(idx), 1)
	c.WriteOp(OpReturn, 1)

	var buf bytes.Buffer
	Disassemble(&buf, c, "test")

	out := buf.String()
	if !strings.Contains(out, "== test ==") {
		t.Fatalf("missing header: %q", out)
	}
	if !strings.Contains(out, "OP_CONSTANT") || !strings.Contains(out, "1.2") {
		t.Fatalf("missing constant instruction: %q", out)
	}
	if !strings.Contains(out, "OP_RETURN") {
		t.Fatalf("missing return instruction: %q", out)
	}
}

func TestDisassembleJump(t *testing.T) {
	c := &Chunk{}
	c.WriteOp(OpJump, 1)
	c.Write(0, 1)
	c.Write(2, 1)
	c.WriteOp(OpNil, 2)

	var buf bytes.Buffer
	Disassemble(&buf, c, "jumps")

	if !strings.Contains(buf.String(), "-> 5") {
		t.Fatalf("expected jump target 5: %q", buf.String())
	}
}
