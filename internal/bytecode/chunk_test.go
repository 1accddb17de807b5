package bytecode

import "testing"

func TestChunkWriteTracksLines(t *testing.T) {
	c := &Chunk{}
	c.WriteOp(OpConstant, 1)
	c.Write(0, 1)
	c.WriteOp(OpReturn, 2)

	if len(c.Code) != 3 || len(c.Lines) != 3 {
		t.Fatalf("expected 3 code/line entries, got %d/%d", len(c.Code), len(c.Lines))
	}
	if c.Lines[0] != 1 || c.Lines[2] != 2 {
		t.Fatalf("unexpected line table: %v", c.Lines)
	}
}

func TestChunkAddConstant(t *testing.T) {
	c := &Chunk{}
	idx1 := c.AddConstant(1.0)
	idx2 := c.AddConstant("hi")

	if idx1 != 0 || idx2 != 1 {
		t.Fatalf("expected sequential indices, got %d, %d", idx1, idx2)
	}
	if c.Constants[0] != 1.0 || c.Constants[1] != "hi" {
		t.Fatalf("unexpected constants: %v", c.Constants)
	}
}
