package zia

import (
	"testing"
)

func TestChunkWriteKeepsLinesInStep(t *testing.T) {
	var c Chunk
	for i := range 20 {
		c.Write(byte(i), i/4+1)
	}
	if len(c.Code) != 20 || len(c.Lines) != 20 {
		t.Fatalf("expected 20 bytes and lines, got %d and %d", len(c.Code), len(c.Lines))
	}
	if cap(c.Code) != 32 {
		t.Fatalf("expected capacity 32 after growing from 8 and 16, got %d", cap(c.Code))
	}
	if c.Lines[19] != 5 {
		t.Fatalf("expected line 5, got %d", c.Lines[19])
	}
}

func TestChunkConstants(t *testing.T) {
	var c Chunk
	if idx := c.AddConstant(NumberValue(1.5)); idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}
	if idx := c.AddConstant(BoolValue(true)); idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
	if c.Constants[0].AsNumber() != 1.5 {
		t.Fatalf("constant 0 corrupted: %v", c.Constants[0])
	}
}

func TestChunkShortOperands(t *testing.T) {
	var c Chunk
	c.WriteOp(OpJump, 1)
	c.Write(0, 1)
	c.Write(0, 1)
	c.PatchShort(1, 0x1234)
	if c.Code[1] != 0x12 || c.Code[2] != 0x34 {
		t.Fatalf("expected big-endian bytes, got %x %x", c.Code[1], c.Code[2])
	}
	if got := c.ReadShort(1); got != 0x1234 {
		t.Fatalf("expected 0x1234, got %#x", got)
	}
}

func TestOpCodeNames(t *testing.T) {
	if OpNil.String() != "OP_NULL" {
		t.Fatalf("unexpected name %s", OpNil)
	}
	if OpReturn.String() != "OP_RETURN" {
		t.Fatalf("unexpected name %s", OpReturn)
	}
	if OpCode(200).valid() {
		t.Fatalf("opcode 200 must be invalid")
	}
}
