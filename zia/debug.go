package zia

import (
	"fmt"
	"io"
)

// DisassembleChunk writes a listing of every instruction in chunk.
func DisassembleChunk(w io.Writer, chunk *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		offset = DisassembleInstruction(w, chunk, offset)
	}
}

// DisassembleFunction lists fn and then every function found in its
// constant pool, depth first.
func DisassembleFunction(w io.Writer, fn *FunctionObj) {
	DisassembleChunk(w, &fn.Chunk, fn.DisplayName())
	for _, k := range fn.Chunk.Constants {
		if k.IsFunction() {
			fmt.Fprintln(w)
			DisassembleFunction(w, k.AsFunction())
		}
	}
}

// InstructionLength returns the size in bytes of the instruction at
// offset, operands included, or an error if it is malformed or truncated.
func InstructionLength(chunk *Chunk, offset int) (int, error) {
	if offset < 0 || offset >= len(chunk.Code) {
		return 0, fmt.Errorf("offset %d outside code of length %d", offset, len(chunk.Code))
	}
	op := OpCode(chunk.Code[offset])
	if !op.valid() {
		return 0, fmt.Errorf("unknown opcode %d at offset %d", op, offset)
	}
	length := 1 + operandWidth[op]
	if op == OpClosure {
		if offset+1 >= len(chunk.Code) {
			return 0, fmt.Errorf("truncated %s at offset %d", op, offset)
		}
		idx := int(chunk.Code[offset+1])
		if idx >= len(chunk.Constants) || !chunk.Constants[idx].IsFunction() {
			return 0, fmt.Errorf("%s at offset %d does not reference a function", op, offset)
		}
		length += 2 * chunk.Constants[idx].AsFunction().UpvalueCount
	}
	if offset+length > len(chunk.Code) {
		return 0, fmt.Errorf("truncated %s at offset %d", op, offset)
	}
	return length, nil
}

// DisassembleInstruction writes one instruction and returns the offset of
// the next one.
func DisassembleInstruction(w io.Writer, chunk *Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", chunk.Lines[offset])
	}

	op := OpCode(chunk.Code[offset])
	length, err := InstructionLength(chunk, offset)
	if err != nil {
		fmt.Fprintf(w, "%s\n", err)
		return offset + 1
	}

	switch op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal:
		idx := chunk.Code[offset+1]
		fmt.Fprintf(w, "%-16s %4d '%s'\n", op, idx, constantText(chunk, int(idx)))
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall, OpPrint:
		fmt.Fprintf(w, "%-16s %4d\n", op, chunk.Code[offset+1])
	case OpJump, OpJumpIfFalse:
		jump := int(chunk.ReadShort(offset + 1))
		fmt.Fprintf(w, "%-16s %4d -> %d\n", op, offset, offset+3+jump)
	case OpLoop:
		jump := int(chunk.ReadShort(offset + 1))
		fmt.Fprintf(w, "%-16s %4d -> %d\n", op, offset, offset+3-jump)
	case OpClosure:
		idx := chunk.Code[offset+1]
		fmt.Fprintf(w, "%-16s %4d %s\n", op, idx, chunk.Constants[idx])
		fn := chunk.Constants[idx].AsFunction()
		pos := offset + 2
		for range fn.UpvalueCount {
			kind := "upvalue"
			if chunk.Code[pos] == 1 {
				kind = "local"
			}
			fmt.Fprintf(w, "%04d    |                     %s %d\n", pos, kind, chunk.Code[pos+1])
			pos += 2
		}
	default:
		fmt.Fprintf(w, "%s\n", op)
	}
	return offset + length
}

func constantText(chunk *Chunk, idx int) string {
	if idx >= len(chunk.Constants) {
		return "?"
	}
	return chunk.Constants[idx].String()
}

// VerifyFunction checks that fn and every nested function decode into
// whole instructions whose operands stay within their pools, and that
// every path through the code keeps the stack above the frame base.
func VerifyFunction(fn *FunctionObj) error {
	chunk := &fn.Chunk
	if len(chunk.Lines) != len(chunk.Code) {
		return fmt.Errorf("%s: %d line entries for %d code bytes", fn.DisplayName(), len(chunk.Lines), len(chunk.Code))
	}
	if len(chunk.Constants) > MaxConstants {
		return fmt.Errorf("%s: %d constants exceed the limit of %d", fn.DisplayName(), len(chunk.Constants), MaxConstants)
	}

	starts := make([]bool, len(chunk.Code))
	last := -1
	var jumps []int
	for offset := 0; offset < len(chunk.Code); {
		length, err := InstructionLength(chunk, offset)
		if err != nil {
			return fmt.Errorf("%s: %w", fn.DisplayName(), err)
		}
		starts[offset] = true
		last = offset
		op := OpCode(chunk.Code[offset])
		switch op {
		case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal:
			idx := int(chunk.Code[offset+1])
			if idx >= len(chunk.Constants) {
				return fmt.Errorf("%s: constant %d out of range at offset %d", fn.DisplayName(), idx, offset)
			}
			if op != OpConstant && !chunk.Constants[idx].IsString() {
				return fmt.Errorf("%s: %s at offset %d needs a name constant", fn.DisplayName(), op, offset)
			}
		case OpGetUpvalue, OpSetUpvalue:
			if int(chunk.Code[offset+1]) >= fn.UpvalueCount {
				return fmt.Errorf("%s: upvalue %d out of range at offset %d", fn.DisplayName(), chunk.Code[offset+1], offset)
			}
		case OpClosure:
			for pos := offset + 2; pos < offset+length; pos += 2 {
				if chunk.Code[pos] == 0 && int(chunk.Code[pos+1]) >= fn.UpvalueCount {
					return fmt.Errorf("%s: %s at offset %d captures upvalue %d out of range", fn.DisplayName(), op, offset, chunk.Code[pos+1])
				}
			}
		case OpJump, OpJumpIfFalse, OpLoop:
			jumps = append(jumps, offset)
		}
		offset += length
	}
	if last == -1 || OpCode(chunk.Code[last]) != OpReturn {
		return fmt.Errorf("%s: code does not end with %s", fn.DisplayName(), OpReturn)
	}
	for _, offset := range jumps {
		target := jumpTarget(chunk, offset)
		if target < 0 || target >= len(chunk.Code) || !starts[target] {
			return fmt.Errorf("%s: %s at offset %d lands on %d, outside any instruction", fn.DisplayName(), OpCode(chunk.Code[offset]), offset, target)
		}
	}
	if err := verifyStack(fn); err != nil {
		return fmt.Errorf("%s: %w", fn.DisplayName(), err)
	}

	for _, k := range chunk.Constants {
		if k.IsFunction() {
			if err := VerifyFunction(k.AsFunction()); err != nil {
				return err
			}
		}
	}
	return nil
}

func jumpTarget(chunk *Chunk, offset int) int {
	distance := int(chunk.ReadShort(offset + 1))
	if OpCode(chunk.Code[offset]) == OpLoop {
		return offset + 3 - distance
	}
	return offset + 3 + distance
}

// stackEffect returns how many values the instruction at offset takes off
// the stack and how many it leaves.
func stackEffect(chunk *Chunk, offset int) (pops, pushes int) {
	switch OpCode(chunk.Code[offset]) {
	case OpConstant, OpNil, OpTrue, OpFalse, OpGetLocal, OpGetGlobal, OpGetUpvalue, OpClosure:
		return 0, 1
	case OpPop, OpDefineGlobal, OpCloseUpvalue, OpReturn:
		return 1, 0
	case OpSetLocal, OpSetGlobal, OpSetUpvalue, OpNot, OpNegate, OpJumpIfFalse:
		return 1, 1
	case OpEqual, OpNotEqual, OpGreater, OpGreaterEqual, OpLess, OpLessEqual,
		OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo:
		return 2, 1
	case OpPrint:
		return int(chunk.Code[offset+1]), 0
	case OpCall:
		return int(chunk.Code[offset+1]) + 1, 1
	}
	return 0, 0
}

// verifyStack follows every reachable path through fn's code and tracks
// the stack height above the frame base. Slot zero holds the callee and
// is never popped; each instruction must see the same height on every
// path that reaches it.
func verifyStack(fn *FunctionObj) error {
	chunk := &fn.Chunk
	heights := make([]int, len(chunk.Code))
	for i := range heights {
		heights[i] = -1
	}
	var work []int
	reach := func(offset, height int) error {
		if offset < 0 || offset >= len(heights) {
			return fmt.Errorf("control leaves the code at offset %d", offset)
		}
		switch heights[offset] {
		case -1:
			heights[offset] = height
			work = append(work, offset)
		case height:
		default:
			return fmt.Errorf("stack height %d at offset %d, %d on another path", height, offset, heights[offset])
		}
		return nil
	}
	if err := reach(0, 1+fn.Arity); err != nil {
		return err
	}

	for len(work) > 0 {
		offset := work[len(work)-1]
		work = work[:len(work)-1]
		height := heights[offset]
		op := OpCode(chunk.Code[offset])
		length, _ := InstructionLength(chunk, offset)

		pops, pushes := stackEffect(chunk, offset)
		if height-pops < 1 {
			return fmt.Errorf("%s at offset %d pops %d values with %d on the frame", op, offset, pops, height-1)
		}
		after := height - pops + pushes

		switch op {
		case OpGetLocal, OpSetLocal:
			if slot := int(chunk.Code[offset+1]); slot >= height {
				return fmt.Errorf("%s at offset %d reads slot %d of %d", op, offset, slot, height)
			}
		case OpClosure:
			// a local function may capture its own slot, filled by this push
			for pos := offset + 2; pos < offset+length; pos += 2 {
				if slot := int(chunk.Code[pos+1]); chunk.Code[pos] == 1 && slot >= after {
					return fmt.Errorf("%s at offset %d captures slot %d of %d", op, offset, slot, after)
				}
			}
		}

		switch op {
		case OpReturn:
			continue
		case OpJump, OpLoop:
			if err := reach(jumpTarget(chunk, offset), after); err != nil {
				return err
			}
			continue
		case OpJumpIfFalse:
			if err := reach(jumpTarget(chunk, offset), after); err != nil {
				return err
			}
		}
		if err := reach(offset+length, after); err != nil {
			return err
		}
	}
	return nil
}
