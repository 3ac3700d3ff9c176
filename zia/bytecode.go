package zia

import "fmt"

// OpCode is the first byte of every instruction.
type OpCode byte

const (
	OpConstant OpCode = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal
	OpSetLocal
	OpGetGlobal
	OpDefineGlobal
	OpSetGlobal
	OpGetUpvalue
	OpSetUpvalue
	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpNot
	OpNegate
	OpPrint
	OpJump
	OpJumpIfFalse
	OpLoop
	OpCall
	OpClosure
	OpCloseUpvalue
	OpReturn
)

func (o OpCode) String() string {
	names := map[OpCode]string{
		OpConstant:     "OP_CONSTANT",
		OpNil:          "OP_NULL",
		OpTrue:         "OP_TRUE",
		OpFalse:        "OP_FALSE",
		OpPop:          "OP_POP",
		OpGetLocal:     "OP_GET_LOCAL",
		OpSetLocal:     "OP_SET_LOCAL",
		OpGetGlobal:    "OP_GET_GLOBAL",
		OpDefineGlobal: "OP_DEFINE_GLOBAL",
		OpSetGlobal:    "OP_SET_GLOBAL",
		OpGetUpvalue:   "OP_GET_UPVALUE",
		OpSetUpvalue:   "OP_SET_UPVALUE",
		OpEqual:        "OP_EQUAL",
		OpNotEqual:     "OP_NOT_EQUAL",
		OpGreater:      "OP_GREATER",
		OpGreaterEqual: "OP_GREATER_EQUAL",
		OpLess:         "OP_LESS",
		OpLessEqual:    "OP_LESS_EQUAL",
		OpAdd:          "OP_ADD",
		OpSubtract:     "OP_SUBTRACT",
		OpMultiply:     "OP_MULTIPLY",
		OpDivide:       "OP_DIVIDE",
		OpModulo:       "OP_MODULO",
		OpNot:          "OP_NOT",
		OpNegate:       "OP_NEGATE",
		OpPrint:        "OP_PRINT",
		OpJump:         "OP_JUMP",
		OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
		OpLoop:         "OP_LOOP",
		OpCall:         "OP_CALL",
		OpClosure:      "OP_CLOSURE",
		OpCloseUpvalue: "OP_CLOSE_UPVALUE",
		OpReturn:       "OP_RETURN",
	}
	if name, ok := names[o]; ok {
		return name
	}
	return fmt.Sprintf("OP_UNKNOWN_%d", o)
}

// operandWidth is the fixed operand size following each opcode. OpClosure
// additionally carries two bytes per upvalue of the function it wraps.
var operandWidth = [...]int{
	OpConstant:     1,
	OpNil:          0,
	OpTrue:         0,
	OpFalse:        0,
	OpPop:          0,
	OpGetLocal:     1,
	OpSetLocal:     1,
	OpGetGlobal:    1,
	OpDefineGlobal: 1,
	OpSetGlobal:    1,
	OpGetUpvalue:   1,
	OpSetUpvalue:   1,
	OpEqual:        0,
	OpNotEqual:     0,
	OpGreater:      0,
	OpGreaterEqual: 0,
	OpLess:         0,
	OpLessEqual:    0,
	OpAdd:          0,
	OpSubtract:     0,
	OpMultiply:     0,
	OpDivide:       0,
	OpModulo:       0,
	OpNot:          0,
	OpNegate:       0,
	OpPrint:        1,
	OpJump:         2,
	OpJumpIfFalse:  2,
	OpLoop:         2,
	OpCall:         1,
	OpClosure:      1,
	OpCloseUpvalue: 0,
	OpReturn:       0,
}

func (o OpCode) valid() bool {
	return int(o) < len(operandWidth)
}
