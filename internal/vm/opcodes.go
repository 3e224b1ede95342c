// Package vm implements the bytecode execution core for loxvm
package vm

import "fmt"

// Opcode represents a single VM instruction
type Opcode byte

const (
	OP_CONST      Opcode = iota // Push constant, 1-byte pool index
	OP_RETURN                   // Pop and emit top of stack, halt
	OP_CONST_LONG               // Push constant, 3-byte big-endian pool index
)

// Constant index limits for the two encodings
const (
	MaxShortConstant = 0xFF
	MaxLongConstant  = 0xFFFFFF
)

// OpcodeNames maps opcodes to their mnemonics
var OpcodeNames = map[Opcode]string{
	OP_CONST:      "OP_CONST",
	OP_RETURN:     "OP_RETURN",
	OP_CONST_LONG: "OP_CONST_LONG",
}

func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP_0x%02X", byte(op))
}

// OperandWidth returns the number of operand bytes following the opcode.
// The second result is false for bytes that are not defined opcodes.
func (op Opcode) OperandWidth() (int, bool) {
	switch op {
	case OP_RETURN:
		return 0, true
	case OP_CONST:
		return 1, true
	case OP_CONST_LONG:
		return 3, true
	default:
		return 0, false
	}
}
