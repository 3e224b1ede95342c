package vm

import (
	"errors"
	"fmt"
)

var ErrBufferExhaustion = errors.New("instruction pointer ran past end of bytecode")
var ErrUnknownOpcode = errors.New("unknown opcode")
var ErrMalformedIndex = errors.New("constant index out of range")
var ErrStackUnderflow = errors.New("stack underflow")
var ErrStackOverflow = errors.New("stack overflow")
var ErrNilChunk = errors.New("nil chunk")
var ErrNotReset = errors.New("vm halted on a runtime error; call Init before interpreting again")
var ErrConstantPoolFull = errors.New("constant pool exceeds 24-bit index range")

// RuntimeError describes a fault raised by the run loop
type RuntimeError struct {
	// Kind is one of the sentinel errors above
	Kind   error
	Op     Opcode
	Offset int // offset of the faulting instruction
	Line   int
	Detail string
}

func (e *RuntimeError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Line > 0 {
		return fmt.Sprintf("[line %d] at offset %d: %s", e.Line, e.Offset, msg)
	}
	return fmt.Sprintf("at offset %d: %s", e.Offset, msg)
}

// Unwrap exposes the sentinel so callers can use errors.Is
func (e *RuntimeError) Unwrap() error {
	return e.Kind
}
