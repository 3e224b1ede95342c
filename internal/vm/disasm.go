package vm

import (
	"fmt"
	"io"
	"strings"
)

// Disassemble returns a human-readable representation of the bytecode
func Disassemble(chunk *Chunk, name string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s ==\n", name))

	offset := 0
	for offset < len(chunk.Code) {
		offset = DisassembleInstruction(&sb, chunk, offset)
	}

	return sb.String()
}

// DisassembleInstruction writes a single instruction and returns the offset
// of the next one. Malformed bytes are reported inline, never fatal.
func DisassembleInstruction(w io.Writer, chunk *Chunk, offset int) int {
	if offset < 0 || offset >= len(chunk.Code) {
		fmt.Fprintf(w, "%04d <offset out of range>\n", offset)
		return len(chunk.Code)
	}

	fmt.Fprintf(w, "%04d ", offset)

	// Print line number
	if offset > 0 && lineAt(chunk, offset) == lineAt(chunk, offset-1) {
		io.WriteString(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", lineAt(chunk, offset))
	}

	op := Opcode(chunk.Code[offset])

	switch op {
	case OP_RETURN:
		return simpleInstruction(w, op.String(), offset)
	case OP_CONST:
		return constantInstruction(w, op.String(), chunk, offset)
	case OP_CONST_LONG:
		return constantLongInstruction(w, op.String(), chunk, offset)
	default:
		fmt.Fprintf(w, "Unknown opcode %d\n", byte(op))
		return offset + 1
	}
}

func simpleInstruction(w io.Writer, name string, offset int) int {
	fmt.Fprintf(w, "%s\n", name)
	return offset + 1
}

func constantInstruction(w io.Writer, name string, chunk *Chunk, offset int) int {
	if offset+1 >= len(chunk.Code) {
		return truncatedInstruction(w, name, chunk)
	}
	idx := int(chunk.Code[offset+1])
	fmt.Fprintf(w, "%-16s %4d '%s'\n", name, idx, formatConstRef(chunk, idx))
	return offset + 2
}

func constantLongInstruction(w io.Writer, name string, chunk *Chunk, offset int) int {
	if offset+3 >= len(chunk.Code) {
		return truncatedInstruction(w, name, chunk)
	}
	idx := DecodeLongIndex([3]byte{chunk.Code[offset+1], chunk.Code[offset+2], chunk.Code[offset+3]})
	fmt.Fprintf(w, "%-16s %4d '%s'\n", name, idx, formatConstRef(chunk, idx))
	return offset + 4
}

// truncatedInstruction reports an operand that runs past the end of the
// code and ends the listing there.
func truncatedInstruction(w io.Writer, name string, chunk *Chunk) int {
	fmt.Fprintf(w, "%-16s <truncated>\n", name)
	return len(chunk.Code)
}

func formatConstRef(chunk *Chunk, idx int) string {
	v, ok := chunk.Constants.At(idx)
	if !ok {
		return "<invalid>"
	}
	return v.String()
}

// lineAt tolerates chunks built by hand with a short line table
func lineAt(chunk *Chunk, offset int) int {
	if offset < 0 || offset >= len(chunk.Lines) {
		return 0
	}
	return chunk.Lines[offset]
}
