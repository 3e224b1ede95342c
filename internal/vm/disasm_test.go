package vm

import (
	"bytes"
	"strings"
	"testing"
)

// demoChunk builds: OP_CONST_LONG 0 ('1.2'), OP_RETURN, all on line 1
func demoChunk() *Chunk {
	chunk := NewChunk("test")
	chunk.WriteOp(OP_CONST_LONG, 1)
	chunk.AddConstant(1.2, 1)
	chunk.WriteOp(OP_RETURN, 1)
	return chunk
}

func TestDisassemble_ConstLong(t *testing.T) {
	got := Disassemble(demoChunk(), "test")
	want := "== test ==\n" +
		"0000    1 OP_CONST_LONG       0 '1.2'\n" +
		"0004    | OP_RETURN\n"
	if got != want {
		t.Errorf("Disassemble mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestDisassemble_ShortConstAndLineChanges(t *testing.T) {
	chunk := NewChunk("lines")
	chunk.WriteConstant(2.5, 7)
	chunk.WriteOp(OP_RETURN, 8)

	got := Disassemble(chunk, "lines")
	want := "== lines ==\n" +
		"0000    7 OP_CONST            0 '2.5'\n" +
		"0002    8 OP_RETURN\n"
	if got != want {
		t.Errorf("Disassemble mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestDisassembleInstruction_Offsets(t *testing.T) {
	chunk := demoChunk()
	var buf bytes.Buffer

	next := DisassembleInstruction(&buf, chunk, 0)
	if next != 4 {
		t.Errorf("OP_CONST_LONG next offset = %d, want 4", next)
	}
	next = DisassembleInstruction(&buf, chunk, next)
	if next != 5 {
		t.Errorf("OP_RETURN next offset = %d, want 5", next)
	}
}

func TestDisassembleInstruction_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		code     []byte
		consts   []Value
		wantNext int
		want     string
	}{
		{
			name:     "unknown opcode keeps scanning",
			code:     []byte{0xEE, byte(OP_RETURN)},
			wantNext: 1,
			want:     "Unknown opcode 238",
		},
		{
			name:     "truncated long operand",
			code:     []byte{byte(OP_CONST_LONG), 0, 0},
			wantNext: 3,
			want:     "<truncated>",
		},
		{
			name:     "truncated short operand",
			code:     []byte{byte(OP_CONST)},
			wantNext: 1,
			want:     "<truncated>",
		},
		{
			name:     "index past pool",
			code:     []byte{byte(OP_CONST_LONG), 0, 0, 5},
			consts:   []Value{1},
			wantNext: 4,
			want:     "5 '<invalid>'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := &Chunk{
				Code:      tt.code,
				Lines:     make([]int, len(tt.code)),
				Constants: ConstantPool{Values: tt.consts},
			}
			var buf bytes.Buffer
			next := DisassembleInstruction(&buf, chunk, 0)
			if next != tt.wantNext {
				t.Errorf("next offset = %d, want %d", next, tt.wantNext)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output %q should contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestDisassembleInstruction_OffsetOutOfRange(t *testing.T) {
	chunk := demoChunk()
	for _, offset := range []int{-1, chunk.Len(), chunk.Len() + 10} {
		var buf bytes.Buffer
		next := DisassembleInstruction(&buf, chunk, offset)
		if next != chunk.Len() {
			t.Errorf("offset %d: next = %d, want %d", offset, next, chunk.Len())
		}
		if !strings.Contains(buf.String(), "out of range") {
			t.Errorf("offset %d: output %q should report the bad offset", offset, buf.String())
		}
	}
}

func TestDisassemble_DoesNotMutate(t *testing.T) {
	chunk := demoChunk()
	code := append([]byte(nil), chunk.Code...)
	lines := append([]int(nil), chunk.Lines...)

	Disassemble(chunk, "test")

	if !bytes.Equal(chunk.Code, code) {
		t.Errorf("Code changed: %v -> %v", code, chunk.Code)
	}
	for i := range lines {
		if chunk.Lines[i] != lines[i] {
			t.Errorf("Lines[%d] changed: %d -> %d", i, lines[i], chunk.Lines[i])
		}
	}
	if chunk.Constants.Len() != 1 {
		t.Errorf("pool size changed to %d", chunk.Constants.Len())
	}
}
