package vm

import (
	"io"
	"os"
	"strings"

	"github.com/funvibe/loxvm/internal/config"
	"github.com/mattn/go-isatty"
)

const (
	ansiRed   = "\033[0;31m"
	ansiReset = "\033[0m"
)

// traceStep writes the operand stack bottom to top, then the instruction
// about to execute. Only the stack line is colored. It only reads VM state.
func (vm *VM) traceStep() {
	var sb strings.Builder
	if vm.color {
		sb.WriteString(ansiRed)
	}
	sb.WriteString("          ")
	for _, v := range vm.stack {
		sb.WriteString("[ ")
		sb.WriteString(v.String())
		sb.WriteString(" ]")
	}
	sb.WriteString("\n")
	if vm.color {
		sb.WriteString(ansiReset)
	}
	if vm.ip < len(vm.chunk.Code) {
		DisassembleInstruction(&sb, vm.chunk, vm.ip)
	}
	io.WriteString(vm.traceOut, sb.String())
}

// colorEnabled resolves a color mode against the trace writer
func colorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}

	if _, ok := os.LookupEnv(config.NoColorEnvVar); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}
