package vm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/funvibe/loxvm/internal/config"
)

// newTestVM returns an initialized VM writing results to out
func newTestVM(t *testing.T, out *bytes.Buffer) *VM {
	t.Helper()
	machine := New(Options{Out: out, Color: config.ColorNever})
	machine.Init()
	t.Cleanup(machine.Free)
	return machine
}

func TestVM_ConstLongThenReturn(t *testing.T) {
	var out bytes.Buffer
	machine := newTestVM(t, &out)

	res, err := machine.Interpret(demoChunk())
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if res != INTERPRET_OK {
		t.Errorf("result = %s, want OK", res)
	}
	if got := out.String(); got != "1.2\n" {
		t.Errorf("output = %q, want %q", got, "1.2\n")
	}
	v, ok := machine.Result()
	if !ok || v != 1.2 {
		t.Errorf("Result() = %v, %v; want 1.2, true", v, ok)
	}
	if len(machine.Stack()) != 0 {
		t.Errorf("stack not empty after return: %v", machine.Stack())
	}
	if machine.IP() != 5 {
		t.Errorf("IP() = %d, want 5", machine.IP())
	}
}

func TestVM_ShortConst(t *testing.T) {
	var out bytes.Buffer
	machine := newTestVM(t, &out)

	chunk := NewChunk("short")
	chunk.WriteConstant(3, 1)
	chunk.WriteConstant(4.5, 1)
	chunk.WriteOp(OP_RETURN, 2)

	res, err := machine.Interpret(chunk)
	if err != nil || res != INTERPRET_OK {
		t.Fatalf("Interpret = %s, %v", res, err)
	}
	if got := out.String(); got != "4.5\n" {
		t.Errorf("output = %q, want %q", got, "4.5\n")
	}
	// The first constant stays below the returned one
	stack := machine.Stack()
	if len(stack) != 1 || stack[0] != 3 {
		t.Errorf("stack = %v, want [3]", stack)
	}
}

func TestVM_LongIndexPastShortRange(t *testing.T) {
	var out bytes.Buffer
	machine := newTestVM(t, &out)

	chunk := NewChunk("wide")
	for i := 0; i < 70000; i++ {
		chunk.Constants.Add(Value(i))
	}
	chunk.WriteOp(OP_CONST_LONG, 1)
	idx := chunk.AddConstant(99.5, 1)
	chunk.WriteOp(OP_RETURN, 1)

	if idx != 70000 {
		t.Fatalf("index = %d, want 70000", idx)
	}
	if _, err := machine.Interpret(chunk); err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if got := out.String(); got != "99.5\n" {
		t.Errorf("output = %q, want %q", got, "99.5\n")
	}
}

func TestVM_InterpretAgainAfterOK(t *testing.T) {
	var out bytes.Buffer
	machine := newTestVM(t, &out)

	for i := 0; i < 2; i++ {
		if _, err := machine.Interpret(demoChunk()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if got := out.String(); got != "1.2\n1.2\n" {
		t.Errorf("output = %q", got)
	}
}

func TestVM_IndependentInstances(t *testing.T) {
	var outA, outB bytes.Buffer
	a := newTestVM(t, &outA)
	b := newTestVM(t, &outB)

	chunkB := NewChunk("b")
	chunkB.WriteConstant(7, 1)
	chunkB.WriteOp(OP_RETURN, 1)

	if _, err := a.Interpret(demoChunk()); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Interpret(chunkB); err != nil {
		t.Fatal(err)
	}
	if outA.String() != "1.2\n" || outB.String() != "7\n" {
		t.Errorf("outputs = %q, %q", outA.String(), outB.String())
	}
}

func TestVM_Trace(t *testing.T) {
	var out, trace bytes.Buffer
	machine := New(Options{Out: &out, Trace: true, TraceOut: &trace, Color: config.ColorAuto})
	machine.Init()

	if _, err := machine.Interpret(demoChunk()); err != nil {
		t.Fatalf("Interpret: %v", err)
	}

	want := "          \n" +
		"0000    1 OP_CONST_LONG       0 '1.2'\n" +
		"          [ 1.2 ]\n" +
		"0004    | OP_RETURN\n"
	if got := trace.String(); got != want {
		t.Errorf("trace mismatch\ngot:\n%q\nwant:\n%q", got, want)
	}
	// Tracing must not change what the program emits
	if out.String() != "1.2\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestVM_TraceColorAlways(t *testing.T) {
	var out, trace bytes.Buffer
	machine := New(Options{Out: &out, Trace: true, TraceOut: &trace, Color: config.ColorAlways})
	machine.Init()

	if _, err := machine.Interpret(demoChunk()); err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	want := ansiRed + "          \n" + ansiReset +
		"0000    1 OP_CONST_LONG       0 '1.2'\n" +
		ansiRed + "          [ 1.2 ]\n" + ansiReset +
		"0004    | OP_RETURN\n"
	if got := trace.String(); got != want {
		t.Errorf("trace =\n%q\nwant\n%q", got, want)
	}
	if strings.Count(trace.String(), ansiRed) != 2 {
		t.Errorf("only stack lines should be colored, got %q", trace.String())
	}
}

func TestVM_Cancellation(t *testing.T) {
	var out bytes.Buffer
	machine := New(Options{Out: &out, MaxStack: 10 * config.CancelCheckInterval})
	machine.Init()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	machine.SetContext(ctx)

	chunk := NewChunk("long")
	for i := 0; i < 2*config.CancelCheckInterval; i++ {
		chunk.WriteConstant(1, 1)
	}
	chunk.WriteOp(OP_RETURN, 1)

	res, err := machine.Interpret(chunk)
	if res != INTERPRET_RUNTIME_ERROR {
		t.Errorf("result = %s, want RUNTIME_ERROR", res)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Trace = true
	cfg.MaxStack = 12

	opts := OptionsFromConfig(cfg)
	if !opts.Trace || opts.MaxStack != 12 || opts.Color != config.ColorAuto {
		t.Errorf("OptionsFromConfig = %+v", opts)
	}
}

func TestInterpretResult_String(t *testing.T) {
	tests := map[InterpretResult]string{
		INTERPRET_OK:            "OK",
		INTERPRET_COMPILE_ERROR: "COMPILE_ERROR",
		INTERPRET_RUNTIME_ERROR: "RUNTIME_ERROR",
	}
	for r, want := range tests {
		if got := r.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(r), got, want)
		}
	}
}
