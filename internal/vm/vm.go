package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/funvibe/loxvm/internal/config"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("loxvm.vm")

// InterpretResult is the terminal state of a run
type InterpretResult int

const (
	INTERPRET_OK InterpretResult = iota
	INTERPRET_COMPILE_ERROR
	INTERPRET_RUNTIME_ERROR
)

func (r InterpretResult) String() string {
	switch r {
	case INTERPRET_OK:
		return "OK"
	case INTERPRET_COMPILE_ERROR:
		return "COMPILE_ERROR"
	case INTERPRET_RUNTIME_ERROR:
		return "RUNTIME_ERROR"
	default:
		return fmt.Sprintf("InterpretResult(%d)", int(r))
	}
}

// Options configure a VM at construction
type Options struct {
	// Trace dumps the stack and the next instruction before every step
	Trace bool

	// TraceOut receives trace output (defaults to os.Stderr)
	TraceOut io.Writer

	// Out receives the value emitted by OP_RETURN (defaults to os.Stdout)
	Out io.Writer

	// Color is config.ColorAuto, ColorAlways or ColorNever
	Color string

	// MaxStack caps the operand stack depth (defaults to config.DefaultMaxStack)
	MaxStack int
}

// OptionsFromConfig builds VM options from loaded settings
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Trace:    cfg.Trace,
		Color:    cfg.Color,
		MaxStack: cfg.MaxStack,
	}
}

// VM is the virtual machine that executes a single chunk.
// A VM is not safe for concurrent use; create one per goroutine.
type VM struct {
	chunk *Chunk // borrowed, must outlive Interpret
	ip    int    // offset of the next byte to fetch

	stack []Value

	out      io.Writer
	traceOut io.Writer
	trace    bool
	color    bool
	maxStack int

	result    Value
	hasResult bool
	faulted   bool
	steps     int

	// Context for cancellation
	ctx context.Context
}

// New creates a new VM instance
func New(opts Options) *VM {
	vm := &VM{
		stack:    make([]Value, 0, config.InitialStackSize),
		out:      opts.Out,
		traceOut: opts.TraceOut,
		trace:    opts.Trace,
		maxStack: opts.MaxStack,
	}
	if vm.out == nil {
		vm.out = os.Stdout
	}
	if vm.traceOut == nil {
		vm.traceOut = os.Stderr
	}
	if vm.maxStack <= 0 {
		vm.maxStack = config.DefaultMaxStack
	}
	vm.color = colorEnabled(opts.Color, vm.traceOut)
	return vm
}

// Init resets the VM to a fresh state: empty stack, no bound chunk
func (vm *VM) Init() {
	if vm.stack == nil {
		vm.stack = make([]Value, 0, config.InitialStackSize)
	}
	vm.stack = vm.stack[:0]
	vm.chunk = nil
	vm.ip = 0
	vm.result = 0
	vm.hasResult = false
	vm.faulted = false
	vm.steps = 0
}

// Free releases the operand stack. Init makes the VM usable again.
func (vm *VM) Free() {
	vm.stack = nil
	vm.chunk = nil
}

// SetContext sets the context for cancellation
func (vm *VM) SetContext(ctx context.Context) {
	vm.ctx = ctx
}

// SetOutput sets the writer that receives returned values
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// Interpret binds chunk and runs it to a terminal state
func (vm *VM) Interpret(chunk *Chunk) (InterpretResult, error) {
	if chunk == nil {
		return INTERPRET_RUNTIME_ERROR, ErrNilChunk
	}
	if vm.faulted {
		return INTERPRET_RUNTIME_ERROR, ErrNotReset
	}
	vm.chunk = chunk
	vm.ip = 0
	vm.hasResult = false
	vm.steps = 0

	log.Debugf("interpret %q: %d bytes, %d constants", chunk.Name, len(chunk.Code), chunk.Constants.Len())

	res, err := vm.run()
	if err != nil {
		vm.faulted = true
		log.Infof("interpret %q: %s", chunk.Name, err)
		return res, err
	}
	log.Debugf("interpret %q: halted after %d steps, result %s", chunk.Name, vm.steps, vm.result)
	return res, nil
}

// run is the fetch-decode-execute loop
func (vm *VM) run() (InterpretResult, error) {
	opsSinceCheck := 0

	for {
		// Check for cancellation periodically
		opsSinceCheck++
		if opsSinceCheck >= config.CancelCheckInterval {
			opsSinceCheck = 0
			if vm.ctx != nil {
				select {
				case <-vm.ctx.Done():
					return INTERPRET_RUNTIME_ERROR, fmt.Errorf("interrupted at offset %d: %w", vm.ip, vm.ctx.Err())
				default:
				}
			}
		}

		if vm.trace {
			vm.traceStep()
		}

		done, err := vm.step()
		if err != nil {
			return INTERPRET_RUNTIME_ERROR, err
		}
		if done {
			return INTERPRET_OK, nil
		}
	}
}

// step executes one instruction. done is true once OP_RETURN has run.
func (vm *VM) step() (done bool, err error) {
	start := vm.ip

	// Recover from bounds-check panics raised by the read helpers
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && isFault(e) {
				err = vm.fault(start, e, "")
				done = false
				return
			}
			panic(r) // Re-panic other errors
		}
	}()

	if vm.ip >= len(vm.chunk.Code) {
		return false, vm.fault(start, ErrBufferExhaustion, "no OP_RETURN before end of code")
	}

	op := Opcode(vm.readByte())
	vm.steps++

	switch op {
	case OP_CONST:
		vm.push(vm.readConstant(int(vm.readByte())))
		return false, nil

	case OP_CONST_LONG:
		vm.push(vm.readConstant(vm.readLongIndex()))
		return false, nil

	case OP_RETURN:
		result := vm.pop()
		fmt.Fprintln(vm.out, result.String())
		vm.result = result
		vm.hasResult = true
		return true, nil

	default:
		return false, vm.fault(start, ErrUnknownOpcode, fmt.Sprintf("byte %d", byte(op)))
	}
}

func isFault(err error) bool {
	return errors.Is(err, ErrBufferExhaustion) ||
		errors.Is(err, ErrMalformedIndex) ||
		errors.Is(err, ErrStackUnderflow) ||
		errors.Is(err, ErrStackOverflow)
}

func (vm *VM) fault(offset int, kind error, detail string) error {
	e := &RuntimeError{
		Kind:   kind,
		Offset: offset,
		Line:   vm.lineForOffset(offset),
		Detail: detail,
	}
	if offset < len(vm.chunk.Code) {
		e.Op = Opcode(vm.chunk.Code[offset])
		if e.Detail == "" {
			e.Detail = e.Op.String()
		}
	}
	return e
}

// lineForOffset clamps to the last line so faults at end of code still
// point at the source that produced the final instruction
func (vm *VM) lineForOffset(offset int) int {
	if offset >= len(vm.chunk.Lines) {
		offset = len(vm.chunk.Lines) - 1
	}
	return lineAt(vm.chunk, offset)
}

// Result returns the value emitted by the last OP_RETURN
func (vm *VM) Result() (Value, bool) {
	return vm.result, vm.hasResult
}

// Stack returns a copy of the operand stack, bottom to top
func (vm *VM) Stack() []Value {
	out := make([]Value, len(vm.stack))
	copy(out, vm.stack)
	return out
}

// IP returns the offset of the next byte to fetch
func (vm *VM) IP() int {
	return vm.ip
}

// Stack operations
func (vm *VM) push(v Value) {
	if len(vm.stack) >= vm.maxStack {
		panic(ErrStackOverflow)
	}
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	if len(vm.stack) == 0 {
		panic(ErrStackUnderflow)
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

// Read helpers
func (vm *VM) readByte() byte {
	if vm.ip >= len(vm.chunk.Code) {
		panic(ErrBufferExhaustion)
	}
	b := vm.chunk.Code[vm.ip]
	vm.ip++
	return b
}

func (vm *VM) readLongIndex() int {
	var b [3]byte
	b[0] = vm.readByte()
	b[1] = vm.readByte()
	b[2] = vm.readByte()
	return DecodeLongIndex(b)
}

func (vm *VM) readConstant(idx int) Value {
	v, ok := vm.chunk.Constants.At(idx)
	if !ok {
		panic(ErrMalformedIndex)
	}
	return v
}
