package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/funvibe/loxvm/internal/config"
	"github.com/funvibe/loxvm/internal/vm"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// Version is set at build time using: -ldflags "-X github.com/funvibe/loxvm/pkg/cli.Version=..."
var Version = "dev"

var log = commonlog.GetLogger("loxvm.cli")

// session carries the parsed command line through the handlers
type session struct {
	args   []string // positional arguments, flags removed
	stdout io.Writer
	stderr io.Writer

	trace      bool
	configPath string
	logPath    string
	verbosity  int

	cfg      *config.Config
	exitCode int
}

// Run executes the CLI with os.Args and exits the process.
func Run() {
	// Catch panics and show user-friendly error
	defer func() {
		if r := recover(); r != nil {
			// Print stack trace for debugging
			if os.Getenv("DEBUG") == "1" {
				panic(r) // Re-panic to get stack trace
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	os.Exit(Execute(os.Args[1:], os.Stdout, os.Stderr))
}

// Execute runs one CLI invocation and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	s := &session{stdout: stdout, stderr: stderr}
	if err := s.parseFlags(args); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return config.ExitUsage
	}

	if err := s.loadConfig(); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return config.ExitUsage
	}
	commonlog.Initialize(s.cfg.Verbosity+s.verbosity, s.logPath)

	// Handle help first
	if s.handleHelp() {
		return s.exitCode
	}
	if s.handleVersion() {
		return s.exitCode
	}
	if s.handleDemo() {
		return s.exitCode
	}
	if s.handleBuildDemo() {
		return s.exitCode
	}
	if s.handleDisasm() {
		return s.exitCode
	}
	if s.handleRun() {
		return s.exitCode
	}

	fmt.Fprintf(stderr, "Error: unknown command %q\n\n", s.args[0])
	fmt.Fprint(stderr, usage)
	return config.ExitUsage
}

func (s *session) parseFlags(args []string) error {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-trace", "--trace":
			s.trace = true
		case "-v", "-verbose", "--verbose":
			s.verbosity++
		case "-config", "--config", "-log", "--log":
			if i+1 >= len(args) {
				return fmt.Errorf("%s requires a path", arg)
			}
			i++
			if arg == "-log" || arg == "--log" {
				s.logPath = args[i]
			} else {
				s.configPath = args[i]
			}
		default:
			s.args = append(s.args, arg)
		}
	}
	return nil
}

// loadConfig reads --config, or loxvm.yaml from the working directory
// upwards, falling back to defaults. Environment and flags win over the file.
func (s *session) loadConfig() error {
	path := s.configPath
	if path == "" {
		found, err := config.Find(".")
		if err != nil {
			return err
		}
		path = found
	}

	if path == "" {
		s.cfg = config.Default()
	} else {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		s.cfg = cfg
	}

	s.cfg.ApplyEnv()
	if s.trace {
		s.cfg.Trace = true
	}
	if s.logPath == "" {
		s.logPath = s.cfg.LogFile
	}
	return nil
}

func (s *session) command() string {
	if len(s.args) == 0 {
		return ""
	}
	return s.args[0]
}

func (s *session) handleHelp() bool {
	switch s.command() {
	case "", "help", "-help", "--help", "-h":
	default:
		return false
	}
	fmt.Fprint(s.stdout, usage)
	s.exitCode = config.ExitOK
	if s.command() == "" {
		s.exitCode = config.ExitUsage
	}
	return true
}

func (s *session) handleVersion() bool {
	switch s.command() {
	case "version", "-version", "--version":
	default:
		return false
	}
	fmt.Fprintln(s.stdout, "loxvm "+Version)
	return true
}

// handleDemo runs the built-in demo chunk (loxvm demo [--trace])
func (s *session) handleDemo() bool {
	if s.command() != "demo" {
		return false
	}
	s.interpret(DemoChunk())
	return true
}

// handleBuildDemo writes the demo chunk as an image (loxvm build-demo <out.loxc>)
func (s *session) handleBuildDemo() bool {
	if s.command() != "build-demo" {
		return false
	}
	if len(s.args) != 2 {
		fmt.Fprintln(s.stderr, "Usage: loxvm build-demo <output"+config.ImageFileExt+">")
		s.exitCode = config.ExitUsage
		return true
	}

	out := s.args[1]
	if !config.IsImageFile(out) {
		out += config.ImageFileExt
	}
	if err := vm.WriteImageFile(out, DemoChunk()); err != nil {
		fmt.Fprintf(s.stderr, "Error: %s\n", err)
		s.exitCode = 1
		return true
	}
	log.Infof("wrote %s", out)
	fmt.Fprintf(s.stdout, "wrote %s\n", out)
	return true
}

// handleDisasm prints the listing of an image (loxvm disasm <file.loxc>)
func (s *session) handleDisasm() bool {
	if s.command() != "disasm" {
		return false
	}
	chunk, ok := s.loadImage()
	if !ok {
		return true
	}
	fmt.Fprint(s.stdout, vm.Disassemble(chunk, chunkName(chunk, s.args[1])))
	return true
}

// handleRun interprets an image (loxvm run <file.loxc>, or loxvm <file.loxc>)
func (s *session) handleRun() bool {
	switch {
	case s.command() == "run":
	case len(s.args) == 1 && config.IsImageFile(s.args[0]):
		s.args = []string{"run", s.args[0]}
	default:
		return false
	}
	chunk, ok := s.loadImage()
	if !ok {
		return true
	}
	if chunk.Name == "" {
		chunk.Name = chunkName(chunk, s.args[1])
	}
	s.interpret(chunk)
	return true
}

func (s *session) loadImage() (*vm.Chunk, bool) {
	if len(s.args) != 2 {
		fmt.Fprintf(s.stderr, "Usage: loxvm %s <file%s>\n", s.args[0], config.ImageFileExt)
		s.exitCode = config.ExitUsage
		return nil, false
	}
	chunk, err := vm.ReadImageFile(s.args[1])
	if err != nil {
		fmt.Fprintf(s.stderr, "Error: %s\n", err)
		s.exitCode = config.ExitNoInput
		return nil, false
	}
	return chunk, true
}

func (s *session) interpret(chunk *vm.Chunk) {
	opts := vm.OptionsFromConfig(s.cfg)
	opts.Out = s.stdout
	opts.TraceOut = s.stderr

	machine := vm.New(opts)
	machine.Init()
	defer machine.Free()

	res, err := machine.Interpret(chunk)
	if err != nil {
		fmt.Fprintf(s.stderr, "Runtime error: %s\n", err)
	}
	s.exitCode = exitCodeFor(res)
}

func exitCodeFor(res vm.InterpretResult) int {
	switch res {
	case vm.INTERPRET_OK:
		return config.ExitOK
	case vm.INTERPRET_COMPILE_ERROR:
		return config.ExitCompileError
	default:
		return config.ExitRuntimeError
	}
}

func chunkName(chunk *vm.Chunk, path string) string {
	if chunk.Name != "" {
		return chunk.Name
	}
	return config.TrimImageExt(filepath.Base(path))
}

// DemoChunk builds the sample program: push 1.2 and return it.
func DemoChunk() *vm.Chunk {
	chunk := vm.NewChunk("demo")
	chunk.WriteOp(vm.OP_CONST_LONG, 1)
	chunk.AddConstant(vm.Value(1.2), 1)
	chunk.WriteOp(vm.OP_RETURN, 1)
	return chunk
}

var usage = `Usage: loxvm [flags] <command> [args]

Commands:
  demo                      run the built-in demo chunk
  run <file` + config.ImageFileExt + `>            interpret a chunk image
  disasm <file` + config.ImageFileExt + `>         print the instruction listing of an image
  build-demo <out` + config.ImageFileExt + `>      write the demo chunk as an image
  version                   print the version
  help                      show this message

Flags:
  --trace                   print the stack and next instruction before each step
  --config <path>           read settings from a loxvm.yaml file
  --log <path>              write logs to a file
  -v, --verbose             raise log verbosity (repeatable)

Exit codes: 0 ok, ` + strconv.Itoa(config.ExitCompileError) + ` compile error, ` +
	strconv.Itoa(config.ExitRuntimeError) + ` runtime error
`
