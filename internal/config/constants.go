package config

import "strings"

// ImageFileExt is the extension of serialized chunk images
const ImageFileExt = ".loxc"

// ConfigFileNames are the recognized config file names, in lookup order
var ConfigFileNames = []string{"loxvm.yaml", "loxvm.yml"}

// Environment variables
const (
	TraceEnvVar   = "LOXVM_TRACE"
	NoColorEnvVar = "NO_COLOR" // https://no-color.org/
)

// Operand stack sizing
const (
	InitialStackSize = 256
	DefaultMaxStack  = 1024 * 1024 // 1M elements
)

// CancelCheckInterval is how many instructions run between context checks
const CancelCheckInterval = 1000

// Trace color modes
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Process exit codes (sysexits.h)
const (
	ExitOK           = 0
	ExitUsage        = 64
	ExitCompileError = 65
	ExitNoInput      = 66
	ExitRuntimeError = 70
)

// TrimImageExt removes the image extension from a path, if present
func TrimImageExt(path string) string {
	return strings.TrimSuffix(path, ImageFileExt)
}

// IsImageFile reports whether path has the image extension
func IsImageFile(path string) bool {
	return strings.HasSuffix(path, ImageFileExt)
}
