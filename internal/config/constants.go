package config

const SourceFileExt = ".dak"

// SourceFileExtensions are all recognized source file extensions
var SourceFileExtensions = []string{".dak", ".dakka"}

// ConfigFileNames are searched for, in order, by FindConfig
var ConfigFileNames = []string{"dakka.yaml", "dakka.yml"}

// Compiler limits
const (
	MaxLocals    = 256
	MaxUpvalues  = 256
	MaxConstants = 1 << 16
	MaxArgs      = 255
)

// VM limits
const (
	DefaultMaxFrames = 1024
	DefaultMaxStack  = 1 << 16
	InitialStackSize = 256
)

// Runner defaults
const (
	DefaultTickMillis = 1000.0 / 60.0
	DefaultMaxTicks   = 60 * 60 * 10
	DefaultLogLevel   = "warning"
	DefaultTypeKey    = "object"
)

// Script names
const (
	ScriptFuncName = "script"
	PrintFuncName  = "print"
)

// HasSourceExt reports whether path carries one of the source extensions.
func HasSourceExt(path string) bool {
	for _, ext := range SourceFileExtensions {
		if len(path) > len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}
