package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// Config represents a dakka.yaml runner configuration.
type Config struct {
	// Tick is the simulated milliseconds passed to each scheduler update.
	Tick float64 `yaml:"tick"`

	// MaxTicks bounds a run; the runner stops once it is reached even if
	// threads are still sleeping. Zero means the default.
	MaxTicks int `yaml:"max_ticks"`

	// LogLevel is any level name logrus understands.
	LogLevel string `yaml:"log_level"`

	// Disassemble dumps compiled bytecode before running.
	Disassemble bool `yaml:"disassemble"`

	MaxFrames int `yaml:"max_frames"`
	MaxStack  int `yaml:"max_stack"`

	// DefaultType is the type key used by a spawn that names none.
	DefaultType string `yaml:"default_type"`

	// Constants become numeric globals, next to the default natives.
	Constants map[string]float64 `yaml:"constants,omitempty"`

	// Types declares spawnable object kinds: type key -> property defaults.
	// Only numbers, strings and bools are accepted as defaults.
	Types map[string]map[string]interface{} `yaml:"types,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses the config file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses dakka.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for dakka.yaml starting from dir and walking up to
// parent directories. It returns "" and a nil error when there is none.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (c *Config) validate(path string) error {
	if c.Tick < 0 {
		return fmt.Errorf("%s: tick must not be negative", path)
	}
	if c.MaxTicks < 0 {
		return fmt.Errorf("%s: max_ticks must not be negative", path)
	}
	if c.MaxFrames < 0 || c.MaxStack < 0 {
		return fmt.Errorf("%s: max_frames and max_stack must not be negative", path)
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("%s: log_level: %w", path, err)
		}
	}

	for _, key := range c.TypeKeys() {
		if key == "" {
			return fmt.Errorf("%s: types: empty type key", path)
		}
		for prop, v := range c.Types[key] {
			switch v.(type) {
			case int, float64, string, bool:
			default:
				return fmt.Errorf("%s: types.%s.%s: unsupported default %v (%T)", path, key, prop, v, v)
			}
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Tick == 0 {
		c.Tick = DefaultTickMillis
	}
	if c.MaxTicks == 0 {
		c.MaxTicks = DefaultMaxTicks
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.MaxFrames == 0 {
		c.MaxFrames = DefaultMaxFrames
	}
	if c.MaxStack == 0 {
		c.MaxStack = DefaultMaxStack
	}
	if c.DefaultType == "" {
		c.DefaultType = DefaultTypeKey
	}
}

// Level returns the parsed log level. validate has already checked it.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.WarnLevel
	}
	return lvl
}

// TypeKeys returns the declared type keys in sorted order.
func (c *Config) TypeKeys() []string {
	keys := make([]string, 0, len(c.Types))
	for k := range c.Types {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
