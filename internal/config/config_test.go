package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("disassemble: true\n"), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Disassemble {
		t.Errorf("disassemble = false, want true")
	}
	if cfg.Tick != DefaultTickMillis {
		t.Errorf("tick = %v, want %v", cfg.Tick, DefaultTickMillis)
	}
	if cfg.MaxFrames != DefaultMaxFrames || cfg.MaxStack != DefaultMaxStack {
		t.Errorf("limits = %d/%d, want defaults", cfg.MaxFrames, cfg.MaxStack)
	}
	if cfg.DefaultType != DefaultTypeKey {
		t.Errorf("default_type = %q, want %q", cfg.DefaultType, DefaultTypeKey)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("log_level = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
}

func TestParseConfig_Full(t *testing.T) {
	yaml := `
tick: 10
max_ticks: 500
log_level: debug
default_type: bullet
constants:
  GRAVITY: 9.8
types:
  bullet:
    x: 0
    y: 0
    speed: 2.5
    label: shot
`
	cfg, err := ParseConfig([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tick != 10 || cfg.MaxTicks != 500 {
		t.Errorf("tick/max_ticks = %v/%d", cfg.Tick, cfg.MaxTicks)
	}
	if cfg.Level().String() != "debug" {
		t.Errorf("level = %s, want debug", cfg.Level())
	}
	if cfg.Constants["GRAVITY"] != 9.8 {
		t.Errorf("GRAVITY = %v", cfg.Constants["GRAVITY"])
	}
	bullet := cfg.Types["bullet"]
	if len(bullet) != 4 || bullet["label"] != "shot" || bullet["speed"] != 2.5 {
		t.Errorf("bullet = %v", bullet)
	}
	if keys := cfg.TypeKeys(); len(keys) != 1 || keys[0] != "bullet" {
		t.Errorf("type keys = %v", keys)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"negative tick", "tick: -1", "tick must not be negative"},
		{"negative max ticks", "max_ticks: -3", "max_ticks"},
		{"bad level", "log_level: loud", "log_level"},
		{"list default", "types:\n  bullet:\n    x: [1, 2]\n", "types.bullet.x"},
		{"bad yaml", "tick: [", "parsing test.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml), "test.yaml")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestFindConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, "dakka.yaml")
	if err := os.WriteFile(path, []byte("tick: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, err := FindConfig(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != path {
		t.Errorf("found %q, want %q", found, path)
	}

	cfg, err := LoadConfig(found)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tick != 5 {
		t.Errorf("tick = %v, want 5", cfg.Tick)
	}
}

func TestHasSourceExt(t *testing.T) {
	if !HasSourceExt("bullets.dak") || HasSourceExt("bullets.go") || HasSourceExt(".dak") {
		t.Error("HasSourceExt misclassified a path")
	}
}
