package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runScript(t *testing.T, dir, src string, args ...string) (int, string, string) {
	t.Helper()
	path := writeFile(t, dir, "main.dak", src)
	var stdout, stderr bytes.Buffer
	code := run(path, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		args   []string
		code   int
		stdout string
		stderr string
	}{
		{
			name:   "print and return",
			src:    `print(1 + 2, "hi", true, null); sleep 1; return 7;`,
			stdout: "3 hi true null\n7\n",
		},
		{
			name:   "args",
			src:    "args a, b; print(a * b);",
			args:   []string{"4", "0.5"},
			stdout: "2\n",
		},
		{
			name:   "bad arg",
			src:    "args a; print(a);",
			args:   []string{"x"},
			code:   2,
			stderr: `argument 1: "x" is not a number`,
		},
		{
			name:   "arity",
			src:    "args a; print(a);",
			code:   1,
			stderr: "script expects 1 arguments but got 0",
		},
		{
			name:   "runtime error",
			src:    "thread(fun() { sleep 1; print(1 / 0); }); print(1);",
			code:   1,
			stdout: "1\n",
			stderr: "[line 1] runtime error: division by zero",
		},
		{
			name:   "compile errors",
			src:    "var = 1;\nprint(;\n",
			code:   1,
			stderr: "[line 2]",
		},
		{
			name:   "default type",
			src:    "spawn (fun() { print(2); });",
			stdout: "2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runScript(t, t.TempDir(), tt.src, tt.args...)
			if code != tt.code {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.code, stderr)
			}
			if stdout != tt.stdout {
				t.Errorf("stdout = %q, want %q", stdout, tt.stdout)
			}
			if !strings.Contains(stderr, tt.stderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.stderr)
			}
		})
	}
}

func TestRunWithConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dakka.yaml", `
max_ticks: 3
log_level: panic
constants:
  SPEED: 3
types:
  bullet:
    x: 1
    name: "b"
`)

	code, stdout, stderr := runScript(t, dir, `
spawn bullet [x = 1 + SPEED] (fun() { print([name], [x]); });
spawn bullet (fun() { print([x]); });
while (true) { sleep 1; }
`)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if want := "b 4\n1\n"; stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}
