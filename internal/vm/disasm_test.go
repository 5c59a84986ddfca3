package vm

import (
	"strings"
	"testing"
)

func TestDisassemble(t *testing.T) {
	fn, err := Compile(`var a = 1;
fun f() { return a; }
spawn bullet [x = 1, y = 2] (f);
spawn;
`)
	if err != nil {
		t.Fatalf("compile error: %s", err)
	}
	out := Disassemble(fn)

	for _, want := range []string{
		"== script ==",
		"'<fn f>'",
		"    | == f ==",
		"GET_UPVALUE",
		"bullet [x, y] (0 args)",
		"default [] (no script)",
		"   | ",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly lacks %q:\n%s", want, out)
		}
	}
}

func TestDisassembleLines(t *testing.T) {
	fn, err := Compile("var a = 1;\nvar b = 2;")
	if err != nil {
		t.Fatalf("compile error: %s", err)
	}
	lines := strings.Split(strings.TrimSpace(Disassemble(fn)), "\n")
	if !strings.HasPrefix(lines[1], "0000    1 CONST") {
		t.Errorf("first instruction = %q", lines[1])
	}
	found := false
	for _, l := range lines {
		if strings.Contains(l, "   2 CONST") {
			found = true
		}
	}
	if !found {
		t.Errorf("no instruction on line 2:\n%s", strings.Join(lines, "\n"))
	}
}
