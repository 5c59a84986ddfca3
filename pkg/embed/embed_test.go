package dakka_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	dakka "github.com/jbpuryear/dakka/pkg/embed"
	"github.com/sirupsen/logrus"
)

// Bullet represents a Go struct to be used as a host object
type Bullet struct {
	X, Y   float64
	Speed  float64 `dakka:"speed"`
	Count  int
	Hidden int `dakka:"-"`
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newVM(t *testing.T, opts ...dakka.Option) (*dakka.VM, *[]error) {
	t.Helper()
	v := dakka.New(append([]dakka.Option{dakka.WithLogger(quietLogger())}, opts...)...)
	var errs []error
	v.OnError(func(_ interface{}, err error) { errs = append(errs, err) })
	return v, &errs
}

func eval(t *testing.T, v *dakka.VM, src string, args ...interface{}) interface{} {
	t.Helper()
	res, err := v.Eval(src, args...)
	if err != nil {
		t.Fatalf("Eval(%q) failed: %v", src, err)
	}
	return res
}

func TestEmbedAPI(t *testing.T) {
	v, _ := newVM(t)

	// 1. Bind a simple function
	if err := v.Bind("double", func(x int) int { return x * 2 }); err != nil {
		t.Fatal(err)
	}
	// 2. Bind a constant
	if err := v.Bind("testConst", 4); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		input string
		want  interface{}
	}{
		{"return double(21);", 42.0},
		{"return testConst;", 4.0},
		{"return floor(2.5) * PI;", 2 * math.Pi},
		{"return min(3, 1, 2);", 1.0},
		{"return max();", math.Inf(-1)},
		{"return clamp(12, 0, 10);", 10.0},
		{"return time() > 0;", true},
		{`return "a" == "a";`, true},
		{"return null;", nil},
	}

	for _, tt := range tests {
		if got := eval(t, v, tt.input); got != tt.want {
			t.Errorf("%s = %v (%T), want %v", tt.input, got, got, tt.want)
		}
	}
}

func TestNativeErrors(t *testing.T) {
	v, errs := newVM(t)
	errBoom := errors.New("boom")
	v.Bind("fail", func() (float64, error) { return 0, errBoom })
	v.Bind("length", func(s string) int { return len(s) })

	tests := []struct {
		input string
		want  string
	}{
		{"return fail();", "fail: boom"},
		{"return length(3);", "length: argument 1: expected a string, got number"},
		{"return length();", "length: expected 1 arguments but got 0"},
	}

	for _, tt := range tests {
		*errs = nil
		if _, err := v.Eval(tt.input); !errors.Is(err, dakka.ErrNoResult) {
			t.Errorf("%s: got %v, want ErrNoResult", tt.input, err)
			continue
		}
		if len(*errs) != 1 || !strings.Contains((*errs)[0].Error(), tt.want) {
			t.Errorf("%s: errors %v, want one containing %q", tt.input, *errs, tt.want)
		}
	}
}

func TestBindRejectsUnsupportedValues(t *testing.T) {
	v, _ := newVM(t)
	if err := v.Bind("pair", func() (int, int) { return 1, 2 }); err == nil {
		t.Error("expected an error for a function with two results")
	}
	if err := v.Bind("bullet", Bullet{}); err == nil {
		t.Error("expected an error for a struct value")
	}
	if err := v.Bind("", 1); err == nil {
		t.Error("expected an error for an empty name")
	}
}

func TestStructTarget(t *testing.T) {
	v, errs := newVM(t)
	b := &Bullet{}

	if _, err := v.RunString("[x] = 3; [speed] = [x] * 2; [count] = 2.7; sleep 1; [y] = 1;", b); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if b.X != 3 || b.Speed != 6 || b.Count != 2 || b.Y != 0 {
		t.Fatalf("after start: %+v", *b)
	}
	v.Update(1)
	if b.Y != 1 {
		t.Errorf("y = %g after tick, want 1", b.Y)
	}

	v.RunString("[hidden] = 1;", b)
	if len(*errs) != 1 || !strings.Contains((*errs)[0].Error(), "undefined property 'hidden'") {
		t.Errorf("errors = %v", *errs)
	}
}

func TestStructTargetProperties(t *testing.T) {
	st, err := dakka.NewStructTarget(&Bullet{})
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(st.Properties(), " ")
	if got != "x y speed count" {
		t.Errorf("Properties = %q", got)
	}

	for _, bad := range []interface{}{Bullet{}, (*Bullet)(nil), new(int), nil} {
		if _, err := dakka.NewStructTarget(bad); err == nil {
			t.Errorf("NewStructTarget(%#v) succeeded", bad)
		}
	}
}

func TestRunRejectsBadTargets(t *testing.T) {
	v, _ := newVM(t)
	script, err := v.Compile("[x] = 1;")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Run(script, Bullet{}); err == nil {
		t.Error("expected an error for a struct value target")
	}
	if _, err := v.Run(script, new(int)); err == nil {
		t.Error("expected an error for a non-struct pointer target")
	}
}

func TestAddTypeSpawn(t *testing.T) {
	v, _ := newVM(t)
	var spawned []interface{}
	v.OnSpawn(func(obj interface{}) { spawned = append(spawned, obj) })
	v.AddType("bullet", func() interface{} { return &Bullet{} })

	if _, err := v.RunString("spawn bullet [x = 5] (fun() { [y] = [x] + 1; });", nil); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(spawned) != 1 {
		t.Fatalf("spawned %d objects, want 1", len(spawned))
	}
	b, ok := spawned[0].(*Bullet)
	if !ok {
		t.Fatalf("spawned %T, want *Bullet", spawned[0])
	}
	if b.X != 5 || b.Y != 6 {
		t.Errorf("spawned %+v", *b)
	}

	script, _ := v.Compile("[speed] = 9;")
	if _, err := v.Spawn(script, "bullet"); err != nil {
		t.Fatalf("Spawn error: %v", err)
	}
	if len(spawned) != 2 || spawned[1].(*Bullet).Speed != 9 {
		t.Errorf("host spawn gave %v", spawned)
	}
}

func TestKillTarget(t *testing.T) {
	v, _ := newVM(t)
	b := &Bullet{}
	v.RunString("while (true) { [x] += 1; sleep 1; }", b)

	if b.X != 1 {
		t.Fatalf("x = %g, want 1", b.X)
	}
	if !v.KillTarget(b) {
		t.Fatal("KillTarget returned false for a bound object")
	}
	v.Update(1)
	if b.X != 1 {
		t.Errorf("x = %g after kill, want 1", b.X)
	}
	if v.KillTarget(b) {
		t.Error("KillTarget returned true twice")
	}
	if v.KillTarget(Bullet{}) {
		t.Error("KillTarget returned true for a value")
	}
}

func TestRunEvictsBoundThread(t *testing.T) {
	v, _ := newVM(t)
	b := &Bullet{}
	first, _ := v.RunString("while (true) { [x] += 1; sleep 1; }", b)
	v.RunString("while (true) { [y] += 1; sleep 1; }", b)

	if v.Alive(first) {
		t.Error("first thread survived a second run on the same object")
	}
	if v.ThreadCount() != 1 {
		t.Errorf("ThreadCount = %d, want 1", v.ThreadCount())
	}
	v.Update(1)
	if b.X != 1 || b.Y != 2 {
		t.Errorf("got %+v", *b)
	}

	v.KillAll()
	if v.ThreadCount() != 0 {
		t.Errorf("ThreadCount = %d after KillAll", v.ThreadCount())
	}
}

func TestEval(t *testing.T) {
	v, _ := newVM(t)

	if got := eval(t, v, "args a, b; return a - b;", 5, 3); got != 2.0 {
		t.Errorf("got %v, want 2", got)
	}
	if _, err := v.Eval("sleep 1; return 1;"); !errors.Is(err, dakka.ErrNoResult) {
		t.Errorf("got %v, want ErrNoResult", err)
	}
	if v.ThreadCount() != 0 {
		t.Errorf("ThreadCount = %d, want the sleeping thread killed", v.ThreadCount())
	}
	if _, err := v.Eval("return (1;"); err == nil {
		t.Error("expected a compile error")
	}
	if _, err := v.Eval("args a; return a;"); err == nil {
		t.Error("expected an arity error")
	}
}

func TestScript(t *testing.T) {
	v, _ := newVM(t)
	script, err := v.Compile("args a, b; return a * b;")
	if err != nil {
		t.Fatal(err)
	}
	if script.Arity() != 2 {
		t.Errorf("Arity = %d, want 2", script.Arity())
	}
	if !strings.Contains(script.Disassemble(), "MUL") {
		t.Errorf("disassembly lacks the multiply:\n%s", script.Disassemble())
	}
}

func TestGet(t *testing.T) {
	v, _ := newVM(t)
	v.RunString("global hp = 3;", nil)

	got, err := v.Get("hp")
	if err != nil || got != 3.0 {
		t.Errorf("Get(hp) = %v, %v", got, err)
	}
	if _, err := v.Get("nope"); err == nil {
		t.Error("expected an error for a missing global")
	}
}

func TestWithoutDefaultNatives(t *testing.T) {
	v, errs := newVM(t, dakka.WithoutDefaultNatives())
	if _, err := v.Eval("return PI;"); !errors.Is(err, dakka.ErrNoResult) {
		t.Fatalf("got %v, want ErrNoResult", err)
	}
	if len(*errs) != 1 || !strings.Contains((*errs)[0].Error(), "undeclared variable 'PI'") {
		t.Errorf("errors = %v", *errs)
	}
}

func TestRunFunc(t *testing.T) {
	v, _ := newVM(t)
	script, _ := v.Compile("args n; sleep n; return n * 2;")

	var got interface{}
	if _, err := v.RunFunc(script, nil, func(res interface{}) { got = res }, 2); err != nil {
		t.Fatal(err)
	}
	v.Update(1)
	if got != nil {
		t.Fatalf("returned %v before waking", got)
	}
	v.Update(1)
	if got != 4.0 {
		t.Errorf("got %v, want 4", got)
	}
}

func TestSpawnedObjectsAreNotRetained(t *testing.T) {
	v, errs := newVM(t)
	var spawned []*Bullet
	v.OnSpawn(func(obj interface{}) { spawned = append(spawned, obj.(*Bullet)) })
	v.AddType("bullet", func() interface{} { return &Bullet{} })

	script, err := v.Compile("repeat (1000) spawn bullet (fun() { sleep 1; [x] = 1; }); spawn bullet [y = 1];")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := v.Run(script, nil); err != nil {
			t.Fatal(err)
		}
	}
	if got := v.Adapters(); got != 5000 {
		t.Errorf("Adapters = %d while threads run, want 5000", got)
	}
	if !v.KillTarget(spawned[0]) {
		t.Error("KillTarget returned false for a spawned object with a thread")
	}

	v.Update(1)
	if len(*errs) != 0 {
		t.Fatalf("errors = %v", *errs)
	}
	if v.ThreadCount() != 0 || v.Adapters() != 0 {
		t.Errorf("ThreadCount = %d, Adapters = %d; want both 0", v.ThreadCount(), v.Adapters())
	}
	if len(spawned) != 5005 || spawned[1].X != 1 {
		t.Errorf("spawned %d objects, second has x = %g", len(spawned), spawned[1].X)
	}
}

func TestReleaseKeepsThread(t *testing.T) {
	v, _ := newVM(t)
	b := &Bullet{}
	first, _ := v.RunString("while (true) { [x] += 1; sleep 1; }", b)
	v.Release(b)
	second, _ := v.RunString("while (true) { [y] += 1; sleep 1; }", b)

	if !v.Alive(first) || !v.Alive(second) {
		t.Error("a released object should not evict its old thread")
	}
	v.KillAll()
	if v.Adapters() != 0 {
		t.Errorf("Adapters = %d after KillAll, want 0", v.Adapters())
	}
}
