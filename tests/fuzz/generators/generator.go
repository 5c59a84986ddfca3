package generators

import (
	"fmt"
	"math/rand"
	"strings"
)

// RandomSource abstracts the source of randomness.
type RandomSource interface {
	Intn(n int) int
	Float64() float64
}

// RandSource wraps math/rand.
type RandSource struct {
	*rand.Rand
}

// ByteSource uses a byte slice as a source of randomness. Once the data
// runs out every choice is 0, which always picks a leaf.
type ByteSource struct {
	data []byte
	pos  int
}

func (s *ByteSource) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	if s.pos >= len(s.data) {
		return 0
	}
	v := int(s.data[s.pos])
	s.pos++
	return v % n
}

func (s *ByteSource) Float64() float64 {
	if s.pos >= len(s.data) {
		return 0.0
	}
	v := int(s.data[s.pos])
	s.pos++
	return float64(v) / 255.0
}

type variable struct {
	name     string
	writable bool
}

type function struct {
	name  string
	arity int
}

// Generator generates random Dakka scripts. Every script it produces
// compiles, and every thread it starts terminates: loops are bounded,
// functions only call functions declared before them, and loop counters
// are never assigned by generated code.
type Generator struct {
	src    RandomSource
	depth  int
	nextID int

	scopes  [][]variable
	globals []string
	funcs   []function
}

const (
	MaxDepth      = 4
	MaxStatements = 5
)

func New(seed int64) *Generator {
	return &Generator{src: &RandSource{rand.New(rand.NewSource(seed))}}
}

func NewFromData(data []byte) *Generator {
	return &Generator{src: &ByteSource{data: data}}
}

func (g *Generator) Intn(n int) int {
	return g.src.Intn(n)
}

func (g *Generator) GenerateProgram() string {
	g.depth = 0
	g.nextID = 0
	g.scopes = [][]variable{nil}
	g.globals = nil
	g.funcs = nil

	var sb strings.Builder
	count := g.src.Intn(6) + 1
	for i := 0; i < count; i++ {
		if g.src.Intn(4) == 0 {
			sb.WriteString(g.GenerateFunctionDecl())
		} else {
			sb.WriteString(g.GenerateStatement())
		}
		sb.WriteString(g.GenerateNoise())
		sb.WriteString("\n")
	}
	sb.WriteString("return ")
	sb.WriteString(g.GenerateExpression())
	sb.WriteString(";\n")
	return sb.String()
}

// GenerateNoise returns occasional whitespace or a comment.
func (g *Generator) GenerateNoise() string {
	switch g.src.Intn(12) {
	case 1:
		return " "
	case 2:
		return "\t"
	case 3:
		return "\n"
	case 4:
		return " // noise"
	}
	return ""
}

func (g *Generator) fresh(prefix string) string {
	g.nextID++
	return fmt.Sprintf("%s%d", prefix, g.nextID)
}

func (g *Generator) pushScope() { g.scopes = append(g.scopes, nil) }
func (g *Generator) popScope()  { g.scopes = g.scopes[:len(g.scopes)-1] }

func (g *Generator) declare(name string, w bool) {
	top := len(g.scopes) - 1
	g.scopes[top] = append(g.scopes[top], variable{name: name, writable: w})
}

func (g *Generator) visible(writableOnly bool) []string {
	var names []string
	for _, scope := range g.scopes {
		for _, v := range scope {
			if v.writable || !writableOnly {
				names = append(names, v.name)
			}
		}
	}
	return append(names, g.globals...)
}

func (g *Generator) GenerateStatement() string {
	if g.depth >= MaxDepth {
		return g.GenerateVarDecl()
	}
	g.depth++
	defer func() { g.depth-- }()

	switch g.src.Intn(13) {
	case 0, 1:
		return g.GenerateVarDecl()
	case 2:
		return g.GenerateGlobalDecl()
	case 3, 4:
		return g.GenerateAssignment()
	case 5:
		return g.GenerateIf()
	case 6:
		return g.GenerateWhile()
	case 7:
		return g.GenerateFor()
	case 8:
		return g.GenerateRepeat()
	case 9:
		return fmt.Sprintf("sleep %s;", g.GenerateNumber())
	case 10:
		return g.GenerateThread()
	case 11:
		return g.GenerateBlock()
	default:
		return g.GenerateExpression() + ";"
	}
}

func (g *Generator) GenerateVarDecl() string {
	expr := g.GenerateExpression()
	name := g.fresh("v")
	g.declare(name, true)
	return fmt.Sprintf("var %s = %s;", name, expr)
}

func (g *Generator) GenerateGlobalDecl() string {
	expr := g.GenerateExpression()
	name := g.fresh("g")
	g.globals = append(g.globals, name)
	return fmt.Sprintf("global %s = %s;", name, expr)
}

func (g *Generator) GenerateAssignment() string {
	names := g.visible(true)
	if len(names) == 0 {
		return g.GenerateVarDecl()
	}
	name := names[g.src.Intn(len(names))]
	op := []string{"=", "+=", "-=", "*=", "/=", "%="}[g.src.Intn(6)]
	return fmt.Sprintf("%s %s %s;", name, op, g.GenerateExpression())
}

func (g *Generator) GenerateBlock() string {
	g.pushScope()
	defer g.popScope()

	var sb strings.Builder
	sb.WriteString("{\n")
	count := g.src.Intn(MaxStatements)
	for i := 0; i < count; i++ {
		sb.WriteString(g.GenerateStatement())
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}

func (g *Generator) GenerateIf() string {
	cond := g.GenerateExpression()
	then := g.GenerateBlock()
	if g.src.Intn(2) == 0 {
		return fmt.Sprintf("if (%s) %s", cond, then)
	}
	return fmt.Sprintf("if (%s) %s else %s", cond, then, g.GenerateBlock())
}

// GenerateWhile counts a read-only local up to a small bound.
func (g *Generator) GenerateWhile() string {
	g.pushScope()
	defer g.popScope()

	counter := g.fresh("w")
	g.declare(counter, false)
	limit := g.src.Intn(4)
	return fmt.Sprintf("{ var %s = 0; while (%s < %d) { %s += 1; %s } }", counter, counter, limit, counter, g.GenerateBlock())
}

func (g *Generator) GenerateFor() string {
	g.pushScope()
	defer g.popScope()

	name := g.fresh("i")
	g.declare(name, true)
	start, limit := g.src.Intn(5), g.src.Intn(5)
	step := []string{"", ", 1", ", 2", ", -1", ", 0.5"}[g.src.Intn(5)]
	return fmt.Sprintf("for (var %s = %d, %d%s) %s", name, start, limit, step, g.GenerateBlock())
}

func (g *Generator) GenerateRepeat() string {
	return fmt.Sprintf("repeat (%d) %s", g.src.Intn(4), g.GenerateBlock())
}

// GenerateThread starts a lambda on a new thread.
func (g *Generator) GenerateThread() string {
	arity := g.src.Intn(3)
	fn := g.generateFunction("", arity)
	args := make([]string, arity)
	for i := range args {
		args[i] = g.GenerateExpression()
	}
	if arity == 0 {
		return fmt.Sprintf("thread(%s);", fn)
	}
	return fmt.Sprintf("thread(%s, %s);", fn, strings.Join(args, ", "))
}

func (g *Generator) GenerateFunctionDecl() string {
	name := g.fresh("f")
	arity := g.src.Intn(3)
	decl := g.generateFunction(name, arity)
	// Visible only after its body, so no recursion.
	g.declare(name, false)
	g.funcs = append(g.funcs, function{name: name, arity: arity})
	return decl
}

func (g *Generator) generateFunction(name string, arity int) string {
	g.pushScope()
	defer g.popScope()

	params := make([]string, arity)
	for i := range params {
		params[i] = g.fresh("p")
		g.declare(params[i], true)
	}

	var sb strings.Builder
	sb.WriteString("fun")
	if name != "" {
		sb.WriteString(" " + name)
	}
	sb.WriteString("(" + strings.Join(params, ", ") + ") {\n")

	saved := g.depth
	g.depth = MaxDepth - 1
	count := g.src.Intn(MaxStatements)
	for i := 0; i < count; i++ {
		sb.WriteString(g.GenerateStatement())
		sb.WriteString("\n")
	}
	g.depth = saved

	sb.WriteString("return " + g.GenerateExpression() + ";\n}")
	return sb.String()
}

func (g *Generator) GenerateExpression() string {
	if g.depth >= MaxDepth+2 {
		return g.GenerateLiteral()
	}
	g.depth++
	defer func() { g.depth-- }()

	switch g.src.Intn(10) {
	case 0, 1:
		return g.GenerateLiteral()
	case 2, 3:
		names := g.visible(false)
		if len(names) == 0 {
			return g.GenerateNumber()
		}
		return names[g.src.Intn(len(names))]
	case 4:
		op := []string{"+", "-", "*", "/", "%", "<", "<=", ">", ">=", "==", "!="}[g.src.Intn(11)]
		return fmt.Sprintf("(%s %s %s)", g.GenerateExpression(), op, g.GenerateExpression())
	case 5:
		op := []string{"&&", "||"}[g.src.Intn(2)]
		return fmt.Sprintf("(%s %s %s)", g.GenerateExpression(), op, g.GenerateExpression())
	case 6:
		op := []string{"-", "!"}[g.src.Intn(2)]
		return fmt.Sprintf("(%s%s)", op, g.GenerateExpression())
	case 7:
		return fmt.Sprintf("(%s ? %s : %s)", g.GenerateExpression(), g.GenerateExpression(), g.GenerateExpression())
	default:
		return g.GenerateCall()
	}
}

func (g *Generator) GenerateCall() string {
	if len(g.funcs) == 0 {
		return g.GenerateNumber()
	}
	fn := g.funcs[g.src.Intn(len(g.funcs))]
	args := make([]string, fn.arity)
	for i := range args {
		args[i] = g.GenerateExpression()
	}
	return fmt.Sprintf("%s(%s)", fn.name, strings.Join(args, ", "))
}

func (g *Generator) GenerateLiteral() string {
	switch g.src.Intn(6) {
	case 0, 1:
		return g.GenerateNumber()
	case 2:
		return fmt.Sprintf("\"s%d\"", g.src.Intn(10))
	case 3:
		return "true"
	case 4:
		return "false"
	default:
		return "null"
	}
}

func (g *Generator) GenerateNumber() string {
	switch g.src.Intn(4) {
	case 0:
		return fmt.Sprintf("%d.%d", g.src.Intn(10), g.src.Intn(100))
	case 1:
		return fmt.Sprintf("0x%x", g.src.Intn(256))
	default:
		return fmt.Sprintf("%d", g.src.Intn(20))
	}
}
