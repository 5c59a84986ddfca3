package vm

import (
	"math"
	"strconv"
)

// ValueType identifies the type of value stored in the Value struct
type ValueType uint8

const (
	ValNull ValueType = iota
	ValNumber
	ValString
	ValBool
	ValNative  // Obj holds a *Closure wrapping a *Native
	ValClosure // Obj holds a *Closure over a *CompiledFunction
)

var valueTypeNames = [...]string{
	ValNull:    "null",
	ValNumber:  "number",
	ValString:  "string",
	ValBool:    "bool",
	ValNative:  "native function",
	ValClosure: "function",
}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return "invalid"
}

// Value is a tagged union.
// Numbers and bools live in Data; strings and closures in Obj.
type Value struct {
	Type ValueType
	Data uint64
	Obj  interface{}
}

// Constructors

func NullVal() Value {
	return Value{Type: ValNull}
}

func NumberVal(v float64) Value {
	return Value{Type: ValNumber, Data: math.Float64bits(v)}
}

func StringVal(s string) Value {
	return Value{Type: ValString, Obj: s}
}

func BoolVal(v bool) Value {
	var data uint64
	if v {
		data = 1
	}
	return Value{Type: ValBool, Data: data}
}

func ClosureVal(c *Closure) Value {
	if c.Native != nil {
		return Value{Type: ValNative, Obj: c}
	}
	return Value{Type: ValClosure, Obj: c}
}

// NativeVal wraps a Go function as a callable value.
func NativeVal(name string, arity int, fn NativeFn) Value {
	return ClosureVal(&Closure{Native: &Native{Name: name, Arity: arity, Fn: fn}})
}

// Accessors

func (v Value) AsNumber() float64 {
	return math.Float64frombits(v.Data)
}

func (v Value) AsBool() bool {
	return v.Data == 1
}

func (v Value) AsString() string {
	s, _ := v.Obj.(string)
	return s
}

func (v Value) AsClosure() *Closure {
	c, _ := v.Obj.(*Closure)
	return c
}

// Type checking helpers

func (v Value) IsNull() bool     { return v.Type == ValNull }
func (v Value) IsNumber() bool   { return v.Type == ValNumber }
func (v Value) IsString() bool   { return v.Type == ValString }
func (v Value) IsBool() bool     { return v.Type == ValBool }
func (v Value) IsCallable() bool { return v.Type == ValClosure || v.Type == ValNative }

// Valid reports whether v is a well-formed value of one of the script types.
func (v Value) Valid() bool {
	switch v.Type {
	case ValNull, ValNumber, ValBool:
		return true
	case ValString:
		_, ok := v.Obj.(string)
		return ok
	case ValNative:
		c := v.AsClosure()
		return c != nil && c.Native != nil && c.Native.Fn != nil
	case ValClosure:
		c := v.AsClosure()
		return c != nil && c.Function != nil
	}
	return false
}

// IsFalsy: null, false, 0, NaN and the empty string.
func (v Value) IsFalsy() bool {
	switch v.Type {
	case ValNull:
		return true
	case ValBool:
		return !v.AsBool()
	case ValNumber:
		n := v.AsNumber()
		return n == 0 || math.IsNaN(n)
	case ValString:
		return v.AsString() == ""
	}
	return false
}

// Equals is strict: values of different types are never equal and
// callables compare by identity.
func (v Value) Equals(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ValNull:
		return true
	case ValNumber:
		return v.AsNumber() == other.AsNumber()
	case ValBool:
		return v.Data == other.Data
	case ValString:
		return v.AsString() == other.AsString()
	default:
		return v.Obj == other.Obj
	}
}

func (v Value) String() string {
	switch v.Type {
	case ValNull:
		return "null"
	case ValNumber:
		return strconv.FormatFloat(v.AsNumber(), 'g', -1, 64)
	case ValBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case ValString:
		return v.AsString()
	case ValNative, ValClosure:
		if c := v.AsClosure(); c != nil {
			return c.String()
		}
	}
	return "<invalid>"
}
