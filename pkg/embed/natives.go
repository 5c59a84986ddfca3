package dakka

import (
	"math"
	"math/rand"
	"time"
)

// DefaultNatives returns the math environment every VM starts with unless
// WithoutDefaultNatives is given. Values are plain Go numbers and
// functions, installed through Bind.
func DefaultNatives() map[string]interface{} {
	return map[string]interface{}{
		"PI":    math.Pi,
		"TAU":   2 * math.Pi,
		"SQRT2": math.Sqrt2,

		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"asin":  math.Asin,
		"acos":  math.Acos,
		"atan":  math.Atan,
		"atan2": math.Atan2,
		"abs":   math.Abs,
		"ceil":  math.Ceil,
		"floor": math.Floor,
		"sqrt":  math.Sqrt,
		"min":   minOf,
		"max":   maxOf,
		"rand":  rand.Float64,
		"round": round,
		"sign":  sign,
		"clamp": clamp,
		"time":  now,
	}
}

// minOf of nothing is +Inf.
func minOf(xs ...float64) float64 {
	m := math.Inf(1)
	for _, x := range xs {
		m = math.Min(m, x)
	}
	return m
}

// maxOf of nothing is -Inf.
func maxOf(xs ...float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		m = math.Max(m, x)
	}
	return m
}

// round sends halves toward +Inf: round(-2.5) is -2.
func round(x float64) float64 {
	return math.Floor(x + 0.5)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return x // 0, -0 or NaN
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// now is wall time in milliseconds.
func now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
