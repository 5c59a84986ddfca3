package dakka

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/jbpuryear/dakka/internal/vm"
)

var (
	valueType = reflect.TypeOf(vm.Value{})
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// Marshaller handles conversion between Go and Dakka values.
type Marshaller struct{}

func NewMarshaller() *Marshaller {
	return &Marshaller{}
}

// ToValue converts a Go value to a Dakka value. Numbers of every Go kind
// become numbers; functions become natives named "host".
func (m *Marshaller) ToValue(val interface{}) (vm.Value, error) {
	return m.toValue("host", val)
}

func (m *Marshaller) toValue(name string, val interface{}) (vm.Value, error) {
	if val == nil {
		return vm.NullVal(), nil
	}

	// Check if already a Value
	if v, ok := val.(vm.Value); ok {
		if !v.Valid() {
			return vm.Value{}, errors.New("invalid script value")
		}
		return v, nil
	}

	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return vm.NumberVal(float64(v.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return vm.NumberVal(float64(v.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return vm.NumberVal(v.Float()), nil
	case reflect.Bool:
		return vm.BoolVal(v.Bool()), nil
	case reflect.String:
		return vm.StringVal(v.String()), nil
	case reflect.Func:
		if v.IsNil() {
			return vm.NullVal(), nil
		}
		return m.native(name, v)
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return vm.NullVal(), nil
		}
		return m.toValue(name, v.Elem().Interface())
	}
	return vm.Value{}, fmt.Errorf("can't convert %T to a script value", val)
}

// FromValue converts a Dakka value to a Go value.
// targetType is optional; if provided, tries to convert to that type.
// Numbers converted to integer kinds are truncated.
func (m *Marshaller) FromValue(val vm.Value, targetType reflect.Type) (interface{}, error) {
	if targetType == nil || targetType.Kind() == reflect.Interface && targetType.NumMethod() == 0 {
		return natural(val), nil
	}
	if targetType == valueType {
		return val, nil
	}

	switch targetType.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		if !val.IsNumber() {
			return nil, fmt.Errorf("expected a number, got %s", val.Type)
		}
		n := val.AsNumber()
		if k := targetType.Kind(); k != reflect.Float32 && k != reflect.Float64 && (math.IsNaN(n) || math.IsInf(n, 0)) {
			return nil, fmt.Errorf("can't convert %v to %s", n, targetType)
		}
		return reflect.ValueOf(n).Convert(targetType).Interface(), nil
	case reflect.Bool:
		if !val.IsBool() {
			return nil, fmt.Errorf("expected a bool, got %s", val.Type)
		}
		return reflect.ValueOf(val.AsBool()).Convert(targetType).Interface(), nil
	case reflect.String:
		if !val.IsString() {
			return nil, fmt.Errorf("expected a string, got %s", val.Type)
		}
		return reflect.ValueOf(val.AsString()).Convert(targetType).Interface(), nil
	}
	return nil, fmt.Errorf("unsupported type for conversion: %s", targetType)
}

// natural maps a value to its plain Go counterpart. Callables stay
// script values.
func natural(val vm.Value) interface{} {
	switch val.Type {
	case vm.ValNumber:
		return val.AsNumber()
	case vm.ValBool:
		return val.AsBool()
	case vm.ValString:
		return val.AsString()
	case vm.ValNull:
		return nil
	}
	return val
}

// native wraps a Go function. Variadic functions accept any number of
// arguments. A trailing error result is reported as a script error.
func (m *Marshaller) native(name string, fn reflect.Value) (vm.Value, error) {
	fnType := fn.Type()
	numIn := fnType.NumIn()
	isVariadic := fnType.IsVariadic()

	numOut := fnType.NumOut()
	returnsErr := numOut > 0 && fnType.Out(numOut-1) == errorType
	if returnsErr {
		numOut--
	}
	if numOut > 1 {
		return vm.Value{}, fmt.Errorf("%s: functions may return at most one value and an error", name)
	}

	arity := numIn
	if isVariadic {
		arity = -1
	}

	call := func(args []vm.Value) (vm.Value, error) {
		if isVariadic && len(args) < numIn-1 {
			return vm.Value{}, fmt.Errorf("expected at least %d arguments but got %d", numIn-1, len(args))
		}

		goArgs := make([]reflect.Value, len(args))
		for i, arg := range args {
			// Determine target type
			var targetType reflect.Type
			if isVariadic && i >= numIn-1 {
				targetType = fnType.In(numIn - 1).Elem()
			} else {
				targetType = fnType.In(i)
			}

			val, err := m.FromValue(arg, targetType)
			if err != nil {
				return vm.Value{}, fmt.Errorf("argument %d: %w", i+1, err)
			}
			if val == nil {
				goArgs[i] = reflect.Zero(targetType)
			} else {
				goArgs[i] = reflect.ValueOf(val)
			}
		}

		results := fn.Call(goArgs)

		if returnsErr {
			if err, _ := results[len(results)-1].Interface().(error); err != nil {
				return vm.Value{}, err
			}
			results = results[:len(results)-1]
		}
		if len(results) == 0 {
			return vm.NullVal(), nil
		}
		return m.toValue(name, results[0].Interface())
	}
	return vm.NativeVal(name, arity, call), nil
}
