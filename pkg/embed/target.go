package dakka

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/jbpuryear/dakka/internal/vm"
	"golang.org/x/exp/slices"
)

// StructTarget exposes the exported fields of a struct as script
// properties. A field is named by its `dakka` tag, or by its Go name with
// the first letter lowered. A tag of "-" hides the field.
//
//	type Bullet struct {
//		X, Y  float64
//		Speed float64 `dakka:"speed"`
//		Alive bool    `dakka:"-"`
//	}
type StructTarget struct {
	obj        interface{}
	elem       reflect.Value
	fields     map[string]int
	marshaller *Marshaller
}

// fieldCache maps a struct type to its property -> field index table.
var fieldCache sync.Map

// NewStructTarget wraps ptr, which must be a non-nil pointer to a struct.
func NewStructTarget(ptr interface{}) (*StructTarget, error) {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("target must be a non-nil pointer to a struct, got %T", ptr)
	}
	return &StructTarget{
		obj:        ptr,
		elem:       v.Elem(),
		fields:     structFields(v.Elem().Type()),
		marshaller: NewMarshaller(),
	}, nil
}

// Object returns the wrapped pointer.
func (s *StructTarget) Object() interface{} {
	return s.obj
}

func (s *StructTarget) GetProperty(name string) (vm.Value, bool) {
	idx, ok := s.fields[name]
	if !ok {
		return vm.Value{}, false
	}
	v, err := s.marshaller.ToValue(s.elem.Field(idx).Interface())
	if err != nil {
		return vm.Value{}, false
	}
	return v, true
}

func (s *StructTarget) SetProperty(name string, value vm.Value) error {
	idx, ok := s.fields[name]
	if !ok {
		return fmt.Errorf("%w '%s'", vm.ErrUndefinedProperty, name)
	}
	field := s.elem.Field(idx)
	val, err := s.marshaller.FromValue(value, field.Type())
	if err != nil {
		return err
	}
	if val == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	field.Set(reflect.ValueOf(val))
	return nil
}

// Properties lists the property names in field order.
func (s *StructTarget) Properties() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return s.fields[a] - s.fields[b]
	})
	return names
}

func structFields(t reflect.Type) map[string]int {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(map[string]int)
	}

	fields := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" || f.Anonymous { // Skip unexported and embedded fields
			continue
		}
		name := lowerFirst(f.Name)
		if tag, ok := f.Tag.Lookup("dakka"); ok {
			tag = strings.Split(tag, ",")[0]
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		fields[name] = i
	}

	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.(map[string]int)
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}
