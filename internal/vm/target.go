package vm

import (
	"errors"
	"fmt"
	"reflect"
)

// Target is a host object a thread is bound to. Scripts reach it with
// [name] expressions and spawn initializers.
type Target interface {
	// GetProperty returns the property value, or false if the object has
	// no such property.
	GetProperty(name string) (Value, bool)
	// SetProperty assigns a property. Unknown names fail with an error
	// wrapping ErrUndefinedProperty.
	SetProperty(name string, value Value) error
}

// Factory builds a fresh target for a registered type key.
type Factory func() (Target, error)

var ErrUndefinedProperty = errors.New("undefined property")

// PropertyMap is a Target with a fixed set of properties decided at
// construction.
type PropertyMap struct {
	props map[string]Value
}

// NewPropertyMap returns a map holding a copy of defaults.
func NewPropertyMap(defaults map[string]Value) *PropertyMap {
	props := make(map[string]Value, len(defaults))
	for k, v := range defaults {
		props[k] = v
	}
	return &PropertyMap{props: props}
}

// PropertyMapFactory returns a Factory producing a new PropertyMap with
// the given defaults on every call.
func PropertyMapFactory(defaults map[string]Value) Factory {
	return func() (Target, error) {
		return NewPropertyMap(defaults), nil
	}
}

func (m *PropertyMap) GetProperty(name string) (Value, bool) {
	v, ok := m.props[name]
	return v, ok
}

func (m *PropertyMap) SetProperty(name string, value Value) error {
	if _, ok := m.props[name]; !ok {
		return fmt.Errorf("%w '%s'", ErrUndefinedProperty, name)
	}
	m.props[name] = value
	return nil
}

// Len returns the number of properties.
func (m *PropertyMap) Len() int {
	return len(m.props)
}

// comparableTarget reports whether t can key the owner map. Targets are
// normally pointers; anything else is bound without eviction tracking.
func comparableTarget(t Target) bool {
	return t != nil && reflect.TypeOf(t).Comparable()
}
