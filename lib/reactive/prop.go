package reactive

import "sort"

// Prop is a typed accessor for one property of an Object. Reads and writes
// go through the object, so Prop.Set and Object.Set are interchangeable.
type Prop[T any] struct {
	obj  *Object
	name string
}

// NewProp declares name on o and returns a typed accessor for it.
func NewProp[T any](o *Object, name string) Prop[T] {
	o.Declare(name)
	return Prop[T]{obj: o, name: name}
}

// Name returns the property name.
func (p Prop[T]) Name() string {
	return p.name
}

// Get returns the current value, or the zero value when unset or of
// another type.
func (p Prop[T]) Get() T {
	v, _ := p.obj.Get(p.name).(T)
	return v
}

// Set writes v through the object's normal write path.
func (p Prop[T]) Set(v T) error {
	return p.obj.Set(p.name, v)
}

// Watch registers a typed listener for this property.
func (p Prop[T]) Watch(fn func(value, old T) error) (cancel func()) {
	return p.obj.OnProperty(p.name, func(c Change) error {
		v, _ := c.Value.(T)
		o, _ := c.Old.(T)
		return fn(v, o)
	})
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
