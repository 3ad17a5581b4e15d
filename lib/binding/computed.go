package binding

import (
	"github.com/pkg/errors"

	"github.com/pthm/hxctl/lib/reactive"
)

// ComputeFunc derives a value from dependency values, passed in the order
// the dependencies were declared. It must be pure.
type ComputeFunc func(values ...any) (any, error)

type computedOptions struct {
	target   *reactive.Object
	property string
}

// ComputedOption configures Computed.
type ComputedOption func(*computedOptions)

// Target sets the object receiving the computed value. Defaults to the
// first source.
func Target(obj *reactive.Object) ComputedOption {
	return func(o *computedOptions) {
		o.target = obj
	}
}

// Property names the computed property. Required.
func Property(name string) ComputedOption {
	return func(o *computedOptions) {
		o.property = name
	}
}

// Computed registers a derived property. sources holds either one object
// shared by every dependency or one object per dependency.
//
//	m.Computed([]*reactive.Object{a, b}, []string{"p", "q"},
//	    func(v ...any) (any, error) { return v[0].(int) + v[1].(int), nil },
//	    binding.Target(c), binding.Property("r"))
//
// The value is computed once at registration and again, synchronously,
// whenever any dependency changes. It is written through the target's
// normal Set, so it is itself observable and bindable.
func (m *Manager) Computed(sources []*reactive.Object, deps []string, fn ComputeFunc, opts ...ComputedOption) (*Binding, error) {
	o := &computedOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.property == "" {
		return nil, ErrNoProperty
	}
	if len(sources) == 0 || (len(sources) != 1 && len(sources) != len(deps)) {
		return nil, ErrSourceCount
	}

	keys := make([]key, len(deps))
	for i, dep := range deps {
		src := sources[0]
		if len(sources) > 1 {
			src = sources[i]
		}
		if src == nil {
			return nil, ErrNilObject
		}
		if !src.Has(dep) {
			return nil, errors.Wrapf(ErrUnknownProperty, "cannot compute %q from %q", o.property, dep)
		}
		keys[i] = key{obj: src, name: dep}
	}
	if o.target == nil {
		o.target = sources[0]
	}
	o.target.Declare(o.property)
	target := key{obj: o.target, name: o.property}

	recompute := func(origin key, value any) error {
		m.enter(origin, value)
		defer m.leave()

		values := make([]any, len(keys))
		for i, k := range keys {
			values[i] = k.obj.Get(k.name)
		}
		v, err := fn(values...)
		if err != nil {
			return errors.Wrapf(err, "cannot compute %q", o.property)
		}
		return m.write(target, v)
	}

	b := m.track(&Binding{})
	seen := make(map[key]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		b.cancels = append(b.cancels, k.obj.OnProperty(k.name, func(c reactive.Change) error {
			return recompute(k, c.Value)
		}))
	}
	m.log.V(1).Info("registered computed property", "property", o.property, "dependencies", deps)

	if err := recompute(key{}, nil); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}
