package binding

import (
	"github.com/pkg/errors"

	"github.com/pthm/hxctl/lib/reactive"
)

type bindOptions struct {
	bidirectional bool
	skipInitial   bool
	transform     Func
	reverse       Func
}

// Option configures Bind.
type Option func(*bindOptions)

// Bidirectional also creates the reverse edge from target to source.
func Bidirectional() Option {
	return func(o *bindOptions) {
		o.bidirectional = true
	}
}

// Transform maps values flowing from source to target.
func Transform(fn Func) Option {
	return func(o *bindOptions) {
		o.transform = fn
	}
}

// Reverse maps values flowing from target back to source. Only used with
// Bidirectional.
func Reverse(fn Func) Option {
	return func(o *bindOptions) {
		o.reverse = fn
	}
}

// SkipInitial disables the initial source to target sync.
func SkipInitial() Option {
	return func(o *bindOptions) {
		o.skipInitial = true
	}
}

// Bind registers one edge per entry of spec, keyed by source property.
// Every property named in spec must already be declared on its object.
//
//	m.Bind(data, view, binding.Spec{"value": "text"},
//	    binding.Transform(formatValue),
//	    binding.Bidirectional(),
//	    binding.Reverse(parseValue))
func (m *Manager) Bind(src, dst *reactive.Object, spec Spec, opts ...Option) (*Binding, error) {
	if src == nil || dst == nil {
		return nil, ErrNilObject
	}
	o := &bindOptions{}
	for _, opt := range opts {
		opt(o)
	}

	names := sortedSpec(spec)
	for _, sp := range names {
		dp := spec[sp]
		if !src.Has(sp) {
			return nil, errors.Wrapf(ErrUnknownProperty, "cannot bind from %q", sp)
		}
		if !dst.Has(dp) {
			return nil, errors.Wrapf(ErrUnknownProperty, "cannot bind to %q", dp)
		}
	}

	b := m.track(&Binding{})
	for _, sp := range names {
		from := key{obj: src, name: sp}
		to := key{obj: dst, name: spec[sp]}

		forward := m.edge(from, to, o.transform)
		b.cancels = append(b.cancels, src.OnProperty(sp, forward))
		if o.bidirectional {
			b.cancels = append(b.cancels, dst.OnProperty(to.name, m.edge(to, from, o.reverse)))
		}
		m.log.V(1).Info("bound property", "from", sp, "to", to.name, "bidirectional", o.bidirectional)

		if o.skipInitial {
			continue
		}
		v := src.Get(sp)
		if err := forward(reactive.Change{Name: sp, Old: v, Value: v}); err != nil {
			b.Close()
			return nil, errors.Wrapf(err, "cannot sync %q to %q", sp, to.name)
		}
	}
	return b, nil
}

// edge returns the listener carrying changes of from into to.
func (m *Manager) edge(from, to key, fn Func) reactive.Listener {
	return func(c reactive.Change) error {
		m.enter(from, c.Value)
		defer m.leave()

		v, err := apply(fn, c.Value)
		if err != nil {
			return errors.Wrapf(err, "cannot propagate %q to %q", from.name, to.name)
		}
		return m.write(to, v)
	}
}
