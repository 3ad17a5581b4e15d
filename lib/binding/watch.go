package binding

import (
	"github.com/pkg/errors"

	"github.com/pthm/hxctl/lib/reactive"
)

// WatchFunc is invoked with the new value, the previous value and the
// property name.
type WatchFunc func(value, old any, name string)

type watchOptions struct {
	immediate bool
}

// WatchOption configures Watch.
type WatchOption func(*watchOptions)

// Immediate fires the callback once at registration with the current value
// as both value and old.
func Immediate() WatchOption {
	return func(o *watchOptions) {
		o.immediate = true
	}
}

// Watch subscribes fn to changes of one property.
func (m *Manager) Watch(src *reactive.Object, name string, fn WatchFunc, opts ...WatchOption) (*Binding, error) {
	if src == nil {
		return nil, ErrNilObject
	}
	if !src.Has(name) {
		return nil, errors.Wrapf(ErrUnknownProperty, "cannot watch %q", name)
	}
	o := &watchOptions{}
	for _, opt := range opts {
		opt(o)
	}

	b := m.track(&Binding{})
	origin := key{obj: src, name: name}
	b.cancels = append(b.cancels, src.OnProperty(name, func(c reactive.Change) error {
		m.enter(origin, c.Value)
		defer m.leave()
		fn(c.Value, c.Old, c.Name)
		return nil
	}))

	if o.immediate {
		v := src.Get(name)
		fn(v, v, name)
	}
	return b, nil
}
