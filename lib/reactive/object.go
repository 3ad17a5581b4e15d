// Package reactive provides the key/value container controls use for their
// "data" and "view" models.
//
// Every write through Set emits exactly one Change carrying the plain old
// and new values. Typed accessors (Prop) and external primitives fronted via
// WithSource converge on the same storage and the same events, so there is
// a single write path regardless of how a value is assigned.
//
// Objects are not safe for concurrent use. Listeners run synchronously in
// the goroutine that performed the write, and the first listener error is
// returned to the writer.
package reactive

import (
	"github.com/pkg/errors"
)

// ErrUnknownProperty is returned when a sealed object is written with a
// property name that was never declared.
var ErrUnknownProperty = errors.New("reactive: unknown property")

// Change describes a single write.
type Change struct {
	Name  string
	Old   any
	Value any
}

// Listener receives change events. A non-nil error aborts dispatch and is
// returned from the Set call that triggered it.
type Listener func(Change) error

// Source is an external observable map an Object can front.
//
// Subscribe reports mutations made directly on the source, bypassing the
// Object. Errors returned by the callback flow back to whoever mutated
// the source.
type Source interface {
	Get(name string) any
	Set(name string, value any)
	Subscribe(fn func(name string, old, value any) error) (cancel func())
}

// Option configures an Object.
type Option func(*Object)

// Sealed closes the property set: after construction, only declared
// properties may be written.
func Sealed() Option {
	return func(o *Object) {
		o.sealed = true
	}
}

// WithSource backs the object with an external primitive instead of its
// own map.
func WithSource(src Source) Option {
	return func(o *Object) {
		o.src = src
	}
}

type entry struct {
	name    string // empty means all properties
	fn      Listener
	removed bool
}

// Object is a reactive key/value container.
type Object struct {
	src       Source
	values    map[string]any
	keys      []string
	declared  map[string]struct{}
	sealed    bool
	silent    int
	writing   int
	listeners []*entry
	cancelSrc func()
}

// New creates an object holding initial. Initial values are stored
// silently and declare their keys, in sorted order for determinism.
func New(initial map[string]any, opts ...Option) *Object {
	o := &Object{
		values:   make(map[string]any),
		declared: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.Silently(func() {
		for _, k := range sortedKeys(initial) {
			o.Declare(k)
			o.store(k, initial[k])
		}
	})

	if o.src != nil {
		o.cancelSrc = o.src.Subscribe(o.sourceChanged)
	}
	return o
}

// Get returns the current value of name, or nil.
func (o *Object) Get(name string) any {
	v, _ := o.Lookup(name)
	return v
}

// Lookup returns the value of name and whether the property is declared.
func (o *Object) Lookup(name string) (any, bool) {
	if _, ok := o.declared[name]; !ok {
		return nil, false
	}
	return o.load(name), true
}

// Has reports whether name is a declared property.
func (o *Object) Has(name string) bool {
	_, ok := o.declared[name]
	return ok
}

// Keys returns declared property names in declaration order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Snapshot copies every declared property into a plain map.
func (o *Object) Snapshot() map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		out[k] = o.load(k)
	}
	return out
}

// Declare adds property names without writing values or emitting events.
// Declaring is allowed on sealed objects; it is the explicit way to widen
// the property set.
func (o *Object) Declare(names ...string) {
	for _, name := range names {
		if _, ok := o.declared[name]; ok {
			continue
		}
		o.declared[name] = struct{}{}
		o.keys = append(o.keys, name)
	}
}

// Set stores value under name and emits one Change. Writing nil to a
// property that was never set declares it (unless the object is sealed).
func (o *Object) Set(name string, value any) error {
	if err := o.declare(name); err != nil {
		return err
	}
	old := o.load(name)
	o.store(name, value)
	if o.silent > 0 {
		return nil
	}
	return o.emit(Change{Name: name, Old: old, Value: value})
}

// SetSilent stores value without emitting a change.
func (o *Object) SetSilent(name string, value any) error {
	var err error
	o.Silently(func() {
		err = o.Set(name, value)
	})
	return err
}

// Silently runs fn with change emission suppressed.
func (o *Object) Silently(fn func()) {
	o.silent++
	defer func() { o.silent-- }()
	fn()
}

// On registers a listener for every property.
func (o *Object) On(fn Listener) (cancel func()) {
	return o.subscribe("", fn)
}

// OnProperty registers a listener for a single property.
func (o *Object) OnProperty(name string, fn Listener) (cancel func()) {
	return o.subscribe(name, fn)
}

// Listeners returns the number of live listeners.
func (o *Object) Listeners() int {
	return len(o.listeners)
}

// Detach stops mirroring out-of-band source mutations.
func (o *Object) Detach() {
	if o.cancelSrc != nil {
		o.cancelSrc()
		o.cancelSrc = nil
	}
}

func (o *Object) subscribe(name string, fn Listener) func() {
	e := &entry{name: name, fn: fn}
	o.listeners = append(o.listeners, e)
	return func() {
		if e.removed {
			return
		}
		e.removed = true
		for i, l := range o.listeners {
			if l == e {
				o.listeners = append(o.listeners[:i], o.listeners[i+1:]...)
				break
			}
		}
	}
}

func (o *Object) emit(c Change) error {
	// Listeners may unsubscribe (or subscribe) while we dispatch.
	snapshot := make([]*entry, len(o.listeners))
	copy(snapshot, o.listeners)
	for _, e := range snapshot {
		if e.removed || (e.name != "" && e.name != c.Name) {
			continue
		}
		if err := e.fn(c); err != nil {
			return err
		}
	}
	return nil
}

func (o *Object) declare(name string) error {
	if _, ok := o.declared[name]; ok {
		return nil
	}
	if o.sealed {
		return errors.Wrapf(ErrUnknownProperty, "cannot set %q", name)
	}
	o.Declare(name)
	return nil
}

func (o *Object) load(name string) any {
	if o.src != nil {
		return o.src.Get(name)
	}
	return o.values[name]
}

func (o *Object) store(name string, value any) {
	if o.src == nil {
		o.values[name] = value
		return
	}
	o.writing++
	defer func() { o.writing-- }()
	o.src.Set(name, value)
}

// sourceChanged mirrors a mutation made directly on the source.
func (o *Object) sourceChanged(name string, old, value any) error {
	if o.writing > 0 {
		return nil
	}
	if err := o.declare(name); err != nil {
		return err
	}
	if o.silent > 0 {
		return nil
	}
	return o.emit(Change{Name: name, Old: old, Value: value})
}
