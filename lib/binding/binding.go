// Package binding wires reactive objects together.
//
// A Manager owns three kinds of wiring, all driven synchronously by the
// change events of reactive.Object:
//
//   - Bind: directed edges from a source property to a target property,
//     optionally paired with a reverse edge (Bidirectional) and transformed
//     in either direction.
//   - Computed: a derived property recomputed from an ordered list of
//     dependencies whenever any of them changes.
//   - Watch: a callback invoked with (value, old, name) on every change.
//
// Propagation happens inside the Set call that triggered it. There is no
// queue and no retry; errors from transforms and compute functions are
// returned to whoever performed the triggering write.
//
// The manager guards against cycles per call stack: while propagating, it
// remembers the value written to each (object, property), starting with
// the outside write that began the stack. An edge never writes a value to
// a property that already received that same value in the current stack,
// which ends A<->B ping-pong after one hop and longer cycles after one
// lap. The record is reset when the next write from outside the manager
// arrives, so later writes of equal values still propagate.
//
// A Manager is not safe for concurrent use.
package binding

import (
	"reflect"
	"sort"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/pthm/hxctl/lib/reactive"
)

// Errors returned when wiring is invalid. They indicate programming
// defects and are reported at bind time.
var (
	ErrUnknownProperty = errors.New("binding: unknown property")
	ErrNoProperty      = errors.New("binding: computed property name required")
	ErrSourceCount     = errors.New("binding: sources must be one object or one per dependency")
	ErrNilObject       = errors.New("binding: nil object")
)

// Func transforms a value crossing an edge.
type Func func(any) (any, error)

// Spec maps source property names to target property names.
type Spec map[string]string

type key struct {
	obj  *reactive.Object
	name string
}

// Manager registers and tracks bindings.
type Manager struct {
	log      logr.Logger
	depth    int
	written  map[key]any
	bindings map[*Binding]struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for wiring diagnostics.
func WithLogger(log logr.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// New creates an empty manager.
func New(opts ...ManagerOption) *Manager {
	m := &Manager{
		log:      logr.Discard(),
		written:  make(map[key]any),
		bindings: make(map[*Binding]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Binding is a handle on registered wiring.
type Binding struct {
	m       *Manager
	cancels []func()
	closed  bool
}

// Close removes the binding's listeners. It is safe to call twice.
func (b *Binding) Close() {
	if b == nil || b.closed {
		return
	}
	b.closed = true
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
	delete(b.m.bindings, b)
}

// Len returns the number of live bindings.
func (m *Manager) Len() int {
	return len(m.bindings)
}

// Close removes every binding registered with the manager.
func (m *Manager) Close() {
	for b := range m.bindings {
		b.Close()
	}
}

func (m *Manager) track(b *Binding) *Binding {
	b.m = m
	m.bindings[b] = struct{}{}
	return b
}

// enter marks the start of manager-driven work. Work entered from depth 0
// is the first reaction to an outside write, so the per-stack record
// starts fresh. Every entry records the write that triggered it, including
// writes made by watcher callbacks mid-propagation, so that no edge writes
// the same value back to where it came from.
func (m *Manager) enter(origin key, value any) {
	if m.depth == 0 {
		clear(m.written)
	}
	if origin.obj != nil {
		m.written[origin] = value
	}
	m.depth++
}

func (m *Manager) leave() {
	m.depth--
}

// echo reports whether value at k was already written during the current
// stack, either by the manager or by the write that started it.
func (m *Manager) echo(k key, value any) bool {
	w, ok := m.written[k]
	return ok && equal(w, value)
}

// write stores value at k through the normal write path unless the same
// value was already written there during the current stack.
func (m *Manager) write(k key, value any) error {
	if m.echo(k, value) {
		return nil
	}
	m.written[k] = value
	return k.obj.Set(k.name, value)
}

// equal compares propagated values. Compound values compare by contents;
// the comparison only ever suppresses work inside a single call stack.
func equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func apply(fn Func, v any) (any, error) {
	if fn == nil {
		return v, nil
	}
	return fn(v)
}

func sortedSpec(spec Spec) []string {
	keys := make([]string, 0, len(spec))
	for k := range spec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
