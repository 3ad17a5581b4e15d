// Package compat fronts external reactive primitives with a uniform
// contract.
//
// Different revisions of a primitive disagree on details the binding
// layer depends on: whether construction stores the initial values,
// whether writing nil to an unset key is allowed, whether change events
// carry plain values, whether direct assignment stays observable, and
// whether ids can be generated without a scope. Load probes the primitive
// once and the Layer it returns wraps every instance so that only the
// behaviors that failed a probe are patched.
package compat

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/pthm/hxctl/lib/ids"
	"github.com/pthm/hxctl/lib/reactive"
)

// Primitive is the external observable map being normalized.
type Primitive = reactive.Source

// Assigner is implemented by primitives with a direct assignment path
// separate from Set.
type Assigner interface {
	Assign(name string, value any)
}

// Boxed is implemented by internal wrapper values some primitives leak
// into change events.
type Boxed interface {
	Unbox() any
}

// Constructor builds a primitive holding initial.
type Constructor func(initial map[string]any) Primitive

// IDGenerator is the primitive's id source. scope may be nil.
type IDGenerator func(scope any, typ string) string

// Patch identifies one normalized behavior.
type Patch uint8

const (
	// PatchConstruction stores initial values with explicit writes.
	PatchConstruction Patch = 1 << iota
	// PatchNilSet turns nil writes to unset keys into no-op changes.
	PatchNilSet
	// PatchEvents unboxes values in change events and reads.
	PatchEvents
	// PatchAssign routes direct assignment through Set.
	PatchAssign
	// PatchIDs allocates ids locally when no scope is given.
	PatchIDs
)

var patchNames = []struct {
	patch Patch
	name  string
}{
	{PatchConstruction, "construction"},
	{PatchNilSet, "nil-set"},
	{PatchEvents, "plain-events"},
	{PatchAssign, "direct-assign"},
	{PatchIDs, "id-no-context"},
}

func (p Patch) String() string {
	if p == 0 {
		return "none"
	}
	var parts []string
	for _, pn := range patchNames {
		if p&pn.patch != 0 {
			parts = append(parts, pn.name)
		}
	}
	return strings.Join(parts, "|")
}

// Layer holds the probe results for one primitive implementation.
type Layer struct {
	ctor    Constructor
	gen     IDGenerator
	patches Patch
	ids     *ids.Allocator
	log     logr.Logger
}

// Option configures a Layer.
type Option func(*Layer)

// WithLogger sets the logger used to report installed patches.
func WithLogger(log logr.Logger) Option {
	return func(l *Layer) {
		l.log = log
	}
}

// Load probes the primitive built by ctor and the id generator gen. gen
// may be nil, in which case ids are always allocated locally. Probes run
// once, here; a probe that panics counts as failed.
func Load(ctor Constructor, gen IDGenerator, opts ...Option) *Layer {
	if ctor == nil {
		panic("compat: nil constructor")
	}
	l := &Layer{
		ctor: ctor,
		gen:  gen,
		ids:  ids.New(),
		log:  logr.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}

	for _, pr := range probes {
		if l.run(pr) {
			continue
		}
		l.patches |= pr.patch
		l.log.Info("installing patch", "probe", pr.patch.String())
	}
	return l
}

// Patches returns every installed patch.
func (l *Layer) Patches() Patch {
	return l.patches
}

// Patched reports whether p is installed.
func (l *Layer) Patched(p Patch) bool {
	return l.patches&p != 0
}

// New constructs a normalized primitive holding initial.
func (l *Layer) New(initial map[string]any) Primitive {
	if !l.Patched(PatchConstruction) {
		return l.Wrap(l.ctor(initial))
	}
	n := l.wrap(l.ctor(nil))
	keys := make([]string, 0, len(initial))
	for k := range initial {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Set(k, initial[k])
	}
	return n
}

// Wrap normalizes p. Wrapping an already normalized primitive returns it
// unchanged.
func (l *Layer) Wrap(p Primitive) Primitive {
	if n, ok := p.(*normalized); ok {
		return n
	}
	return l.wrap(p)
}

func (l *Layer) wrap(p Primitive) *normalized {
	return &normalized{l: l, inner: p}
}

// Object returns a reactive object fronting a normalized primitive that
// holds initial.
func (l *Layer) Object(initial map[string]any, opts ...reactive.Option) *reactive.Object {
	opts = append(opts, reactive.WithSource(l.New(initial)))
	return reactive.New(initial, opts...)
}

// NextID returns a new id for typ. Without a scope, a primitive whose
// generator needs one is bypassed in favor of a layer-owned allocator.
func (l *Layer) NextID(scope any, typ string) string {
	if l.gen == nil || (scope == nil && l.Patched(PatchIDs)) {
		return l.ids.Next(typ)
	}
	return l.gen(scope, typ)
}

type probe struct {
	patch Patch
	check func(l *Layer) bool
}

var probes = []probe{
	{PatchConstruction, probeConstruction},
	{PatchNilSet, probeNilSet},
	{PatchEvents, probePlainEvents},
	{PatchAssign, probeDirectAssign},
	{PatchIDs, probeIDs},
}

func (l *Layer) run(pr probe) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			l.log.V(1).Info("probe panicked", "probe", pr.patch.String(), "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	return pr.check(l)
}

func probeConstruction(l *Layer) bool {
	p := l.ctor(map[string]any{"probe": 1})
	return p != nil && reflect.DeepEqual(unbox(p.Get("probe")), 1)
}

func probeNilSet(l *Layer) bool {
	l.ctor(nil).Set("probe", nil)
	return true
}

func probePlainEvents(l *Layer) bool {
	p := l.ctor(nil)
	var got []any
	cancel := p.Subscribe(func(_ string, old, value any) error {
		got = append(got, old, value)
		return nil
	})
	defer cancel()
	p.Set("probe", 1)
	p.Set("probe", 2)
	if len(got) == 0 {
		return false
	}
	for _, v := range got {
		if _, boxed := v.(Boxed); boxed {
			return false
		}
	}
	return true
}

func probeDirectAssign(l *Layer) bool {
	p := l.ctor(nil)
	a, ok := p.(Assigner)
	if !ok {
		return true
	}
	var seen []any
	cancel := p.Subscribe(func(_ string, _, value any) error {
		seen = append(seen, unbox(value))
		return nil
	})
	defer cancel()
	p.Set("probe", 1)
	a.Assign("probe", 2)
	return reflect.DeepEqual(unbox(p.Get("probe")), 2) && len(seen) > 0 && reflect.DeepEqual(seen[len(seen)-1], 2)
}

func probeIDs(l *Layer) bool {
	return l.gen != nil && l.gen(nil, "probe") != ""
}

func unbox(v any) any {
	for {
		b, ok := v.(Boxed)
		if !ok {
			return v
		}
		v = b.Unbox()
	}
}
