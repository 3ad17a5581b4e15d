package compat

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pthm/hxctl/lib/reactive"
)

type defects struct {
	dropInitial  bool
	panicOnNil   bool
	boxEvents    bool
	silentAssign bool
}

type box struct{ v any }

func (b box) Unbox() any { return b.v }

// legacy is a primitive with switchable defects.
type legacy struct {
	defects
	values map[string]any
	subs   map[int]func(string, any, any) error
	next   int
}

func legacyCtor(d defects, calls *int) Constructor {
	return func(initial map[string]any) Primitive {
		if calls != nil {
			*calls++
		}
		p := &legacy{defects: d, values: make(map[string]any), subs: make(map[int]func(string, any, any) error)}
		if !d.dropInitial {
			for k, v := range initial {
				p.values[k] = v
			}
		}
		return p
	}
}

func (p *legacy) Get(name string) any {
	return p.values[name]
}

func (p *legacy) Set(name string, value any) {
	if value == nil && p.panicOnNil {
		panic("legacy: nil value")
	}
	old := p.values[name]
	p.values[name] = value
	if p.boxEvents {
		p.fire(name, box{old}, box{value})
		return
	}
	p.fire(name, old, value)
}

func (p *legacy) Assign(name string, value any) {
	if p.silentAssign {
		p.values[name] = value
		return
	}
	p.Set(name, value)
}

func (p *legacy) Subscribe(fn func(string, any, any) error) func() {
	id := p.next
	p.next++
	p.subs[id] = fn
	return func() { delete(p.subs, id) }
}

func (p *legacy) fire(name string, old, value any) {
	for i := 0; i < p.next; i++ {
		if fn, ok := p.subs[i]; ok {
			_ = fn(name, old, value)
		}
	}
}

func scopedGen(scope any, typ string) string {
	if scope == nil {
		panic("legacy: no scope")
	}
	return fmt.Sprintf("%v-%s", scope, typ)
}

func plainGen(_ any, typ string) string {
	return typ + "!"
}

func TestProbes(t *testing.T) {
	tests := []struct {
		name    string
		defects defects
		gen     IDGenerator
		want    Patch
	}{
		{"healthy", defects{}, plainGen, 0},
		{"drops initial values", defects{dropInitial: true}, plainGen, PatchConstruction},
		{"panics on nil", defects{panicOnNil: true}, plainGen, PatchNilSet},
		{"boxes events", defects{boxEvents: true}, plainGen, PatchEvents},
		{"silent assignment", defects{silentAssign: true}, plainGen, PatchAssign},
		{"scoped ids", defects{}, scopedGen, PatchIDs},
		{"no generator", defects{}, nil, PatchIDs},
		{
			"everything",
			defects{dropInitial: true, panicOnNil: true, boxEvents: true, silentAssign: true},
			scopedGen,
			PatchConstruction | PatchNilSet | PatchEvents | PatchAssign | PatchIDs,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Load(legacyCtor(tt.defects, nil), tt.gen)
			if l.Patches() != tt.want {
				t.Errorf("Patches() = %s, want %s", l.Patches(), tt.want)
			}
		})
	}
}

func TestPatchString(t *testing.T) {
	if got := Patch(0).String(); got != "none" {
		t.Errorf("String() = %s", got)
	}
	if got := (PatchNilSet | PatchIDs).String(); got != "nil-set|id-no-context" {
		t.Errorf("String() = %s", got)
	}
}

func TestProbesRunOnce(t *testing.T) {
	calls := 0
	l := Load(legacyCtor(defects{}, &calls), nil)
	probed := calls

	l.New(nil)
	l.New(map[string]any{"a": 1})
	if calls != probed+2 {
		t.Errorf("constructor calls = %d, want %d", calls, probed+2)
	}
}

func TestNormalizedContract(t *testing.T) {
	broken := defects{dropInitial: true, panicOnNil: true, boxEvents: true, silentAssign: true}
	for name, d := range map[string]defects{"healthy": {}, "broken": broken} {
		t.Run(name, func(t *testing.T) {
			l := Load(legacyCtor(d, nil), scopedGen)
			p := l.New(map[string]any{"a": 1})

			if got := p.Get("a"); got != 1 {
				t.Errorf("Get(a) = %v, want 1", got)
			}

			var events [][3]any
			cancel := p.Subscribe(func(name string, old, value any) error {
				events = append(events, [3]any{name, old, value})
				return nil
			})
			defer cancel()

			p.Set("unset", nil)
			p.Set("a", 2)
			p.(Assigner).Assign("a", 3)

			want := [][3]any{
				{"unset", nil, nil},
				{"a", 1, 2},
				{"a", 2, 3},
			}
			if diff := cmp.Diff(want, events); diff != "" {
				t.Errorf("events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestObjectOverNormalizedPrimitive(t *testing.T) {
	l := Load(legacyCtor(defects{dropInitial: true, boxEvents: true, silentAssign: true}, nil), nil)
	src := l.New(map[string]any{"count": 1})
	obj := reactive.New(map[string]any{"count": 1}, reactive.WithSource(src))

	var changes []reactive.Change
	obj.On(func(c reactive.Change) error {
		changes = append(changes, c)
		return nil
	})

	if err := obj.Set("count", 2); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	src.(Assigner).Assign("count", 3)

	want := []reactive.Change{
		{Name: "count", Old: 1, Value: 2},
		{Name: "count", Old: 2, Value: 3},
	}
	if diff := cmp.Diff(want, changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	if obj.Get("count") != 3 {
		t.Errorf("Get(count) = %v, want 3", obj.Get("count"))
	}
}

func TestLayerObject(t *testing.T) {
	l := Load(legacyCtor(defects{dropInitial: true}, nil), nil)
	obj := l.Object(map[string]any{"title": "x"}, reactive.Sealed())

	if obj.Get("title") != "x" {
		t.Errorf("Get(title) = %v", obj.Get("title"))
	}
	if err := obj.Set("other", 1); err == nil {
		t.Error("expected sealed object to reject unknown property")
	}
}

func TestWrapIsIdempotent(t *testing.T) {
	l := Load(legacyCtor(defects{}, nil), nil)
	p := l.New(nil)

	if l.Wrap(p) != p {
		t.Error("Wrap() of a normalized primitive should return it unchanged")
	}
	raw := legacyCtor(defects{}, nil)(nil)
	w := l.Wrap(raw)
	if w == raw || l.Wrap(w) != w {
		t.Error("Wrap() should wrap raw primitives exactly once")
	}
	if w.(*normalized).Unwrap() != raw {
		t.Error("Unwrap() mismatch")
	}
}

func TestNextID(t *testing.T) {
	l := Load(legacyCtor(defects{}, nil), scopedGen)

	got := []string{l.NextID(nil, "x"), l.NextID(nil, "x"), l.NextID("page", "x")}
	want := []string{"x_0", "x_1", "page-x"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NextID mismatch (-want +got):\n%s", diff)
	}

	healthy := Load(legacyCtor(defects{}, nil), plainGen)
	if got := healthy.NextID(nil, "x"); got != "x!" {
		t.Errorf("NextID() = %s, want generator output", got)
	}
}

func TestPatchedFailuresAreNotSwallowed(t *testing.T) {
	l := Load(legacyCtor(defects{panicOnNil: true}, nil), nil)
	p := l.New(map[string]any{"a": 1})

	defer func() {
		if recover() == nil {
			t.Error("expected nil write over a set key to reach the primitive and panic")
		}
	}()
	p.Set("a", nil)
}

func TestLoadNilConstructorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Load(nil, nil)
}
