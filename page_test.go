package hxctl

import (
	"testing"

	"github.com/pthm/hxctl/lib/binding"
	"github.com/pthm/hxctl/lib/compat"
	"github.com/pthm/hxctl/lib/reactive"
)

// store is a minimal observable map used as an external primitive.
type store struct {
	values map[string]any
	subs   []func(string, any, any) error
}

func newStore(initial map[string]any) *store {
	s := &store{values: make(map[string]any)}
	for k, v := range initial {
		s.values[k] = v
	}
	return s
}

func (s *store) Get(name string) any { return s.values[name] }

func (s *store) Set(name string, value any) {
	old := s.values[name]
	s.values[name] = value
	for _, fn := range s.subs {
		if fn != nil {
			_ = fn(name, old, value)
		}
	}
}

func (s *store) Subscribe(fn func(string, any, any) error) func() {
	i := len(s.subs)
	s.subs = append(s.subs, fn)
	return func() { s.subs[i] = nil }
}

func TestWithObjectsBacksControlState(t *testing.T) {
	var stores []*store
	layer := compat.Load(func(initial map[string]any) compat.Primitive {
		s := newStore(initial)
		stores = append(stores, s)
		return s
	}, nil)
	probed := len(stores)

	p := NewPage(WithObjects(func(m map[string]any) *reactive.Object {
		return layer.Object(m)
	}))
	c := NewBase(Spec{Page: p}, "box")
	if err := c.SetField("count", 3); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}
	if len(stores) != probed+1 {
		t.Fatalf("primitives built for data = %d, want 1", len(stores)-probed)
	}
	data := stores[probed]
	if data.values["count"] != 3 {
		t.Errorf("primitive count = %v, want 3", data.values["count"])
	}

	c.View().Declare("text")
	if err := c.Bind(c.Data(), c.View(), binding.Spec{"count": "text"}); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if got := c.View().Get("text"); got != 3 {
		t.Errorf("view text = %v, want 3", got)
	}

	// A write made on the primitive itself reaches the bound view.
	data.Set("count", 4)
	if got := c.View().Get("text"); got != 4 {
		t.Errorf("view text after primitive write = %v, want 4", got)
	}
	if got := c.Field("count"); got != 4 {
		t.Errorf("Field(count) = %v, want 4", got)
	}
}

func TestDefaultObjectsArePlain(t *testing.T) {
	p := NewPage()
	c := NewBase(Spec{Page: p}, "box")
	if c.Data() == c.View() {
		t.Fatal("data and view share an object")
	}
	if err := c.SetField("x", 1); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}
	if c.View().Has("x") {
		t.Error("view sees data property")
	}
}
