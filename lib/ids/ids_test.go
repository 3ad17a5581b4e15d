package ids

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNextStartsAtZero(t *testing.T) {
	a := New()

	if got := a.Next("button"); got != "button_0" {
		t.Errorf("Next() = %q, want button_0", got)
	}
	if got := a.Next("button"); got != "button_1" {
		t.Errorf("Next() = %q, want button_1", got)
	}
	// Unknown types get independent counters
	if got := a.Next("panel"); got != "panel_0" {
		t.Errorf("Next() = %q, want panel_0", got)
	}
}

func TestSetMaxAvoidsCollisions(t *testing.T) {
	a := New()
	a.SetMax(map[string]int{"foo": 7})

	if got := a.Next("foo"); got != "foo_8" {
		t.Errorf("Next() after SetMax(7) = %q, want foo_8", got)
	}
}

func TestSetMaxNeverLowers(t *testing.T) {
	a := New()
	for i := 0; i < 5; i++ {
		a.Next("foo")
	}
	a.SetMax(map[string]int{"foo": 1})

	if got := a.Next("foo"); got != "foo_5" {
		t.Errorf("Next() = %q, want foo_5", got)
	}
}

func TestObserve(t *testing.T) {
	a := New()
	a.Observe("date_picker_3")
	a.Observe("not-an-id")

	if got := a.Peek("date_picker"); got != "date_picker_4" {
		t.Errorf("Peek() = %q, want date_picker_4", got)
	}
}

func TestMax(t *testing.T) {
	a := New()
	a.Next("a")
	a.Next("a")
	a.SetMax(map[string]int{"b": 9})

	want := map[string]int{"a": 1, "b": 9}
	if diff := cmp.Diff(want, a.Max()); diff != "" {
		t.Errorf("Max() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		id  string
		typ string
		n   int
		ok  bool
	}{
		{"widget_0", "widget", 0, true},
		{"date_picker_12", "date_picker", 12, true},
		{"widget", "", 0, false},
		{"widget_", "", 0, false},
		{"_3", "", 0, false},
		{"widget_x", "", 0, false},
		{"widget_-1", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			typ, n, ok := Parse(tt.id)
			if typ != tt.typ || n != tt.n || ok != tt.ok {
				t.Errorf("Parse(%q) = (%q, %d, %v), want (%q, %d, %v)", tt.id, typ, n, ok, tt.typ, tt.n, tt.ok)
			}
		})
	}
}
