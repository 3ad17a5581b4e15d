// Package ids allocates control identifiers of the form "{type}_{n}".
//
// Counters are per type and owned by an Allocator value; there is no
// package-level state. When markup rendered elsewhere is reconciled, the
// allocator is primed with the highest suffix seen per type (SetMax) so
// that ids allocated afterwards never collide with ids already in the
// document.
package ids

import (
	"strconv"
	"strings"
)

// Allocator hands out per-type monotonic ids.
//
// An Allocator is not safe for concurrent use; it belongs to a single page.
type Allocator struct {
	next map[string]int
}

// New creates an empty allocator. Every type starts at 0.
func New() *Allocator {
	return &Allocator{next: make(map[string]int)}
}

// Next returns the next id for typ and advances its counter.
func (a *Allocator) Next(typ string) string {
	n := a.next[typ]
	a.next[typ] = n + 1
	return Format(typ, n)
}

// Peek returns the id Next would return without consuming it.
func (a *Allocator) Peek(typ string) string {
	return Format(typ, a.next[typ])
}

// SetMax raises counters so the next id for each type is one past the
// given watermark. Counters are never lowered.
func (a *Allocator) SetMax(max map[string]int) {
	for typ, n := range max {
		if n+1 > a.next[typ] {
			a.next[typ] = n + 1
		}
	}
}

// Observe records a single id as in use. Ids that don't parse are ignored.
func (a *Allocator) Observe(id string) {
	typ, n, ok := Parse(id)
	if !ok {
		return
	}
	a.SetMax(map[string]int{typ: n})
}

// Max returns the highest suffix issued or observed per type.
func (a *Allocator) Max() map[string]int {
	out := make(map[string]int, len(a.next))
	for typ, n := range a.next {
		if n > 0 {
			out[typ] = n - 1
		}
	}
	return out
}

// Format builds an id from a type and suffix.
func Format(typ string, n int) string {
	return typ + "_" + strconv.Itoa(n)
}

// Parse splits an id at its last underscore. Types may themselves contain
// underscores ("date_picker_3" is type "date_picker", suffix 3).
func Parse(id string) (typ string, n int, ok bool) {
	i := strings.LastIndexByte(id, '_')
	if i <= 0 || i == len(id)-1 {
		return "", 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return id[:i], n, true
}
