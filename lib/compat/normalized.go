package compat

type subscriber struct {
	fn      func(name string, old, value any) error
	removed bool
}

// normalized wraps a primitive with the patches its layer installed. It
// subscribes to the primitive once and fans events out, so patched writes
// that never reach the primitive can still be reported.
type normalized struct {
	l      *Layer
	inner  Primitive
	subs   []*subscriber
	cancel func()
}

// Unwrap returns the underlying primitive.
func (n *normalized) Unwrap() Primitive {
	return n.inner
}

func (n *normalized) Get(name string) any {
	v := n.inner.Get(name)
	if n.l.Patched(PatchEvents) {
		v = unbox(v)
	}
	return v
}

// Set writes through to the primitive. With PatchNilSet, a nil write over
// an unset key never reaches the primitive and the change is emitted here
// instead. Source.Set has no error result, so a listener error on that
// path cannot reach the writer and is logged. Writes made through a
// reactive.Object are not affected: the object emits its own change and
// returns listener errors from its Set.
func (n *normalized) Set(name string, value any) {
	if value == nil && n.l.Patched(PatchNilSet) && n.Get(name) == nil {
		if err := n.emit(name, nil, nil); err != nil {
			n.l.log.Error(err, "listener failed", "name", name)
		}
		return
	}
	n.inner.Set(name, value)
}

// Assign is the direct assignment path. When the primitive's own path is
// not observable it goes through Set.
func (n *normalized) Assign(name string, value any) {
	if a, ok := n.inner.(Assigner); ok && !n.l.Patched(PatchAssign) {
		a.Assign(name, value)
		return
	}
	n.Set(name, value)
}

func (n *normalized) Subscribe(fn func(name string, old, value any) error) (cancel func()) {
	s := &subscriber{fn: fn}
	n.subs = append(n.subs, s)
	if n.cancel == nil {
		n.cancel = n.inner.Subscribe(n.forward)
	}
	return func() {
		if s.removed {
			return
		}
		s.removed = true
		for i, x := range n.subs {
			if x == s {
				n.subs = append(n.subs[:i], n.subs[i+1:]...)
				break
			}
		}
		if len(n.subs) == 0 && n.cancel != nil {
			n.cancel()
			n.cancel = nil
		}
	}
}

func (n *normalized) forward(name string, old, value any) error {
	if n.l.Patched(PatchEvents) {
		old, value = unbox(old), unbox(value)
	}
	return n.emit(name, old, value)
}

func (n *normalized) emit(name string, old, value any) error {
	subs := make([]*subscriber, len(n.subs))
	copy(subs, n.subs)
	for _, s := range subs {
		if s.removed {
			continue
		}
		if err := s.fn(name, old, value); err != nil {
			return err
		}
	}
	return nil
}
